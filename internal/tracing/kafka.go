package tracing

import (
	"context"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/propagation"
)

// InjectTraceContextToKafka returns a traceparent header for ctx, or nil when ctx carries no span.
func InjectTraceContextToKafka(ctx context.Context) []kgo.RecordHeader {
	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)

	traceparent, ok := carrier["traceparent"]
	if !ok {
		return nil
	}
	return []kgo.RecordHeader{
		{Key: "traceparent", Value: []byte(traceparent)},
	}
}
