package events

import (
	"context"

	"github.com/twmb/franz-go/pkg/kgo"

	"pehlione.com/shop/internal/tracing"
)

type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{client: client, topic: topic}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, m Message) error {
	headers := append(tracing.InjectTraceContextToKafka(ctx),
		kgo.RecordHeader{Key: "event_type", Value: []byte(m.Type)},
		kgo.RecordHeader{Key: "message_id", Value: []byte(m.ID)},
	)
	rec := &kgo.Record{
		Topic:     p.topic,
		Key:       []byte(m.Key),
		Value:     m.Payload,
		Headers:   headers,
		Timestamp: m.CreatedAt,
	}
	return p.client.ProduceSync(ctx, rec).FirstErr()
}

func (p *KafkaPublisher) Close() error {
	p.client.Close()
	return nil
}
