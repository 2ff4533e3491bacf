package events

import (
	"context"
	"log/slog"
	"time"
)

// Message is what leaves the process. Key is the order id so consumers can keep per-order ordering.
type Message struct {
	ID        string
	Type      string
	Key       string
	Payload   []byte
	CreatedAt time.Time
}

type Publisher interface {
	Publish(ctx context.Context, m Message) error
	Close() error
}

// LogPublisher writes messages to the log. Used in development and when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, m Message) error {
	p.logger.InfoContext(ctx, "event published", "id", m.ID, "type", m.Type, "key", m.Key, "bytes", len(m.Payload))
	return nil
}

func (p *LogPublisher) Close() error { return nil }
