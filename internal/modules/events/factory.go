package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
)

type Config struct {
	Driver           string // log|rabbitmq|kafka
	RabbitMQURL      string
	RabbitMQExchange string
	KafkaBrokers     []string
	KafkaTopic       string
	ConnectTimeout   time.Duration
}

type FactoryResult struct {
	Driver    string
	Publisher Publisher
}

func FromConfig(ctx context.Context, cfg Config, logger *slog.Logger) (FactoryResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver := cfg.Driver
	if driver == "" {
		driver = "log"
	}

	switch driver {
	case "log":
		return FactoryResult{Driver: "log", Publisher: NewLogPublisher(logger)}, nil

	case "rabbitmq":
		if cfg.RabbitMQURL == "" || cfg.RabbitMQExchange == "" {
			return FactoryResult{}, fmt.Errorf("rabbitmq config missing: RABBITMQ_URL, RABBITMQ_EXCHANGE required")
		}
		conn, err := dialRabbitMQ(ctx, cfg, logger)
		if err != nil {
			return FactoryResult{}, err
		}
		p, err := NewRabbitMQPublisher(conn, cfg.RabbitMQExchange)
		if err != nil {
			_ = conn.Close()
			return FactoryResult{}, err
		}
		return FactoryResult{Driver: "rabbitmq", Publisher: p}, nil

	case "kafka":
		if len(cfg.KafkaBrokers) == 0 || cfg.KafkaTopic == "" {
			return FactoryResult{}, fmt.Errorf("kafka config missing: KAFKA_BROKERS, KAFKA_TOPIC required")
		}
		p, err := NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return FactoryResult{}, err
		}
		return FactoryResult{Driver: "kafka", Publisher: p}, nil

	default:
		return FactoryResult{}, fmt.Errorf("unknown EVENTS_DRIVER: %s", driver)
	}
}

func dialRabbitMQ(ctx context.Context, cfg Config, logger *slog.Logger) (*amqp.Connection, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = cfg.ConnectTimeout
	if bo.MaxElapsedTime <= 0 {
		bo.MaxElapsedTime = 30 * time.Second
	}

	var conn *amqp.Connection
	err := backoff.RetryNotify(func() error {
		c, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		logger.WarnContext(ctx, "rabbitmq not reachable, retrying", "err", err, "wait", wait)
	})
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	return conn, nil
}
