package events

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProcessorConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

// Processor relays pending outbox rows to a Publisher.
type Processor struct {
	db     *gorm.DB
	pub    Publisher
	cfg    ProcessorConfig
	logger *slog.Logger
}

func NewProcessor(db *gorm.DB, pub Publisher, cfg ProcessorConfig) *Processor {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	return &Processor{db: db, pub: pub, cfg: cfg, logger: slog.Default()}
}

func (p *Processor) SetLogger(logger *slog.Logger) {
	p.logger = logger
}

// Run polls until ctx is done.
func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				p.logger.ErrorContext(ctx, "outbox batch failed", "err", err)
			}
		}
	}
}

// ProcessBatch publishes up to BatchSize pending rows and returns how many were published.
// Rows are locked with SKIP LOCKED so several replicas can relay concurrently.
func (p *Processor) ProcessBatch(ctx context.Context) (int, error) {
	published := 0
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []OutboxMessage
		if err := tx.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", OutboxPending).
			Order("created_at ASC").
			Limit(p.cfg.BatchSize).
			Find(&rows).Error; err != nil {
			return err
		}

		for _, row := range rows {
			err := p.pub.Publish(ctx, Message{
				ID:        row.ID,
				Type:      row.EventType,
				Key:       row.AggregateID,
				Payload:   []byte(row.Payload),
				CreatedAt: row.CreatedAt,
			})
			if err != nil {
				attempts := row.Attempts + 1
				status := OutboxPending
				if attempts >= p.cfg.MaxAttempts {
					status = OutboxFailed
				}
				msg := truncate(err.Error(), 250)
				p.logger.WarnContext(ctx, "outbox publish failed", "id", row.ID, "type", row.EventType, "attempts", attempts, "err", msg)
				if uerr := tx.WithContext(ctx).Model(&OutboxMessage{}).
					Where("id = ?", row.ID).
					Updates(map[string]any{"attempts": attempts, "status": status, "last_error": msg}).Error; uerr != nil {
					return uerr
				}
				continue
			}

			now := time.Now()
			if err := tx.WithContext(ctx).Model(&OutboxMessage{}).
				Where("id = ?", row.ID).
				Updates(map[string]any{"status": OutboxPublished, "published_at": &now, "last_error": nil}).Error; err != nil {
				return err
			}
			published++
		}
		return nil
	})
	return published, err
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
