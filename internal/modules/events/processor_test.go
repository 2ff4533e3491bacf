package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"pehlione.com/shop/internal/testutil"
)

type recordingPublisher struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, m Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, m)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func seedOutbox(t *testing.T, db *gorm.DB, n int) []OutboxMessage {
	t.Helper()
	out := make([]OutboxMessage, 0, n)
	base := time.Now().Add(-time.Minute)
	for i := 0; i < n; i++ {
		msg, err := NewOutboxMessage(TypeOrderPaid, "ord-1", OrderPaid{OrderID: "ord-1", Reference: "ref_1", Amount: "100.00", Currency: "NGN"})
		require.NoError(t, err)
		msg.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, db.Create(&msg).Error)
		out = append(out, msg)
	}
	return out
}

func newTestProcessor(db *gorm.DB, pub Publisher, cfg ProcessorConfig) *Processor {
	p := NewProcessor(db, pub, cfg)
	p.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return p
}

func TestProcessBatch_PublishesInOrder(t *testing.T) {
	db := testutil.OpenDB(t)
	rows := seedOutbox(t, db, 3)
	pub := &recordingPublisher{}

	n, err := newTestProcessor(db, pub, ProcessorConfig{BatchSize: 2}).ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, pub.sent, 2)
	assert.Equal(t, rows[0].ID, pub.sent[0].ID)
	assert.Equal(t, rows[1].ID, pub.sent[1].ID)
	assert.Equal(t, TypeOrderPaid, pub.sent[0].Type)
	assert.Equal(t, "ord-1", pub.sent[0].Key)
	assert.JSONEq(t, `{"order_id":"ord-1","reference":"ref_1","amount":"100.00","currency":"NGN","status":"","paid_at":"0001-01-01T00:00:00Z"}`, string(pub.sent[0].Payload))

	var published OutboxMessage
	require.NoError(t, db.First(&published, "id = ?", rows[0].ID).Error)
	assert.Equal(t, OutboxPublished, published.Status)
	assert.NotNil(t, published.PublishedAt)

	n, err = newTestProcessor(db, pub, ProcessorConfig{BatchSize: 2}).ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = newTestProcessor(db, pub, ProcessorConfig{BatchSize: 2}).ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessBatch_FailureCountsAttempts(t *testing.T) {
	db := testutil.OpenDB(t)
	rows := seedOutbox(t, db, 1)
	pub := &recordingPublisher{err: errors.New("broker down")}
	p := newTestProcessor(db, pub, ProcessorConfig{MaxAttempts: 2})

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	var row OutboxMessage
	require.NoError(t, db.First(&row, "id = ?", rows[0].ID).Error)
	assert.Equal(t, OutboxPending, row.Status)
	assert.Equal(t, 1, row.Attempts)
	require.NotNil(t, row.LastError)
	assert.Equal(t, "broker down", *row.LastError)

	_, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	require.NoError(t, db.First(&row, "id = ?", rows[0].ID).Error)
	assert.Equal(t, OutboxFailed, row.Status)
	assert.Equal(t, 2, row.Attempts)

	// failed rows are not picked up again
	pub.err = nil
	n, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFromConfig(t *testing.T) {
	ctx := context.Background()

	res, err := FromConfig(ctx, Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "log", res.Driver)
	assert.IsType(t, &LogPublisher{}, res.Publisher)

	_, err = FromConfig(ctx, Config{Driver: "rabbitmq"}, nil)
	assert.Error(t, err)
	_, err = FromConfig(ctx, Config{Driver: "kafka", KafkaTopic: "orders"}, nil)
	assert.Error(t, err)
	_, err = FromConfig(ctx, Config{Driver: "sqs"}, nil)
	assert.ErrorContains(t, err, "unknown EVENTS_DRIVER")
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "ab", truncate("abc", 2))
	// "ş" is two bytes; cutting inside it drops the whole rune
	assert.Equal(t, "ba", truncate("baş", 3))
	assert.Equal(t, "", truncate("€", 2))
	assert.True(t, utf8.ValidString(truncate(strings.Repeat("ğ", 200), 251)))
	assert.Len(t, truncate(strings.Repeat("ğ", 200), 251), 250)
}
