package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Archive keeps raw, authenticated webhook bodies for audit and manual replay.
type Archive interface {
	Put(ctx context.Context, key string, body []byte) error
}

// WebhookKey returns a date-partitioned object key for a webhook body.
func WebhookKey(provider, reference string, at time.Time) string {
	ref := sanitize(reference)
	if ref == "" {
		ref = "unknown"
	}
	return fmt.Sprintf("webhooks/%s/%s/%s-%s.json", provider, at.UTC().Format("2006/01/02"), ref, uuid.NewString())
}

func sanitize(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s) && len(b) < 96; i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
			b = append(b, c)
		default:
			b = append(b, '_')
		}
	}
	return string(b)
}
