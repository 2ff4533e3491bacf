package payments

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const EventChargeSuccess = "charge.success"

// WebhookEvent is the gateway envelope. Only event, reference and metadata.order_id are
// acted on; the embedded amount and status are informational.
type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string          `json:"reference"`
		Amount    decimal.Decimal `json:"amount"`
		Currency  string          `json:"currency"`
		Status    string          `json:"status"`
		Metadata  Metadata        `json:"metadata"`
	} `json:"data"`
}

// ParseEvent reads the envelope first. The data object is decoded as a charge only for
// charge.success; other event types have their own shapes and are acknowledged as-is.
func ParseEvent(raw []byte) (WebhookEvent, error) {
	var env struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	ev := WebhookEvent{Event: strings.TrimSpace(env.Event)}
	if ev.Event == "" {
		return WebhookEvent{}, fmt.Errorf("%w: missing event type", ErrMalformedEvent)
	}

	if ev.Event != EventChargeSuccess {
		// reference is kept for logs when it reads as a string or number
		var loose struct {
			Reference json.RawMessage `json:"reference"`
		}
		if json.Unmarshal(env.Data, &loose) == nil {
			if ref, err := flexString(loose.Reference); err == nil {
				ev.Data.Reference = ref
			}
		}
		return ev, nil
	}

	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &ev.Data); err != nil {
			return WebhookEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
	}
	ev.Data.Reference = strings.TrimSpace(ev.Data.Reference)
	return ev, nil
}

type Metadata struct {
	OrderID string
}

// UnmarshalJSON accepts an object, an empty string, null, or an object encoded as a
// JSON string. order_id may be a string or a number.
func (m *Metadata) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		b = []byte(s)
	}

	var obj struct {
		OrderID json.RawMessage `json:"order_id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	id, err := flexString(obj.OrderID)
	if err != nil {
		return fmt.Errorf("metadata.order_id: %w", err)
	}
	m.OrderID = id
	return nil
}

func flexString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}
