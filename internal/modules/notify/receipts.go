// Package notify emails buyers when their payment or refund settles.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	texttemplate "text/template"
	"time"

	"pehlione.com/shop/internal/mailer"
	"pehlione.com/shop/internal/modules/events"
)

type Config struct {
	From     string
	FromName string
	Timeout  time.Duration
}

// ReceiptPublisher forwards every message to the wrapped publisher and, once that
// succeeds, mails a receipt for paid and refunded orders. Mail failures are logged
// and never fail the publish, so a broken SMTP relay cannot stall the outbox.
type ReceiptPublisher struct {
	next   events.Publisher
	mail   mailer.Sender
	cfg    Config
	logger *slog.Logger
}

func NewReceiptPublisher(next events.Publisher, mail mailer.Sender, cfg Config, logger *slog.Logger) *ReceiptPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &ReceiptPublisher{next: next, mail: mail, cfg: cfg, logger: logger}
}

func (p *ReceiptPublisher) Publish(ctx context.Context, m events.Message) error {
	if err := p.next.Publish(ctx, m); err != nil {
		return err
	}

	e, ok, err := p.compose(m)
	if err != nil {
		p.logger.WarnContext(ctx, "receipt not composed", "event_id", m.ID, "type", m.Type, "err", err)
		return nil
	}
	if !ok {
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	if err := p.mail.Send(sendCtx, e); err != nil {
		p.logger.WarnContext(ctx, "receipt not sent", "event_id", m.ID, "type", m.Type, "order_id", m.Key, "err", err)
		return nil
	}
	p.logger.InfoContext(ctx, "receipt sent", "event_id", m.ID, "type", m.Type, "order_id", m.Key)
	return nil
}

func (p *ReceiptPublisher) Close() error { return p.next.Close() }

type receipt struct {
	OrderID   string
	Reference string
	Amount    string
	When      string
}

// compose returns ok=false for event types that carry no receipt or have no recipient.
func (p *ReceiptPublisher) compose(m events.Message) (mailer.Email, bool, error) {
	var (
		to      string
		subject string
		r       receipt
		tmpl    string
	)

	switch m.Type {
	case events.TypeOrderPaid:
		var ev events.OrderPaid
		if err := json.Unmarshal(m.Payload, &ev); err != nil {
			return mailer.Email{}, false, err
		}
		to, tmpl = ev.Email, "paid"
		subject = fmt.Sprintf("Payment received for order %s", ev.OrderID)
		r = receipt{OrderID: ev.OrderID, Reference: ev.Reference, Amount: formatMoney(ev.Currency, ev.Amount), When: stamp(ev.PaidAt)}
	case events.TypeOrderRefunded:
		var ev events.OrderRefunded
		if err := json.Unmarshal(m.Payload, &ev); err != nil {
			return mailer.Email{}, false, err
		}
		to, tmpl = ev.Email, "refunded"
		subject = fmt.Sprintf("Refund issued for order %s", ev.OrderID)
		r = receipt{OrderID: ev.OrderID, Reference: ev.RefundRef, Amount: formatMoney(ev.Currency, ev.Amount), When: stamp(ev.RefundedAt)}
	default:
		return mailer.Email{}, false, nil
	}
	if to == "" {
		return mailer.Email{}, false, nil
	}

	var text, html bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&text, tmpl, r); err != nil {
		return mailer.Email{}, false, err
	}
	if err := htmlTemplates.ExecuteTemplate(&html, tmpl, r); err != nil {
		return mailer.Email{}, false, err
	}

	return mailer.Email{
		FromName: p.cfg.FromName,
		From:     p.cfg.From,
		To:       []string{to},
		Subject:  subject,
		TextBody: text.String(),
		HTMLBody: html.String(),
		Headers:  map[string]string{"X-Event-ID": m.ID},
	}, true, nil
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2 Jan 2006 15:04 MST")
}

var textTemplates = texttemplate.Must(texttemplate.New("receipts").Parse(`
{{- define "paid" -}}
We received your payment of {{.Amount}} for order {{.OrderID}}.
Reference: {{.Reference}}
{{if .When}}Paid at: {{.When}}
{{end}}
{{- end}}
{{- define "refunded" -}}
Your payment of {{.Amount}} for order {{.OrderID}} has been refunded.
{{if .Reference}}Refund reference: {{.Reference}}
{{end}}{{if .When}}Refunded at: {{.When}}
{{end}}
{{- end}}`))

var htmlTemplates = htmltemplate.Must(htmltemplate.New("receipts").Parse(`
{{- define "paid" -}}
<p>We received your payment of <strong>{{.Amount}}</strong> for order <code>{{.OrderID}}</code>.</p>
<p>Reference: {{.Reference}}</p>
{{if .When}}<p>Paid at: {{.When}}</p>{{end}}
{{- end}}
{{- define "refunded" -}}
<p>Your payment of <strong>{{.Amount}}</strong> for order <code>{{.OrderID}}</code> has been refunded.</p>
{{if .Reference}}<p>Refund reference: {{.Reference}}</p>{{end}}
{{if .When}}<p>Refunded at: {{.When}}</p>{{end}}
{{- end}}`))
