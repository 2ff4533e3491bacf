package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pehlione.com/shop/internal/tracing"
)

// APIMailer posts messages to a Mailtrap-compatible send endpoint.
type APIMailer struct {
	url   string
	token string
	hc    *http.Client
}

type apiAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type apiPayload struct {
	From     apiAddress        `json:"from"`
	To       []apiAddress      `json:"to"`
	Cc       []apiAddress      `json:"cc,omitempty"`
	Bcc      []apiAddress      `json:"bcc,omitempty"`
	Subject  string            `json:"subject"`
	Text     string            `json:"text,omitempty"`
	HTML     string            `json:"html,omitempty"`
	Category string            `json:"category,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

func NewAPIMailer(url, token string, timeout time.Duration, hc *http.Client) *APIMailer {
	if hc == nil {
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout, Transport: tracing.Transport(nil)}
	}
	return &APIMailer{url: url, token: token, hc: hc}
}

func addresses(in []string) []apiAddress {
	if len(in) == 0 {
		return nil
	}
	out := make([]apiAddress, 0, len(in))
	for _, a := range in {
		out = append(out, apiAddress{Email: a})
	}
	return out
}

func (m *APIMailer) Send(ctx context.Context, e Email) error {
	if err := e.validate(); err != nil {
		return err
	}

	body, err := json.Marshal(apiPayload{
		From:     apiAddress{Email: e.From, Name: e.FromName},
		To:       addresses(e.To),
		Cc:       addresses(e.Cc),
		Bcc:      addresses(e.Bcc),
		Subject:  e.Subject,
		Text:     e.TextBody,
		HTML:     e.HTMLBody,
		Category: "Transactional",
		Headers:  e.Headers,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.token)
	req.Header.Set("Content-Type", "application/json")

	res, err := m.hc.Do(req)
	if err != nil {
		return fmt.Errorf("mail api: %w", err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4<<10))

	if res.StatusCode >= 400 {
		return fmt.Errorf("mail api: status %d", res.StatusCode)
	}
	return nil
}
