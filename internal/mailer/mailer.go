package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Sender delivers one message. Implementations must honour ctx cancellation.
type Sender interface {
	Send(ctx context.Context, e Email) error
}

type Email struct {
	FromName string
	From     string

	To  []string
	Cc  []string
	Bcc []string

	Subject string

	TextBody string
	HTMLBody string

	Headers map[string]string
}

func (e Email) AllRecipients() []string {
	out := make([]string, 0, len(e.To)+len(e.Cc)+len(e.Bcc))
	out = append(out, e.To...)
	out = append(out, e.Cc...)
	out = append(out, e.Bcc...)
	return out
}

func (e Email) validate() error {
	switch {
	case len(e.To) == 0:
		return fmt.Errorf("mailer: at least one recipient required")
	case e.From == "":
		return fmt.Errorf("mailer: from address required")
	case e.Subject == "":
		return fmt.Errorf("mailer: subject required")
	case e.TextBody == "" && e.HTMLBody == "":
		return fmt.Errorf("mailer: text or html body required")
	}
	return nil
}

type Config struct {
	Driver string // none|smtp|api

	SMTP SMTPConfig

	APIURL   string
	APIToken string

	Timeout time.Duration
}

type FactoryResult struct {
	Driver string
	Sender Sender // nil when mail is disabled
}

func FromConfig(cfg Config, logger *slog.Logger) (FactoryResult, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver == "" {
		driver = "none"
	}

	switch driver {
	case "none":
		return FactoryResult{Driver: "none"}, nil
	case "smtp":
		if cfg.SMTP.Host == "" {
			return FactoryResult{}, fmt.Errorf("smtp config missing: SMTP_HOST required")
		}
		return FactoryResult{Driver: "smtp", Sender: NewSMTPMailer(cfg.SMTP)}, nil
	case "api":
		if cfg.APIURL == "" || cfg.APIToken == "" {
			return FactoryResult{}, fmt.Errorf("mail api config missing: MAIL_API_URL, MAIL_API_TOKEN required")
		}
		return FactoryResult{Driver: "api", Sender: NewAPIMailer(cfg.APIURL, cfg.APIToken, cfg.Timeout, nil)}, nil
	case "log":
		return FactoryResult{Driver: "log", Sender: NewLogMailer(logger)}, nil
	default:
		return FactoryResult{}, fmt.Errorf("unknown MAIL_DRIVER: %s", driver)
	}
}

// LogMailer logs recipients and subject only. For development.
type LogMailer struct{ logger *slog.Logger }

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, e Email) error {
	if err := e.validate(); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "mail sent", "to_count", len(e.AllRecipients()), "subject", e.Subject)
	return nil
}
