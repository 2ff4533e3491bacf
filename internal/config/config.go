package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr    string
	LogLevel    string
	ServiceName string
	Environment string

	DB DB

	StoreTimeout time.Duration

	Paystack       Paystack
	GatewayTimeout time.Duration

	AdminJWTSecret string

	WebhookRateRPS   float64
	WebhookRateBurst int

	Events Events
	Outbox Outbox

	Archive Archive

	Mail Mail

	OTelEndpoint   string
	OTelSampleRate float64
}

type DB struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

type Paystack struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
}

type Events struct {
	Driver           string
	RabbitMQURL      string
	RabbitMQExchange string
	KafkaBrokers     []string
	KafkaTopic       string
}

type Outbox struct {
	Interval time.Duration
	Batch    int
}

type Archive struct {
	Driver   string
	Dir      string
	S3Region string
	S3Bucket string
	S3Prefix string
}

// Mail configures payment and refund receipts. Driver "none" disables them.
type Mail struct {
	Driver      string
	From        string
	FromName    string
	SMTPHost    string
	SMTPPort    string
	SMTPUser    string
	SMTPPass    string
	SMTPTLSMode string
	SMTPSkipTLS bool
	APIURL      string
	APIToken    string
	Timeout     time.Duration
}

func defaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVICE_NAME", "shop")
	v.SetDefault("ENVIRONMENT", "development")

	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	v.SetDefault("DB_CONNECT_TIMEOUT", 30*time.Second)
	v.SetDefault("STORE_TIMEOUT", 5*time.Second)

	v.SetDefault("PAYSTACK_BASE_URL", "https://api.paystack.co")
	v.SetDefault("GATEWAY_TIMEOUT", 10*time.Second)

	v.SetDefault("WEBHOOK_RATE_RPS", 20.0)
	v.SetDefault("WEBHOOK_RATE_BURST", 40)

	v.SetDefault("EVENTS_DRIVER", "log")
	v.SetDefault("RABBITMQ_EXCHANGE", "shop.orders")
	v.SetDefault("KAFKA_TOPIC", "shop.orders")
	v.SetDefault("OUTBOX_INTERVAL", 2*time.Second)
	v.SetDefault("OUTBOX_BATCH", 50)

	v.SetDefault("ARCHIVE_DRIVER", "none")
	v.SetDefault("ARCHIVE_DIR", "./var/webhooks")

	v.SetDefault("MAIL_DRIVER", "none")
	v.SetDefault("MAIL_FROM_NAME", "Shop")
	v.SetDefault("MAIL_TIMEOUT", 10*time.Second)
	v.SetDefault("SMTP_PORT", "1025")
	v.SetDefault("SMTP_TLS_MODE", "none")

	v.SetDefault("OTEL_SAMPLE_RATE", 1.0)
}

// Load reads .env (if present) and the process environment. Environment wins over .env.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromViper(viper.New())
}

// FromViper builds a Config from v with defaults applied and the environment bound.
func FromViper(v *viper.Viper) (Config, error) {
	defaults(v)
	v.AutomaticEnv()

	cfg := Config{
		HTTPAddr:    v.GetString("HTTP_ADDR"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		ServiceName: v.GetString("SERVICE_NAME"),
		Environment: v.GetString("ENVIRONMENT"),
		DB: DB{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnectTimeout:  v.GetDuration("DB_CONNECT_TIMEOUT"),
		},
		StoreTimeout: v.GetDuration("STORE_TIMEOUT"),
		Paystack: Paystack{
			BaseURL:       v.GetString("PAYSTACK_BASE_URL"),
			SecretKey:     v.GetString("PAYSTACK_SECRET_KEY"),
			WebhookSecret: v.GetString("PAYSTACK_WEBHOOK_SECRET"),
		},
		GatewayTimeout:   v.GetDuration("GATEWAY_TIMEOUT"),
		AdminJWTSecret:   v.GetString("ADMIN_JWT_SECRET"),
		WebhookRateRPS:   v.GetFloat64("WEBHOOK_RATE_RPS"),
		WebhookRateBurst: v.GetInt("WEBHOOK_RATE_BURST"),
		Events: Events{
			Driver:           strings.ToLower(v.GetString("EVENTS_DRIVER")),
			RabbitMQURL:      v.GetString("RABBITMQ_URL"),
			RabbitMQExchange: v.GetString("RABBITMQ_EXCHANGE"),
			KafkaBrokers:     splitList(v.GetString("KAFKA_BROKERS")),
			KafkaTopic:       v.GetString("KAFKA_TOPIC"),
		},
		Outbox: Outbox{
			Interval: v.GetDuration("OUTBOX_INTERVAL"),
			Batch:    v.GetInt("OUTBOX_BATCH"),
		},
		Archive: Archive{
			Driver:   strings.ToLower(v.GetString("ARCHIVE_DRIVER")),
			Dir:      v.GetString("ARCHIVE_DIR"),
			S3Region: v.GetString("S3_REGION"),
			S3Bucket: v.GetString("S3_BUCKET"),
			S3Prefix: v.GetString("S3_PREFIX"),
		},
		Mail: Mail{
			Driver:      strings.ToLower(v.GetString("MAIL_DRIVER")),
			From:        v.GetString("MAIL_FROM"),
			FromName:    v.GetString("MAIL_FROM_NAME"),
			SMTPHost:    v.GetString("SMTP_HOST"),
			SMTPPort:    v.GetString("SMTP_PORT"),
			SMTPUser:    v.GetString("SMTP_USER"),
			SMTPPass:    v.GetString("SMTP_PASS"),
			SMTPTLSMode: strings.ToLower(v.GetString("SMTP_TLS_MODE")),
			SMTPSkipTLS: v.GetBool("SMTP_SKIP_VERIFY_TLS"),
			APIURL:      v.GetString("MAIL_API_URL"),
			APIToken:    v.GetString("MAIL_API_TOKEN"),
			Timeout:     v.GetDuration("MAIL_TIMEOUT"),
		},
		OTelEndpoint:   v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTelSampleRate: v.GetFloat64("OTEL_SAMPLE_RATE"),
	}
	if cfg.Paystack.WebhookSecret == "" {
		cfg.Paystack.WebhookSecret = cfg.Paystack.SecretKey
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every missing or inconsistent setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.DB.DSN == "" {
		errs = append(errs, errors.New("DB_DSN is required"))
	}
	if c.Paystack.SecretKey == "" {
		errs = append(errs, errors.New("PAYSTACK_SECRET_KEY is required"))
	}
	if c.Paystack.WebhookSecret == "" {
		errs = append(errs, errors.New("PAYSTACK_WEBHOOK_SECRET is required"))
	}
	if c.StoreTimeout <= 0 || c.GatewayTimeout <= 0 {
		errs = append(errs, errors.New("STORE_TIMEOUT and GATEWAY_TIMEOUT must be positive"))
	}

	switch c.Events.Driver {
	case "log", "":
	case "rabbitmq":
		if c.Events.RabbitMQURL == "" {
			errs = append(errs, errors.New("RABBITMQ_URL is required for EVENTS_DRIVER=rabbitmq"))
		}
	case "kafka":
		if len(c.Events.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required for EVENTS_DRIVER=kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EVENTS_DRIVER %q", c.Events.Driver))
	}

	switch c.Archive.Driver {
	case "none", "", "local":
	case "s3":
		if c.Archive.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for ARCHIVE_DRIVER=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ARCHIVE_DRIVER %q", c.Archive.Driver))
	}

	switch c.Mail.Driver {
	case "none", "":
	case "log", "smtp", "api":
		if c.Mail.From == "" {
			errs = append(errs, errors.New("MAIL_FROM is required when MAIL_DRIVER is set"))
		}
		if c.Mail.Driver == "smtp" && c.Mail.SMTPHost == "" {
			errs = append(errs, errors.New("SMTP_HOST is required for MAIL_DRIVER=smtp"))
		}
		if c.Mail.Driver == "api" && (c.Mail.APIURL == "" || c.Mail.APIToken == "") {
			errs = append(errs, errors.New("MAIL_API_URL and MAIL_API_TOKEN are required for MAIL_DRIVER=api"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown MAIL_DRIVER %q", c.Mail.Driver))
	}

	return errors.Join(errs...)
}

// SlogLevel maps LOG_LEVEL to a slog level; unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
