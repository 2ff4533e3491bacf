package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"pehlione.com/shop/internal/config"
	"pehlione.com/shop/internal/database"
	apphttp "pehlione.com/shop/internal/http"
	"pehlione.com/shop/internal/http/handlers"
	"pehlione.com/shop/internal/http/handlers/admin"
	"pehlione.com/shop/internal/http/middleware"
	"pehlione.com/shop/internal/mailer"
	"pehlione.com/shop/internal/modules/events"
	"pehlione.com/shop/internal/modules/notify"
	"pehlione.com/shop/internal/modules/orders"
	"pehlione.com/shop/internal/modules/payments"
	"pehlione.com/shop/internal/storage"
	"pehlione.com/shop/internal/tracing"
)

func main() {
	if err := run(); err != nil {
		slog.Error("shutdown with error", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})).With("service", cfg.ServiceName, "env", cfg.Environment)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ExporterURL: cfg.OTelEndpoint,
		SampleRate:  cfg.OTelSampleRate,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	db, err := database.Open(ctx, database.Config{
		DSN:             cfg.DB.DSN,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		ConnectTimeout:  cfg.DB.ConnectTimeout,
	}, logger)
	if err != nil {
		return err
	}
	defer database.Close(db)

	archive, err := storage.FromConfig(ctx, storage.Config{
		Driver:   cfg.Archive.Driver,
		LocalDir: cfg.Archive.Dir,
		S3Region: cfg.Archive.S3Region,
		S3Bucket: cfg.Archive.S3Bucket,
		S3Prefix: cfg.Archive.S3Prefix,
	})
	if err != nil {
		return err
	}
	logger.Info("webhook archive configured", "driver", archive.Driver)

	pub, err := events.FromConfig(ctx, events.Config{
		Driver:           cfg.Events.Driver,
		RabbitMQURL:      cfg.Events.RabbitMQURL,
		RabbitMQExchange: cfg.Events.RabbitMQExchange,
		KafkaBrokers:     cfg.Events.KafkaBrokers,
		KafkaTopic:       cfg.Events.KafkaTopic,
		ConnectTimeout:   cfg.DB.ConnectTimeout,
	}, logger)
	if err != nil {
		return err
	}
	defer pub.Publisher.Close()
	logger.Info("event publisher configured", "driver", pub.Driver)

	mail, err := mailer.FromConfig(mailer.Config{
		Driver: cfg.Mail.Driver,
		SMTP: mailer.SMTPConfig{
			Host:          cfg.Mail.SMTPHost,
			Port:          cfg.Mail.SMTPPort,
			User:          cfg.Mail.SMTPUser,
			Pass:          cfg.Mail.SMTPPass,
			TLSMode:       cfg.Mail.SMTPTLSMode,
			SkipVerifyTLS: cfg.Mail.SMTPSkipTLS,
		},
		APIURL:   cfg.Mail.APIURL,
		APIToken: cfg.Mail.APIToken,
		Timeout:  cfg.Mail.Timeout,
	}, logger)
	if err != nil {
		return err
	}
	var publisher events.Publisher = pub.Publisher
	if mail.Sender != nil {
		publisher = notify.NewReceiptPublisher(publisher, mail.Sender, notify.Config{
			From:     cfg.Mail.From,
			FromName: cfg.Mail.FromName,
			Timeout:  cfg.Mail.Timeout,
		}, logger)
	}
	logger.Info("receipt mail configured", "driver", mail.Driver)

	gateway := payments.NewPaystackClient(payments.PaystackConfig{
		BaseURL:   cfg.Paystack.BaseURL,
		SecretKey: cfg.Paystack.SecretKey,
		Timeout:   cfg.GatewayTimeout,
	}, nil)

	repo := orders.NewRepo(db)
	deliveries := payments.NewDeliveryLog(db)

	webhookSvc := payments.NewWebhookService(repo, gateway, payments.WebhookConfig{
		Provider:       gateway.Name(),
		Secret:         []byte(cfg.Paystack.WebhookSecret),
		GatewayTimeout: cfg.GatewayTimeout,
		StoreTimeout:   cfg.StoreTimeout,
	})
	webhookSvc.SetLogger(logger)
	webhookSvc.SetDeliveryLog(deliveries)
	if archive.Archive != nil {
		webhookSvc.SetArchive(archive.Archive)
	}

	paySvc := payments.NewService(repo, gateway, cfg.GatewayTimeout)
	paySvc.SetLogger(logger)
	refundSvc := payments.NewRefundService(repo, gateway, cfg.GatewayTimeout)
	refundSvc.SetLogger(logger)

	limiter := middleware.NewRateLimiter(cfg.WebhookRateRPS, cfg.WebhookRateBurst)
	go limiter.RunSweeper(ctx, 5*time.Minute)

	processor := events.NewProcessor(db, publisher, events.ProcessorConfig{
		Interval:  cfg.Outbox.Interval,
		BatchSize: cfg.Outbox.Batch,
	})
	processor.SetLogger(logger)
	go processor.Run(ctx)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := apphttp.NewRouter(apphttp.Deps{
		Logger:         logger,
		Webhooks:       handlers.NewWebhookHandler(logger, webhookSvc),
		Orders:         handlers.NewOrdersHandler(orders.NewService(db), repo, paySvc),
		AdminOrders:    admin.NewOrdersHandler(repo, orders.NewAdminService(db), refundSvc, deliveries),
		AdminJWTSecret: []byte(cfg.AdminJWTSecret),
		WebhookLimiter: limiter,
		Ready: func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			pctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return sqlDB.PingContext(pctx)
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           tracing.WrapHTTPHandler(router, "http.server"),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}
