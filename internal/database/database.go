package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// ConnectTimeout bounds the retries made while the first connection is acquired.
	ConnectTimeout time.Duration
}

// Open builds the MySQL pool and waits, with exponential backoff, until one ping
// succeeds. Later query failures are not retried here.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database: empty DSN")
	}
	if log == nil {
		log = slog.Default()
	}

	// no version probe or ping here: the first round trip happens inside the retry loop
	db, err := gorm.Open(gormmysql.New(gormmysql.Config{
		DSN:                       cfg.DSN,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Warn),
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = cfg.ConnectTimeout
	if bo.MaxElapsedTime <= 0 {
		bo.MaxElapsedTime = 30 * time.Second
	}

	err = backoff.RetryNotify(func() error {
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		perr := sqlDB.PingContext(pctx)
		if isAuthError(perr) {
			return backoff.Permanent(perr)
		}
		return perr
	}, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		log.WarnContext(ctx, "database not reachable, retrying", "err", err, "wait", wait)
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("database: connect: %w", err)
	}

	log.InfoContext(ctx, "database connected",
		"max_open_conns", cfg.MaxOpenConns, "max_idle_conns", cfg.MaxIdleConns)
	return db, nil
}

// Close releases the pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// access denied / unknown database will not fix themselves
func isAuthError(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == 1045 || me.Number == 1049
}
