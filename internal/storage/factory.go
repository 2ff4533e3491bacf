package storage

import (
	"context"
	"fmt"
)

type Config struct {
	Driver   string // none|local|s3
	LocalDir string
	S3Region string
	S3Bucket string
	S3Prefix string
}

type FactoryResult struct {
	Driver  string
	Archive Archive // nil when archiving is disabled
}

func FromConfig(ctx context.Context, cfg Config) (FactoryResult, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "none"
	}

	switch driver {
	case "none":
		return FactoryResult{Driver: "none"}, nil

	case "local":
		dir := cfg.LocalDir
		if dir == "" {
			dir = "./storage/archive"
		}
		return FactoryResult{Driver: "local", Archive: NewLocal(dir)}, nil

	case "s3":
		if cfg.S3Region == "" || cfg.S3Bucket == "" {
			return FactoryResult{}, fmt.Errorf("S3 config missing: S3_REGION, S3_BUCKET required")
		}
		prefix := cfg.S3Prefix
		if prefix == "" {
			prefix = "archive"
		}
		s, err := NewS3(ctx, S3Config{
			Region: cfg.S3Region,
			Bucket: cfg.S3Bucket,
			Prefix: prefix,
		})
		if err != nil {
			return FactoryResult{}, err
		}
		return FactoryResult{Driver: "s3", Archive: s}, nil

	default:
		return FactoryResult{}, fmt.Errorf("unknown ARCHIVE_DRIVER: %s", driver)
	}
}
