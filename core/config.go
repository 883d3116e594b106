package core

import (
	"fmt"
	"strings"
	"time"
)

type StorageConfig struct {
	BucketName   string        `koanf:"bucket_name" mapstructure:"bucket_name"`
	SignedURLTTL time.Duration `koanf:"signed_url_ttl" mapstructure:"signed_url_ttl"`
}

type DeliveryConfig struct {
	Timeout time.Duration `koanf:"timeout" mapstructure:"timeout"`
}

type RetentionConfig struct {
	MaxAge    time.Duration `koanf:"max_age" mapstructure:"max_age"`
	BatchSize int           `koanf:"batch_size" mapstructure:"batch_size"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	WorkDir     string          `koanf:"work_dir" mapstructure:"work_dir"`
	Storage     StorageConfig   `koanf:"storage" mapstructure:"storage"`
	Delivery    DeliveryConfig  `koanf:"delivery" mapstructure:"delivery"`
	Retention   RetentionConfig `koanf:"retention" mapstructure:"retention"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "exports",
		WorkDir:     "",
		Storage: StorageConfig{
			SignedURLTTL: 15 * time.Minute,
		},
		Delivery: DeliveryConfig{
			Timeout: 30 * time.Second,
		},
		Retention: RetentionConfig{
			MaxAge:    72 * time.Hour,
			BatchSize: 100,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Storage.SignedURLTTL < 0 {
		return fmt.Errorf("core: storage.signed_url_ttl must not be negative")
	}
	if c.Delivery.Timeout < 0 {
		return fmt.Errorf("core: delivery.timeout must not be negative")
	}
	if c.Retention.MaxAge < 0 {
		return fmt.Errorf("core: retention.max_age must not be negative")
	}
	return nil
}
