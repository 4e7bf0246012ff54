package extras

import (
	"fmt"
	"time"
)

// Config holds the extras module configuration.
type Config struct {
	WebhookTimeout time.Duration `mapstructure:"webhook_timeout"`
	JobConcurrency int           `mapstructure:"job_concurrency"` // jobs running at once
	IXAPITimeout   time.Duration `mapstructure:"ixapi_timeout"`
	// WebhookWorkers bounds concurrent deliveries for one object change.
	WebhookWorkers int `mapstructure:"webhook_workers"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		WebhookTimeout: 10 * time.Second,
		JobConcurrency: 4,
		IXAPITimeout:   15 * time.Second,
		WebhookWorkers: 8,
	}
}

func (c Config) validate() error {
	if c.WebhookTimeout <= 0 {
		return fmt.Errorf("webhook_timeout must be positive")
	}
	if c.IXAPITimeout <= 0 {
		return fmt.Errorf("ixapi_timeout must be positive")
	}
	if c.JobConcurrency < 1 {
		return fmt.Errorf("job_concurrency must be at least 1, got %d", c.JobConcurrency)
	}
	if c.WebhookWorkers < 1 {
		return fmt.Errorf("webhook_workers must be at least 1, got %d", c.WebhookWorkers)
	}
	return nil
}
