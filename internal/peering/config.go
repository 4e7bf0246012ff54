package peering

import (
	"fmt"
	"time"
)

// Config holds the peering module configuration.
type Config struct {
	MyASN       int64         `mapstructure:"my_asn"`       // local AS used for PeeringDB imports
	PingTimeout time.Duration `mapstructure:"ping_timeout"` // ICMP pre-check before router facts
	PingCount   int           `mapstructure:"ping_count"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PingTimeout: 2 * time.Second,
		PingCount:   1,
	}
}

func (c Config) validate() error {
	if c.MyASN < 0 || c.MyASN > 4294967295 {
		return fmt.Errorf("my_asn %d out of range", c.MyASN)
	}
	if c.PingCount < 0 {
		return fmt.Errorf("ping_count must not be negative")
	}
	return nil
}
