package peeringdb

import "time"

// Config holds the PeeringDB client configuration.
type Config struct {
	URL         string        `mapstructure:"url"`         // API base URL
	APIKey      string        `mapstructure:"api_key"`     // optional; raises the anonymous rate limit
	Timeout     time.Duration `mapstructure:"timeout"`     // HTTP client timeout (default: 30s)
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`   // response cache lifetime (0 disables)
	RateLimit   float64       `mapstructure:"rate_limit"`  // requests per second
	Concurrency int           `mapstructure:"concurrency"` // parallel lookups when building candidates
}

// DefaultConfig returns a Config pointing at the public PeeringDB API.
func DefaultConfig() Config {
	return Config{
		URL:         "https://www.peeringdb.com/api",
		Timeout:     30 * time.Second,
		CacheTTL:    time.Hour,
		RateLimit:   2,
		Concurrency: 4,
	}
}
