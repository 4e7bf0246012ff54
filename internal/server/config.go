package server

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override: PM_SERVER_PORT=9090.
const EnvPrefix = "PM"

// Config holds the server configuration.
type Config struct {
	Host           string  `mapstructure:"host"`
	Port           int     `mapstructure:"port"`
	DataDir        string  `mapstructure:"data_dir"`
	DevMode        bool    `mapstructure:"dev_mode"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Addr returns the listen address as host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads configuration from a .env file, the YAML config file and
// environment variables, in increasing order of precedence.
func LoadConfig(configPath string) (*viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("peeringmanager")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/peeringmanager")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("server.dev_mode", false)
	v.SetDefault("server.rate_limit_rps", 100)
	v.SetDefault("server.rate_limit_burst", 200)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "auto")
	v.SetDefault("database.dsn", "./data/peeringmanager.db")

	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_token_ttl", "15m")
	v.SetDefault("auth.refresh_token_ttl", "168h")

	// Router access. The napalm prefix matches existing peering-manager
	// configuration files, whose timeout is a bare number of seconds;
	// read it with config.Duration.
	v.SetDefault("napalm.username", "")
	v.SetDefault("napalm.password", "")
	v.SetDefault("napalm.timeout", "30s")
	v.SetDefault("napalm.args", map[string]string{})

	v.SetDefault("peeringdb.url", "https://www.peeringdb.com/api")
	v.SetDefault("peeringdb.api_key", "")
	v.SetDefault("peeringdb.timeout", "30s")
	v.SetDefault("peeringdb.cache_ttl", "1h")
	v.SetDefault("peeringdb.rate_limit", 2.0)
	v.SetDefault("peeringdb.concurrency", 4)

	v.SetDefault("plugins.peering.enabled", true)
	v.SetDefault("plugins.peering.my_asn", 0)
	v.SetDefault("plugins.peering.ping_timeout", "2s")
	v.SetDefault("plugins.extras.enabled", true)
	v.SetDefault("plugins.extras.webhook_timeout", "10s")
	v.SetDefault("plugins.extras.ixapi_timeout", "15s")
	v.SetDefault("plugins.extras.job_concurrency", 4)
	v.SetDefault("plugins.extras.webhook_workers", 8)
}
