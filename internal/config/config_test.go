package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestConfig_Module(t *testing.T) {
	v := viper.New()
	v.Set("plugins.peering.my_asn", 64500)
	v.Set("plugins.peering.ping_timeout", "2s")
	v.Set("plugins.extras.job_concurrency", 4)

	cfg := New(v).Module("peering")
	if got := cfg.GetInt("my_asn"); got != 64500 {
		t.Errorf("my_asn = %d, want 64500", got)
	}
	if got := cfg.GetDuration("ping_timeout"); got != 2*time.Second {
		t.Errorf("ping_timeout = %v, want 2s", got)
	}
	if cfg.IsSet("job_concurrency") {
		t.Error("peering view leaks the extras section")
	}
}

func TestConfig_Module_sees_env_overrides(t *testing.T) {
	t.Setenv("PM_PLUGINS_EXTRAS_JOB_CONCURRENCY", "9")

	v := viper.New()
	v.SetDefault("plugins.extras.job_concurrency", 4)
	v.SetEnvPrefix("PM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if got := New(v).Module("extras").GetInt("job_concurrency"); got != 9 {
		t.Errorf("job_concurrency = %d, want 9 from the environment", got)
	}
}

func TestConfig_Sub_missing_section(t *testing.T) {
	cfg := New(nil).Sub("plugins.absent")
	if cfg == nil {
		t.Fatal("Sub must never return nil")
	}
	if cfg.IsSet("anything") {
		t.Error("empty config reports keys as set")
	}
	var target struct {
		Enabled bool `mapstructure:"enabled"`
	}
	if err := cfg.Unmarshal(&target); err != nil {
		t.Errorf("Unmarshal of a missing section: %v", err)
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want time.Duration
	}{
		{"bare integer is seconds", 30, 30 * time.Second},
		{"bare float is seconds", 1.5, 1500 * time.Millisecond},
		{"numeric string is seconds", "45", 45 * time.Second},
		{"duration string", "2m", 2 * time.Minute},
		{"padded duration string", " 10s ", 10 * time.Second},
		{"duration value", 3 * time.Second, 3 * time.Second},
		{"empty string", "", 0},
		{"garbage", "soon", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set("napalm.timeout", tt.raw)
			if got := Duration(v, "napalm.timeout"); got != tt.want {
				t.Errorf("Duration(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDuration_unset(t *testing.T) {
	if got := Duration(viper.New(), "napalm.timeout"); got != 0 {
		t.Errorf("unset key = %v, want 0", got)
	}
}

func TestConfig_Unmarshal(t *testing.T) {
	v := viper.New()
	v.Set("peeringdb.url", "https://www.peeringdb.com/api")
	v.Set("peeringdb.timeout", 20)
	v.Set("peeringdb.cache_ttl", "1h")

	var target struct {
		URL      string        `mapstructure:"url"`
		Timeout  time.Duration `mapstructure:"timeout"`
		CacheTTL time.Duration `mapstructure:"cache_ttl"`
	}
	if err := New(v).Sub("peeringdb").Unmarshal(&target); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if target.URL != "https://www.peeringdb.com/api" {
		t.Errorf("URL = %q", target.URL)
	}
	if target.Timeout != 20*time.Second {
		t.Errorf("Timeout = %v, want 20s", target.Timeout)
	}
	if target.CacheTTL != time.Hour {
		t.Errorf("CacheTTL = %v, want 1h", target.CacheTTL)
	}
}
