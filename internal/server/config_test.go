package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HerbHall/peeringmanager/internal/config"
)

func TestLoadConfig_defaults(t *testing.T) {
	v, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if got := v.GetInt("server.port"); got != 8080 {
		t.Errorf("server.port = %d, want 8080", got)
	}
	if got := v.GetDuration("napalm.timeout"); got != 30*time.Second {
		t.Errorf("napalm.timeout = %v, want 30s", got)
	}
	if got := v.GetString("peeringdb.url"); got != "https://www.peeringdb.com/api" {
		t.Errorf("peeringdb.url = %q", got)
	}
}

func TestLoadConfig_env_override(t *testing.T) {
	t.Setenv("PM_SERVER_PORT", "9090")
	t.Setenv("PM_NAPALM_USERNAME", "netops")

	v, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got := v.GetInt("server.port"); got != 9090 {
		t.Errorf("server.port = %d, want 9090", got)
	}
	if got := v.GetString("napalm.username"); got != "netops" {
		t.Errorf("napalm.username = %q, want netops", got)
	}
}

func TestLoadConfig_file(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pm.yaml")
	content := "server:\n  port: 7000\nplugins:\n  peering:\n    my_asn: 64500\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	v, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got := v.GetInt("server.port"); got != 7000 {
		t.Errorf("server.port = %d, want 7000", got)
	}
	if got := v.GetInt("plugins.peering.my_asn"); got != 64500 {
		t.Errorf("plugins.peering.my_asn = %d, want 64500", got)
	}

	var cfg Config
	if err := v.UnmarshalKey("server", &cfg); err != nil {
		t.Fatalf("UnmarshalKey: %v", err)
	}
	if cfg.Addr() != "0.0.0.0:7000" {
		t.Errorf("Addr() = %q, want 0.0.0.0:7000", cfg.Addr())
	}
}

func TestLoadConfig_malformed_file(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pm.yaml")
	if err := os.WriteFile(path, []byte("server: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for malformed config")
	}
}

func TestLoadConfig_napalm_timeout_bare_seconds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pm.yaml")
	if err := os.WriteFile(path, []byte("napalm:\n  timeout: 30\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	v, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got := config.Duration(v, "napalm.timeout"); got != 30*time.Second {
		t.Errorf("napalm.timeout = %v, want 30s", got)
	}

	t.Setenv("PM_NAPALM_TIMEOUT", "45")
	if got := config.Duration(v, "napalm.timeout"); got != 45*time.Second {
		t.Errorf("napalm.timeout from env = %v, want 45s", got)
	}
}
