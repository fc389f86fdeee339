package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-sync
  pair: USD/JPY
api:
  base_url: https://fx.example.com/api
  ws_base_url: wss://fx.example.com
  token: test-token
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-sync" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-sync")
	}
	if cfg.API.BaseURL != "https://fx.example.com/api" {
		t.Errorf("API.BaseURL = %q, want %q", cfg.API.BaseURL, "https://fx.example.com/api")
	}
	if cfg.API.Token != "test-token" {
		t.Errorf("API.Token = %q, want %q", cfg.API.Token, "test-token")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_FX_TOKEN", "secret123")

	yaml := `
instance:
  id: test-sync
  pair: USD/JPY
api:
  base_url: https://fx.example.com/api
  ws_base_url: wss://fx.example.com
  token: ${TEST_FX_TOKEN}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.Token != "secret123" {
		t.Errorf("API.Token = %q, want %q", cfg.API.Token, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-sync
  pair: USD/JPY
api:
  base_url: https://fx.example.com/api
  ws_base_url: wss://fx.example.com
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Connection.ReconnectInterval != DefaultReconnectInterval {
		t.Errorf("Connection.ReconnectInterval = %v, want %v",
			cfg.Connection.ReconnectInterval, DefaultReconnectInterval)
	}
	if cfg.Connection.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("Connection.MaxAttempts = %d, want %d",
			cfg.Connection.MaxAttempts, DefaultMaxAttempts)
	}
	if cfg.Domains.Rate.PollInterval != DefaultRatePollInterval {
		t.Errorf("Domains.Rate.PollInterval = %v, want %v",
			cfg.Domains.Rate.PollInterval, DefaultRatePollInterval)
	}
	if cfg.Domains.Signal.StaleAfter != DefaultSignalStaleAfter {
		t.Errorf("Domains.Signal.StaleAfter = %v, want %v",
			cfg.Domains.Signal.StaleAfter, DefaultSignalStaleAfter)
	}
}

func TestLoadWithDefaults_ExplicitOverride(t *testing.T) {
	yaml := `
instance:
  id: test-sync
  pair: USD/JPY
api:
  base_url: https://fx.example.com/api
  ws_base_url: wss://fx.example.com
connection:
  reconnect_interval: 10s
  max_attempts: 2
domains:
  rate:
    poll_interval: 1s
    stale_after: 3s
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Connection.ReconnectInterval != 10*time.Second {
		t.Errorf("Connection.ReconnectInterval = %v, want 10s", cfg.Connection.ReconnectInterval)
	}
	if cfg.Connection.MaxAttempts != 2 {
		t.Errorf("Connection.MaxAttempts = %d, want 2", cfg.Connection.MaxAttempts)
	}
	if cfg.Domains.Rate.PollInterval != time.Second {
		t.Errorf("Domains.Rate.PollInterval = %v, want 1s", cfg.Domains.Rate.PollInterval)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing instance id", func(c *Config) { c.Instance.ID = "" }, true},
		{"missing pair", func(c *Config) { c.Instance.Pair = "" }, true},
		{"missing base url", func(c *Config) { c.API.BaseURL = "" }, true},
		{"http ws url", func(c *Config) { c.API.WSBaseURL = "http://fx.example.com" }, true},
		{"zero max attempts", func(c *Config) { c.Connection.MaxAttempts = 0 }, true},
		{"negative poll interval", func(c *Config) { c.Domains.Alerts.PollInterval = -time.Second }, true},
		{"db host without name", func(c *Config) { c.Database.Host = "localhost"; c.Database.Name = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Instance: InstanceConfig{ID: "test", Pair: "USD/JPY"},
				API: APIConfig{
					BaseURL:   "https://fx.example.com/api",
					WSBaseURL: "wss://fx.example.com",
				},
			}
			cfg.applyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
