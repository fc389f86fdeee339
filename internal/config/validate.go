package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}
	if c.Instance.Pair == "" {
		return errors.New("instance.pair is required")
	}

	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.WSBaseURL == "" {
		return errors.New("api.ws_base_url is required")
	}
	if !strings.HasPrefix(c.API.WSBaseURL, "ws://") && !strings.HasPrefix(c.API.WSBaseURL, "wss://") {
		return fmt.Errorf("api.ws_base_url must use ws:// or wss://, got %q", c.API.WSBaseURL)
	}

	if c.Connection.ReconnectInterval <= 0 {
		return errors.New("connection.reconnect_interval must be > 0")
	}
	if c.Connection.MaxAttempts < 1 {
		return errors.New("connection.max_attempts must be >= 1")
	}

	for _, d := range []struct {
		name string
		cfg  DomainConfig
	}{
		{"rate", c.Domains.Rate},
		{"signal", c.Domains.Signal},
		{"predictions", c.Domains.Predictions},
		{"alerts", c.Domains.Alerts},
		{"risk", c.Domains.Risk},
		{"data_status", c.Domains.DataStatus},
	} {
		if d.cfg.PollInterval <= 0 {
			return fmt.Errorf("domains.%s.poll_interval must be > 0", d.name)
		}
		if d.cfg.StaleAfter <= 0 {
			return fmt.Errorf("domains.%s.stale_after must be > 0", d.name)
		}
	}

	if c.Database.Enabled() {
		if c.Database.Name == "" {
			return errors.New("database.name is required when database.host is set")
		}
		if c.Database.User == "" {
			return errors.New("database.user is required when database.host is set")
		}
		if c.Recorder.BatchSize < 1 {
			return errors.New("recorder.batch_size must be >= 1")
		}
		if c.Recorder.BufferSize < 1 {
			return errors.New("recorder.buffer_size must be >= 1")
		}
	}

	return nil
}
