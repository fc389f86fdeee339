package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAPITimeout = 30 * time.Second
	DefaultMaxRetries = 3

	DefaultReconnectInterval = 3 * time.Second
	DefaultMaxAttempts       = 5
	DefaultPingInterval      = 30 * time.Second
	DefaultPingTimeout       = 60 * time.Second
	DefaultWriteTimeout      = 5 * time.Second

	DefaultRatePollInterval       = 5 * time.Second
	DefaultRateStaleAfter         = 15 * time.Second
	DefaultSignalPollInterval     = 30 * time.Second
	DefaultSignalStaleAfter       = 90 * time.Second
	DefaultPredictionPollInterval = 60 * time.Second
	DefaultPredictionStaleAfter   = 3 * time.Minute
	DefaultAlertPollInterval      = 30 * time.Second
	DefaultAlertStaleAfter        = 90 * time.Second
	DefaultRiskPollInterval       = 60 * time.Second
	DefaultRiskStaleAfter         = 3 * time.Minute
	DefaultDataPollInterval       = 60 * time.Second
	DefaultDataStaleAfter         = 3 * time.Minute

	DefaultDBPort    = 5432
	DefaultDBSSLMode = "prefer"
	DefaultMaxConns  = 10
	DefaultMinConns  = 2

	DefaultBatchSize     = 500
	DefaultFlushInterval = 2 * time.Second
	DefaultBufferSize    = 5000
)

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Connection defaults
	if c.Connection.ReconnectInterval == 0 {
		c.Connection.ReconnectInterval = DefaultReconnectInterval
	}
	if c.Connection.MaxAttempts == 0 {
		c.Connection.MaxAttempts = DefaultMaxAttempts
	}
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.PingTimeout == 0 {
		c.Connection.PingTimeout = DefaultPingTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}

	// Domain defaults
	applyDomainDefaults(&c.Domains.Rate, DefaultRatePollInterval, DefaultRateStaleAfter)
	applyDomainDefaults(&c.Domains.Signal, DefaultSignalPollInterval, DefaultSignalStaleAfter)
	applyDomainDefaults(&c.Domains.Predictions, DefaultPredictionPollInterval, DefaultPredictionStaleAfter)
	applyDomainDefaults(&c.Domains.Alerts, DefaultAlertPollInterval, DefaultAlertStaleAfter)
	applyDomainDefaults(&c.Domains.Risk, DefaultRiskPollInterval, DefaultRiskStaleAfter)
	applyDomainDefaults(&c.Domains.DataStatus, DefaultDataPollInterval, DefaultDataStaleAfter)

	// Database defaults (only if recording is configured)
	if c.Database.Enabled() {
		if c.Database.Port == 0 {
			c.Database.Port = DefaultDBPort
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = DefaultDBSSLMode
		}
		if c.Database.MaxConns == 0 {
			c.Database.MaxConns = DefaultMaxConns
		}
		if c.Database.MinConns == 0 {
			c.Database.MinConns = DefaultMinConns
		}
	}

	// Recorder defaults
	if c.Recorder.BatchSize == 0 {
		c.Recorder.BatchSize = DefaultBatchSize
	}
	if c.Recorder.FlushInterval == 0 {
		c.Recorder.FlushInterval = DefaultFlushInterval
	}
	if c.Recorder.BufferSize == 0 {
		c.Recorder.BufferSize = DefaultBufferSize
	}
}

func applyDomainDefaults(d *DomainConfig, interval, staleAfter time.Duration) {
	if d.PollInterval == 0 {
		d.PollInterval = interval
	}
	if d.StaleAfter == 0 {
		d.StaleAfter = staleAfter
	}
}
