package config

import "time"

// Config is the root configuration for a dashsync instance.
type Config struct {
	Instance      InstanceConfig      `yaml:"instance"`
	API           APIConfig           `yaml:"api"`
	Connection    ConnectionConfig    `yaml:"connection"`
	Domains       DomainsConfig       `yaml:"domains"`
	Database      DBConfig            `yaml:"database"`
	Recorder      RecorderConfig      `yaml:"recorder"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

// InstanceConfig identifies this sync instance.
type InstanceConfig struct {
	ID   string `yaml:"id"`
	Pair string `yaml:"pair"` // currency pair tracked by the dashboard, e.g. "USD/JPY"
}

// APIConfig holds forex service API settings.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	WSBaseURL  string        `yaml:"ws_base_url"`
	Token      string        `yaml:"token"` // bearer token, usually ${FX_API_TOKEN}
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// ConnectionConfig holds duplex channel settings.
type ConnectionConfig struct {
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	MaxAttempts       int           `yaml:"max_attempts"`
	PingInterval      time.Duration `yaml:"ping_interval"`
	PingTimeout       time.Duration `yaml:"ping_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
}

// DomainsConfig holds per-domain poll settings.
type DomainsConfig struct {
	Rate        DomainConfig `yaml:"rate"`
	Signal      DomainConfig `yaml:"signal"`
	Predictions DomainConfig `yaml:"predictions"`
	Alerts      DomainConfig `yaml:"alerts"`
	Risk        DomainConfig `yaml:"risk"`
	DataStatus  DomainConfig `yaml:"data_status"`
}

// DomainConfig holds poll settings for one dashboard domain.
type DomainConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	StaleAfter   time.Duration `yaml:"stale_after"`
}

// DBConfig holds the optional Postgres connection for the update recorder.
// A missing host disables recording entirely.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// Enabled reports whether recording to Postgres is configured.
func (db DBConfig) Enabled() bool {
	return db.Host != ""
}

// RecorderConfig holds update recorder batching settings.
type RecorderConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// NotificationsConfig holds user-notification settings.
type NotificationsConfig struct {
	Enabled bool `yaml:"enabled"`
}
