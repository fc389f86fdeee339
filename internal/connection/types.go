package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrManagerClosed   = errors.New("connection manager closed")
)

// Status is the lifecycle state of one duplex channel.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is an observable snapshot of a channel's connection state.
// Attempt counts consecutive failed connection attempts since the last
// success; it resets to 0 when a connection is established.
type State struct {
	Status  Status
	Attempt int
	LastErr error
}

// TimestampedMessage wraps raw frame data with its receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes from the socket
	ReceivedAt time.Time // Local timestamp when the read returned
}

// ClientConfig configures a single WebSocket client.
type ClientConfig struct {
	URL          string        // Full channel URL, e.g. wss://host/ws/dashboard
	Token        string        // Bearer token (empty = no auth header)
	PingInterval time.Duration // Keepalive ping cadence
	PingTimeout  time.Duration // Max silence before the connection is considered stale
	WriteTimeout time.Duration // Write deadline for control frames
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval: 30 * time.Second,
		PingTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   256,
	}
}

// ManagerConfig configures the connection manager.
type ManagerConfig struct {
	WSBaseURL         string        // Base URL; channel key is appended under /ws/
	Token             string        // Bearer token for channel handshakes
	ReconnectInterval time.Duration // Fixed wait between reconnect attempts
	MaxAttempts       int           // Failed attempts before a channel goes Failed
	PingInterval      time.Duration
	PingTimeout       time.Duration
	WriteTimeout      time.Duration
	BufferSize        int
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ReconnectInterval: 3 * time.Second,
		MaxAttempts:       5,
		PingInterval:      30 * time.Second,
		PingTimeout:       60 * time.Second,
		WriteTimeout:      5 * time.Second,
		BufferSize:        256,
	}
}
