package router

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Handler consumes one routed frame. Handlers for the same type run
// sequentially in registration order.
type Handler func(env Envelope)

// Stats contains runtime statistics.
type Stats struct {
	Received     int64
	Routed       int64
	DecodeErrors int64
	Unknown      int64
}

// Router parses raw push frames and dispatches them to registered
// handlers by message type. A frame that fails to decode is counted and
// dropped; it never disturbs the frames around it.
type Router struct {
	logger   *slog.Logger
	fallback MessageType

	mu       sync.Mutex
	handlers map[MessageType][]Handler

	received     int64
	routed       int64
	decodeErrors int64
	unknown      int64
}

// Option configures a Router.
type Option func(*Router)

// WithFallbackType classifies frames that carry no type field. Job
// channels need this: their progress frames are bare payloads.
func WithFallbackType(t MessageType) Option {
	return func(r *Router) { r.fallback = t }
}

// New creates a message router.
func New(logger *slog.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{
		logger:   logger,
		handlers: make(map[MessageType][]Handler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a handler for a message type. Multiple handlers per type
// are allowed; each routed frame reaches all of them.
func (r *Router) Register(t MessageType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = append(r.handlers[t], h)
}

// Dispatch parses one raw frame and routes it. It has the signature
// expected by connection handle message callbacks.
func (r *Router) Dispatch(data []byte) {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		r.logger.Warn("failed to decode push frame", "error", err)
		r.mu.Lock()
		r.decodeErrors++
		r.mu.Unlock()
		return
	}

	if env.Type == "" {
		if r.fallback == "" {
			r.logger.Warn("push frame missing type field")
			r.mu.Lock()
			r.decodeErrors++
			r.mu.Unlock()
			return
		}
		env = Envelope{Type: r.fallback, Data: json.RawMessage(data), Timestamp: env.Timestamp}
	}

	r.mu.Lock()
	hs := append([]Handler{}, r.handlers[env.Type]...)
	if len(hs) == 0 {
		r.unknown++
		r.mu.Unlock()
		r.logger.Debug("skipping message type", "type", env.Type)
		return
	}
	r.routed++
	r.mu.Unlock()

	for _, h := range hs {
		h(env)
	}
}

// Stats returns current statistics.
func (r *Router) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Stats{
		Received:     r.received,
		Routed:       r.routed,
		DecodeErrors: r.decodeErrors,
		Unknown:      r.unknown,
	}
}
