package connection

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/fxlab/dashsync/internal/clock"
)

// dialFunc establishes a connected Client. Tests substitute this to
// exercise the reconnect machine without a network.
type dialFunc func(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (Client, error)

// Manager owns the lifecycle of every duplex channel: the shared
// dashboard channel and one ephemeral channel per tracked job. It
// guarantees at most one live connection per channel key, drives the
// bounded reconnect state machine, and discards callbacks from replaced
// connections via per-handle generation tokens.
type Manager struct {
	cfg    ManagerConfig
	logger *slog.Logger
	clk    clock.Clock

	ctx    context.Context
	cancel context.CancelFunc

	dial dialFunc

	mu        sync.Mutex
	handles   map[string]*Handle
	wakeHooks []func()
	closed    bool
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	OpenChannels int
	Connected    int
}

// NewManager creates a new connection manager. A nil clock uses real time.
func NewManager(cfg ManagerConfig, clk clock.Clock, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.System()
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		cfg:     cfg,
		logger:  logger,
		clk:     clk,
		ctx:     ctx,
		cancel:  cancel,
		handles: make(map[string]*Handle),
	}
	m.dial = func(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (Client, error) {
		c := NewClient(cfg, logger)
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
		return c, nil
	}
	return m
}

// Open returns a handle for the channel key, dialing it if no live handle
// exists. Opening an already-open key shares the existing handle and
// increments its reference count; the socket closes when every holder has
// called Close.
func (m *Manager) Open(key string) (*Handle, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}

	if h, ok := m.handles[key]; ok {
		h.mu.Lock()
		if !h.closed {
			h.refs++
			h.mu.Unlock()
			m.mu.Unlock()
			return h, nil
		}
		h.mu.Unlock()
	}

	h := &Handle{
		key:   key,
		url:   m.channelURL(key),
		m:     m,
		refs:  1,
		state: State{Status: StatusDisconnected},
	}
	m.handles[key] = h
	m.mu.Unlock()

	m.logger.Debug("opening channel", "key", key)
	h.startDial()
	return h, nil
}

// OnWake registers a hook invoked whenever Wake is called. The cache
// store registers its mark-all-stale here so a wake both reconnects and
// forces refetches.
func (m *Manager) OnWake(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wakeHooks = append(m.wakeHooks, fn)
}

// Wake forces an immediate reconnect attempt on every channel that is not
// currently connected, then runs the registered wake hooks. It is the
// recovery path after the host was suspended or backgrounded: pushes may
// have been missed, so cached state must also be treated as stale.
func (m *Manager) Wake() {
	m.mu.Lock()
	handles := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	hooks := append([]func(){}, m.wakeHooks...)
	m.mu.Unlock()

	m.logger.Info("wake: forcing reconnects and resync", "channels", len(handles))

	for _, h := range handles {
		h.Reconnect()
	}
	for _, fn := range hooks {
		fn()
	}
}

// Stats returns current statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	handles := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	stats := ManagerStats{OpenChannels: len(handles)}
	for _, h := range handles {
		if h.State().Status == StatusConnected {
			stats.Connected++
		}
	}
	return stats
}

// Close shuts down every channel and rejects further Opens.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	handles := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	m.cancel()
	for _, h := range handles {
		h.shutdown()
	}
	m.logger.Info("connection manager closed")
}

func (m *Manager) channelURL(key string) string {
	return strings.TrimRight(m.cfg.WSBaseURL, "/") + "/ws/" + key
}

func (m *Manager) clientConfig(url string) ClientConfig {
	return ClientConfig{
		URL:          url,
		Token:        m.cfg.Token,
		PingInterval: m.cfg.PingInterval,
		PingTimeout:  m.cfg.PingTimeout,
		WriteTimeout: m.cfg.WriteTimeout,
		BufferSize:   m.cfg.BufferSize,
	}
}

// Handle is one channel owned by the Manager. All holders of a shared
// handle observe the same connection state and message stream.
type Handle struct {
	key string
	url string
	m   *Manager

	mu        sync.Mutex
	refs      int
	gen       int // connection epoch; bumped on every new dial and on close
	state     State
	client    Client
	retry     clock.Timer
	onMessage []func(data []byte)
	onState   []func(State)
	closed    bool
}

// Key returns the channel key this handle was opened with.
func (h *Handle) Key() string { return h.key }

// State returns a snapshot of the connection state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// OnMessage registers a callback for raw inbound frames. Callbacks run
// sequentially in network-arrival order on the handle's read goroutine.
func (h *Handle) OnMessage(fn func(data []byte)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onMessage = append(h.onMessage, fn)
}

// OnStateChange registers an observer for state transitions.
func (h *Handle) OnStateChange(fn func(State)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onState = append(h.onState, fn)
}

// Close releases one reference. The last release closes the socket,
// cancels any scheduled reconnect, and removes the handle from the
// manager. Further calls are no-ops.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	if h.refs > 0 {
		h.refs--
	}
	if h.refs > 0 {
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	h.shutdown()
	return nil
}

// Reconnect forces an immediate connection attempt unless the channel is
// already connected or a dial is in flight. It starts a fresh bounded
// attempt cycle, so it also recovers a Failed channel.
func (h *Handle) Reconnect() {
	h.mu.Lock()
	if h.closed || h.state.Status == StatusConnected || h.state.Status == StatusConnecting {
		h.mu.Unlock()
		return
	}
	if h.retry != nil {
		h.retry.Stop()
		h.retry = nil
	}
	h.state.Attempt = 0
	h.gen++
	gen := h.gen
	h.applyLocked(EventDial)
	notify := h.notifyLocked()
	h.mu.Unlock()

	notify()
	go h.doDial(gen)
}

// shutdown closes the handle unconditionally, ignoring reference counts.
func (h *Handle) shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.refs = 0
	h.gen++
	if h.retry != nil {
		h.retry.Stop()
		h.retry = nil
	}
	cli := h.client
	h.client = nil
	h.applyLocked(EventClosed)
	notify := h.notifyLocked()
	h.mu.Unlock()

	if cli != nil {
		cli.Close()
	}
	notify()

	h.m.mu.Lock()
	if h.m.handles[h.key] == h {
		delete(h.m.handles, h.key)
	}
	h.m.mu.Unlock()

	h.m.logger.Debug("channel closed", "key", h.key)
}

// startDial begins the first connection attempt for a fresh handle.
func (h *Handle) startDial() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.gen++
	gen := h.gen
	h.applyLocked(EventDial)
	notify := h.notifyLocked()
	h.mu.Unlock()

	notify()
	go h.doDial(gen)
}

// doDial performs one connection attempt for the given epoch.
func (h *Handle) doDial(gen int) {
	cli, err := h.m.dial(h.m.ctx, h.m.clientConfig(h.url), h.m.logger.With("channel", h.key))

	h.mu.Lock()
	if h.closed || gen != h.gen {
		// Handle was closed or replaced while dialing; discard.
		h.mu.Unlock()
		if err == nil {
			cli.Close()
		}
		return
	}

	if err != nil {
		h.m.logger.Warn("channel dial failed", "key", h.key, "error", err)
		notify := h.failLocked(err, EventDialFailed)
		h.mu.Unlock()
		notify()
		return
	}

	h.client = cli
	h.state.Attempt = 0
	h.state.LastErr = nil
	h.applyLocked(EventOpened)
	notify := h.notifyLocked()
	h.mu.Unlock()

	notify()
	h.m.logger.Info("channel connected", "key", h.key)
	go h.readLoop(cli, gen)
}

// readLoop pumps frames and errors from one connection epoch.
func (h *Handle) readLoop(cli Client, gen int) {
	for {
		select {
		case err := <-cli.Errors():
			h.onDropped(cli, gen, err)
			return
		case msg, ok := <-cli.Messages():
			if !ok {
				return
			}
			h.deliver(gen, msg.Data)
		}
	}
}

// deliver invokes message callbacks unless the epoch is stale.
func (h *Handle) deliver(gen int, data []byte) {
	h.mu.Lock()
	if h.closed || gen != h.gen {
		h.mu.Unlock()
		return
	}
	cbs := append([]func([]byte){}, h.onMessage...)
	h.mu.Unlock()

	for _, cb := range cbs {
		cb(data)
	}
}

// onDropped handles an unexpected close of an established connection.
func (h *Handle) onDropped(cli Client, gen int, err error) {
	cli.Close()

	h.mu.Lock()
	if h.closed || gen != h.gen {
		h.mu.Unlock()
		return
	}
	h.client = nil
	h.m.logger.Warn("channel dropped", "key", h.key, "error", err)
	notify := h.failLocked(err, EventDropped)
	h.mu.Unlock()
	notify()
}

// failLocked records a failed attempt and either schedules the next
// reconnect or, once attempts are exhausted, parks the channel in Failed
// until Reconnect or Wake. Caller holds h.mu; the returned func notifies
// observers and must run after unlock.
func (h *Handle) failLocked(err error, ev Event) func() {
	h.state.LastErr = err
	if h.state.Attempt < h.m.cfg.MaxAttempts {
		h.state.Attempt++
	}

	h.applyLocked(ev)

	if h.state.Attempt >= h.m.cfg.MaxAttempts {
		h.applyLocked(EventExhausted)
		h.m.logger.Warn("reconnect attempts exhausted",
			"key", h.key,
			"attempts", h.state.Attempt,
		)
		return h.notifyLocked()
	}

	gen := h.gen
	h.retry = h.m.clk.AfterFunc(h.m.cfg.ReconnectInterval, func() {
		h.retryDial(gen)
	})
	return h.notifyLocked()
}

// retryDial runs a scheduled reconnect attempt for the given epoch.
func (h *Handle) retryDial(gen int) {
	h.mu.Lock()
	if h.closed || gen != h.gen || h.state.Status == StatusConnected {
		h.mu.Unlock()
		return
	}
	h.retry = nil
	h.gen++
	next := h.gen
	h.applyLocked(EventDial)
	notify := h.notifyLocked()
	h.mu.Unlock()

	notify()
	go h.doDial(next)
}

func (h *Handle) applyLocked(ev Event) {
	h.state.Status = Transition(h.state.Status, ev)
}

// notifyLocked snapshots state and observers; the returned func runs the
// observers outside the lock.
func (h *Handle) notifyLocked() func() {
	st := h.state
	obs := append([]func(State){}, h.onState...)
	return func() {
		for _, fn := range obs {
			fn(st)
		}
	}
}
