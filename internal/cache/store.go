package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fxlab/dashsync/internal/clock"
)

var (
	// ErrUnknownDomain is returned for operations on a domain that was
	// never registered with StartPolling.
	ErrUnknownDomain = errors.New("cache: unknown domain")

	// ErrAlreadyPolling is returned when StartPolling is called for a
	// domain that already has a live entry.
	ErrAlreadyPolling = errors.New("cache: domain already polling")

	// ErrStoreClosed is returned after Close.
	ErrStoreClosed = errors.New("cache: store closed")
)

// FetchFunc fetches the current remote value for a domain. The returned
// time is the server timestamp of the value; a zero time means "now".
type FetchFunc func(ctx context.Context) (any, time.Time, error)

// Snapshot is the read view of one domain entry.
type Snapshot struct {
	Value     any
	FetchedAt time.Time
	IsLoading bool
	IsStale   bool
	Err       error
}

// Config holds store tuning knobs.
type Config struct {
	FetchTimeout time.Duration // per-fetch deadline
	MaxBackoff   time.Duration // cap on the poll failure backoff
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		FetchTimeout: 10 * time.Second,
		MaxBackoff:   2 * time.Minute,
	}
}

// Stats contains runtime statistics.
type Stats struct {
	Domains         int
	Polls           int64
	PollErrors      int64
	Pushes          int64
	PushesDiscarded int64
}

// Store caches the latest value per dashboard domain and keeps each
// domain fresh through two reconciled write paths: a per-domain poll
// timer and server pushes. Both converge on the same timestamped write,
// so whichever carries the newer server timestamp wins.
type Store struct {
	cfg    Config
	logger *slog.Logger
	clk    clock.Clock

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool

	polls           int64
	pollErrors      int64
	pushes          int64
	pushesDiscarded int64
}

// entry is the cached state of one domain. All fields are guarded by the
// store mutex.
type entry struct {
	domain     string
	fetch      FetchFunc
	interval   time.Duration
	staleAfter time.Duration

	refs      int
	gen       int // timer epoch; bumped whenever the schedule is reset
	value     any
	fetchedAt time.Time
	hasValue  bool
	invalid   bool
	inFlight  bool
	lastErr   error
	failures  int
	timer     clock.Timer
}

// New creates a store. A nil clock uses real time.
func New(cfg Config, clk clock.Clock, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.System()
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultConfig().FetchTimeout
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultConfig().MaxBackoff
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		cfg:     cfg,
		logger:  logger,
		clk:     clk,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*entry),
	}
}

// StartPolling registers a domain, takes the first reference on it, and
// fetches immediately. Subsequent fetches run every interval until the
// last reference is released.
func (s *Store) StartPolling(domain string, fetch FetchFunc, interval, staleAfter time.Duration) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	if _, ok := s.entries[domain]; ok {
		s.mu.Unlock()
		return ErrAlreadyPolling
	}

	e := &entry{
		domain:     domain,
		fetch:      fetch,
		interval:   interval,
		staleAfter: staleAfter,
		refs:       1,
	}
	s.entries[domain] = e
	s.startFetchLocked(e)
	s.mu.Unlock()

	s.logger.Debug("polling started", "domain", domain, "interval", interval)
	return nil
}

// Subscribe takes an additional reference on a registered domain.
func (s *Store) Subscribe(domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[domain]
	if !ok {
		return ErrUnknownDomain
	}
	e.refs++
	return nil
}

// Release drops one reference. The last release stops the domain's
// polling and removes the entry.
func (s *Store) Release(domain string) {
	s.mu.Lock()
	e, ok := s.entries[domain]
	if !ok {
		s.mu.Unlock()
		return
	}
	e.refs--
	if e.refs > 0 {
		s.mu.Unlock()
		return
	}

	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	delete(s.entries, domain)
	s.mu.Unlock()

	s.logger.Debug("polling stopped", "domain", e.domain)
}

// Get returns a snapshot of the domain entry.
func (s *Store) Get(domain string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[domain]
	if !ok {
		return Snapshot{Err: ErrUnknownDomain, IsStale: true}
	}

	stale := e.invalid || !e.hasValue
	if !stale && e.staleAfter > 0 {
		stale = s.clk.Now().After(e.fetchedAt.Add(e.staleAfter))
	}

	return Snapshot{
		Value:     e.value,
		FetchedAt: e.fetchedAt,
		IsLoading: e.inFlight,
		IsStale:   stale,
		Err:       e.lastErr,
	}
}

// ApplyPush applies a server-pushed value. It shares the poll success
// write path: a value strictly older than the cached one is discarded
// without error, and an accepted push resets the domain's poll timer so
// the next poll runs a full interval later.
func (s *Store) ApplyPush(domain string, value any, timestamp time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[domain]
	if !ok {
		s.logger.Debug("push for unknown domain", "domain", domain)
		return
	}

	s.pushes++
	if !s.acceptLocked(e, value, timestamp) {
		s.pushesDiscarded++
		s.logger.Debug("discarding out-of-order push",
			"domain", domain,
			"pushed", timestamp,
			"cached", e.fetchedAt,
		)
		return
	}
	s.scheduleLocked(e, e.interval)
}

// Invalidate marks a domain stale immediately, regardless of its age.
func (s *Store) Invalidate(domain string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[domain]; ok {
		e.invalid = true
	}
}

// MarkAllStale marks every domain stale. It is the wake hook: pushes may
// have been missed while the host slept, so no cached value can be
// trusted until refetched.
func (s *Store) MarkAllStale() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		e.invalid = true
	}
	s.logger.Info("all domains marked stale", "domains", len(s.entries))
}

// Stats returns current statistics.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Domains:         len(s.entries),
		Polls:           s.polls,
		PollErrors:      s.pollErrors,
		Pushes:          s.pushes,
		PushesDiscarded: s.pushesDiscarded,
	}
}

// Close stops all polling and rejects further registrations.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for domain, e := range s.entries {
		e.gen++
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		delete(s.entries, domain)
	}
	s.mu.Unlock()

	s.cancel()
}

// acceptLocked is the single timestamped write path shared by poll
// success and push. It returns false when the value loses last-writer-
// wins; equal timestamps are accepted.
func (s *Store) acceptLocked(e *entry, value any, timestamp time.Time) bool {
	if timestamp.IsZero() {
		timestamp = s.clk.Now()
	}
	if e.hasValue && timestamp.Before(e.fetchedAt) {
		return false
	}

	e.value = value
	e.fetchedAt = timestamp
	e.hasValue = true
	e.invalid = false
	e.lastErr = nil
	e.failures = 0
	return true
}

// scheduleLocked replaces the entry's poll timer. Bumping the epoch
// orphans any timer that already fired but has not run yet.
func (s *Store) scheduleLocked(e *entry, d time.Duration) {
	e.gen++
	gen := e.gen
	if e.timer != nil {
		e.timer.Stop()
	}
	domain := e.domain
	e.timer = s.clk.AfterFunc(d, func() {
		s.pollTick(domain, gen)
	})
}

// pollTick runs when a domain's poll timer fires.
func (s *Store) pollTick(domain string, gen int) {
	s.mu.Lock()
	e, ok := s.entries[domain]
	if !ok || gen != e.gen {
		s.mu.Unlock()
		return
	}
	s.startFetchLocked(e)
	s.mu.Unlock()
}

// startFetchLocked kicks off a fetch for the entry unless one is already
// in flight. An in-flight fetch suppresses the duplicate; the next poll
// is simply rescheduled.
func (s *Store) startFetchLocked(e *entry) {
	if e.inFlight {
		s.scheduleLocked(e, e.interval)
		return
	}
	e.inFlight = true
	s.polls++
	go s.doFetch(e.domain, e.fetch)
}

// doFetch performs one fetch and applies the result.
func (s *Store) doFetch(domain string, fetch FetchFunc) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.FetchTimeout)
	value, ts, err := fetch(ctx)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[domain]
	if !ok {
		return
	}
	e.inFlight = false

	if err != nil {
		e.lastErr = err
		e.failures++
		s.pollErrors++
		backoff := s.backoff(e)
		s.logger.Warn("poll failed",
			"domain", domain,
			"error", err,
			"failures", e.failures,
			"retry_in", backoff,
		)
		s.scheduleLocked(e, backoff)
		return
	}

	if !s.acceptLocked(e, value, ts) {
		// A fresher push landed while this poll was in flight.
		e.lastErr = nil
		e.failures = 0
	}
	s.scheduleLocked(e, e.interval)
}

// backoff doubles the poll interval per consecutive failure, capped.
func (s *Store) backoff(e *entry) time.Duration {
	d := e.interval
	for i := 0; i < e.failures && d < s.cfg.MaxBackoff; i++ {
		d *= 2
	}
	if d > s.cfg.MaxBackoff {
		d = s.cfg.MaxBackoff
	}
	return d
}
