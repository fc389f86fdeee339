package job

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/fxlab/dashsync/internal/connection"
	"github.com/fxlab/dashsync/internal/router"
)

// ErrTrackerClosed is returned by Subscribe after Close.
var ErrTrackerClosed = errors.New("job: tracker closed")

// channel is the slice of a connection handle the tracker uses. Tests
// substitute openChannel to exercise the tracker without sockets.
type channel interface {
	OnMessage(fn func(data []byte))
	Close() error
}

type openFunc func(key string) (channel, error)

// Tracker follows the progress of server-side jobs over job-scoped push
// channels. Each tracked job holds exactly one open channel while it is
// live; a terminal status closes the channel and removes the entry.
type Tracker struct {
	logger *slog.Logger
	open   openFunc

	mu     sync.Mutex
	subs   map[uuid.UUID]*Subscription
	closed bool
}

// NewTracker creates a tracker that opens job channels through the
// connection manager.
func NewTracker(mgr *connection.Manager, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		logger: logger,
		open: func(key string) (channel, error) {
			return mgr.Open(key)
		},
		subs: make(map[uuid.UUID]*Subscription),
	}
}

// Subscribe starts tracking a job, opening its channel if the job is not
// already tracked. Subscribing to a live job shares the existing
// subscription and increments its reference count.
func (t *Tracker) Subscribe(jobID uuid.UUID) (*Subscription, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTrackerClosed
	}

	if sub, ok := t.subs[jobID]; ok {
		sub.mu.Lock()
		sub.refs++
		sub.mu.Unlock()
		t.mu.Unlock()
		return sub, nil
	}

	sub := &Subscription{
		jobID: jobID,
		t:     t,
		refs:  1,
		snap:  Snapshot{Status: StatusPending},
	}
	t.subs[jobID] = sub
	t.mu.Unlock()

	ch, err := t.open("backtest/" + jobID.String())
	if err != nil {
		t.mu.Lock()
		delete(t.subs, jobID)
		t.mu.Unlock()
		return nil, fmt.Errorf("open job channel: %w", err)
	}

	// Progress frames arrive as bare payloads with no type field.
	r := router.New(t.logger.With("job_id", jobID), router.WithFallbackType(router.TypeJobProgress))
	r.Register(router.TypeJobProgress, func(env router.Envelope) {
		frame, err := router.Decode[progressFrame](env)
		if err != nil {
			t.logger.Warn("bad job progress frame", "job_id", jobID, "error", err)
			return
		}
		sub.apply(frame)
	})

	sub.mu.Lock()
	if sub.removed {
		// Terminal or unsubscribed while the channel was opening.
		sub.mu.Unlock()
		ch.Close()
		return sub, nil
	}
	sub.ch = ch
	sub.mu.Unlock()

	ch.OnMessage(r.Dispatch)
	t.logger.Debug("tracking job", "job_id", jobID)
	return sub, nil
}

// Unsubscribe drops one reference to a tracked job. The last reference
// closes the job channel and removes the entry. Unknown ids are no-ops.
func (t *Tracker) Unsubscribe(jobID uuid.UUID) {
	t.mu.Lock()
	sub, ok := t.subs[jobID]
	t.mu.Unlock()
	if !ok {
		return
	}

	sub.mu.Lock()
	if sub.refs > 0 {
		sub.refs--
	}
	if sub.refs > 0 {
		sub.mu.Unlock()
		return
	}
	sub.mu.Unlock()

	t.remove(jobID, "unsubscribed")
}

// Active returns the number of jobs currently tracked.
func (t *Tracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Close stops tracking every job.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	ids := make([]uuid.UUID, 0, len(t.subs))
	for id := range t.subs {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	for _, id := range ids {
		t.remove(id, "tracker closed")
	}
}

// remove tears down a subscription regardless of reference count.
func (t *Tracker) remove(jobID uuid.UUID, reason string) {
	t.mu.Lock()
	sub, ok := t.subs[jobID]
	if ok {
		delete(t.subs, jobID)
	}
	t.mu.Unlock()
	if !ok {
		return
	}

	sub.mu.Lock()
	sub.removed = true
	ch := sub.ch
	sub.ch = nil
	sub.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
	t.logger.Debug("stopped tracking job", "job_id", jobID, "reason", reason)
}

// Subscription is a refcounted view of one tracked job.
type Subscription struct {
	jobID uuid.UUID
	t     *Tracker

	mu       sync.Mutex
	refs     int
	ch       channel
	snap     Snapshot
	onUpdate []func(Snapshot)
	removed  bool
}

// JobID returns the tracked job id.
func (s *Subscription) JobID() uuid.UUID { return s.jobID }

// Snapshot returns the latest observed progress.
func (s *Subscription) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Done reports whether the job reached a terminal status.
func (s *Subscription) Done() bool {
	return s.Snapshot().Status.Terminal()
}

// OnUpdate registers an observer for progress changes. Observers run on
// the channel's read goroutine in frame order.
func (s *Subscription) OnUpdate(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = append(s.onUpdate, fn)
}

// Close releases this holder's reference.
func (s *Subscription) Close() {
	s.t.Unsubscribe(s.jobID)
}

// apply folds one progress frame into the snapshot. Frames without a
// status derive one from the percentage. A terminal status tears the
// subscription down after observers have seen the final snapshot.
func (s *Subscription) apply(frame progressFrame) {
	status := frame.Status
	if status == "" {
		status = StatusRunning
		if frame.Progress >= 100 {
			status = StatusCompleted
		}
	}

	s.mu.Lock()
	if s.removed {
		s.mu.Unlock()
		return
	}
	s.snap = Snapshot{
		Progress:    frame.Progress,
		CurrentStep: frame.CurrentStep,
		Status:      status,
	}
	snap := s.snap
	obs := append([]func(Snapshot){}, s.onUpdate...)
	s.mu.Unlock()

	for _, fn := range obs {
		fn(snap)
	}

	if status.Terminal() {
		s.t.remove(s.jobID, "terminal status "+string(status))
	}
}
