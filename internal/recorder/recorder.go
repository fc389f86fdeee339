package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fxlab/dashsync/internal/config"
	"github.com/fxlab/dashsync/internal/model"
	"github.com/fxlab/dashsync/internal/router"
)

// DB is the slice of a pgx pool the recorder needs.
type DB interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Metrics contains runtime statistics.
type Metrics struct {
	Received  int64
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
	Dropped   int64
}

// updateRow is one recorded push, ready for insert.
type updateRow struct {
	Domain     string
	Kind       string
	Payload    []byte
	ServerTS   time.Time
	ReceivedAt time.Time
}

// Recorder persists pushed dashboard updates to the update_history
// table. It consumes decoded envelopes from router handlers into a
// bounded buffer, batches rows, and flushes on size or interval. The
// recorder never blocks the push path: when the buffer is full the
// update is dropped and counted.
type Recorder struct {
	cfg    config.RecorderConfig
	logger *slog.Logger
	db     DB

	input chan updateRow

	batchMu sync.Mutex
	batch   []updateRow
	metrics Metrics

	ctx         context.Context
	cancel      context.CancelFunc
	flushTicker *time.Ticker
	wg          sync.WaitGroup
}

// New creates a recorder writing through db.
func New(cfg config.RecorderConfig, db DB, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		cfg:    cfg,
		logger: logger,
		db:     db,
		input:  make(chan updateRow, cfg.BufferSize),
		batch:  make([]updateRow, 0, cfg.BatchSize),
	}
}

// Attach registers the recorder on a router for every recordable push
// type. Handlers only enqueue; all database work happens on the
// recorder's own goroutines.
func (r *Recorder) Attach(rt *router.Router) {
	record := func(domain string) router.Handler {
		return func(env router.Envelope) {
			r.enqueue(updateRow{
				Domain:     domain,
				Kind:       string(env.Type),
				Payload:    append([]byte(nil), env.Data...),
				ServerTS:   env.Timestamp,
				ReceivedAt: time.Now(),
			})
		}
	}

	rt.Register(router.TypeRateUpdate, record(model.DomainRate))
	rt.Register(router.TypeSignalUpdate, record(model.DomainSignal))
	rt.Register(router.TypePredictionUpdate, record(model.DomainPredictions))
	rt.Register(router.TypeAlertCreated, record(model.DomainAlerts))
}

// Start begins consuming updates and writing to the database.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.flushTicker = time.NewTicker(r.cfg.FlushInterval)

	r.wg.Add(1)
	go r.consumeLoop()

	r.wg.Add(1)
	go r.flushLoop()

	r.logger.Info("update recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the recorder, draining and flushing what
// remains.
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping update recorder")

	if r.cancel != nil {
		r.cancel()
	}
	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("update recorder stop timed out")
		return ctx.Err()
	}

	// Drain whatever the consume loop did not get to.
	for {
		select {
		case row := <-r.input:
			r.batchMu.Lock()
			r.batch = append(r.batch, row)
			r.batchMu.Unlock()
		default:
			r.flush(ctx)
			r.logger.Info("update recorder stopped")
			return nil
		}
	}
}

// Stats returns current metrics.
func (r *Recorder) Stats() Metrics {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	return r.metrics
}

// enqueue hands an update to the writer goroutines without blocking.
func (r *Recorder) enqueue(row updateRow) {
	r.batchMu.Lock()
	r.metrics.Received++
	r.batchMu.Unlock()

	select {
	case r.input <- row:
	default:
		r.batchMu.Lock()
		r.metrics.Dropped++
		r.batchMu.Unlock()
		r.logger.Warn("recorder buffer full, dropping update", "domain", row.Domain)
	}
}

// consumeLoop accumulates rows into batches.
func (r *Recorder) consumeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case row := <-r.input:
			r.batchMu.Lock()
			r.batch = append(r.batch, row)
			shouldFlush := len(r.batch) >= r.cfg.BatchSize
			r.batchMu.Unlock()

			if shouldFlush {
				r.flush(r.ctx)
			}
		}
	}
}

// flushLoop periodically flushes the batch.
func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.flushTicker.C:
			r.flush(r.ctx)
		}
	}
}

// flush writes the current batch to the database.
func (r *Recorder) flush(ctx context.Context) {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return
	}
	batch := r.batch
	r.batch = make([]updateRow, 0, r.cfg.BatchSize)
	r.batchMu.Unlock()

	start := time.Now()

	conflicts, err := r.batchInsert(ctx, batch)
	if err != nil {
		r.logger.Error("batch insert failed", "error", err, "count", len(batch))
		r.batchMu.Lock()
		r.metrics.Errors++
		r.batchMu.Unlock()
		return
	}

	r.batchMu.Lock()
	r.metrics.Inserts += int64(len(batch) - conflicts)
	r.metrics.Conflicts += int64(conflicts)
	r.metrics.Flushes++
	r.batchMu.Unlock()

	r.logger.Debug("flushed updates",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (r *Recorder) batchInsert(ctx context.Context, rows []updateRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO update_history (domain, kind, payload, server_ts, received_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (domain, server_ts) DO NOTHING
		`, row.Domain, row.Kind, row.Payload, row.ServerTS, row.ReceivedAt)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
