package recorder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fxlab/dashsync/internal/config"
	"github.com/fxlab/dashsync/internal/model"
	"github.com/fxlab/dashsync/internal/router"
)

type fakeResults struct {
	tag string
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(r.tag), nil
}
func (r *fakeResults) Query() (pgx.Rows, error) { return nil, nil }
func (r *fakeResults) QueryRow() pgx.Row        { return nil }
func (r *fakeResults) Close() error             { return nil }

type fakeDB struct {
	mu      sync.Mutex
	batches []*pgx.Batch
	tag     string // command tag returned per queued insert
}

func (d *fakeDB) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batches = append(d.batches, b)
	tag := d.tag
	if tag == "" {
		tag = "INSERT 0 1"
	}
	return &fakeResults{tag: tag}
}

func (d *fakeDB) batchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.batches)
}

func (d *fakeDB) rowCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, b := range d.batches {
		n += b.Len()
	}
	return n
}

func testConfig() config.RecorderConfig {
	return config.RecorderConfig{
		BatchSize:     100,
		FlushInterval: time.Hour, // interval flushes disabled unless a test wants them
		BufferSize:    64,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

const rateFrame = `{"type":"rate_update","data":{"pair":"USD/JPY","mid":147.12},"timestamp":"2026-08-30T09:00:00Z"}`

func TestRecorderFlushesOnBatchSize(t *testing.T) {
	db := &fakeDB{}
	cfg := testConfig()
	cfg.BatchSize = 2

	rec := New(cfg, db, nil)
	rt := router.New(nil)
	rec.Attach(rt)

	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer rec.Stop(context.Background())

	rt.Dispatch([]byte(rateFrame))
	rt.Dispatch([]byte(rateFrame))

	waitFor(t, func() bool { return db.batchCount() == 1 })
	if got := db.rowCount(); got != 2 {
		t.Errorf("rows written = %d, want 2", got)
	}

	m := rec.Stats()
	if m.Inserts != 2 || m.Flushes != 1 {
		t.Errorf("metrics = %+v, want 2 inserts / 1 flush", m)
	}
}

func TestRecorderFlushesOnInterval(t *testing.T) {
	db := &fakeDB{}
	cfg := testConfig()
	cfg.FlushInterval = 20 * time.Millisecond

	rec := New(cfg, db, nil)
	rt := router.New(nil)
	rec.Attach(rt)

	rec.Start(context.Background())
	defer rec.Stop(context.Background())

	rt.Dispatch([]byte(rateFrame))
	waitFor(t, func() bool { return db.rowCount() == 1 })
}

func TestRecorderFinalFlushOnStop(t *testing.T) {
	db := &fakeDB{}
	rec := New(testConfig(), db, nil)
	rt := router.New(nil)
	rec.Attach(rt)

	rec.Start(context.Background())
	rt.Dispatch([]byte(rateFrame))

	// Give the consume loop a moment to pick the row up, then stop; the
	// undersized batch must still reach the database.
	waitFor(t, func() bool { return rec.Stats().Received == 1 })
	if err := rec.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if got := db.rowCount(); got != 1 {
		t.Errorf("rows written = %d, want 1", got)
	}
}

func TestRecorderRecordsAllPushTypes(t *testing.T) {
	db := &fakeDB{}
	rec := New(testConfig(), db, nil)
	rt := router.New(nil)
	rec.Attach(rt)

	rec.Start(context.Background())

	frames := []string{
		rateFrame,
		`{"type":"signal_update","data":{"action":"buy"},"timestamp":"2026-08-30T09:00:01Z"}`,
		`{"type":"prediction_update","data":{"horizon":"1h"},"timestamp":"2026-08-30T09:00:02Z"}`,
		`{"type":"alert_created","data":{"severity":"info"},"timestamp":"2026-08-30T09:00:03Z"}`,
	}
	for _, f := range frames {
		rt.Dispatch([]byte(f))
	}

	waitFor(t, func() bool { return rec.Stats().Received == 4 })
	rec.Stop(context.Background())

	db.mu.Lock()
	defer db.mu.Unlock()
	var domains []string
	for _, b := range db.batches {
		for _, q := range b.QueuedQueries {
			domains = append(domains, q.Arguments[0].(string))
		}
	}
	want := []string{model.DomainRate, model.DomainSignal, model.DomainPredictions, model.DomainAlerts}
	if len(domains) != len(want) {
		t.Fatalf("recorded domains = %v, want %v", domains, want)
	}
	for i := range want {
		if domains[i] != want[i] {
			t.Errorf("domain[%d] = %q, want %q", i, domains[i], want[i])
		}
	}
}

func TestRecorderCountsConflicts(t *testing.T) {
	db := &fakeDB{tag: "INSERT 0 0"} // every row hits ON CONFLICT DO NOTHING
	cfg := testConfig()
	cfg.BatchSize = 1

	rec := New(cfg, db, nil)
	rt := router.New(nil)
	rec.Attach(rt)

	rec.Start(context.Background())
	defer rec.Stop(context.Background())

	rt.Dispatch([]byte(rateFrame))
	waitFor(t, func() bool { return rec.Stats().Conflicts == 1 })

	if got := rec.Stats().Inserts; got != 0 {
		t.Errorf("Inserts = %d, want 0", got)
	}
}

func TestRecorderDropsWhenBufferFull(t *testing.T) {
	db := &fakeDB{}
	cfg := testConfig()
	cfg.BufferSize = 1

	// Not started: nothing consumes, so the second enqueue must drop.
	rec := New(cfg, db, nil)
	rt := router.New(nil)
	rec.Attach(rt)

	rt.Dispatch([]byte(rateFrame))
	rt.Dispatch([]byte(rateFrame))

	m := rec.Stats()
	if m.Received != 2 || m.Dropped != 1 {
		t.Errorf("metrics = %+v, want 2 received / 1 dropped", m)
	}
}
