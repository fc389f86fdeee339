package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/fxlab/dashsync/internal/clock"
)

// fakeClient is an already-connected Client whose traffic the test drives.
type fakeClient struct {
	messages chan TimestampedMessage
	errors   chan error

	mu     sync.Mutex
	closed bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		messages: make(chan TimestampedMessage, 16),
		errors:   make(chan error, 1),
	}
}

func (c *fakeClient) Connect(ctx context.Context) error { return nil }

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeClient) Messages() <-chan TimestampedMessage { return c.messages }
func (c *fakeClient) Errors() <-chan error                { return c.errors }

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeClient) push(data string) {
	c.messages <- TimestampedMessage{Data: []byte(data), ReceivedAt: time.Now()}
}

func (c *fakeClient) drop(err error) {
	c.errors <- err
}

// fakeDialer controls the outcome of each dial attempt.
type fakeDialer struct {
	mu       sync.Mutex
	calls    int
	failNext int // number of upcoming dials to fail
	clients  []*fakeClient
}

func (d *fakeDialer) dial(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls++
	if d.failNext > 0 {
		d.failNext--
		return nil, errors.New("dial refused")
	}
	c := newFakeClient()
	d.clients = append(d.clients, c)
	return c, nil
}

func (d *fakeDialer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDialer) setFailNext(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNext = n
}

func (d *fakeDialer) lastClient() *fakeClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.clients) == 0 {
		return nil
	}
	return d.clients[len(d.clients)-1]
}

func newTestManager(d *fakeDialer, clk clock.Clock, maxAttempts int) *Manager {
	cfg := DefaultManagerConfig()
	cfg.WSBaseURL = "wss://fx.test"
	cfg.MaxAttempts = maxAttempts

	m := NewManager(cfg, clk, nil)
	m.dial = d.dial
	return m
}

func waitForStatus(t *testing.T, h *Handle, want Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.State().Status == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("status = %v, want %v", h.State().Status, want)
}

func TestManager_OpenConnects(t *testing.T) {
	dialer := &fakeDialer{}
	clk := clock.NewFake(time.Now())
	m := newTestManager(dialer, clk, 5)
	defer m.Close()

	h, err := m.Open("dashboard")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	waitForStatus(t, h, StatusConnected)

	st := h.State()
	if st.Attempt != 0 {
		t.Errorf("Attempt = %d, want 0", st.Attempt)
	}
	if got := m.Stats(); got.Connected != 1 || got.OpenChannels != 1 {
		t.Errorf("Stats = %+v, want 1 connected / 1 open", got)
	}
}

func TestManager_ReconnectAfterDrop(t *testing.T) {
	// Drops once, then succeeds on the second reconnect attempt.
	dialer := &fakeDialer{}
	clk := clock.NewFake(time.Now())
	m := newTestManager(dialer, clk, 5)
	defer m.Close()

	h, _ := m.Open("dashboard")
	waitForStatus(t, h, StatusConnected)

	dialer.setFailNext(1)
	dialer.lastClient().drop(errors.New("connection reset"))
	waitForStatus(t, h, StatusReconnecting)

	if got := h.State().Attempt; got != 1 {
		t.Errorf("Attempt after drop = %d, want 1", got)
	}

	// First retry fails.
	clk.Advance(DefaultManagerConfig().ReconnectInterval)
	waitFor(t, func() bool { return h.State().Attempt == 2 })
	if h.State().Status != StatusReconnecting {
		t.Errorf("status = %v, want reconnecting", h.State().Status)
	}

	// Second retry succeeds.
	clk.Advance(DefaultManagerConfig().ReconnectInterval)
	waitForStatus(t, h, StatusConnected)

	if got := h.State().Attempt; got != 0 {
		t.Errorf("Attempt after reconnect = %d, want 0", got)
	}
}

func TestManager_FailsAfterMaxAttempts(t *testing.T) {
	const maxAttempts = 3

	dialer := &fakeDialer{failNext: 100}
	clk := clock.NewFake(time.Now())
	m := newTestManager(dialer, clk, maxAttempts)
	defer m.Close()

	h, _ := m.Open("dashboard")
	waitFor(t, func() bool { return h.State().Attempt == 1 })

	for i := 0; i < maxAttempts-1; i++ {
		clk.Advance(DefaultManagerConfig().ReconnectInterval)
		want := i + 2
		waitFor(t, func() bool { return h.State().Attempt == want })
	}

	waitForStatus(t, h, StatusFailed)
	if got := dialer.callCount(); got != maxAttempts {
		t.Errorf("dial calls = %d, want %d", got, maxAttempts)
	}
	if got := clk.Pending(); got != 0 {
		t.Errorf("pending timers = %d, want 0 (no scheduling while Failed)", got)
	}

	// Time passing does not revive a Failed channel.
	clk.Advance(time.Minute)
	if got := dialer.callCount(); got != maxAttempts {
		t.Errorf("dial calls after advance = %d, want %d", got, maxAttempts)
	}
	if h.State().Status != StatusFailed {
		t.Errorf("status = %v, want failed", h.State().Status)
	}
}

func TestManager_ManualReconnectFromFailed(t *testing.T) {
	dialer := &fakeDialer{failNext: 100}
	clk := clock.NewFake(time.Now())
	m := newTestManager(dialer, clk, 2)
	defer m.Close()

	h, _ := m.Open("dashboard")
	waitFor(t, func() bool { return h.State().Attempt == 1 })
	clk.Advance(DefaultManagerConfig().ReconnectInterval)
	waitForStatus(t, h, StatusFailed)

	dialer.setFailNext(0)
	h.Reconnect()
	waitForStatus(t, h, StatusConnected)

	if got := h.State().Attempt; got != 0 {
		t.Errorf("Attempt = %d, want 0", got)
	}
}

func TestManager_WakeReconnectsAndRunsHooks(t *testing.T) {
	dialer := &fakeDialer{failNext: 100}
	clk := clock.NewFake(time.Now())
	m := newTestManager(dialer, clk, 1)
	defer m.Close()

	var hookCalls sync.Map
	m.OnWake(func() { hookCalls.Store("called", true) })

	h, _ := m.Open("dashboard")
	waitForStatus(t, h, StatusFailed)

	dialer.setFailNext(0)
	m.Wake()
	waitForStatus(t, h, StatusConnected)

	if _, ok := hookCalls.Load("called"); !ok {
		t.Error("wake hook was not invoked")
	}
}

func TestManager_WakeSkipsConnectedChannels(t *testing.T) {
	dialer := &fakeDialer{}
	clk := clock.NewFake(time.Now())
	m := newTestManager(dialer, clk, 5)
	defer m.Close()

	h, _ := m.Open("dashboard")
	waitForStatus(t, h, StatusConnected)

	calls := dialer.callCount()
	m.Wake()
	time.Sleep(20 * time.Millisecond)

	if got := dialer.callCount(); got != calls {
		t.Errorf("dial calls = %d, want %d (no redial while connected)", got, calls)
	}
}

func TestManager_SharedHandleRefCount(t *testing.T) {
	dialer := &fakeDialer{}
	clk := clock.NewFake(time.Now())
	m := newTestManager(dialer, clk, 5)
	defer m.Close()

	h1, _ := m.Open("dashboard")
	waitForStatus(t, h1, StatusConnected)

	h2, _ := m.Open("dashboard")
	if h1 != h2 {
		t.Fatal("expected shared handle for same channel key")
	}
	if got := dialer.callCount(); got != 1 {
		t.Errorf("dial calls = %d, want 1", got)
	}

	h1.Close()
	if cli := dialer.lastClient(); cli.isClosed() {
		t.Error("socket closed while a reference remains")
	}

	h2.Close()
	waitFor(t, func() bool { return dialer.lastClient().isClosed() })
	if got := m.Stats().OpenChannels; got != 0 {
		t.Errorf("OpenChannels = %d, want 0", got)
	}

	// Idempotent: further closes are no-ops.
	if err := h2.Close(); err != nil {
		t.Errorf("repeated Close returned %v", err)
	}
}

func TestManager_MessageDelivery(t *testing.T) {
	dialer := &fakeDialer{}
	clk := clock.NewFake(time.Now())
	m := newTestManager(dialer, clk, 5)
	defer m.Close()

	h, _ := m.Open("dashboard")

	var mu sync.Mutex
	var got []string
	h.OnMessage(func(data []byte) {
		mu.Lock()
		got = append(got, string(data))
		mu.Unlock()
	})

	waitForStatus(t, h, StatusConnected)

	cli := dialer.lastClient()
	cli.push("frame-1")
	cli.push("frame-2")
	cli.push("frame-3")

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	})

	mu.Lock()
	defer mu.Unlock()
	for i, want := range []string{"frame-1", "frame-2", "frame-3"} {
		if got[i] != want {
			t.Errorf("message[%d] = %q, want %q (arrival order must hold)", i, got[i], want)
		}
	}
}

func TestManager_StaleEpochDiscarded(t *testing.T) {
	dialer := &fakeDialer{}
	clk := clock.NewFake(time.Now())
	m := newTestManager(dialer, clk, 5)
	defer m.Close()

	h, _ := m.Open("dashboard")

	var mu sync.Mutex
	delivered := 0
	h.OnMessage(func([]byte) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})

	waitForStatus(t, h, StatusConnected)

	h.mu.Lock()
	staleGen := h.gen - 1
	h.mu.Unlock()

	// A frame from a replaced connection epoch must not reach callbacks.
	h.deliver(staleGen, []byte("stale"))

	mu.Lock()
	defer mu.Unlock()
	if delivered != 0 {
		t.Errorf("delivered = %d, want 0", delivered)
	}
}

func TestManager_OpenAfterClose(t *testing.T) {
	dialer := &fakeDialer{}
	clk := clock.NewFake(time.Now())
	m := newTestManager(dialer, clk, 5)

	m.Close()
	if _, err := m.Open("dashboard"); !errors.Is(err, ErrManagerClosed) {
		t.Errorf("Open after Close: err = %v, want ErrManagerClosed", err)
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
