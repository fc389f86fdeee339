package notify

import (
	"log/slog"
	"sync"

	"github.com/fxlab/dashsync/internal/model"
	"github.com/fxlab/dashsync/internal/router"
)

// Sink delivers a user-facing notification. The daemon logs them; an
// embedding UI can plug in a desktop or mobile notifier instead.
type Sink interface {
	Notify(title, body string) error
}

// SinkFunc is a function adapter for Sink.
type SinkFunc func(title, body string) error

func (f SinkFunc) Notify(title, body string) error { return f(title, body) }

// Dispatcher turns alert_created pushes into user-facing notifications.
// It only acts when enabled and permitted; otherwise the alert flows to
// the other handlers with no visible side effect here.
type Dispatcher struct {
	logger *slog.Logger
	sink   Sink

	mu        sync.Mutex
	enabled   bool
	permitted bool
	delivered int64
	dropped   int64
}

// NewDispatcher creates a dispatcher. It starts disabled and without
// permission.
func NewDispatcher(sink Sink, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		logger: logger,
		sink:   sink,
	}
}

// Enable turns notification delivery on.
func (d *Dispatcher) Enable() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = true
}

// Disable turns notification delivery off.
func (d *Dispatcher) Disable() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = false
}

// SetPermission records whether the environment allows user-facing
// notifications.
func (d *Dispatcher) SetPermission(granted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.permitted = granted
}

// Attach registers the dispatcher on a router as an alert_created
// observer alongside any other handlers for that type.
func (d *Dispatcher) Attach(r *router.Router) {
	r.Register(router.TypeAlertCreated, d.handleAlert)
}

// Delivered returns the number of notifications handed to the sink.
func (d *Dispatcher) Delivered() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.delivered
}

func (d *Dispatcher) handleAlert(env router.Envelope) {
	alert, err := router.Decode[model.Alert](env)
	if err != nil {
		d.logger.Warn("bad alert payload", "error", err)
		return
	}

	d.mu.Lock()
	ok := d.enabled && d.permitted
	if !ok {
		d.dropped++
	}
	d.mu.Unlock()
	if !ok {
		return
	}

	title := alert.Pair + " alert"
	if alert.Severity != "" {
		title = alert.Pair + " " + alert.Severity + " alert"
	}
	if err := d.sink.Notify(title, alert.Message); err != nil {
		d.logger.Warn("notification delivery failed", "alert_id", alert.ID, "error", err)
		return
	}

	d.mu.Lock()
	d.delivered++
	d.mu.Unlock()

	d.logger.Debug("notification delivered", "alert_id", alert.ID, "severity", alert.Severity)
}
