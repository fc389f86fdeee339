package model

import (
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Dashboard domains
// -----------------------------------------------------------------------------

// Domain keys identify independently-synchronized slices of dashboard state.
// Each domain has its own poll interval, staleness window, and cache entry.
const (
	DomainRate        = "rate"
	DomainSignal      = "signal"
	DomainPredictions = "predictions"
	DomainAlerts      = "alerts"
	DomainRisk        = "risk"
	DomainDataStatus  = "data_status"
)

// Rate is the current exchange rate for the tracked currency pair.
type Rate struct {
	Pair      string    `json:"pair"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Mid       float64   `json:"mid"`
	Timestamp time.Time `json:"timestamp"`
}

// Signal is the current trading signal produced by the prediction engine.
type Signal struct {
	Pair        string    `json:"pair"`
	Action      string    `json:"action"` // "buy", "sell", "hold"
	Confidence  float64   `json:"confidence"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Prediction is a single horizon forecast for the pair.
type Prediction struct {
	Pair          string    `json:"pair"`
	Horizon       string    `json:"horizon"` // e.g. "1h", "4h", "1d"
	PredictedRate float64   `json:"predicted_rate"`
	Confidence    float64   `json:"confidence"`
	CreatedAt     time.Time `json:"created_at"`
}

// Alert is a user-facing alert raised by the service.
type Alert struct {
	ID          uuid.UUID `json:"id"`
	Pair        string    `json:"pair"`
	Severity    string    `json:"severity"` // "info", "warning", "critical"
	Message     string    `json:"message"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// RiskMetrics summarizes current portfolio risk.
type RiskMetrics struct {
	Pair         string    `json:"pair"`
	ValueAtRisk  float64   `json:"value_at_risk"`
	SharpeRatio  float64   `json:"sharpe_ratio"`
	MaxDrawdown  float64   `json:"max_drawdown"`
	Volatility   float64   `json:"volatility"`
	CalculatedAt time.Time `json:"calculated_at"`
}

// -----------------------------------------------------------------------------
// Data pipeline status
// -----------------------------------------------------------------------------

// DataStatus describes the health of the service's historical data store.
type DataStatus struct {
	TotalRows    int64     `json:"total_rows"`
	EarliestRow  time.Time `json:"earliest_row"`
	LatestRow    time.Time `json:"latest_row"`
	MissingRows  int64     `json:"missing_rows"`
	LastCollect  time.Time `json:"last_collect"`
	CollectState string    `json:"collect_state"` // "idle", "running", "error"
}

// DataQuality reports per-source data quality scores.
type DataQuality struct {
	Source       string  `json:"source"`
	Completeness float64 `json:"completeness"` // 0..1
	GapCount     int     `json:"gap_count"`
	Duplicates   int     `json:"duplicate_count"`
}

// DataSource describes one configured upstream data provider.
type DataSource struct {
	Name      string    `json:"name"`
	Kind      string    `json:"kind"` // "api", "scraper", "csv"
	Enabled   bool      `json:"enabled"`
	LastFetch time.Time `json:"last_fetch"`
}

// -----------------------------------------------------------------------------
// Backtests
// -----------------------------------------------------------------------------

// BacktestResult is the summary outcome of a completed backtest job.
type BacktestResult struct {
	JobID       uuid.UUID `json:"job_id"`
	Strategy    string    `json:"strategy"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	FinalEquity float64   `json:"final_equity"`
	TotalReturn float64   `json:"total_return"`
	CompletedAt time.Time `json:"completed_at"`
}

// BacktestMetrics holds detailed performance metrics for a backtest.
type BacktestMetrics struct {
	JobID       uuid.UUID `json:"job_id"`
	WinRate     float64   `json:"win_rate"`
	ProfitRatio float64   `json:"profit_ratio"`
	SharpeRatio float64   `json:"sharpe_ratio"`
	MaxDrawdown float64   `json:"max_drawdown"`
	TradeCount  int       `json:"trade_count"`
}

// BacktestTrade is one simulated trade from a backtest run.
type BacktestTrade struct {
	JobID     uuid.UUID `json:"job_id"`
	Side      string    `json:"side"` // "buy" or "sell"
	EntryRate float64   `json:"entry_rate"`
	ExitRate  float64   `json:"exit_rate"`
	Profit    float64   `json:"profit"`
	OpenedAt  time.Time `json:"opened_at"`
	ClosedAt  time.Time `json:"closed_at"`
}

// JobRef identifies a long-running server-side job started by a trigger call.
type JobRef struct {
	JobID uuid.UUID `json:"job_id"`
}
