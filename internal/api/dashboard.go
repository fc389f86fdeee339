package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/fxlab/dashsync/internal/model"
)

// GetCurrentRate fetches the current exchange rate for a pair.
func (c *Client) GetCurrentRate(ctx context.Context, pair string) (model.Rate, error) {
	var rate model.Rate
	query := url.Values{"pair": {pair}}
	if err := c.get(ctx, "/rates/current", query, &rate); err != nil {
		return model.Rate{}, err
	}
	return rate, nil
}

// GetLatestPredictions fetches the most recent predictions for a pair.
func (c *Client) GetLatestPredictions(ctx context.Context, pair string) ([]model.Prediction, error) {
	var resp struct {
		Predictions []model.Prediction `json:"predictions"`
	}
	query := url.Values{"pair": {pair}}
	if err := c.get(ctx, "/predictions/latest", query, &resp); err != nil {
		return nil, err
	}
	return resp.Predictions, nil
}

// GetCurrentSignal fetches the current trading signal for a pair.
func (c *Client) GetCurrentSignal(ctx context.Context, pair string) (model.Signal, error) {
	var signal model.Signal
	query := url.Values{"pair": {pair}}
	if err := c.get(ctx, "/signals/current", query, &signal); err != nil {
		return model.Signal{}, err
	}
	return signal, nil
}

// GetRiskMetrics fetches current risk metrics for a pair.
func (c *Client) GetRiskMetrics(ctx context.Context, pair string) (model.RiskMetrics, error) {
	var metrics model.RiskMetrics
	query := url.Values{"pair": {pair}}
	if err := c.get(ctx, "/risk/metrics", query, &metrics); err != nil {
		return model.RiskMetrics{}, err
	}
	return metrics, nil
}

// GetActiveAlerts fetches all currently active alerts.
func (c *Client) GetActiveAlerts(ctx context.Context) ([]model.Alert, error) {
	var resp struct {
		Alerts []model.Alert `json:"alerts"`
	}
	if err := c.get(ctx, "/alerts/active", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Alerts, nil
}

// GetBacktestResult fetches the summary result of a finished backtest.
func (c *Client) GetBacktestResult(ctx context.Context, jobID uuid.UUID) (model.BacktestResult, error) {
	var result model.BacktestResult
	path := fmt.Sprintf("/backtest/%s/results", jobID)
	if err := c.get(ctx, path, nil, &result); err != nil {
		return model.BacktestResult{}, err
	}
	return result, nil
}

// GetBacktestMetrics fetches detailed metrics for a finished backtest.
func (c *Client) GetBacktestMetrics(ctx context.Context, jobID uuid.UUID) (model.BacktestMetrics, error) {
	var metrics model.BacktestMetrics
	path := fmt.Sprintf("/backtest/%s/metrics", jobID)
	if err := c.get(ctx, path, nil, &metrics); err != nil {
		return model.BacktestMetrics{}, err
	}
	return metrics, nil
}

// GetBacktestTrades fetches the simulated trades of a finished backtest.
func (c *Client) GetBacktestTrades(ctx context.Context, jobID uuid.UUID) ([]model.BacktestTrade, error) {
	var resp struct {
		Trades []model.BacktestTrade `json:"trades"`
	}
	path := fmt.Sprintf("/backtest/%s/trades", jobID)
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Trades, nil
}

// GetDataStatus fetches the health of the historical data store.
func (c *Client) GetDataStatus(ctx context.Context) (model.DataStatus, error) {
	var status model.DataStatus
	if err := c.get(ctx, "/data/status", nil, &status); err != nil {
		return model.DataStatus{}, err
	}
	return status, nil
}

// GetDataQuality fetches per-source data quality reports.
func (c *Client) GetDataQuality(ctx context.Context) ([]model.DataQuality, error) {
	var resp struct {
		Sources []model.DataQuality `json:"sources"`
	}
	if err := c.get(ctx, "/data/quality", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sources, nil
}

// GetDataSources fetches the configured upstream data providers.
func (c *Client) GetDataSources(ctx context.Context) ([]model.DataSource, error) {
	var resp struct {
		Sources []model.DataSource `json:"sources"`
	}
	if err := c.get(ctx, "/data/sources", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sources, nil
}
