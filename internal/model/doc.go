// Package model defines the domain types shared across the sync core:
// dashboard snapshots (rate, signal, predictions, alerts, risk), data
// pipeline status, and backtest results. Wire shapes match the service's
// JSON payloads so the same types serve both REST responses and push
// message payloads.
package model
