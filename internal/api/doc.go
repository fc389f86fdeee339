// Package api provides the REST client for the forex prediction service.
//
// GET endpoints cover the dashboard domains (current rate, latest
// predictions, current signal, risk metrics, active alerts), backtest
// results, and data pipeline status. POST endpoints trigger long-running
// jobs (backtests, data collection, data repair, scraping, CSV import)
// and return a job reference whose progress is tracked over the job's
// duplex channel.
//
// All requests carry a bearer token supplied by a TokenSource.
package api
