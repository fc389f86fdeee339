package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fxlab/dashsync/internal/model"
)

// BacktestRequest describes a backtest job to run.
type BacktestRequest struct {
	Pair      string    `json:"pair"`
	Strategy  string    `json:"strategy"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// CollectRequest describes a data collection job.
type CollectRequest struct {
	Source    string    `json:"source,omitempty"` // empty = all sources
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// RepairRequest describes a data repair job.
type RepairRequest struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// RunBacktest starts a backtest job and returns its job reference.
func (c *Client) RunBacktest(ctx context.Context, req BacktestRequest) (model.JobRef, error) {
	var ref model.JobRef
	if err := c.post(ctx, "/backtest/run", req, &ref); err != nil {
		return model.JobRef{}, err
	}
	return ref, nil
}

// CollectData starts a data collection job.
func (c *Client) CollectData(ctx context.Context, req CollectRequest) (model.JobRef, error) {
	var ref model.JobRef
	if err := c.post(ctx, "/data/collect", req, &ref); err != nil {
		return model.JobRef{}, err
	}
	return ref, nil
}

// RepairData starts a data repair job.
func (c *Client) RepairData(ctx context.Context, req RepairRequest) (model.JobRef, error) {
	var ref model.JobRef
	if err := c.post(ctx, "/data/repair", req, &ref); err != nil {
		return model.JobRef{}, err
	}
	return ref, nil
}

// RunScraper starts a scraping job against all scraper-kind sources.
func (c *Client) RunScraper(ctx context.Context) (model.JobRef, error) {
	var ref model.JobRef
	if err := c.post(ctx, "/scraper/run", nil, &ref); err != nil {
		return model.JobRef{}, err
	}
	return ref, nil
}

// ImportCSV uploads a CSV file of historical rates and returns the import
// job reference. Multipart uploads are not retried.
func (c *Client) ImportCSV(ctx context.Context, filename string, data io.Reader) (model.JobRef, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return model.JobRef{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, data); err != nil {
		return model.JobRef{}, fmt.Errorf("copy file data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return model.JobRef{}, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/data/import", &buf)
	if err != nil {
		return model.JobRef{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return model.JobRef{}, fmt.Errorf("get token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.JobRef{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.JobRef{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return model.JobRef{}, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	var ref model.JobRef
	if err := json.Unmarshal(body, &ref); err != nil {
		return model.JobRef{}, fmt.Errorf("unmarshal response: %w", err)
	}
	return ref, nil
}
