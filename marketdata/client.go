// Package marketdata proxies scan queries to the upstream market-data
// scanner. Queries pass through unchanged; responses are reshaped into
// column-keyed rows. The package holds no entitlement state.
package marketdata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const defaultScannerURL = "https://scanner.tradingview.com/crypto/scan"

// ErrInvalidPayload means the scan request body is malformed. Surfaced
// before any upstream call; no entitlement effect.
var ErrInvalidPayload = errors.New("invalid scan payload")

// ScanRequest is the caller's query, forwarded verbatim upstream.
type ScanRequest struct {
	Symbols struct {
		Tickers []string `json:"tickers"`
	} `json:"symbols"`
	Columns []string `json:"columns"`
}

// Validate checks the shape the scanner requires.
func (r ScanRequest) Validate() error {
	if r.Symbols.Tickers == nil || r.Columns == nil {
		return ErrInvalidPayload
	}
	return nil
}

// Row is one scanner result keyed by the requested columns.
type Row struct {
	Symbol string         `json:"symbol"`
	Data   map[string]any `json:"data"`
}

// Client calls the upstream scanner.
type Client struct {
	url    string
	client *http.Client
}

func NewClient(url string, client *http.Client) *Client {
	if url == "" {
		url = defaultScannerURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{url: url, client: client}
}

// Scan validates req, forwards it upstream, and reshapes the positional
// response arrays into column-keyed rows.
func (c *Client) Scan(ctx context.Context, req ScanRequest) ([]Row, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marketdata: encode scan request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("marketdata: build scan request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("marketdata: scanner call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("marketdata: scanner status %d", resp.StatusCode)
	}

	var upstream struct {
		Data []struct {
			S string `json:"s"`
			D []any  `json:"d"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&upstream); err != nil {
		return nil, fmt.Errorf("marketdata: decode scanner response: %w", err)
	}

	rows := make([]Row, 0, len(upstream.Data))
	for _, item := range upstream.Data {
		row := Row{Symbol: item.S, Data: make(map[string]any, len(item.D))}
		for i, v := range item.D {
			if i < len(req.Columns) {
				row.Data[req.Columns[i]] = v
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
