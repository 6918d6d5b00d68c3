// Package sentimentclient is the C1 adapter over the sentiment service
// (spec §4.1). No scoring or decision signal depends on Analyze's
// output; the analyzer only probes Healthy to include sentiment
// reachability in a resolution's service_status snapshot (spec §4.7
// step 7), so a failure here simply yields an empty Result.
package sentimentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/vthunder/bud2/internal/logging"
)

// Result is the fail-closed outcome of an Analyze call.
type Result struct {
	OK         bool
	Label      string
	Confidence float64
}

// Client talks to the remote sentiment service.
type Client struct {
	baseURL  string
	deadline time.Duration
	http     *http.Client
}

// New creates a sentiment client against baseURL with the given per-call deadline.
func New(baseURL string, deadline time.Duration) *Client {
	return &Client{
		baseURL:  baseURL,
		deadline: deadline,
		http:     &http.Client{Timeout: deadline},
	}
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	} `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Analyze returns the sentiment label for text, or an unavailable
// Result on any failure.
func (c *Client) Analyze(ctx context.Context, text string) Result {
	if text == "" {
		return Result{OK: false}
	}

	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	body, err := json.Marshal(analyzeRequest{Text: text})
	if err != nil {
		return Result{OK: false}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return Result{OK: false}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		logging.Debug("sentimentclient", "analyze unavailable: %v", err)
		return Result{OK: false}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		logging.Debug("sentimentclient", "status %d: %s", resp.StatusCode, string(b))
		return Result{OK: false}
	}

	var result analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || !result.Success || result.Data == nil {
		return Result{OK: false}
	}

	return Result{OK: true, Label: result.Data.Label, Confidence: result.Data.Confidence}
}

// Healthy reports whether the remote sentiment service is responding.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
