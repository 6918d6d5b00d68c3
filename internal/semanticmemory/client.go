// Package semanticmemory is the C1 adapter over the semantic memory
// service (spec §4.1, §6). It is reserved: the resolver must function
// with an empty result, and no component in this spec currently
// consumes Segment contents beyond the placeholder topic-shift variant
// spec §9 allows implementers to build. Kept as a narrow typed facade
// so that variant has somewhere to plug in later.
package semanticmemory

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/vthunder/bud2/internal/logging"
)

// Segment is a nearby memory segment returned by the semantic store.
type Segment struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Embedding []float64 `json:"embedding,omitempty"`
	Score     float64   `json:"score"`
}

// Client talks to the remote semantic memory service.
type Client struct {
	baseURL  string
	deadline time.Duration
	http     *http.Client
}

// New creates a semantic memory client against baseURL.
func New(baseURL string, deadline time.Duration) *Client {
	return &Client{
		baseURL:  baseURL,
		deadline: deadline,
		http:     &http.Client{Timeout: deadline},
	}
}

type queryRequest struct {
	UserID    string    `json:"user_id"`
	Embedding []float64 `json:"embedding"`
	K         int       `json:"k"`
}

type queryResponse struct {
	Success bool      `json:"success"`
	Data    *struct {
		Segments []Segment `json:"segments"`
	} `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// QueryNearby returns up to k segments near embedding for userID. An
// empty slice is returned, never an error, on any failure or when no
// semantic memory service is configured.
func (c *Client) QueryNearby(ctx context.Context, userID string, embedding []float64, k int) []Segment {
	if c == nil || c.baseURL == "" || len(embedding) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	body, err := json.Marshal(queryRequest{UserID: userID, Embedding: embedding, K: k})
	if err != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query_nearby", bytes.NewReader(body))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		logging.Debug("semanticmemory", "query_nearby unavailable: %v", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var result queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || !result.Success || result.Data == nil {
		return nil
	}

	return result.Data.Segments
}
