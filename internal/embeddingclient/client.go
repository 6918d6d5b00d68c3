// Package embeddingclient is the C1 adapter over the embedding service
// (spec §4.1, §6). It is grounded on the teacher's Ollama client
// (internal/embedding/ollama.go): a small HTTP facade with a per-call
// deadline and a cache in front of it, generalized here to the
// request/response contract spec §6 specifies and to fail-closed
// semantics instead of returning an error to the caller.
package embeddingclient

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vthunder/bud2/internal/cache"
	"github.com/vthunder/bud2/internal/logging"
)

// Result is the fail-closed outcome of an Embed call.
type Result struct {
	OK     bool
	Vector []float64
	Reason string
}

// Client is a typed facade over the embedding service.
type Client struct {
	baseURL       string
	model         string
	dim           int
	deadline      time.Duration
	http          *http.Client
	cache         *cache.TTLCache[[]float64]
	enableCaching bool
}

// New creates an embedding client. dim is the configured embedding
// dimension (spec §6 embedding_dimension); a response vector of any
// other length is treated as unavailable. When enableCaching is false
// (spec §6 enable_caching), Embed calls fetch every time rather than
// consulting or populating the cache.
func New(baseURL, model string, dim int, deadline, cacheTTL time.Duration, cacheMax int, enableCaching bool) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8801"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	return &Client{
		baseURL:       baseURL,
		model:         model,
		dim:           dim,
		deadline:      deadline,
		http:          &http.Client{Timeout: deadline},
		cache:         cache.New[[]float64](cacheMax, cacheTTL),
		enableCaching: enableCaching,
	}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Success bool   `json:"success"`
	Data    *struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// CacheKey returns the stable cache key for text under this client's model.
func (c *Client) CacheKey(text string) string {
	h := sha256.Sum256([]byte(c.model + "\x00" + text))
	return fmt.Sprintf("%x", h[:16])
}

// Embed returns the embedding for text, idempotent for identical input.
// On any failure (timeout, bad status, malformed body, dimension
// mismatch) it returns a well-typed unavailable Result rather than an
// error — per spec §4.1 this adapter never raises to the caller.
func (c *Client) Embed(ctx context.Context, text string) Result {
	if text == "" {
		return Result{OK: false, Reason: "empty text"}
	}

	if !c.enableCaching {
		vec, err := c.fetch(ctx, text)
		if err != nil {
			logging.Debug("embeddingclient", "embed unavailable: %v", err)
			return Result{OK: false, Reason: err.Error()}
		}
		return Result{OK: true, Vector: vec}
	}

	key := c.CacheKey(text)
	vec, err := c.cache.GetOrLoad(key, func() ([]float64, error) {
		return c.fetch(ctx, text)
	})
	if err != nil {
		logging.Debug("embeddingclient", "embed unavailable: %v", err)
		return Result{OK: false, Reason: err.Error()}
	}
	return Result{OK: true, Vector: vec}
}

func (c *Client) fetch(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	body, err := json.Marshal(embedRequest{Model: c.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding service status %d: %s", resp.StatusCode, string(b))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !result.Success || result.Data == nil {
		return nil, fmt.Errorf("embedding service error: %s", result.Error)
	}
	if c.dim > 0 && len(result.Data.Embedding) != c.dim {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d want %d", len(result.Data.Embedding), c.dim)
	}

	return result.Data.Embedding, nil
}

// Stats exposes the embedding cache's hit/miss/eviction counters for C8.
func (c *Client) Stats() cache.Stats {
	return c.cache.Stats()
}
