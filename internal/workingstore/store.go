// Package workingstore is the C1 adapter over the working-memory store
// (spec §4.1, §6): the one collaborator the thread-context builder reads
// recent per-user messages from. The HTTP client is grounded on the
// teacher's other adapters (embeddingclient, nerclient); the in-memory
// Store beneath it plays the same "map guarded by a mutex" role as the
// teacher's internal/memory/threads.go ThreadPool, but holds raw
// messages instead of persisted Thread objects since this core never
// owns durable thread state (spec §2 Non-goals).
package workingstore

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/vthunder/bud2/internal/logging"
	"github.com/vthunder/bud2/internal/types"
)

// Store is the contract the thread-context builder depends on.
// Implementations must return an empty slice (never an error) when the
// backing service is unavailable, per spec §4.1.
type Store interface {
	RecentMessages(ctx context.Context, userID string, sinceHours int) []types.MessageRecord
}

// HTTPStore is an HTTP-backed Store implementation.
type HTTPStore struct {
	baseURL  string
	deadline time.Duration
	http     *http.Client
}

// NewHTTPStore creates an HTTP-backed working store client.
func NewHTTPStore(baseURL string, deadline time.Duration) *HTTPStore {
	return &HTTPStore{
		baseURL:  baseURL,
		deadline: deadline,
		http:     &http.Client{Timeout: deadline},
	}
}

type recentRequest struct {
	UserID     string `json:"user_id"`
	SinceHours int    `json:"since_hours"`
}

type recentResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		Messages []types.MessageRecord `json:"messages"`
	} `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// RecentMessages returns messages for userID from the last sinceHours,
// ordered by timestamp ascending. Any failure yields an empty slice.
func (s *HTTPStore) RecentMessages(ctx context.Context, userID string, sinceHours int) []types.MessageRecord {
	ctx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	body, err := json.Marshal(recentRequest{UserID: userID, SinceHours: sinceHours})
	if err != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/recent", bytes.NewReader(body))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		logging.Debug("workingstore", "recent messages unavailable: %v", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		logging.Debug("workingstore", "status %d: %s", resp.StatusCode, string(b))
		return nil
	}

	var result recentResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || !result.Success || result.Data == nil {
		logging.Debug("workingstore", "malformed response: %v", err)
		return nil
	}

	msgs := result.Data.Messages
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Timestamp.Before(msgs[j].Timestamp) })
	return msgs
}

// MemStore is an in-process Store, useful for tests and for running the
// resolver without a standalone working-memory service.
type MemStore struct {
	mu       sync.RWMutex
	messages map[string][]types.MessageRecord // userID -> messages
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{messages: make(map[string][]types.MessageRecord)}
}

// Add appends a message to a user's history.
func (m *MemStore) Add(msg types.MessageRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.UserID] = append(m.messages[msg.UserID], msg)
}

// RecentMessages returns userID's messages from the last sinceHours,
// ordered ascending by timestamp.
func (m *MemStore) RecentMessages(ctx context.Context, userID string, sinceHours int) []types.MessageRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().Add(-time.Duration(sinceHours) * time.Hour)
	var result []types.MessageRecord
	for _, msg := range m.messages[userID] {
		if msg.Timestamp.After(cutoff) {
			result = append(result, msg)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp.Before(result[j].Timestamp) })
	return result
}
