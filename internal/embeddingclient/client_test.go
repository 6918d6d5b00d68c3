package embeddingclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCosineSimilarity(t *testing.T) {
	a := []float64{1, 0, 0}
	b := []float64{1, 0, 0}
	if got := CosineSimilarity(a, b); got != 1.0 {
		t.Fatalf("identical vectors: want 1.0, got %v", got)
	}

	if got := CosineSimilarity(a, []float64{0, 1, 0}); got != 0 {
		t.Fatalf("orthogonal vectors: want 0, got %v", got)
	}

	if got := CosineSimilarity(a, []float64{0, 0, 0}); got != 0 {
		t.Fatalf("zero vector: want 0, got %v", got)
	}

	if got := CosineSimilarity(a, b); got != CosineSimilarity(b, a) {
		t.Fatal("cosine similarity should be symmetric")
	}
}

func TestAverageEmbeddings(t *testing.T) {
	avg := AverageEmbeddings([][]float64{{2, 4}, {4, 8}})
	if avg[0] != 3 || avg[1] != 6 {
		t.Fatalf("expected [3 6], got %v", avg)
	}
	if AverageEmbeddings(nil) != nil {
		t.Fatal("expected nil for empty input")
	}
}

func TestEmbedSuccessAndCache(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"embedding": []float64{1, 2, 3}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-model", 3, time.Second, time.Minute, 10, true)
	res := c.Embed(context.Background(), "hello")
	if !res.OK || len(res.Vector) != 3 {
		t.Fatalf("expected successful embed, got %+v", res)
	}

	// second call for the same text should hit the cache, not the server
	res2 := c.Embed(context.Background(), "hello")
	if !res2.OK {
		t.Fatal("expected cached embed to succeed")
	}
	if calls != 1 {
		t.Fatalf("expected 1 upstream call (second served from cache), got %d", calls)
	}
}

func TestEmbedUnavailableOnDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"embedding": []float64{1, 2}}, // wrong dim
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-model", 768, time.Second, time.Minute, 10, true)
	res := c.Embed(context.Background(), "hello")
	if res.OK {
		t.Fatal("expected unavailable result on dimension mismatch")
	}
}

func TestEmbedUnavailableOnServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "test-model", 768, time.Second, time.Minute, 10, true)
	res := c.Embed(context.Background(), "hello")
	if res.OK {
		t.Fatal("expected unavailable result on 5xx")
	}
}

func TestEmbedSkipsCacheWhenDisabled(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"embedding": []float64{1, 2, 3}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-model", 3, time.Second, time.Minute, 10, false)
	c.Embed(context.Background(), "hello")
	c.Embed(context.Background(), "hello")
	if calls != 2 {
		t.Fatalf("expected caching disabled to hit the server every call, got %d calls", calls)
	}
}

func TestEmbedEmptyText(t *testing.T) {
	c := New("http://unused.invalid", "m", 768, time.Second, time.Minute, 10, true)
	res := c.Embed(context.Background(), "")
	if res.OK {
		t.Fatal("expected unavailable result for empty text")
	}
}

func TestUpdateCentroid(t *testing.T) {
	if got := UpdateCentroid(nil, []float64{1, 2}, 0.5); got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected seeding with no prior centroid, got %v", got)
	}
	if got := UpdateCentroid([]float64{1, 2}, nil, 0.5); got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected prior centroid kept when next is empty, got %v", got)
	}

	got := UpdateCentroid([]float64{0, 0}, []float64{2, 4}, 0.5)
	if got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected EMA blend [1 2], got %v", got)
	}
}
