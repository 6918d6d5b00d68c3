package sentimentclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAnalyzeSuccessAndFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"label": "positive", "confidence": 0.9},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	res := c.Analyze(context.Background(), "great, thanks")
	if !res.OK || res.Label != "positive" {
		t.Fatalf("expected successful analyze, got %+v", res)
	}

	down := New("http://127.0.0.1:1", 20*time.Millisecond)
	res = down.Analyze(context.Background(), "hello")
	if res.OK {
		t.Fatal("expected unavailable result when service is unreachable")
	}
}

func TestAnalyzeEmptyText(t *testing.T) {
	c := New("http://unused.invalid", time.Second)
	res := c.Analyze(context.Background(), "")
	if res.OK {
		t.Fatal("expected unavailable result for empty text")
	}
}

func TestHealthyReflectsRemoteStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	up := New(srv.URL, time.Second)
	if !up.Healthy(context.Background()) {
		t.Error("expected healthy service to report true")
	}

	down := New("http://127.0.0.1:1", 20*time.Millisecond)
	if down.Healthy(context.Background()) {
		t.Error("expected unreachable service to report false")
	}
}
