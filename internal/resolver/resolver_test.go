package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/vthunder/bud2/internal/analyzer"
	"github.com/vthunder/bud2/internal/decision"
	"github.com/vthunder/bud2/internal/embeddingclient"
	"github.com/vthunder/bud2/internal/health"
	"github.com/vthunder/bud2/internal/intentclient"
	"github.com/vthunder/bud2/internal/nerclient"
	"github.com/vthunder/bud2/internal/threadcontext"
	"github.com/vthunder/bud2/internal/types"
	"github.com/vthunder/bud2/internal/workingstore"
)

func newTestResolver() *Resolver {
	embedder := embeddingclient.New("http://127.0.0.1:1", "m", 8, 20*time.Millisecond, time.Minute, 16, true)
	intent := intentclient.New("http://127.0.0.1:1", 20*time.Millisecond)
	ner := nerclient.New("http://127.0.0.1:1", 20*time.Millisecond)
	a := analyzer.New(embedder, intent, ner, nil, 100*time.Millisecond, 8)

	store := workingstore.NewMemStore()
	builder := threadcontext.New(store, embedder, intent, ner, 2*time.Hour, 100*time.Millisecond, time.Minute, 64, 10, true)

	th := decision.Thresholds{SemanticSimilarity: 0.7, TopicShift: 0.4}
	h := health.New(nil, nil)

	return New(a, builder, th, h, 500*time.Millisecond)
}

func TestResolveBrandNewUserCreatesNewSession(t *testing.T) {
	r := newTestResolver()
	res := r.Resolve(context.Background(), "user-new", "hello there", nil)
	if res.Action != types.ActionCreate || res.PrimaryReason != types.ReasonNewSession {
		t.Fatalf("expected CREATE/NEW_SESSION, got %v/%v", res.Action, res.PrimaryReason)
	}
	if res.ContextFactors == nil || res.ContextFactors["resolution_time_ms"] == nil {
		t.Error("expected resolution_time_ms in context_factors")
	}
	status, ok := res.ContextFactors["service_status"].(types.ServiceStatus)
	if !ok || status["embedding"] {
		t.Errorf("expected service_status with embedding=false, got %+v", res.ContextFactors["service_status"])
	}
}

func TestResolveNeverPanicsWithCanceledContext(t *testing.T) {
	r := newTestResolver()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := r.Resolve(ctx, "user-1", "hello", nil)
	if res.ThreadID == "" {
		t.Error("expected a resolution even with a pre-canceled context")
	}
	if res.PrimaryReason != types.ReasonFallback {
		t.Errorf("expected fallback reason, got %v", res.PrimaryReason)
	}
	if r.Health.Counters().FallbackCount != 1 {
		t.Errorf("expected fallback counter incremented, got %d", r.Health.Counters().FallbackCount)
	}
}
