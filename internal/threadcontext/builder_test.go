package threadcontext

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/vthunder/bud2/internal/embeddingclient"
	"github.com/vthunder/bud2/internal/intentclient"
	"github.com/vthunder/bud2/internal/nerclient"
	"github.com/vthunder/bud2/internal/types"
	"github.com/vthunder/bud2/internal/workingstore"
)

func newTestBuilder(dormancy time.Duration) *Builder {
	store := workingstore.NewMemStore()
	embedder := embeddingclient.New("http://127.0.0.1:1", "test-model", 4, 20*time.Millisecond, time.Minute, 16, true)
	intent := intentclient.New("http://127.0.0.1:1", 20*time.Millisecond)
	ner := nerclient.New("http://127.0.0.1:1", 20*time.Millisecond)
	return New(store, embedder, intent, ner, dormancy, 200*time.Millisecond, time.Minute, 64, 10, true)
}

func TestContextsEmptyWhenNoMessages(t *testing.T) {
	b := newTestBuilder(2 * time.Hour)
	got := b.Contexts(context.Background(), "user-1")
	if len(got) != 0 {
		t.Errorf("expected empty context list, got %d", len(got))
	}
}

func TestContextsGroupsByThreadAndMarksDormant(t *testing.T) {
	store := b2Store()
	b := &Builder{
		Store:             store,
		Embedder:          embeddingclient.New("http://127.0.0.1:1", "m", 4, 20*time.Millisecond, time.Minute, 16, true),
		Intent:            intentclient.New("http://127.0.0.1:1", 20*time.Millisecond),
		NER:               nerclient.New("http://127.0.0.1:1", 20*time.Millisecond),
		DormancyThreshold: time.Hour,
		Deadline:          200 * time.Millisecond,
	}

	ctxs := b.build(context.Background(), "user-1")
	if len(ctxs) != 2 {
		t.Fatalf("expected 2 thread groups, got %d", len(ctxs))
	}

	byID := map[string]types.ThreadContext{}
	for _, c := range ctxs {
		byID[c.ThreadID] = c
	}

	if byID["thread-old"].Status != types.StatusDormant {
		t.Errorf("expected thread-old to be dormant, got %v", byID["thread-old"].Status)
	}
	if byID["thread-new"].Status != types.StatusActive {
		t.Errorf("expected thread-new to be active, got %v", byID["thread-new"].Status)
	}
	if byID["thread-new"].MessageCount != 2 {
		t.Errorf("expected message_count 2, got %d", byID["thread-new"].MessageCount)
	}
}

func TestBuildCapsThreadsAtMaxAndKeepsNewest(t *testing.T) {
	store := workingstore.NewMemStore()
	now := time.Now()
	for i := 0; i < maxThreads+5; i++ {
		store.Add(types.MessageRecord{
			ThreadID:  fmt.Sprintf("thread-%d", i),
			UserID:    "user-1",
			Role:      types.RoleUser,
			Content:   "hi",
			Timestamp: now.Add(time.Duration(i) * time.Second),
		})
	}

	b := &Builder{
		Store:             store,
		Embedder:          embeddingclient.New("http://127.0.0.1:1", "m", 4, 20*time.Millisecond, time.Minute, 16, true),
		Intent:            intentclient.New("http://127.0.0.1:1", 20*time.Millisecond),
		NER:               nerclient.New("http://127.0.0.1:1", 20*time.Millisecond),
		DormancyThreshold: time.Hour,
		Deadline:          500 * time.Millisecond,
	}

	ctxs := b.build(context.Background(), "user-1")
	if len(ctxs) != maxThreads {
		t.Fatalf("expected exactly %d threads after capping, got %d", maxThreads, len(ctxs))
	}

	var oldest time.Time
	for i, c := range ctxs {
		if i == 0 || c.LastActivity.Before(oldest) {
			oldest = c.LastActivity
		}
	}
	if oldest.Before(now.Add(5 * time.Second)) {
		t.Errorf("expected the oldest 5 threads to be dropped, oldest kept activity was %v", oldest)
	}
}

func TestRecentCapFallsBackToDefault(t *testing.T) {
	b := &Builder{}
	if got := b.recentCap(); got != defaultMaxRecentMessages {
		t.Errorf("expected default cap %d, got %d", defaultMaxRecentMessages, got)
	}
	b.MaxRecentMessages = 3
	if got := b.recentCap(); got != 3 {
		t.Errorf("expected configured cap 3, got %d", got)
	}
}

func TestStatsDelegatesToContextCache(t *testing.T) {
	b := newTestBuilder(2 * time.Hour)
	b.Contexts(context.Background(), "user-1")
	b.Contexts(context.Background(), "user-1")
	stats := b.Stats()
	if stats.Hits+stats.Misses == 0 {
		t.Error("expected Stats to reflect cache activity")
	}
}

func b2Store() *workingstore.MemStore {
	s := workingstore.NewMemStore()
	now := time.Now()
	s.Add(types.MessageRecord{ThreadID: "thread-old", UserID: "user-1", Role: types.RoleUser, Content: "hello", Timestamp: now.Add(-3 * time.Hour)})
	s.Add(types.MessageRecord{ThreadID: "thread-new", UserID: "user-1", Role: types.RoleUser, Content: "hi", Timestamp: now.Add(-10 * time.Minute)})
	s.Add(types.MessageRecord{ThreadID: "thread-new", UserID: "user-1", Role: types.RoleAI, Content: "hi there", Timestamp: now.Add(-9 * time.Minute)})
	return s
}
