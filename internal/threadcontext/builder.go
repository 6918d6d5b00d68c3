// Package threadcontext implements the Thread-Context Builder (C3): it
// turns a user's recent messages into a set of per-thread ThreadContext
// summaries, grouped, enriched with NER/intent/topic embeddings, and
// cached per-user. The map-guarded-by-mutex + TTL cache shape follows
// the teacher's internal/memory ThreadPool (threads.go), generalized
// from durable on-disk thread state to a process-local, derived view
// per spec's Non-goals.
package threadcontext

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/vthunder/bud2/internal/cache"
	"github.com/vthunder/bud2/internal/embeddingclient"
	"github.com/vthunder/bud2/internal/intentclient"
	"github.com/vthunder/bud2/internal/logging"
	"github.com/vthunder/bud2/internal/nerclient"
	"github.com/vthunder/bud2/internal/types"
	"github.com/vthunder/bud2/internal/workingstore"
)

const recentWindowHours = 24
const defaultMaxRecentMessages = 10
const maxEmbeddedMessages = 3

// maxThreads is the hard cap on distinct threads considered per build,
// newest-first (spec §5: "Implementers MUST cap T at 256 and truncate
// older threads beyond that").
const maxThreads = 256

// centroidAlpha weights a fresh topic embedding against a thread's
// running centroid (embeddingclient.UpdateCentroid's exponential
// moving average), so topic_embedding tracks a thread's theme across
// calls instead of resetting to only the latest window each build.
const centroidAlpha = 0.3

// Builder assembles ThreadContext lists for a user.
type Builder struct {
	Store    workingstore.Store
	Embedder *embeddingclient.Client
	Intent   *intentclient.Client
	NER      *nerclient.Client

	DormancyThreshold time.Duration
	Deadline          time.Duration

	// MaxRecentMessages caps how many of a thread's messages are kept
	// as recent_messages / fed to enrichment (spec §6
	// max_thread_context_messages). Zero falls back to
	// defaultMaxRecentMessages.
	MaxRecentMessages int

	enableCaching bool
	contextCache  *cache.TTLCache[[]types.ThreadContext]

	centroidMu sync.Mutex
	centroids  map[string][]float64
}

// New constructs a Builder with a bounded per-user context cache.
// maxRecentMessages is spec §6's max_thread_context_messages (0 falls
// back to defaultMaxRecentMessages). When enableCaching is false, every
// Contexts call rebuilds from the working store instead of consulting
// the per-user cache.
func New(store workingstore.Store, embedder *embeddingclient.Client, intent *intentclient.Client, ner *nerclient.Client, dormancyThreshold, deadline, cacheTTL time.Duration, cacheMax, maxRecentMessages int, enableCaching bool) *Builder {
	return &Builder{
		Store:             store,
		Embedder:          embedder,
		Intent:            intent,
		NER:               ner,
		DormancyThreshold: dormancyThreshold,
		Deadline:          deadline,
		MaxRecentMessages: maxRecentMessages,
		enableCaching:     enableCaching,
		contextCache:      cache.New[[]types.ThreadContext](cacheMax, cacheTTL),
		centroids:         map[string][]float64{},
	}
}

// Contexts returns the ThreadContext list for userID, consulting the
// cache first. It never returns an error: any hard failure yields an
// empty list (spec §4.3 step 2 / §4.7 step 3).
func (b *Builder) Contexts(ctx context.Context, userID string) []types.ThreadContext {
	if !b.enableCaching {
		ctx, cancel := context.WithTimeout(ctx, b.Deadline)
		defer cancel()
		return b.build(ctx, userID)
	}

	if cached, ok := b.contextCache.Get(userID); ok {
		return cached
	}

	ctx, cancel := context.WithTimeout(ctx, b.Deadline)
	defer cancel()

	result, err := b.contextCache.GetOrLoad(userID, func() ([]types.ThreadContext, error) {
		return b.build(ctx, userID), nil
	})
	if err != nil {
		return nil
	}
	return result
}

// Stats returns the context cache's hit/miss/eviction counters for C8.
func (b *Builder) Stats() cache.Stats {
	return b.contextCache.Stats()
}

func (b *Builder) build(ctx context.Context, userID string) []types.ThreadContext {
	messages := b.Store.RecentMessages(ctx, userID, recentWindowHours)
	if len(messages) == 0 {
		return nil
	}

	groups := groupByThread(messages)
	threadIDs := capThreadsByRecency(groups, maxThreads)

	intentCache := map[string]string{}
	now := time.Now()

	out := make([]types.ThreadContext, 0, len(threadIDs))
	for _, threadID := range threadIDs {
		tc, ok := b.buildGroup(ctx, userID, threadID, groups[threadID], intentCache, now)
		if !ok {
			logging.Debug("threadcontext", "dropping group for thread %s after failure", threadID)
			continue
		}
		out = append(out, tc)
	}
	return out
}

func groupByThread(messages []types.MessageRecord) map[string][]types.MessageRecord {
	groups := map[string][]types.MessageRecord{}
	for _, m := range messages {
		if m.ThreadID == "" {
			continue
		}
		groups[m.ThreadID] = append(groups[m.ThreadID], m)
	}
	return groups
}

// capThreadsByRecency returns thread IDs sorted newest-activity-first,
// truncated to maxThreads so the O(T·R·D) memory bound (spec §5) never
// grows past that many threads per build.
func capThreadsByRecency(groups map[string][]types.MessageRecord, maxThreads int) []string {
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return latestTimestamp(groups[ids[i]]).After(latestTimestamp(groups[ids[j]]))
	})
	if len(ids) > maxThreads {
		logging.Debug("threadcontext", "capping %d threads to newest %d", len(ids), maxThreads)
		ids = ids[:maxThreads]
	}
	return ids
}

func latestTimestamp(group []types.MessageRecord) time.Time {
	latest := group[0].Timestamp
	for _, m := range group[1:] {
		if m.Timestamp.After(latest) {
			latest = m.Timestamp
		}
	}
	return latest
}

// buildGroup enriches a single thread's message group. Per spec §4.3
// failure policy, any failure here drops only this group; it never
// panics out to build().
func (b *Builder) buildGroup(ctx context.Context, userID, threadID string, group []types.MessageRecord, intentCache map[string]string, now time.Time) (tc types.ThreadContext, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.Debug("threadcontext", "recovered panic building thread %s: %v", threadID, r)
			ok = false
		}
	}()

	sort.Slice(group, func(i, j int) bool { return group[i].Timestamp.Before(group[j].Timestamp) })

	recent := group
	if limit := b.recentCap(); len(recent) > limit {
		recent = recent[len(recent)-limit:]
	}

	last := group[len(group)-1]

	entities := map[string][]string{}
	intentHistory := make([]string, 0, len(recent))
	recentMessages := make([]types.RecentMessage, 0, len(recent))

	for _, m := range recent {
		res := b.NER.Extract(ctx, m.Content, nil)
		if res.OK {
			unionEntities(entities, res.Entities)
		}

		intentHistory = append(intentHistory, b.cachedIntent(ctx, userID, m.Content, intentCache))

		recentMessages = append(recentMessages, types.RecentMessage{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}

	topicEmbedding := b.blendCentroid(threadID, b.topicEmbedding(ctx, recent))

	status := types.StatusActive
	if now.Sub(last.Timestamp) > b.DormancyThreshold {
		status = types.StatusDormant
	}

	return types.ThreadContext{
		ThreadID:             threadID,
		UserID:               userID,
		LastActivity:         last.Timestamp,
		MessageCount:         len(group),
		Status:               status,
		TopicEmbedding:       topicEmbedding,
		RecentMessages:       recentMessages,
		Entities:             entities,
		IntentHistory:        intentHistory,
		ConversationType:     "",
		UserEngagementScore:  0.5,
	}, true
}

// recentCap returns the configured per-thread message cap, falling
// back to defaultMaxRecentMessages when unset.
func (b *Builder) recentCap() int {
	if b.MaxRecentMessages > 0 {
		return b.MaxRecentMessages
	}
	return defaultMaxRecentMessages
}

// blendCentroid folds embedding into threadID's running topic centroid
// via an exponential moving average (embeddingclient.UpdateCentroid),
// so a thread's topic_embedding drifts smoothly across builds instead
// of jumping to whatever the latest window alone produces.
func (b *Builder) blendCentroid(threadID string, embedding []float64) []float64 {
	if len(embedding) == 0 {
		return embedding
	}

	b.centroidMu.Lock()
	defer b.centroidMu.Unlock()
	if b.centroids == nil {
		b.centroids = map[string][]float64{}
	}
	updated := embeddingclient.UpdateCentroid(b.centroids[threadID], embedding, centroidAlpha)
	b.centroids[threadID] = updated
	return updated
}

// cachedIntent classifies message content via C1, caching by content
// hash for the life of this build (spec §4.3 step 4e).
func (b *Builder) cachedIntent(ctx context.Context, userID, content string, intentCache map[string]string) string {
	key := contentHash(content)
	if cached, ok := intentCache[key]; ok {
		return cached
	}
	res := b.Intent.Classify(ctx, content, userID, nil)
	intentCache[key] = res.Intent
	return res.Intent
}

func contentHash(content string) string {
	sum := blake3.Sum256([]byte(content))
	return fmt.Sprintf("%x", sum[:16])
}

// topicEmbedding embeds the last up-to-3 message contents and averages
// them; nil when none succeeded (spec §4.3 step 4f).
func (b *Builder) topicEmbedding(ctx context.Context, recent []types.MessageRecord) []float64 {
	start := 0
	if len(recent) > maxEmbeddedMessages {
		start = len(recent) - maxEmbeddedMessages
	}

	var vectors [][]float64
	for _, m := range recent[start:] {
		res := b.Embedder.Embed(ctx, m.Content)
		if res.OK {
			vectors = append(vectors, res.Vector)
		}
	}
	return embeddingclient.AverageEmbeddings(vectors)
}

// unionEntities merges src into dst by type, deduplicating while
// preserving first-seen order (spec §4.3 step 4d).
func unionEntities(dst, src map[string][]string) {
	for entityType, values := range src {
		existing := dst[entityType]
		seen := make(map[string]bool, len(existing))
		for _, v := range existing {
			seen[v] = true
		}
		for _, v := range values {
			if !seen[v] {
				existing = append(existing, v)
				seen[v] = true
			}
		}
		dst[entityType] = existing
	}
}
