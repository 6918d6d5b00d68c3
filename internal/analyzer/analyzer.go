// Package analyzer implements the Message Analyzer (C2): it turns a raw
// user message into a ConversationAnalysis, fanning the six
// sub-analyses out concurrently under one deadline and never raising to
// the caller (spec §4.2). The fan-out shape follows errgroup usage
// elsewhere in the retrieval pack (e.g. jingkaihe-kodelet's Anthropic
// client, intelligencedev-manifold's agent loop) rather than a
// hand-rolled WaitGroup, since the teacher itself has no multi-service
// fan-out to imitate directly.
package analyzer

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vthunder/bud2/internal/embeddingclient"
	"github.com/vthunder/bud2/internal/intentclient"
	"github.com/vthunder/bud2/internal/logging"
	"github.com/vthunder/bud2/internal/nerclient"
	"github.com/vthunder/bud2/internal/sentimentclient"
	"github.com/vthunder/bud2/internal/types"
)

// Analyzer wires the adapters the Message Analyzer needs.
type Analyzer struct {
	Embedder  *embeddingclient.Client
	Intent    *intentclient.Client
	NER       *nerclient.Client
	Sentiment *sentimentclient.Client
	Deadline  time.Duration
	Dim       int
}

// New constructs an Analyzer. sentiment may be nil; sentiment
// reachability is then simply omitted from the service_status
// snapshot Analyze reports.
func New(embedder *embeddingclient.Client, intent *intentclient.Client, ner *nerclient.Client, sentiment *sentimentclient.Client, deadline time.Duration, dim int) *Analyzer {
	return &Analyzer{Embedder: embedder, Intent: intent, NER: ner, Sentiment: sentiment, Deadline: deadline, Dim: dim}
}

// Analyze always returns a ConversationAnalysis within a.Deadline, even
// if every sub-analysis degrades to its fallback. The second return
// value is a reachability snapshot of the C1 adapters contacted this
// call (spec §4.7 step 7, "service_status snapshot"): embedding's is
// read straight off the real Embed call, while NER/intent/sentiment
// degrade their own Result.OK to a fallback value on failure, so those
// three are probed directly via Healthy instead.
func (a *Analyzer) Analyze(ctx context.Context, userID, message string, recentIntents []string) (types.ConversationAnalysis, types.ServiceStatus) {
	ctx, cancel := context.WithTimeout(ctx, a.Deadline)
	defer cancel()

	analysis := types.ConversationAnalysis{
		MessageEmbedding: make([]float64, a.dim()),
		DetectedIntent:   intentclient.GeneralIntent,
		Entities:         map[string][]string{},
		UrgencyScore:     urgencyScoreDefault,
	}
	status := types.ServiceStatus{}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		res := a.Embedder.Embed(gctx, message)
		mu.Lock()
		status["embedding"] = res.OK
		if res.OK {
			analysis.MessageEmbedding = res.Vector
		}
		mu.Unlock()
		if !res.OK {
			logging.Debug("analyzer", "embedding unavailable for user %s: %s", redact(userID), res.Reason)
		}
		return nil
	})

	g.Go(func() error {
		ok := a.NER.Healthy(gctx)
		mu.Lock()
		status["ner"] = ok
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		ok := a.Intent.Healthy(gctx)
		mu.Lock()
		status["intent"] = ok
		mu.Unlock()
		return nil
	})

	if a.Sentiment != nil {
		g.Go(func() error {
			ok := a.Sentiment.Healthy(gctx)
			mu.Lock()
			status["sentiment"] = ok
			mu.Unlock()
			return nil
		})
	}

	g.Go(func() error {
		res := a.Intent.Classify(gctx, message, userID, recentIntents)
		act := classifyDialogueAct(message)
		intent := res.Intent
		if isLowInfo(act) {
			intent = intentclient.GeneralIntent
		}
		mu.Lock()
		analysis.DetectedIntent = intent
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		res := a.NER.Extract(gctx, message, nil)
		if res.OK {
			mu.Lock()
			analysis.Entities = res.Entities
			mu.Unlock()
		}
		return nil
	})

	g.Go(func() error {
		score := topicShiftScore(message)
		mu.Lock()
		analysis.TopicShiftScore = score
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		score := conversationBoundaryScore(message)
		mu.Lock()
		analysis.ConversationBoundaryScore = score
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		score := contextDependencyScore(message)
		mu.Lock()
		analysis.ContextDependencyScore = score
		mu.Unlock()
		return nil
	})

	// Sub-analyses never return an error (they absorb their own
	// failures into fallback values). Waiting stops when they have all
	// finished or when the deadline fires, whichever comes first; in the
	// latter case whatever partial results were already written under mu
	// are what we return, per spec §4.2's "always returns a value within
	// the analyzer timeout".
	waitDone := make(chan struct{})
	go func() { _ = g.Wait(); close(waitDone) }()
	select {
	case <-waitDone:
	case <-ctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()
	snapshot := types.ServiceStatus{}
	for name, ok := range status {
		snapshot[name] = ok
	}
	return analysis, snapshot
}

func (a *Analyzer) dim() int {
	if a.Dim > 0 {
		return a.Dim
	}
	return 768
}

// redact trims a user ID for log lines; the orchestrator is responsible
// for actual hashing (spec §4.7 step 1), this just avoids dumping raw
// IDs from a package that doesn't own the hashing policy.
func redact(userID string) string {
	if len(userID) <= 4 {
		return "***"
	}
	return userID[:2] + "***" + userID[len(userID)-2:]
}
