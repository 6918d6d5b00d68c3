// Package scorer implements the Scorer (C4): for each ThreadContext
// candidate it computes the six per-thread scores plus the weighted
// overall (spec §4.4). Grounded on embeddingclient.CosineSimilarity for
// the semantic component; the per-thread panic recovery mirrors the
// teacher's per-percept failure isolation in internal/memory/percepts.go
// (one bad item never takes down the whole batch).
package scorer

import (
	"time"

	"github.com/vthunder/bud2/internal/embeddingclient"
	"github.com/vthunder/bud2/internal/logging"
	"github.com/vthunder/bud2/internal/types"
)

const (
	weightSemantic = 0.30
	weightTemporal = 0.25
	weightIntent   = 0.20
	weightEntities = 0.10
	weightFlow     = 0.10
	weightPattern  = 0.05

	defaultIntentAlignment = 0.5
	conversationFlowScore  = 0.5

	historyWindow = 5
)

// Score computes a ScoreRow for every context, keyed by thread ID. A
// per-thread failure never aborts the batch: that row is emitted as all
// zeros and logged (spec §4.4 last paragraph).
func Score(analysis types.ConversationAnalysis, contexts []types.ThreadContext, now time.Time) map[string]types.ScoreRow {
	result := make(map[string]types.ScoreRow, len(contexts))
	for _, c := range contexts {
		result[c.ThreadID] = scoreOne(analysis, c, now)
	}
	return result
}

func scoreOne(analysis types.ConversationAnalysis, c types.ThreadContext, now time.Time) (row types.ScoreRow) {
	defer func() {
		if r := recover(); r != nil {
			logging.Debug("scorer", "recovered panic scoring thread %s: %v", c.ThreadID, r)
			row = types.ScoreRow{}
		}
	}()

	semantic := semanticSimilarity(analysis.MessageEmbedding, c.TopicEmbedding)
	temporal := temporalContinuity(now.Sub(c.LastActivity))
	intent := intentAlignment(analysis.DetectedIntent, c.IntentHistory)
	entities := entityOverlap(analysis.Entities, c.Entities)
	flow := conversationFlowScore
	pattern := userPatternMatch(c)

	overall := weightSemantic*semantic +
		weightTemporal*temporal +
		weightIntent*intent +
		weightEntities*entities +
		weightFlow*flow +
		weightPattern*pattern

	return types.ScoreRow{
		SemanticSimilarity: semantic,
		TemporalContinuity: temporal,
		IntentAlignment:    intent,
		EntityOverlap:      entities,
		ConversationFlow:   flow,
		UserPatternMatch:   pattern,
		Overall:            overall,
	}
}

func semanticSimilarity(messageEmbedding, topicEmbedding []float64) float64 {
	if len(messageEmbedding) == 0 || len(topicEmbedding) == 0 {
		return 0
	}
	sim := embeddingclient.CosineSimilarity(messageEmbedding, topicEmbedding)
	if sim < 0 {
		return 0
	}
	return sim
}

// temporalContinuity is the piecewise decay function of spec §4.4.
func temporalContinuity(gap time.Duration) float64 {
	switch {
	case gap <= 30*time.Minute:
		return 1.0
	case gap <= 2*time.Hour:
		return 0.8
	case gap <= 6*time.Hour:
		return 0.5
	case gap <= 24*time.Hour:
		return 0.2
	default:
		return 0.0
	}
}

func intentAlignment(currentIntent string, history []string) float64 {
	if len(history) == 0 {
		return defaultIntentAlignment
	}
	start := 0
	if len(history) > historyWindow {
		start = len(history) - historyWindow
	}
	recent := history[start:]

	matches := 0
	for _, h := range recent {
		if h == currentIntent {
			matches++
		}
	}
	return float64(matches) / float64(len(recent))
}

func entityOverlap(current, thread map[string][]string) float64 {
	var numerator, denominator int
	for entityType, values := range current {
		denominator += len(values)
		if len(values) == 0 {
			continue
		}
		threadValues := thread[entityType]
		threadSet := make(map[string]bool, len(threadValues))
		for _, v := range threadValues {
			threadSet[v] = true
		}
		for _, v := range values {
			if threadSet[v] {
				numerator++
			}
		}
	}
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}

func userPatternMatch(c types.ThreadContext) float64 {
	return c.UserEngagementScore
}
