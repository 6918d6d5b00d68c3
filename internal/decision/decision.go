// Package decision implements the Decision Matrix (C5): the ordered
// rule evaluation that turns analysis + scored contexts into a single
// ThreadResolution (spec §4.5). New thread IDs are minted with
// google/uuid, the one ID-generation library anywhere in the retrieval
// pack with a clean stdlib-free API.
package decision

import (
	"time"

	"github.com/google/uuid"

	"github.com/vthunder/bud2/internal/types"
)

// Thresholds bundles the tunables spec §4.5 and §6 expose as config.
type Thresholds struct {
	SemanticSimilarity float64
	TopicShift         float64
}

// Decide evaluates the rules in spec §4.5 order, first match wins.
func Decide(userID string, analysis types.ConversationAnalysis, contexts []types.ThreadContext, scores map[string]types.ScoreRow, th Thresholds, now time.Time) types.ThreadResolution {
	// Rule 1: empty contexts -> CREATE/NEW_SESSION, carrying only the
	// analysis signals.
	if len(contexts) == 0 {
		signals := map[string]any{
			"intent":            analysis.DetectedIntent,
			"topic_shift_score": analysis.TopicShiftScore,
			"boundary_score":    analysis.ConversationBoundaryScore,
		}
		return newThreadResolution(types.ReasonNewSession, 1.0, "no existing thread contexts for user", now, nil, signals)
	}

	best, bestRow, ok := bestContext(contexts, scores)
	if !ok || bestRow.Overall == 0 {
		return fallthroughRule6(analysis, contexts, scores, now)
	}

	factors := bestRow.ToMap()

	// Rule 3: strong semantic + temporal -> CONTINUE.
	if bestRow.SemanticSimilarity >= th.SemanticSimilarity && bestRow.TemporalContinuity > 0.5 {
		confidence := bestRow.SemanticSimilarity + bestRow.TemporalContinuity
		if confidence > 1.0 {
			confidence = 1.0
		}
		return types.ThreadResolution{
			ThreadID:           best.ThreadID,
			Action:             types.ActionContinue,
			Confidence:         confidence,
			PrimaryReason:      types.ReasonSemanticSimilarity,
			Reasoning:          "high semantic similarity and recent activity",
			SemanticSimilarity: ptr(bestRow.SemanticSimilarity),
			ContextFactors:     factors,
		}
	}

	// Rule 4: topic shift.
	if analysis.TopicShiftScore > th.TopicShift {
		if bestRow.TemporalContinuity > 0.3 {
			newID := uuid.NewString()
			return types.ThreadResolution{
				ThreadID:       newID,
				Action:         types.ActionBranch,
				Confidence:     analysis.TopicShiftScore,
				PrimaryReason:  types.ReasonTopicShift,
				Reasoning:      "topic shift detected while prior thread still temporally continuous",
				CreatedAt:      timePtr(now),
				ParentThreadID: ptrString(best.ThreadID),
				ContextFactors: factors,
			}
		}
		return newThreadResolution(types.ReasonTopicShift, 1.0, "topic shift with no temporally continuous thread to branch from", now, nil, factors)
	}

	// Rule 5: conversation boundary.
	if analysis.ConversationBoundaryScore > 0.7 {
		return newThreadResolution(types.ReasonConversationBoundary, 1.0, "message marks a conversation boundary", now, nil, factors)
	}

	// Rule 6: dormant reactivation.
	if bestRow.TemporalContinuity < 0.2 && bestRow.SemanticSimilarity > 0.4 {
		return types.ThreadResolution{
			ThreadID:           best.ThreadID,
			Action:             types.ActionReactivate,
			Confidence:         bestRow.SemanticSimilarity,
			PrimaryReason:      types.ReasonSemanticSimilarity,
			Reasoning:          "dormant thread with sufficient semantic similarity to reactivate",
			SemanticSimilarity: ptr(bestRow.SemanticSimilarity),
			ContextFactors:     factors,
		}
	}

	// Rule 7: default continuation.
	return types.ThreadResolution{
		ThreadID:       best.ThreadID,
		Action:         types.ActionContinue,
		Confidence:     bestRow.Overall,
		PrimaryReason:  types.ReasonTemporalContinuity,
		Reasoning:      "best matching thread by overall score",
		ContextFactors: factors,
	}
}

// fallthroughRule6 handles "no context has a winning overall score",
// which per spec §4.5 rule 2 falls through directly to rule 6's check
// (and, failing that, rule 7's default using a zero row).
func fallthroughRule6(analysis types.ConversationAnalysis, contexts []types.ThreadContext, scores map[string]types.ScoreRow, now time.Time) types.ThreadResolution {
	best, bestRow, ok := bestContext(contexts, scores)
	if !ok {
		return newThreadResolution(types.ReasonNewSession, 1.0, "no scoreable contexts", now, nil, nil)
	}

	factors := bestRow.ToMap()

	if bestRow.TemporalContinuity < 0.2 && bestRow.SemanticSimilarity > 0.4 {
		return types.ThreadResolution{
			ThreadID:           best.ThreadID,
			Action:             types.ActionReactivate,
			Confidence:         bestRow.SemanticSimilarity,
			PrimaryReason:      types.ReasonSemanticSimilarity,
			Reasoning:          "dormant thread with sufficient semantic similarity to reactivate",
			SemanticSimilarity: ptr(bestRow.SemanticSimilarity),
			ContextFactors:     factors,
		}
	}

	return types.ThreadResolution{
		ThreadID:       best.ThreadID,
		Action:         types.ActionContinue,
		Confidence:     bestRow.Overall,
		PrimaryReason:  types.ReasonTemporalContinuity,
		Reasoning:      "best matching thread by overall score",
		ContextFactors: factors,
	}
}

func bestContext(contexts []types.ThreadContext, scores map[string]types.ScoreRow) (types.ThreadContext, types.ScoreRow, bool) {
	var best types.ThreadContext
	var bestRow types.ScoreRow
	found := false

	for _, c := range contexts {
		row, ok := scores[c.ThreadID]
		if !ok {
			continue
		}
		if !found || row.Overall > bestRow.Overall {
			best = c
			bestRow = row
			found = true
		}
	}
	return best, bestRow, found
}

func newThreadResolution(reason types.ThreadReason, confidence float64, reasoning string, now time.Time, threadID *string, factors map[string]any) types.ThreadResolution {
	id := uuid.NewString()
	if threadID != nil {
		id = *threadID
	}
	return types.ThreadResolution{
		ThreadID:       id,
		Action:         types.ActionCreate,
		Confidence:     confidence,
		PrimaryReason:  reason,
		Reasoning:      reasoning,
		CreatedAt:      timePtr(now),
		ContextFactors: factors,
	}
}

func ptr(f float64) *float64          { return &f }
func timePtr(t time.Time) *time.Time { return &t }
func ptrString(s string) *string     { return &s }
