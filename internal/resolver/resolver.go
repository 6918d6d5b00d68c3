// Package resolver implements the Resolver Orchestrator (C7): the
// public resolve() entry point that wires the Message Analyzer,
// Thread-Context Builder, Scorer, and Decision Matrix behind one
// umbrella deadline, converting any hard failure or timeout into a
// fallback CREATE resolution (spec §4.7). The "start timer, run
// pipeline, attach runtime metrics" shape is grounded on the teacher's
// cmd/bud/main.go request-handling loop plus internal/profiling's
// Start/Record timing pattern.
package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/vthunder/bud2/internal/analyzer"
	"github.com/vthunder/bud2/internal/decision"
	"github.com/vthunder/bud2/internal/health"
	"github.com/vthunder/bud2/internal/logging"
	"github.com/vthunder/bud2/internal/scorer"
	"github.com/vthunder/bud2/internal/threadcontext"
	"github.com/vthunder/bud2/internal/types"
)

// Resolver wires C2-C6 behind one deadline-bound entry point.
type Resolver struct {
	Analyzer   *analyzer.Analyzer
	Contexts   *threadcontext.Builder
	Thresholds decision.Thresholds
	Health     *health.Monitor

	TotalDeadline time.Duration
}

// New constructs a Resolver.
func New(a *analyzer.Analyzer, c *threadcontext.Builder, th decision.Thresholds, h *health.Monitor, totalDeadline time.Duration) *Resolver {
	return &Resolver{Analyzer: a, Contexts: c, Thresholds: th, Health: h, TotalDeadline: totalDeadline}
}

// Resolve runs the full pipeline for one message and never raises: any
// hard failure or deadline overrun degrades to a fallback CREATE with
// confidence in [0.3, 0.5] and primary_reason FALLBACK (spec §4.7).
func (r *Resolver) Resolve(ctx context.Context, userID, message string, recentIntents []string) types.ThreadResolution {
	start := time.Now()
	r.Health.Counters().IncResolveCalls()

	requestID := uuid.NewString()
	logging.Debug("resolver", "request %s user=%s", requestID, hashUserID(userID))

	ctx, cancel := context.WithTimeout(ctx, r.TotalDeadline)
	defer cancel()

	resolution, timedOut := r.runPipeline(ctx, userID, message, recentIntents)

	elapsed := time.Since(start)
	if timedOut {
		r.Health.Counters().IncTimeout()
	}
	r.Health.Counters().IncAction(string(resolution.Action))

	if resolution.ContextFactors == nil {
		resolution.ContextFactors = map[string]any{}
	}
	resolution.ContextFactors["resolution_time_ms"] = float64(elapsed.Microseconds()) / 1000.0
	resolution.ContextFactors["request_id"] = requestID

	return resolution
}

// runPipeline executes analyzer -> context builder -> scorer -> decision
// matrix, recovering from any panic into a fallback resolution.
func (r *Resolver) runPipeline(ctx context.Context, userID, message string, recentIntents []string) (resolution types.ThreadResolution, timedOut bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Debug("resolver", "recovered panic for user %s: %v", hashUserID(userID), rec)
			r.Health.Counters().IncFallback()
			resolution = fallbackResolution("unhandled failure in resolve pipeline")
		}
	}()

	done := make(chan types.ThreadResolution, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				logging.Debug("resolver", "recovered panic for user %s: %v", hashUserID(userID), rec)
				r.Health.Counters().IncFallback()
				done <- fallbackResolution("unhandled failure in resolve pipeline")
			}
		}()
		done <- r.resolveInner(ctx, userID, message, recentIntents)
	}()

	select {
	case resolution = <-done:
		return resolution, false
	case <-ctx.Done():
		r.Health.Counters().IncAdapterFailure()
		r.Health.Counters().IncFallback()
		return fallbackResolution("resolver deadline exceeded"), true
	}
}

func (r *Resolver) resolveInner(ctx context.Context, userID, message string, recentIntents []string) types.ThreadResolution {
	analysis, serviceStatus := r.Analyzer.Analyze(ctx, userID, message, recentIntents)
	contexts := r.Contexts.Contexts(ctx, userID)
	scores := scorer.Score(analysis, contexts, time.Now())
	resolution := decision.Decide(userID, analysis, contexts, scores, r.Thresholds, time.Now())

	if resolution.ContextFactors == nil {
		resolution.ContextFactors = map[string]any{}
	}
	resolution.ContextFactors["service_status"] = serviceStatus

	return resolution
}

// fallbackResolution produces the §4.7/§7 last-resort resolution: a new
// thread, confidence in [0.3, 0.5], reason FALLBACK.
func fallbackResolution(reasoning string) types.ThreadResolution {
	now := time.Now()
	return types.ThreadResolution{
		ThreadID:      uuid.NewString(),
		Action:        types.ActionCreate,
		Confidence:    0.3,
		PrimaryReason: types.ReasonFallback,
		Reasoning:     reasoning,
		CreatedAt:     &now,
	}
}

// hashUserID renders a stable, non-reversible log token for a user ID
// (spec §4.7 step 1: "hashed for privacy").
func hashUserID(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:8])
}
