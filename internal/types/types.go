// Package types holds the data model shared across the thread resolver
// pipeline: per-message analysis, per-thread context, and the resolution
// returned to callers. Values here are per-request; nothing in this
// package is persisted.
package types

import "time"

// ThreadAction is the decision the resolver made for a message.
type ThreadAction string

const (
	ActionContinue    ThreadAction = "continued"
	ActionCreate      ThreadAction = "created"
	ActionBranch      ThreadAction = "branched"
	ActionReactivate  ThreadAction = "reactivated"
	ActionMergeReserved ThreadAction = "merged" // declared, never produced by this core
)

// ThreadReason explains why a ThreadAction was chosen.
type ThreadReason string

const (
	ReasonTemporalContinuity   ThreadReason = "temporal_continuity"
	ReasonSemanticSimilarity   ThreadReason = "semantic_similarity"
	ReasonTopicShift           ThreadReason = "topic_shift"
	ReasonUserIntentChange     ThreadReason = "user_intent_change"
	ReasonConversationBoundary ThreadReason = "conversation_boundary"
	ReasonContextOverflow      ThreadReason = "context_overflow"
	ReasonNewSession           ThreadReason = "new_session"
	ReasonFallback             ThreadReason = "fallback"
)

// ThreadStatus is the derived (not persisted) liveness of a thread.
type ThreadStatus string

const (
	StatusActive  ThreadStatus = "active"
	StatusDormant ThreadStatus = "dormant"
)

// MessageRole distinguishes who produced a recent message.
type MessageRole string

const (
	RoleUser MessageRole = "user_input"
	RoleAI   MessageRole = "ai_response"
	RoleOther MessageRole = "other"
)

// MessageRecord is a single message as returned by the working-memory store.
type MessageRecord struct {
	ThreadID  string      `json:"thread_id"`
	UserID    string      `json:"user_id"`
	Role      MessageRole `json:"message_type"`
	Content   string      `json:"message_content"`
	Timestamp time.Time   `json:"timestamp"`
}

// RecentMessage is the trimmed shape stored on ThreadContext.recent_messages.
type RecentMessage struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// ConversationAnalysis is the per-message analysis produced by the
// Message Analyzer (C2). It always carries a value, even when every
// upstream signal degraded to its fallback.
type ConversationAnalysis struct {
	MessageEmbedding         []float64           `json:"message_embedding"`
	DetectedIntent           string              `json:"detected_intent"`
	TopicShiftScore          float64             `json:"topic_shift_score"`
	ConversationBoundaryScore float64            `json:"conversation_boundary_score"`
	UrgencyScore             float64             `json:"urgency_score"`
	ContextDependencyScore   float64             `json:"context_dependency_score"`
	Entities                 map[string][]string `json:"entities"`
}

// ServiceStatus is a per-call up/down snapshot of the C1 adapters,
// keyed by service name ("embedding", "ner", "intent", "sentiment").
// It is attached to a resolution's context_factors (spec §4.7 step 7)
// rather than carried on ConversationAnalysis itself, since it reflects
// reachability rather than an analysis value.
type ServiceStatus map[string]bool

// ThreadContext is the per-thread, per-request enrichment assembled by
// the Thread-Context Builder (C3).
type ThreadContext struct {
	ThreadID             string              `json:"thread_id"`
	UserID               string              `json:"user_id"`
	LastActivity         time.Time           `json:"last_activity"`
	MessageCount         int                 `json:"message_count"`
	Status               ThreadStatus        `json:"status"`
	TopicEmbedding       []float64           `json:"topic_embedding,omitempty"`
	RecentMessages       []RecentMessage     `json:"recent_messages"`
	Entities             map[string][]string `json:"entities"`
	IntentHistory        []string            `json:"intent_history"`
	ConversationType     string              `json:"conversation_type"`
	UserEngagementScore  float64             `json:"user_engagement_score"`
}

// ScoreRow is the six per-thread scores plus the weighted aggregate,
// computed by the Scorer (C4).
type ScoreRow struct {
	SemanticSimilarity float64 `json:"semantic_similarity"`
	TemporalContinuity float64 `json:"temporal_continuity"`
	IntentAlignment    float64 `json:"intent_alignment"`
	EntityOverlap      float64 `json:"entity_overlap"`
	ConversationFlow   float64 `json:"conversation_flow"`
	UserPatternMatch   float64 `json:"user_pattern_match"`
	Overall            float64 `json:"overall"`
}

// ToMap renders a ScoreRow as the opaque map the spec requires inside
// ThreadResolution.context_factors.
func (s ScoreRow) ToMap() map[string]any {
	return map[string]any{
		"semantic_similarity": s.SemanticSimilarity,
		"temporal_continuity": s.TemporalContinuity,
		"intent_alignment":    s.IntentAlignment,
		"entity_overlap":      s.EntityOverlap,
		"conversation_flow":   s.ConversationFlow,
		"user_pattern_match":  s.UserPatternMatch,
		"overall":             s.Overall,
	}
}

// ThreadResolution is the result of every resolve() call.
type ThreadResolution struct {
	ThreadID           string         `json:"thread_id"`
	Action             ThreadAction   `json:"action"`
	Confidence         float64        `json:"confidence"`
	PrimaryReason      ThreadReason   `json:"primary_reason"`
	Reasoning          string         `json:"reasoning"`
	CreatedAt          *time.Time     `json:"created_at,omitempty"`
	ParentThreadID     *string        `json:"parent_thread_id,omitempty"`
	SemanticSimilarity *float64       `json:"semantic_similarity,omitempty"`
	TemporalGap        *time.Duration `json:"-"`
	TemporalGapSeconds *float64       `json:"temporal_gap_seconds,omitempty"`
	ContextFactors     map[string]any `json:"context_factors,omitempty"`
}

// WithTemporalGap sets both the duration and its JSON-friendly seconds form.
func (r *ThreadResolution) WithTemporalGap(gap time.Duration) *ThreadResolution {
	r.TemporalGap = &gap
	secs := gap.Seconds()
	r.TemporalGapSeconds = &secs
	return r
}
