package scorer

import (
	"testing"
	"time"

	"github.com/vthunder/bud2/internal/types"
)

func TestTemporalContinuityPiecewise(t *testing.T) {
	cases := []struct {
		gap  time.Duration
		want float64
	}{
		{10 * time.Minute, 1.0},
		{1 * time.Hour, 0.8},
		{4 * time.Hour, 0.5},
		{12 * time.Hour, 0.2},
		{48 * time.Hour, 0.0},
	}
	for _, c := range cases {
		if got := temporalContinuity(c.gap); got != c.want {
			t.Errorf("temporalContinuity(%v) = %v, want %v", c.gap, got, c.want)
		}
	}
}

func TestIntentAlignmentEmptyHistoryDefaultsHalf(t *testing.T) {
	if got := intentAlignment("task", nil); got != 0.5 {
		t.Errorf("expected 0.5, got %v", got)
	}
}

func TestIntentAlignmentFractionOfLastFive(t *testing.T) {
	history := []string{"task", "task", "general", "task", "task", "general"}
	got := intentAlignment("task", history)
	// last 5: task, general, task, task, general -> 3/5 match "task"
	if got != 0.6 {
		t.Errorf("expected 0.6, got %v", got)
	}
}

func TestEntityOverlap(t *testing.T) {
	current := map[string][]string{"PERSON": {"Alice", "Bob"}}
	thread := map[string][]string{"PERSON": {"Alice"}}
	got := entityOverlap(current, thread)
	if got != 0.5 {
		t.Errorf("expected 0.5, got %v", got)
	}
}

func TestEntityOverlapZeroDenominator(t *testing.T) {
	got := entityOverlap(map[string][]string{}, map[string][]string{"PERSON": {"Alice"}})
	if got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
}

func TestScoreWeightedOverall(t *testing.T) {
	now := time.Now()
	analysis := types.ConversationAnalysis{
		MessageEmbedding: []float64{1, 0},
		DetectedIntent:   "task",
		Entities:         map[string][]string{"PERSON": {"Alice"}},
	}
	contexts := []types.ThreadContext{
		{
			ThreadID:            "t1",
			LastActivity:        now.Add(-10 * time.Minute),
			TopicEmbedding:      []float64{1, 0},
			IntentHistory:       []string{"task"},
			Entities:            map[string][]string{"PERSON": {"Alice"}},
			UserEngagementScore: 0.5,
		},
	}

	rows := Score(analysis, contexts, now)
	row, ok := rows["t1"]
	if !ok {
		t.Fatal("expected row for t1")
	}
	if row.SemanticSimilarity != 1.0 {
		t.Errorf("expected semantic 1.0, got %v", row.SemanticSimilarity)
	}
	if row.TemporalContinuity != 1.0 {
		t.Errorf("expected temporal 1.0, got %v", row.TemporalContinuity)
	}
	if row.Overall <= 0 {
		t.Errorf("expected positive overall, got %v", row.Overall)
	}
}
