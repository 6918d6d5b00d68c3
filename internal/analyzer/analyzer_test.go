package analyzer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vthunder/bud2/internal/embeddingclient"
	"github.com/vthunder/bud2/internal/intentclient"
	"github.com/vthunder/bud2/internal/nerclient"
)

func TestTopicShiftScore(t *testing.T) {
	if got := topicShiftScore("by the way, did you see the game?"); got != 0.8 {
		t.Errorf("expected 0.8, got %v", got)
	}
	if got := topicShiftScore("what time is it"); got != 0.0 {
		t.Errorf("expected 0.0, got %v", got)
	}
}

func TestConversationBoundaryScoreFarewellBeatsGreeting(t *testing.T) {
	got := conversationBoundaryScore("hey, thanks for the help, bye")
	if got != 0.9 {
		t.Errorf("expected farewell to win with 0.9, got %v", got)
	}
}

func TestConversationBoundaryScoreGreeting(t *testing.T) {
	if got := conversationBoundaryScore("hello there"); got != 0.8 {
		t.Errorf("expected 0.8, got %v", got)
	}
}

func TestContextDependencyScoreClamped(t *testing.T) {
	got := contextDependencyScore("it that this they them what which where")
	if got != 1.0 {
		t.Errorf("expected clamp to 1.0, got %v", got)
	}
}

func TestClassifyDialogueAct(t *testing.T) {
	cases := map[string]DialogueAct{
		"ok":                actBackchannel,
		"":                  actBackchannel,
		"hi":                actGreeting,
		"what time is it?":  actQuestion,
		"please run tests":  actCommand,
		"the sky is purple": actStatement,
	}
	for input, want := range cases {
		if got := classifyDialogueAct(input); got != want {
			t.Errorf("classifyDialogueAct(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestAnalyzeDegradesWhenServicesDown(t *testing.T) {
	embedder := embeddingclient.New("http://127.0.0.1:1", "test-model", 8, 50*time.Millisecond, time.Minute, 16, true)
	intent := intentclient.New("http://127.0.0.1:1", 50*time.Millisecond)
	ner := nerclient.New("http://127.0.0.1:1", 50*time.Millisecond)

	a := New(embedder, intent, ner, nil, 200*time.Millisecond, 8)
	analysis, status := a.Analyze(context.Background(), "user-1", "hello there", nil)

	if analysis.DetectedIntent != intentclient.GeneralIntent {
		t.Errorf("expected general intent fallback, got %q", analysis.DetectedIntent)
	}
	if len(analysis.MessageEmbedding) != 8 {
		t.Errorf("expected zero-vector fallback of dim 8, got len %d", len(analysis.MessageEmbedding))
	}
	if analysis.Entities == nil {
		t.Error("expected non-nil entities map even on failure")
	}
	if status["embedding"] {
		t.Error("expected embedding service_status false when unreachable")
	}
	if _, ok := status["sentiment"]; ok {
		t.Error("expected no sentiment entry when Analyzer has no sentiment client")
	}
}

func TestAnalyzeBackchannelForcesGeneralIntent(t *testing.T) {
	intentSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"predicted_intent": "task_request",
				"confidence":       0.95,
			},
		})
	}))
	defer intentSrv.Close()

	embedder := embeddingclient.New("http://127.0.0.1:1", "test-model", 8, 50*time.Millisecond, time.Minute, 16, true)
	intent := intentclient.New(intentSrv.URL, time.Second)
	ner := nerclient.New("http://127.0.0.1:1", 50*time.Millisecond)

	a := New(embedder, intent, ner, nil, 500*time.Millisecond, 8)
	analysis, _ := a.Analyze(context.Background(), "user-1", "ok", nil)

	if analysis.DetectedIntent != intentclient.GeneralIntent {
		t.Errorf("expected backchannel to force general intent, got %q", analysis.DetectedIntent)
	}
}
