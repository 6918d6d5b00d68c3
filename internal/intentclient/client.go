// Package intentclient is the C1 adapter over the intent classification
// service (spec §4.1, §6). It follows the same HTTP-facade-with-deadline
// shape as nerclient and embeddingclient, fail-closed per spec: an
// unavailable service or a low-confidence prediction (<0.3) degrades to
// the "general" intent rather than surfacing an error.
package intentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vthunder/bud2/internal/logging"
)

// LowConfidenceThreshold is the cutoff below which a prediction is
// treated as unreliable and replaced with "general" (spec §4.2 step 1).
const LowConfidenceThreshold = 0.3

// GeneralIntent is the fallback intent used on low confidence or
// service unavailability.
const GeneralIntent = "general"

// Alternative is one ranked candidate intent.
type Alternative struct {
	Intent     string
	Confidence float64
}

// Result is the fail-closed outcome of a Classify call.
type Result struct {
	OK           bool
	Intent       string
	Confidence   float64
	Alternatives []Alternative
	Reason       string
}

// Client talks to the remote intent classification service.
type Client struct {
	baseURL  string
	deadline time.Duration
	http     *http.Client
}

// New creates an intent client against baseURL with the given per-call deadline.
func New(baseURL string, deadline time.Duration) *Client {
	return &Client{
		baseURL:  baseURL,
		deadline: deadline,
		http:     &http.Client{Timeout: deadline},
	}
}

type classifyRequest struct {
	Text                string   `json:"text"`
	UserID              string   `json:"user_id,omitempty"`
	ConversationContext []string `json:"conversation_context,omitempty"`
}

type classifyResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		PredictedIntent string          `json:"predicted_intent"`
		Confidence      float64         `json:"confidence"`
		DetectedLanguage string         `json:"detected_language"`
		Alternatives    [][2]any        `json:"alternatives"`
		InferenceTimeMs float64         `json:"inference_time_ms"`
		Metadata        map[string]any  `json:"metadata"`
	} `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Classify predicts the intent of text given the user's recent intent
// history. On remote failure, or when the prediction's confidence is
// below LowConfidenceThreshold, the result still reports OK=true with
// Intent=GeneralIntent — a low-confidence or unavailable classifier is
// not an error condition for the analyzer, it is the documented
// degrade path (spec §4.2 step 1).
func (c *Client) Classify(ctx context.Context, text, userID string, recentIntents []string) Result {
	if text == "" {
		return Result{OK: true, Intent: GeneralIntent}
	}

	intent, confidence, alts, err := c.fetch(ctx, text, userID, recentIntents)
	if err != nil {
		logging.Debug("intentclient", "classify unavailable: %v", err)
		return Result{OK: true, Intent: GeneralIntent, Reason: err.Error()}
	}

	if confidence < LowConfidenceThreshold {
		return Result{OK: true, Intent: GeneralIntent, Confidence: confidence, Alternatives: alts}
	}

	return Result{OK: true, Intent: intent, Confidence: confidence, Alternatives: alts}
}

func (c *Client) fetch(ctx context.Context, text, userID string, recentIntents []string) (string, float64, []Alternative, error) {
	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	body, err := json.Marshal(classifyRequest{Text: text, UserID: userID, ConversationContext: recentIntents})
	if err != nil {
		return "", 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return "", 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, nil, fmt.Errorf("intent request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", 0, nil, fmt.Errorf("intent service status %d: %s", resp.StatusCode, string(b))
	}

	var result classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", 0, nil, fmt.Errorf("decode response: %w", err)
	}
	if !result.Success || result.Data == nil {
		return "", 0, nil, fmt.Errorf("intent service error: %s", result.Error)
	}

	var alts []Alternative
	for _, pair := range result.Data.Alternatives {
		if len(pair) != 2 {
			continue
		}
		name, ok1 := pair[0].(string)
		conf, ok2 := pair[1].(float64)
		if ok1 && ok2 {
			alts = append(alts, Alternative{Intent: name, Confidence: conf})
		}
	}

	return result.Data.PredictedIntent, result.Data.Confidence, alts, nil
}

// Healthy reports whether the remote intent service is responding,
// independent of Classify's fail-closed degrade to GeneralIntent.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
