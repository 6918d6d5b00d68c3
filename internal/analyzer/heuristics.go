package analyzer

import (
	"strings"
	"unicode"
)

// Heuristic lexicons, spec §6. ASCII, case-insensitive. Greetings,
// farewells and topic shifters use substring match; context pronouns
// are matched against whole tokens.
var (
	greetings = []string{"hi", "hello", "hey", "good morning", "good afternoon"}
	farewells = []string{"bye", "goodbye", "see you", "thanks", "thank you"}
	topicShifters = []string{
		"by the way", "speaking of", "anyway", "also", "another thing",
		"changing topics", "different subject", "new topic",
	}
	contextPronouns = []string{"it", "that", "this", "they", "them", "what", "which", "where"}
)

func containsAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// topicShiftScore implements spec §4.2 step 1: 0.8 if any topic-shifter
// phrase is present, else 0.0. This is the reference heuristic path;
// spec §9 allows a semantic cosine-gap variant but requires it to
// reproduce this one's boundary conditions, so it is not implemented
// here to avoid two paths drifting apart.
func topicShiftScore(message string) float64 {
	if containsAny(strings.ToLower(message), topicShifters) {
		return 0.8
	}
	return 0.0
}

// conversationBoundaryScore implements spec §4.2 step 1: 0.9 for a
// farewell, 0.8 for a greeting (farewell checked first since "thanks"
// closing a message is a stronger boundary signal than an opening
// greeting appearing elsewhere in the same text), else 0.0.
func conversationBoundaryScore(message string) float64 {
	lower := strings.ToLower(message)
	if containsAny(lower, farewells) {
		return 0.9
	}
	if containsAny(lower, greetings) {
		return 0.8
	}
	return 0.0
}

// contextDependencyScore implements spec §4.2 step 1: count of
// pronoun/reference tokens divided by 5, clamped to [0,1].
func contextDependencyScore(message string) float64 {
	tokens := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	count := 0
	for _, tok := range tokens {
		for _, dep := range contextPronouns {
			if tok == dep {
				count++
				break
			}
		}
	}
	score := float64(count) / 5.0
	if score > 1.0 {
		return 1.0
	}
	return score
}

// urgencyScoreDefault is a reserved placeholder per spec §4.2 step 1 / §9: a
// constant 0.5 until a real urgency model is wired in.
const urgencyScoreDefault = 0.5
