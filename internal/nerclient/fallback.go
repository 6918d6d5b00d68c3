package nerclient

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/tsawler/prose/v3"
)

// FallbackExtractor performs local entity extraction when the remote
// NER service is unavailable. It prefers prose's statistical NER
// (grounded on the teacher's memory-service/pkg/extract/prose.go) and
// falls back further to the teacher's regex/capitalization heuristics
// (memory-service/pkg/extract/fast.go) for the entity types prose
// doesn't tag well (mentions, relative times).
type FallbackExtractor struct {
	patterns map[string][]*regexp.Regexp
}

// NewFallbackExtractor builds the heuristic extractor.
func NewFallbackExtractor() *FallbackExtractor {
	e := &FallbackExtractor{patterns: make(map[string][]*regexp.Regexp)}

	e.patterns["PERSON"] = compilePatterns([]string{
		`@(\w+)`,
		`(?:my |the )?(?:friend|colleague|boss|manager|wife|husband|partner) (\w+)`,
	})

	e.patterns["TIME"] = compilePatterns([]string{
		`\b(\d{1,2}:\d{2}(?:\s*[ap]m)?)\b`,
		`\b(\d{1,2}/\d{1,2}(?:/\d{2,4})?)\b`,
		`\b(\d{4}-\d{2}-\d{2})\b`,
		`\b(today|tomorrow|yesterday|next week|last week)\b`,
		`\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`,
	})

	e.patterns["GPE"] = compilePatterns([]string{
		`(?:at|in|to) (?:the )?(\w+ (?:office|building|room|cafe|restaurant|store))`,
	})

	return e
}

func compilePatterns(patterns []string) []*regexp.Regexp {
	result := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile("(?i)" + p); err == nil {
			result = append(result, re)
		}
	}
	return result
}

var proseToSpecType = map[string]string{
	"PERSON":  "PERSON",
	"ORG":     "ORG",
	"GPE":     "GPE",
	"LOC":     "GPE",
	"FAC":     "GPE",
	"PRODUCT": "PRODUCT",
	"EVENT":   "EVENT",
	"DATE":    "TIME",
	"TIME":    "TIME",
}

// Extract returns a best-effort entity map, deduplicated per type while
// preserving first-seen order, matching spec §4.3 step 4d's ordering
// requirement for the thread-context builder's union across messages.
func (f *FallbackExtractor) Extract(text string) map[string][]string {
	result := make(map[string][]string)
	seen := make(map[string]map[string]bool)

	add := func(entType, name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if seen[entType] == nil {
			seen[entType] = make(map[string]bool)
		}
		key := strings.ToLower(name)
		if seen[entType][key] {
			return
		}
		seen[entType][key] = true
		result[entType] = append(result[entType], name)
	}

	if doc, err := prose.NewDocument(text); err == nil {
		for _, ent := range doc.Entities() {
			specType, ok := proseToSpecType[strings.ToUpper(ent.Label)]
			if !ok {
				specType = "OTHER"
			}
			add(specType, ent.Text)
		}
	}

	for entType, patterns := range f.patterns {
		for _, re := range patterns {
			for _, match := range re.FindAllStringSubmatch(text, -1) {
				if len(match) >= 2 {
					add(entType, match[1])
				}
			}
		}
	}

	for _, name := range extractCapitalized(text) {
		add("OTHER", name)
	}

	return result
}

// extractCapitalized finds capitalized mid-sentence words that might be
// proper nouns prose's statistical model missed (e.g. unusual names).
func extractCapitalized(text string) []string {
	var names []string
	words := strings.Fields(text)

	skip := map[string]bool{
		"I": true, "The": true, "A": true, "An": true, "This": true, "That": true,
		"It": true, "Is": true, "Are": true, "Was": true, "Were": true,
		"He": true, "She": true, "They": true, "We": true, "You": true,
		"My": true, "Your": true, "His": true, "Her": true, "Its": true,
		"What": true, "When": true, "Where": true, "Who": true, "Why": true, "How": true,
		"But": true, "And": true, "Or": true, "So": true, "If": true, "Then": true,
		"Yes": true, "No": true, "Ok": true, "Sure": true, "Thanks": true,
		"Hello": true, "Hi": true, "Hey": true, "Bye": true,
	}

	for i, word := range words {
		clean := strings.Trim(word, ".,!?;:'\"()[]{}@#")
		if clean == "" || skip[clean] {
			continue
		}
		runes := []rune(clean)
		if len(runes) > 1 && unicode.IsUpper(runes[0]) && unicode.IsLower(runes[1]) {
			if i > 0 && !strings.HasSuffix(words[i-1], ".") && !strings.HasSuffix(words[i-1], "!") && !strings.HasSuffix(words[i-1], "?") {
				names = append(names, clean)
			}
		}
	}

	return names
}
