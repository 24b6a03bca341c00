package extension

import "strings"

// TriggerMatch resolves input text to one extension action.
type TriggerMatch struct {
	ExtensionID string
	Action      string
	Handler     string
	Phrase      string
}

// Match scores for the two ways a phrase can hit the input.
const (
	scoreExact     = 2
	scoreSubstring = 1
)

// Matcher resolves free-form spoken or typed text against the voice triggers
// of every enabled extension.
type Matcher struct {
	registry *Registry
}

// NewMatcher creates a matcher over the given registry.
func NewMatcher(registry *Registry) *Matcher {
	return &Matcher{registry: registry}
}

// normalize lowercases text and trims surrounding punctuation and whitespace
// so "Dragon mode!" and "dragon mode" compare equal.
func normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = strings.Trim(text, ".,!?;:'\"")
	return strings.TrimSpace(text)
}

// Match finds the best-matching trigger for the input. An exact phrase match
// outranks substring containment. Ties break to the longest matching phrase,
// then to the earliest-scanned extension, then to declaration order within
// that extension, so the winner is deterministic for a given catalog and
// input. A miss returns ok=false; it is a legitimate negative, not an error,
// and callers fall back to general conversation handling.
func (m *Matcher) Match(input string) (*TriggerMatch, bool) {
	text := normalize(input)
	if text == "" {
		return nil, false
	}

	var (
		best      *TriggerMatch
		bestScore int
		bestLen   int
	)

	// Enabled() preserves scan order, so iterating in sequence and only
	// replacing on a strictly better candidate gives the tie-break for free.
	for _, ext := range m.registry.Enabled() {
		for _, trigger := range ext.Manifest.VoiceTriggers {
			for _, phrase := range trigger.Phrases {
				p := normalize(phrase)
				if p == "" {
					continue
				}

				score := 0
				switch {
				case text == p:
					score = scoreExact
				case strings.Contains(text, p):
					score = scoreSubstring
				default:
					continue
				}

				if score > bestScore || (score == bestScore && len(p) > bestLen) {
					best = &TriggerMatch{
						ExtensionID: ext.ID(),
						Action:      trigger.Action,
						Handler:     trigger.Handler,
						Phrase:      phrase,
					}
					bestScore = score
					bestLen = len(p)
				}
			}
		}
	}

	return best, best != nil
}
