package digest

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// MatchAll is the sentinel keyword that matches every item.
const MatchAll = "*"

// KeywordSet holds the validated match terms. It is immutable once built:
// terms are trimmed, case-folded, and deduplicated preserving first-seen
// order.
type KeywordSet struct {
	terms    []string
	matchAll bool
}

// ParseKeywords validates the raw keyword list from the configuration.
// The list must contain at least one entry, entries must be non-empty
// after trimming, and the MatchAll sentinel may appear anywhere in the
// list.
func ParseKeywords(raw []string) (KeywordSet, error) {
	if len(raw) == 0 {
		return KeywordSet{}, fmt.Errorf("at least one keyword is required")
	}

	var set KeywordSet
	seen := make(map[string]bool, len(raw))

	for i, entry := range raw {
		trimmed := strings.TrimSpace(entry)
		if trimmed == "" {
			return KeywordSet{}, fmt.Errorf("keyword #%d is empty", i+1)
		}

		if trimmed == MatchAll {
			set.matchAll = true
			continue
		}

		term := fold(trimmed)
		if seen[term] {
			continue
		}
		seen[term] = true
		set.terms = append(set.terms, term)
	}

	return set, nil
}

// Match reports which terms occur in text, in set order. Under the
// MatchAll sentinel an item that matches no named term still matches,
// reported as the sentinel itself.
func (k KeywordSet) Match(text string) []string {
	folded := fold(text)

	var matched []string
	for _, term := range k.terms {
		if strings.Contains(folded, term) {
			matched = append(matched, term)
		}
	}

	if matched == nil && k.matchAll {
		matched = []string{MatchAll}
	}

	return matched
}

// MatchesAll reports whether the set carries the MatchAll sentinel.
func (k KeywordSet) MatchesAll() bool {
	return k.matchAll
}

// Terms returns a copy of the folded match terms in first-seen order.
func (k KeywordSet) Terms() []string {
	out := make([]string, len(k.terms))
	copy(out, k.terms)
	return out
}

func (k KeywordSet) Len() int {
	return len(k.terms)
}

// cases.Fold returns a stateful Caser, so build one per call rather than
// sharing an instance across goroutines.
func fold(s string) string {
	return cases.Fold().String(s)
}
