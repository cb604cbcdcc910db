package digest

import (
	"cmp"
	"fmt"
	"strings"
	"time"
)

// EmptyBody is rendered when a period produced no matched items. The
// digest is still sent: an empty week is a valid outcome, not a failure.
const EmptyBody = "No matches this period.\n"

// Builder renders the weekly digest for a single recipient. Rendering is
// deterministic: the same item sequence always yields byte-identical
// subject and body, so a retried send never delivers a different digest.
type Builder struct {
	recipient string
}

func NewBuilder(recipient string) *Builder {
	return &Builder{recipient: recipient}
}

// Run renders the digest for one period. Items without matched keywords
// are dropped, duplicates (by ID, falling back to link) keep the first
// occurrence, and the incoming order is preserved.
func (b *Builder) Run(periodKey string, items []Item) Message {
	seen := make(map[string]bool, len(items))
	kept := make([]Item, 0, len(items))

	for _, item := range items {
		if len(item.MatchedKeywords) == 0 {
			continue
		}

		key := cmp.Or(item.ID, item.Link)
		if key != "" {
			if seen[key] {
				continue
			}
			seen[key] = true
		}

		kept = append(kept, item)
	}

	return Message{
		Recipient: b.recipient,
		Subject:   fmt.Sprintf("Paper digest %s (%d items)", periodKey, len(kept)),
		Body:      renderBody(kept),
		ItemCount: len(kept),
		BuiltAt:   time.Now(),
	}
}

func renderBody(items []Item) string {
	if len(items) == 0 {
		return EmptyBody
	}

	var buf strings.Builder
	for _, item := range items {
		buf.WriteString("- ")
		buf.WriteString(item.Title)
		if item.Source != "" {
			buf.WriteString(" (")
			buf.WriteString(item.Source)
			buf.WriteString(")")
		}
		if item.Link != "" {
			buf.WriteString(": ")
			buf.WriteString(item.Link)
		}
		buf.WriteString("\n")

		if item.Summary != "" {
			buf.WriteString("  ")
			buf.WriteString(item.Summary)
			buf.WriteString("\n")
		}
	}

	return buf.String()
}
