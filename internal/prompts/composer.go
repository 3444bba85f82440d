// Package prompts assembles the enhancement instruction document sent to
// the model. Field ordering and the rule set are fixed so that identical
// inputs always produce byte-identical prompts; the gateway's cache keys
// depend on that stability.
package prompts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/webnovel-tools/enhancer/internal/characters"
	"github.com/webnovel-tools/enhancer/internal/chunker"
)

// Roster bounds: only the most frequently appearing characters are worth
// the prompt tokens.
const (
	minRosterSize = 10
	maxRosterSize = 15
)

// rules is the fixed instruction set. Order matters: it is part of the
// prompt's byte identity.
var rules = []string{
	"Preserve every character name exactly as written; never rename or romanize differently.",
	"Fix pronoun usage to match the character roster above; correct he/she mix-ups.",
	"Do not invent plot, dialogue, or details that are not in the original text.",
	"Keep the paragraph breaks of the original text.",
	"Output only the rewritten text; no commentary, notes, or explanations.",
	"Translate any stray untranslated foreign words into natural English.",
}

// Composer builds enhancement prompts from a style profile and character
// roster.
type Composer struct {
	style  StyleInfo
	roster []characters.Record
}

// NewComposer creates a composer. The roster is sorted by appearance count
// (ties broken by name) and truncated to the prompt budget.
func NewComposer(style StyleInfo, roster map[string]*characters.Record) *Composer {
	sorted := make([]characters.Record, 0, len(roster))
	for _, rec := range roster {
		sorted = append(sorted, *rec)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Appearances != sorted[j].Appearances {
			return sorted[i].Appearances > sorted[j].Appearances
		}
		return sorted[i].Name < sorted[j].Name
	})

	// Always carry the top ten; fill up to fifteen with characters that
	// have appeared more than once.
	limit := 0
	for i, rec := range sorted {
		if i >= maxRosterSize {
			break
		}
		if i >= minRosterSize && rec.Appearances < 2 {
			break
		}
		limit++
	}

	return &Composer{style: style, roster: sorted[:limit]}
}

// Compose renders the full instruction document for one chunk.
func (c *Composer) Compose(chunk chunker.Chunk, note chunker.ContextNote) string {
	var b strings.Builder

	b.WriteString("You are polishing a machine-translated web novel chapter. Rewrite the passage below into fluent, natural English while preserving its meaning.\n\n")

	fmt.Fprintf(&b, "Style: %s\nTone: %s\n\n", c.style.Style, c.style.Tone)

	if len(c.roster) > 0 {
		b.WriteString("Characters:\n")
		for _, rec := range c.roster {
			fmt.Fprintf(&b, "- %s: %s (use %s)\n", rec.Name, rec.Gender, pronounsFor(rec.Gender))
		}
		b.WriteByte('\n')
	}

	if !note.Empty() {
		b.WriteString("Continuity:\n")
		b.WriteString(note.String())
		b.WriteString("\n\n")
	}

	b.WriteString("Rules:\n")
	for i, rule := range rules {
		fmt.Fprintf(&b, "%d. %s\n", i+1, rule)
	}
	b.WriteByte('\n')

	b.WriteString("Text:\n")
	b.WriteString(chunk.Text)

	return b.String()
}

func pronounsFor(g characters.Gender) string {
	switch g {
	case characters.GenderMale:
		return "he/him/his"
	case characters.GenderFemale:
		return "she/her/hers"
	}
	return "they/them/their"
}
