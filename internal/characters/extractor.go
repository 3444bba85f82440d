package characters

import (
	"regexp"
	"strings"
	"sync"
)

// Scan cost bounds for pathological input.
const (
	maxScanChars    = 100000
	maxTotalMatches = 1000
	maxPerPattern   = 200
	maxNameLength   = 30
)

// namePattern is one compiled extraction rule. capture selects the
// submatch holding the candidate name; 0 keeps the whole match (used by
// honorific patterns where the honorific is part of the name).
type namePattern struct {
	name    string
	re      *regexp.Regexp
	capture int
}

var (
	patternsOnce sync.Once
	patterns     []namePattern
)

// nameShape matches one to three capitalized words with optional
// apostrophes and hyphens.
const nameShape = `[A-Z][\p{L}'\-]*(?:[ ][A-Z][\p{L}'\-]*){0,2}`

func extractionPatterns() []namePattern {
	patternsOnce.Do(func() {
		verbs := strings.Join(mustTables().SpeechVerbs, "|")
		patterns = []namePattern{
			{
				name:    "speech-verb",
				re:      regexp.MustCompile(`(` + nameShape + `)[ ](?:` + verbs + `)\b`),
				capture: 1,
			},
			{
				name:    "quote-attribution",
				re:      regexp.MustCompile(`["”][, ]*\s*(?:` + verbs + `)[ ](` + nameShape + `)`),
				capture: 1,
			},
			{
				name:    "colon-dialogue",
				re:      regexp.MustCompile(`(?m)^\s*(` + nameShape + `)\s*[:：]`),
				capture: 1,
			},
			{
				name:    "possessive-body",
				re:      regexp.MustCompile(`(` + nameShape + `)['’]s[ ](?:eyes|face|hands?|hair|voice|lips|heart|head|shoulders?|body|gaze|expression|brow|cheeks?)\b`),
				capture: 1,
			},
			{
				name:    "honorific",
				re:      regexp.MustCompile(`\b((?:Mr|Mrs|Ms|Miss|Dr|Sir|Lady|Lord|Master|Madam)\.?[ ][A-Z][\p{L}'\-]*)`),
				capture: 1,
			},
			{
				name:    "culture-prefix",
				re:      regexp.MustCompile(`\b((?:Young Master|Young Miss|Fairy|Elder|Senior Brother|Senior Sister|Junior Brother|Junior Sister|Prince|Princess)[ ][A-Z][\p{L}'\-]*)`),
				capture: 1,
			},
		}
	})
	return patterns
}

// Extract scans text for character names and returns a map keyed by name
// with appearance counts. Gender is left unknown; callers run inference
// separately. Input beyond the scan cap is ignored.
func Extract(text string) map[string]*Record {
	if len(text) > maxScanChars {
		text = text[:maxScanChars]
	}

	found := make(map[string]*Record)
	total := 0

	for _, p := range extractionPatterns() {
		if total >= maxTotalMatches {
			break
		}
		matches := p.re.FindAllStringSubmatch(text, maxPerPattern)
		for _, m := range matches {
			if total >= maxTotalMatches {
				break
			}
			total++

			candidate := strings.TrimSpace(m[p.capture])
			if !ValidName(candidate) {
				continue
			}
			if rec, ok := found[candidate]; ok {
				rec.Appearances++
			} else {
				found[candidate] = &Record{
					Name:        candidate,
					Gender:      GenderUnknown,
					Appearances: 1,
				}
			}
		}
	}

	cleanup(found)
	return found
}

// ValidName applies the shape and stoplist filter to a candidate name.
func ValidName(candidate string) bool {
	if candidate == "" || len(candidate) > maxNameLength {
		return false
	}
	if strings.ContainsAny(candidate, ".!?。！？\n") && !isHonorificForm(candidate) {
		return false
	}

	t := mustTables()
	lower := strings.ToLower(candidate)

	for _, conj := range t.Conjunctions {
		if strings.Contains(" "+lower+" ", conj) {
			return false
		}
	}
	if _, ok := t.pronounSet[lower]; ok {
		return false
	}

	words := strings.Fields(candidate)
	if len(words) == 0 || len(words) > 3 {
		return false
	}
	if _, ok := t.starterSet[strings.ToLower(words[0])]; ok && !isHonorificForm(candidate) {
		return false
	}

	if isHonorificForm(candidate) {
		return true
	}
	for _, w := range words {
		if !isCapitalizedWord(w) {
			return false
		}
	}
	return true
}

// isHonorificForm reports whether the candidate is honorific+name, e.g.
// "Mr. Chen" or "Young Master Ye".
func isHonorificForm(candidate string) bool {
	lower := strings.ToLower(candidate)
	t := mustTables()
	for h := range t.honorificSet {
		if strings.HasPrefix(lower, h+" ") || strings.HasPrefix(lower, h+". ") {
			rest := strings.TrimSpace(candidate[min(len(candidate), len(h)):])
			rest = strings.TrimPrefix(rest, ".")
			rest = strings.TrimSpace(rest)
			if rest != "" && isCapitalizedWord(strings.Fields(rest)[0]) {
				return true
			}
		}
	}
	return false
}

func isCapitalizedWord(w string) bool {
	r := []rune(w)
	if len(r) == 0 {
		return false
	}
	return r[0] >= 'A' && r[0] <= 'Z' || r[0] >= 0x4E00
}

// cleanup drops entries that slipped through with embedded punctuation.
func cleanup(found map[string]*Record) {
	for name := range found {
		trimmed := strings.TrimSuffix(name, ".")
		if strings.ContainsAny(trimmed, `,:;"()[]{}<>/\|`) {
			delete(found, name)
		}
	}
}
