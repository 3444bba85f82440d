package characters

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Inference is the outcome of gender analysis for one name.
type Inference struct {
	Gender     Gender
	Confidence float64
	Evidence   []string
	Culture    Culture
}

const (
	titleConfidence = 0.95
	decisionFloor   = 3
	pronounWindow   = 200
	descWindow      = 100
	descTightWindow = 30
)

// Infer determines the gender of name from the surrounding text. When the
// existing map already carries a determination for the name it is returned
// verbatim. The signals run in strict priority order; titles are decisive,
// everything else accumulates integer points per side.
func Infer(name, text string, existing map[string]*Record) Inference {
	if utf8.RuneCountInString(name) <= 1 {
		return Inference{Gender: GenderUnknown}
	}

	if rec, ok := existing[name]; ok && rec.Gender != GenderUnknown {
		return Inference{
			Gender:     rec.Gender,
			Confidence: rec.Confidence,
			Evidence:   []string{"previously determined"},
			Culture:    rec.Culture,
		}
	}

	culture := DetectCulture(name, text)

	// 1. Titles are decisive.
	if g, ev := titleMatch(name, culture); g != GenderUnknown {
		return Inference{Gender: g, Confidence: titleConfidence, Evidence: []string{ev}, Culture: culture}
	}

	s := scorer{name: name, text: text, culture: culture}
	s.namePatterns()
	s.pronounContext()
	s.pronounInconsistency()
	s.relationships()
	s.descriptions()
	s.appearance()
	s.culturalIndicators()

	return s.decide()
}

// titleMatch checks the name against the gendered title dictionaries of
// the detected culture and the western fallback. Prefix, suffix, and
// embedded forms all count.
func titleMatch(name string, culture Culture) (Gender, string) {
	lower := strings.ToLower(name)
	t := mustTables()

	cultures := []Culture{culture}
	if culture != CultureWestern {
		cultures = append(cultures, CultureWestern)
	}

	for _, c := range cultures {
		set, ok := t.Titles[c]
		if !ok {
			continue
		}
		for _, title := range set.Male {
			if containsTitle(lower, title) {
				return GenderMale, fmt.Sprintf("title %q indicates male", title)
			}
		}
		for _, title := range set.Female {
			if containsTitle(lower, title) {
				return GenderFemale, fmt.Sprintf("title %q indicates female", title)
			}
		}
	}
	return GenderUnknown, ""
}

// containsTitle matches a title as prefix, suffix, or embedded whole word.
func containsTitle(lowerName, title string) bool {
	switch {
	case lowerName == title:
		return true
	case strings.HasPrefix(lowerName, title+" "), strings.HasPrefix(lowerName, title+". "):
		return true
	case strings.HasSuffix(lowerName, " "+title), strings.HasSuffix(lowerName, "-"+title):
		return true
	case strings.Contains(lowerName, " "+title+" "):
		return true
	}
	return false
}

// scorer accumulates integer points per side with ordered evidence.
type scorer struct {
	name    string
	text    string
	culture Culture

	male     int
	female   int
	evidence []string

	// populated by pronounContext for the inconsistency pass
	maleMentions   int
	femaleMentions int
	mixedWindows   int
	maleToFemale   int
	femaleToMale   int
}

func (s *scorer) add(g Gender, points int, format string, args ...any) {
	if g == GenderMale {
		s.male += points
	} else {
		s.female += points
	}
	s.evidence = append(s.evidence, fmt.Sprintf(format, args...))
}

// namePatterns scores gendered name affixes for the detected culture,
// falling back to western patterns when the culture yields nothing.
func (s *scorer) namePatterns() {
	t := mustTables()
	words := strings.Fields(strings.ToLower(strip(s.name)))
	if len(words) == 0 {
		return
	}
	given := words[len(words)-1]

	try := func(set NamePatternSet) bool {
		for _, suf := range set.MaleSuffixes {
			if strings.HasSuffix(given, suf) {
				s.add(GenderMale, 2, "name suffix %q suggests male", suf)
				return true
			}
		}
		for _, suf := range set.FemaleSuffixes {
			if strings.HasSuffix(given, suf) {
				s.add(GenderFemale, 2, "name suffix %q suggests female", suf)
				return true
			}
		}
		for _, pre := range set.MalePrefixes {
			if strings.HasPrefix(given, pre) {
				s.add(GenderMale, 2, "name prefix %q suggests male", pre)
				return true
			}
		}
		for _, pre := range set.FemalePrefixes {
			if strings.HasPrefix(given, pre) {
				s.add(GenderFemale, 2, "name prefix %q suggests female", pre)
				return true
			}
		}
		return false
	}

	if set, ok := t.NamePatterns[s.culture]; ok && try(set) {
		return
	}
	if s.culture != CultureWestern {
		if set, ok := t.NamePatterns[CultureWestern]; ok {
			try(set)
		}
	}
}

var (
	malePronounRe   = regexp.MustCompile(`(?i)\b(he|him|his)\b`)
	femalePronounRe = regexp.MustCompile(`(?i)\b(she|her|hers)\b`)
)

// pronounContext counts gendered pronouns in the 200 characters following
// each mention of the name. The dominant side earns min(4, count) points;
// a direct name-to-pronoun co-occurrence inside one window earns a 2-point
// bonus for the matching side.
func (s *scorer) pronounContext() {
	var directMale, directFemale bool

	for _, window := range s.mentionWindows(pronounWindow) {
		m := len(malePronounRe.FindAllString(window, -1))
		f := len(femalePronounRe.FindAllString(window, -1))
		s.maleMentions += m
		s.femaleMentions += f

		if m > 0 && f > 0 {
			s.mixedWindows++
			if malePronounRe.FindStringIndex(window)[0] < femalePronounRe.FindStringIndex(window)[0] {
				s.maleToFemale++
			} else {
				s.femaleToMale++
			}
		}

		// Direct co-occurrence: the possessive right after the mention.
		head := window
		if len(head) > 50 {
			head = head[:50]
		}
		if regexp.MustCompile(`(?i)\bhis\b`).MatchString(head) {
			directMale = true
		}
		if regexp.MustCompile(`(?i)\bher\b`).MatchString(head) {
			directFemale = true
		}
	}

	switch {
	case s.maleMentions > s.femaleMentions:
		pts := s.maleMentions
		if pts > 4 {
			pts = 4
		}
		s.add(GenderMale, pts, "male pronouns dominate near mentions (%d vs %d)", s.maleMentions, s.femaleMentions)
	case s.femaleMentions > s.maleMentions:
		pts := s.femaleMentions
		if pts > 4 {
			pts = 4
		}
		s.add(GenderFemale, pts, "female pronouns dominate near mentions (%d vs %d)", s.femaleMentions, s.maleMentions)
	}

	if directMale && !directFemale {
		s.add(GenderMale, 2, "direct %q-pronoun co-occurrence", "his")
	} else if directFemale && !directMale {
		s.add(GenderFemale, 2, "direct %q-pronoun co-occurrence", "her")
	}
}

// pronounInconsistency counteracts translation-induced pronoun drift. When
// at least two mention windows mix both pronoun families, a 4-point
// correction goes to whichever side dominates by more than 2x — either in
// aggregate counts or in directional switch patterns.
func (s *scorer) pronounInconsistency() {
	if s.mixedWindows < 2 {
		return
	}

	if s.maleMentions > 2*s.femaleMentions && s.femaleMentions > 0 {
		s.add(GenderMale, 4, "pronoun inconsistency detected; male usage dominates %d:%d, correcting", s.maleMentions, s.femaleMentions)
		return
	}
	if s.femaleMentions > 2*s.maleMentions && s.maleMentions > 0 {
		s.add(GenderFemale, 4, "pronoun inconsistency detected; female usage dominates %d:%d, correcting", s.femaleMentions, s.maleMentions)
		return
	}

	if s.femaleToMale > 2*s.maleToFemale && s.femaleToMale > 0 {
		s.add(GenderMale, 4, "pronoun switches trend female-to-male (%d vs %d), correcting toward male", s.femaleToMale, s.maleToFemale)
	} else if s.maleToFemale > 2*s.femaleToMale && s.maleToFemale > 0 {
		s.add(GenderFemale, 4, "pronoun switches trend male-to-female (%d vs %d), correcting toward female", s.maleToFemale, s.femaleToMale)
	}
}

// spouseInversion maps possessive spouse terms to the gender they imply
// for the possessor.
var spouseInversion = map[string]Gender{
	"wife":       GenderMale,
	"husband":    GenderFemale,
	"girlfriend": GenderMale,
	"boyfriend":  GenderFemale,
}

// relationships scores copula phrases ("<name> was the father ...") and
// possessive spouse phrases ("<name>'s wife"). First match per side.
func (s *scorer) relationships() {
	t := mustTables()
	nameLower := strings.ToLower(s.name)
	var maleDone, femaleDone bool

	for _, sentence := range splitOnTerminators(s.text) {
		lower := strings.ToLower(sentence)
		nameIdx := strings.Index(lower, nameLower)
		if nameIdx < 0 {
			continue
		}
		tail := strings.Fields(lower[nameIdx+len(nameLower):])
		copulaSeen := false
		for i, word := range tail {
			switch word {
			case "was", "is", "became", "being":
				copulaSeen = true
				continue
			}
			if !copulaSeen || i > 8 {
				continue
			}
			word = strings.Trim(word, ",;'\"“”’")
			if !maleDone && contains(t.Relationships.Male, word) {
				s.add(GenderMale, 3, "relationship phrase %q indicates male", word)
				maleDone = true
			}
			if !femaleDone && contains(t.Relationships.Female, word) {
				s.add(GenderFemale, 3, "relationship phrase %q indicates female", word)
				femaleDone = true
			}
		}
	}

	possessive := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(s.name) + `['’]s\s+(wife|husband|girlfriend|boyfriend)\b`)
	for _, m := range possessive.FindAllStringSubmatch(s.text, 5) {
		g := spouseInversion[strings.ToLower(m[1])]
		if g == GenderMale && !maleDone {
			s.add(GenderMale, 3, "possessive %q implies male", m[1])
			maleDone = true
		} else if g == GenderFemale && !femaleDone {
			s.add(GenderFemale, 3, "possessive %q implies female", m[1])
			femaleDone = true
		}
	}
}

// descriptions scores appearance adjectives near the name: 2 points when
// tightly bound (within 30 chars), 1 point when merely nearby (100 chars).
func (s *scorer) descriptions() {
	t := mustTables()
	lower := strings.ToLower(s.text)
	nameLower := strings.ToLower(s.name)

	score := func(words []string, g Gender) {
		best := 0
		bestWord := ""
		for _, w := range words {
			d := proximity(lower, nameLower, w)
			if d < 0 {
				continue
			}
			if d <= descTightWindow && best < 2 {
				best, bestWord = 2, w
			} else if d <= descWindow && best < 1 {
				best, bestWord = 1, w
			}
		}
		if best > 0 {
			s.add(g, best, "description %q near name", bestWord)
		}
	}

	score(t.Descriptions.Male, GenderMale)
	score(t.Descriptions.Female, GenderFemale)
}

// appearance scores gendered appearance vocabulary, but only inside
// sentences that both mention the name and contain a trigger word.
func (s *scorer) appearance() {
	t := mustTables()
	nameLower := strings.ToLower(s.name)

	for _, sentence := range splitOnTerminators(s.text) {
		lower := strings.ToLower(sentence)
		if !strings.Contains(lower, nameLower) {
			continue
		}
		triggered := false
		for _, trig := range t.Appearance.Triggers {
			if strings.Contains(lower, trig) {
				triggered = true
				break
			}
		}
		if !triggered {
			continue
		}
		for _, term := range t.Appearance.Male {
			if strings.Contains(lower, term) {
				s.add(GenderMale, 2, "appearance term %q", term)
			}
		}
		for _, term := range t.Appearance.Female {
			if strings.Contains(lower, term) {
				s.add(GenderFemale, 2, "appearance term %q", term)
			}
		}
	}
}

// culturalIndicators scores culture-specific honorific usage: an exact
// name-honorific combination earns 3 points, a loose nearby occurrence 1.
func (s *scorer) culturalIndicators() {
	t := mustTables()
	set, ok := t.CulturalIndicators[s.culture]
	if !ok {
		return
	}
	lower := strings.ToLower(s.text)
	nameLower := strings.ToLower(s.name)

	score := func(terms []string, g Gender) {
		for _, term := range terms {
			if strings.Contains(lower, nameLower+" "+term) || strings.Contains(lower, nameLower+"-"+term) ||
				strings.Contains(lower, term+" "+nameLower) {
				s.add(g, 3, "honorific combination %q with name", term)
				return
			}
		}
		for _, term := range terms {
			if d := proximity(lower, nameLower, term); d >= 0 && d <= descWindow {
				s.add(g, 1, "cultural indicator %q near name", term)
				return
			}
		}
	}

	score(set.Male, GenderMale)
	score(set.Female, GenderFemale)
}

// decide applies the final threshold: the winning side must strictly
// exceed the other and carry at least 3 points.
func (s *scorer) decide() Inference {
	diff := s.male - s.female
	if diff < 0 {
		diff = -diff
	}
	confidence := 0.5 + 0.05*float64(diff)
	if confidence > 0.9 {
		confidence = 0.9
	}

	switch {
	case s.male > s.female && s.male >= decisionFloor:
		return Inference{Gender: GenderMale, Confidence: confidence, Evidence: s.evidence, Culture: s.culture}
	case s.female > s.male && s.female >= decisionFloor:
		return Inference{Gender: GenderFemale, Confidence: confidence, Evidence: s.evidence, Culture: s.culture}
	}
	return Inference{Gender: GenderUnknown, Confidence: 0, Evidence: s.evidence, Culture: s.culture}
}

// mentionWindows returns the size-character windows following each mention
// of the name in the text.
func (s *scorer) mentionWindows(size int) []string {
	var windows []string
	lower := strings.ToLower(s.text)
	nameLower := strings.ToLower(s.name)

	for from := 0; ; {
		idx := strings.Index(lower[from:], nameLower)
		if idx < 0 {
			break
		}
		start := from + idx + len(nameLower)
		end := start + size
		if end > len(s.text) {
			end = len(s.text)
		}
		windows = append(windows, s.text[start:end])
		from = start
		if len(windows) >= 50 {
			break
		}
	}
	return windows
}

// proximity returns the distance in bytes between the nearest occurrences
// of name and word, or -1 when either is absent.
func proximity(lowerText, lowerName, word string) int {
	nameIdx := strings.Index(lowerText, lowerName)
	if nameIdx < 0 {
		return -1
	}
	best := -1
	for from := 0; ; {
		idx := strings.Index(lowerText[from:], word)
		if idx < 0 {
			break
		}
		abs := from + idx
		d := abs - (nameIdx + len(lowerName))
		if d < 0 {
			d = nameIdx - (abs + len(word))
		}
		if d < 0 {
			d = 0
		}
		if best < 0 || d < best {
			best = d
		}
		from = abs + len(word)
	}
	return best
}

func splitOnTerminators(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case '.', '!', '?', '。', '！', '？', '\n':
			return true
		}
		return false
	})
}

func contains(words []string, w string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}
