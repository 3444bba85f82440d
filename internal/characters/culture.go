package characters

import (
	"strings"
	"unicode"
)

// DetectCulture estimates the cultural origin of a name from script ranges,
// surname tables, and keyword density in the surrounding text. Ties resolve
// to western.
func DetectCulture(name, context string) Culture {
	if c := cultureFromScript(name); c != "" {
		return c
	}

	scores := map[Culture]int{}

	// Romanized surname tables. The first word of a CJK-style name is the
	// surname; check the last word too for western-ordered romanizations.
	words := strings.Fields(strings.ToLower(strip(name)))
	t := mustTables()
	if len(words) > 0 {
		for _, culture := range []Culture{CultureChinese, CultureJapanese, CultureKorean} {
			if t.isSurname(culture, words[0]) {
				scores[culture] += 3
			}
			if len(words) > 1 && t.isSurname(culture, words[len(words)-1]) {
				scores[culture] += 2
			}
		}
	}

	// Contextual keyword density.
	lower := strings.ToLower(context)
	for culture, keywords := range t.CultureKeywords {
		for _, kw := range keywords {
			scores[culture] += strings.Count(lower, kw)
		}
	}

	best := CultureWestern
	bestScore := 0
	for _, culture := range []Culture{CultureChinese, CultureJapanese, CultureKorean} {
		if scores[culture] > bestScore {
			best = culture
			bestScore = scores[culture]
		}
	}
	return best
}

// cultureFromScript classifies by Unicode script. Kana is decisive for
// Japanese; Han alone reads as Chinese; Hangul as Korean.
func cultureFromScript(name string) Culture {
	var hasHan, hasKana, hasHangul bool
	for _, r := range name {
		switch {
		case unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			hasKana = true
		case unicode.Is(unicode.Han, r):
			hasHan = true
		case unicode.Is(unicode.Hangul, r):
			hasHangul = true
		}
	}
	switch {
	case hasKana:
		return CultureJapanese
	case hasHangul:
		return CultureKorean
	case hasHan:
		return CultureChinese
	}
	return ""
}

// strip removes honorific punctuation so surname lookups see bare words.
func strip(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '.' || r == ',' {
			return -1
		}
		return r
	}, name)
}
