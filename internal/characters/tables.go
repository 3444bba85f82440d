// Package characters recognizes character names in novel text and infers
// gender for each name from layered heuristic signals. All pattern data
// lives in tables.yaml so cultures and vocabularies are additive.
package characters

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var tablesYAML []byte

// Culture is a coarse classification of a name's likely provenance. It
// selects which pattern and title dictionaries apply.
type Culture string

const (
	CultureWestern  Culture = "western"
	CultureChinese  Culture = "chinese"
	CultureJapanese Culture = "japanese"
	CultureKorean   Culture = "korean"
)

// Gender is the inferred gender of a character.
type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderUnknown Gender = "unknown"
)

// TitleSet holds gendered titles/honorifics for one culture.
type TitleSet struct {
	Male   []string `yaml:"male"`
	Female []string `yaml:"female"`
}

// NamePatternSet holds gendered name affixes for one culture.
type NamePatternSet struct {
	MaleSuffixes   []string `yaml:"male_suffixes"`
	FemaleSuffixes []string `yaml:"female_suffixes"`
	MalePrefixes   []string `yaml:"male_prefixes"`
	FemalePrefixes []string `yaml:"female_prefixes"`
}

// GenderedWords is a generic male/female vocabulary pair.
type GenderedWords struct {
	Male   []string `yaml:"male"`
	Female []string `yaml:"female"`
}

// AppearanceSet holds appearance-trigger words plus gendered vocabulary.
type AppearanceSet struct {
	Triggers []string `yaml:"triggers"`
	Male     []string `yaml:"male"`
	Female   []string `yaml:"female"`
}

// Tables is the full rule-table set loaded from tables.yaml.
type Tables struct {
	Titles             map[Culture]TitleSet       `yaml:"titles"`
	NamePatterns       map[Culture]NamePatternSet `yaml:"name_patterns"`
	Relationships      GenderedWords              `yaml:"relationships"`
	Descriptions       GenderedWords              `yaml:"descriptions"`
	Appearance         AppearanceSet              `yaml:"appearance"`
	CulturalIndicators map[Culture]GenderedWords  `yaml:"cultural_indicators"`
	CultureKeywords    map[Culture][]string       `yaml:"culture_keywords"`
	Surnames           map[Culture][]string       `yaml:"surnames"`
	Honorifics         []string                   `yaml:"honorifics"`
	SpeechVerbs        []string                   `yaml:"speech_verbs"`
	SentenceStarters   []string                   `yaml:"sentence_starters"`
	Pronouns           []string                   `yaml:"pronouns"`
	Conjunctions       []string                   `yaml:"conjunctions"`

	// derived lookup sets, built once after load
	surnameSet   map[Culture]map[string]struct{}
	starterSet   map[string]struct{}
	pronounSet   map[string]struct{}
	honorificSet map[string]struct{}
}

var (
	tablesOnce sync.Once
	tables     *Tables
	tablesErr  error
)

// LoadTables parses the embedded rule tables. The result is cached; the
// tables are immutable after load.
func LoadTables() (*Tables, error) {
	tablesOnce.Do(func() {
		var t Tables
		if err := yaml.Unmarshal(tablesYAML, &t); err != nil {
			tablesErr = fmt.Errorf("failed to parse rule tables: %w", err)
			return
		}
		t.buildIndexes()
		tables = &t
	})
	return tables, tablesErr
}

// mustTables is for internal callers; the embedded tables are part of the
// binary, so a parse failure is a build defect.
func mustTables() *Tables {
	t, err := LoadTables()
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Tables) buildIndexes() {
	t.surnameSet = make(map[Culture]map[string]struct{}, len(t.Surnames))
	for culture, names := range t.Surnames {
		set := make(map[string]struct{}, len(names))
		for _, n := range names {
			set[n] = struct{}{}
		}
		t.surnameSet[culture] = set
	}

	t.starterSet = toSet(t.SentenceStarters)
	t.pronounSet = toSet(t.Pronouns)
	t.honorificSet = toSet(t.Honorifics)
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// isSurname reports whether word is a known surname of the given culture.
func (t *Tables) isSurname(culture Culture, word string) bool {
	_, ok := t.surnameSet[culture][word]
	return ok
}
