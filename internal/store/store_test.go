package store

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/webnovel-tools/enhancer/internal/characters"
	"github.com/webnovel-tools/enhancer/internal/home"
)

func newTestStore(t *testing.T, budget int64) *Store {
	t.Helper()
	dir, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New: %v", err)
	}
	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists: %v", err)
	}
	return New(dir, nil, budget)
}

func TestCharacters_RoundTrip(t *testing.T) {
	s := newTestStore(t, 0)

	chars := map[string]characters.Record{
		"Li Hua": {Name: "Li Hua", Gender: characters.GenderFemale, Confidence: 0.8, Appearances: 4},
	}
	if err := s.SaveCharacters("novel-1", chars); err != nil {
		t.Fatalf("SaveCharacters: %v", err)
	}

	got, err := s.LoadCharacters("novel-1")
	if err != nil {
		t.Fatalf("LoadCharacters: %v", err)
	}
	rec, ok := got["Li Hua"]
	if !ok {
		t.Fatalf("character not persisted: %v", got)
	}
	if rec.Gender != characters.GenderFemale || rec.Appearances != 4 {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestCharacters_MissingFileYieldsEmptyMap(t *testing.T) {
	s := newTestStore(t, 0)

	got, err := s.LoadCharacters("never-seen")
	if err != nil {
		t.Fatalf("LoadCharacters: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty map, got %v", got)
	}
}

func TestEnhanced_RoundTrip(t *testing.T) {
	s := newTestStore(t, 0)

	units := map[string]EnhancedUnit{
		"abc": {Key: "abc", Index: 0, Text: "Enhanced.", UpdatedAt: time.Now()},
	}
	if err := s.SaveEnhanced("novel-1", units); err != nil {
		t.Fatalf("SaveEnhanced: %v", err)
	}

	got, err := s.LoadEnhanced("novel-1")
	if err != nil {
		t.Fatalf("LoadEnhanced: %v", err)
	}
	if got["abc"].Text != "Enhanced." || got["abc"].Index != 0 {
		t.Errorf("unexpected unit %+v", got["abc"])
	}
}

func TestPrune_RemovesLeastPopulated(t *testing.T) {
	s := newTestStore(t, 2048)

	big := strings.Repeat("x", 1500)

	// novel-rich has many characters, novel-poor has none.
	rich := make(map[string]characters.Record)
	for _, name := range []string{"Ana", "Ben", "Cal"} {
		rich[name] = characters.Record{Name: name, Appearances: 5}
	}
	if err := s.SaveCharacters("novel-rich", rich); err != nil {
		t.Fatalf("SaveCharacters: %v", err)
	}
	if err := s.SaveEnhanced("novel-rich", map[string]EnhancedUnit{"k": {Key: "k", Text: big}}); err != nil {
		t.Fatalf("SaveEnhanced: %v", err)
	}

	// Writing the second novel pushes total past the budget.
	if err := s.SaveEnhanced("novel-poor", map[string]EnhancedUnit{"k": {Key: "k", Text: big}}); err != nil {
		t.Fatalf("SaveEnhanced: %v", err)
	}

	if _, err := os.Stat(s.dir.NovelDir("novel-poor")); err != nil {
		t.Fatalf("the novel just written must survive pruning: %v", err)
	}
	if _, err := os.Stat(s.dir.NovelDir("novel-rich")); !os.IsNotExist(err) {
		t.Errorf("expected the other novel pruned to fit the budget, err=%v", err)
	}
}

func TestPrune_NoopUnderBudget(t *testing.T) {
	s := newTestStore(t, 0) // default 100KB

	if err := s.SaveEnhanced("novel-1", map[string]EnhancedUnit{"k": {Key: "k", Text: "short"}}); err != nil {
		t.Fatalf("SaveEnhanced: %v", err)
	}
	if _, err := os.Stat(s.dir.NovelDir("novel-1")); err != nil {
		t.Errorf("novel under budget must not be pruned: %v", err)
	}
}
