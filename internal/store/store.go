// Package store persists per-novel state under the enhancer home
// directory: the accumulated character map and the enhanced sections.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/webnovel-tools/enhancer/internal/characters"
	"github.com/webnovel-tools/enhancer/internal/home"
)

// DefaultBudget caps total on-disk novel state before pruning kicks in.
const DefaultBudget = 100 * 1024

// EnhancedUnit is one persisted enhancement result.
type EnhancedUnit struct {
	Key       string    `json:"key"` // gateway cache key
	Index     int       `json:"index"`
	Text      string    `json:"text"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store reads and writes per-novel JSON state. Writes go through a temp
// file and rename so readers never see a partial file.
type Store struct {
	dir    *home.Dir
	logger *slog.Logger
	budget int64

	mu sync.Mutex
}

// New creates a Store rooted at dir. A zero budget uses DefaultBudget.
func New(dir *home.Dir, logger *slog.Logger, budget int64) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Store{dir: dir, logger: logger, budget: budget}
}

// LoadCharacters returns the character map for a novel. A missing file
// yields an empty map.
func (s *Store) LoadCharacters(novelID string) (map[string]characters.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]characters.Record)
	if err := readJSON(s.dir.CharactersPath(novelID), &out); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return out, nil
		}
		return nil, fmt.Errorf("failed to load characters for %s: %w", novelID, err)
	}
	return out, nil
}

// SaveCharacters writes the character map for a novel.
func (s *Store) SaveCharacters(novelID string, chars map[string]characters.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.dir.EnsureNovelDir(novelID); err != nil {
		return fmt.Errorf("failed to create novel directory: %w", err)
	}
	if err := writeJSON(s.dir.CharactersPath(novelID), chars); err != nil {
		return fmt.Errorf("failed to save characters for %s: %w", novelID, err)
	}
	return nil
}

// LoadEnhanced returns the persisted enhancement units for a novel keyed
// by cache key. A missing file yields an empty map.
func (s *Store) LoadEnhanced(novelID string) (map[string]EnhancedUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]EnhancedUnit)
	if err := readJSON(s.dir.EnhancedPath(novelID), &out); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return out, nil
		}
		return nil, fmt.Errorf("failed to load enhanced sections for %s: %w", novelID, err)
	}
	return out, nil
}

// SaveEnhanced writes the enhancement units for a novel and then applies
// the size budget across all novels.
func (s *Store) SaveEnhanced(novelID string, units map[string]EnhancedUnit) error {
	s.mu.Lock()
	if err := s.dir.EnsureNovelDir(novelID); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to create novel directory: %w", err)
	}
	if err := writeJSON(s.dir.EnhancedPath(novelID), units); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to save enhanced sections for %s: %w", novelID, err)
	}
	s.mu.Unlock()

	return s.Prune(novelID)
}

// novelUsage summarizes one novel's footprint for pruning.
type novelUsage struct {
	id         string
	size       int64
	characters int
}

// Prune removes the least-populated novels until total state fits the
// budget. The novel named by keep is never removed.
func (s *Store) Prune(keep string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir.NovelsPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to scan novels directory: %w", err)
	}

	var usages []novelUsage
	var total int64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		u := novelUsage{id: e.Name()}
		u.size = dirSize(s.dir.NovelDir(u.id))
		u.characters = characterCount(s.dir.CharactersPath(u.id))
		total += u.size
		usages = append(usages, u)
	}
	if total <= s.budget {
		return nil
	}

	// Fewest characters go first; ties fall to the larger footprint.
	sort.Slice(usages, func(i, j int) bool {
		if usages[i].characters != usages[j].characters {
			return usages[i].characters < usages[j].characters
		}
		return usages[i].size > usages[j].size
	})

	for _, u := range usages {
		if total <= s.budget {
			break
		}
		if u.id == keep {
			continue
		}
		if err := os.RemoveAll(s.dir.NovelDir(u.id)); err != nil {
			return fmt.Errorf("failed to prune novel %s: %w", u.id, err)
		}
		total -= u.size
		s.logger.Info("pruned novel state", "novel", u.id, "freed_bytes", u.size)
	}
	return nil
}

func dirSize(path string) int64 {
	var size int64
	filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size
}

func characterCount(path string) int {
	chars := make(map[string]characters.Record)
	if err := readJSON(path, &chars); err != nil {
		return 0
	}
	return len(chars)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
