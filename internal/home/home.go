// Package home resolves the enhancer home directory layout.
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the enhancer home directory.
	DefaultDirName = ".enhancer"

	// NovelsDirName is the subdirectory holding per-novel state.
	NovelsDirName = "novels"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// CharactersFileName holds a novel's character map.
	CharactersFileName = "characters.json"

	// EnhancedFileName holds a novel's enhanced sections.
	EnhancedFileName = "enhanced.json"
)

// Dir represents the enhancer home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.enhancer).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// NovelsPath returns the path to the novels directory.
func (d *Dir) NovelsPath() string {
	return filepath.Join(d.path, NovelsDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// NovelDir returns the state directory for one novel.
func (d *Dir) NovelDir(novelID string) string {
	return filepath.Join(d.NovelsPath(), novelID)
}

// CharactersPath returns the character map file for a novel.
func (d *Dir) CharactersPath(novelID string) string {
	return filepath.Join(d.NovelDir(novelID), CharactersFileName)
}

// EnhancedPath returns the enhanced-sections file for a novel.
func (d *Dir) EnhancedPath(novelID string) string {
	return filepath.Join(d.NovelDir(novelID), EnhancedFileName)
}

// EnsureExists creates the home directory and subdirectories if they
// don't exist.
func (d *Dir) EnsureExists() error {
	// Create novels directory (this also creates the parent)
	if err := os.MkdirAll(d.NovelsPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create novels directory: %w", err)
	}
	return nil
}

// EnsureNovelDir creates the state directory for a novel.
func (d *Dir) EnsureNovelDir(novelID string) error {
	return os.MkdirAll(d.NovelDir(novelID), 0o755)
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
