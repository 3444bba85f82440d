package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/webnovel-tools/enhancer/internal/chunker"
)

// Sink is the destination for enhanced text. Writes are verified by
// reading the unit back; Restore puts the original text back when
// verification fails.
type Sink interface {
	Write(index int, text string) error
	Read(index int) (string, error)
	Restore(index int, original string) error
}

// TextSink collects enhanced units in memory and reassembles the
// document, falling back to the original chunk text for units that were
// never written.
type TextSink struct {
	mu     sync.Mutex
	chunks []chunker.Chunk
	units  map[int]string
}

// NewTextSink builds a sink over the planned chunks.
func NewTextSink(chunks []chunker.Chunk) *TextSink {
	return &TextSink{chunks: chunks, units: make(map[int]string)}
}

func (s *TextSink) Write(index int, text string) error {
	if index < 0 || index >= len(s.chunks) {
		return fmt.Errorf("unit %d out of range", index)
	}
	s.mu.Lock()
	s.units[index] = text
	s.mu.Unlock()
	return nil
}

func (s *TextSink) Read(index int) (string, error) {
	if index < 0 || index >= len(s.chunks) {
		return "", fmt.Errorf("unit %d out of range", index)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if text, ok := s.units[index]; ok {
		return text, nil
	}
	return s.chunks[index].Text, nil
}

// Restore drops the written unit so reads fall back to the original.
func (s *TextSink) Restore(index int, _ string) error {
	if index < 0 || index >= len(s.chunks) {
		return fmt.Errorf("unit %d out of range", index)
	}
	s.mu.Lock()
	delete(s.units, index)
	s.mu.Unlock()
	return nil
}

// Document reassembles the full text, enhanced units in place of their
// originals, joined with paragraph separators.
func (s *TextSink) Document() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts := make([]string, len(s.chunks))
	for i, ch := range s.chunks {
		if text, ok := s.units[i]; ok {
			parts[i] = text
		} else {
			parts[i] = ch.Text
		}
	}
	return strings.Join(parts, chunker.ParagraphSeparator)
}

// Written reports how many units hold enhanced text.
func (s *TextSink) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.units)
}
