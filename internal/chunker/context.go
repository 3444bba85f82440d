package chunker

import (
	"strings"
	"unicode/utf8"
)

// minContextChars is the floor below which a boundary line carries too
// little signal to be worth embedding in the prompt.
const minContextChars = 20

// ContextNote is a short continuity excerpt from the chunks adjacent to the
// one being enhanced. It is advisory text for the prompt, never merged into
// the chunk itself.
type ContextNote struct {
	// Previous is the trailing line of the preceding chunk, preferring the
	// enhanced version when one exists.
	Previous string
	// Next is the leading line of the following chunk, always original text.
	Next string
}

// Empty reports whether the note carries no context at all.
func (n ContextNote) Empty() bool {
	return n.Previous == "" && n.Next == ""
}

// String renders the note in the stable form used for prompt assembly and
// cache keys.
func (n ContextNote) String() string {
	if n.Empty() {
		return ""
	}
	var b strings.Builder
	if n.Previous != "" {
		b.WriteString("Previous passage ends: ")
		b.WriteString(n.Previous)
	}
	if n.Next != "" {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("Next passage begins: ")
		b.WriteString(n.Next)
	}
	return b.String()
}

// BuildNote derives the continuity note for chunks[i]. enhanced maps chunk
// index to already-enhanced text; a nil map is valid.
func BuildNote(chunks []Chunk, i int, enhanced map[int]string) ContextNote {
	var note ContextNote

	if i > 0 && i <= len(chunks) {
		prev := chunks[i-1].Text
		if text, ok := enhanced[i-1]; ok && strings.TrimSpace(text) != "" {
			prev = text
		}
		if line := trailingLine(prev); utf8.RuneCountInString(line) > minContextChars {
			note.Previous = line
		}
	}

	if i >= 0 && i+1 < len(chunks) {
		if line := leadingLine(chunks[i+1].Text); utf8.RuneCountInString(line) > minContextChars {
			note.Next = line
		}
	}

	return note
}

func trailingLine(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

func leadingLine(text string) string {
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
