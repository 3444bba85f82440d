// Package chunker splits novel text into bounded windows for model requests
// and derives continuity notes between adjacent windows.
package chunker

import (
	"strings"
)

// ParagraphSeparator joins paragraphs inside a chunk and is the boundary
// chunks are split on. Reassembling chunks with this separator reproduces
// the source text modulo trimmed whitespace.
const ParagraphSeparator = "\n\n"

// Chunk is one bounded contiguous slice of source text.
type Chunk struct {
	Index int
	Text  string
	Final bool
}

// Plan splits text into ordered chunks of at most maxSize characters.
//
// Paragraphs are accumulated greedily; a paragraph larger than maxSize is
// split on sentence boundaries and the sentences accumulated the same way.
// A chunk exceeds maxSize only when a single sentence alone exceeds it —
// atomic sentences pass through, they are never truncated.
//
// This function is total: it never fails, empty input yields no chunks.
func Plan(text string, maxSize int) []Chunk {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || maxSize <= 0 {
		return nil
	}

	if len(trimmed) <= maxSize {
		return []Chunk{{Index: 0, Text: trimmed, Final: true}}
	}

	var pieces []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			pieces = append(pieces, current.String())
			current.Reset()
		}
	}

	for _, para := range splitParagraphs(trimmed) {
		if len(para) > maxSize {
			// Oversized paragraph: flush what we have and fall back to
			// sentence-level accumulation for this paragraph only.
			flush()
			pieces = append(pieces, packSentences(para, maxSize)...)
			continue
		}

		if current.Len() > 0 && current.Len()+len(ParagraphSeparator)+len(para) > maxSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(ParagraphSeparator)
		}
		current.WriteString(para)
	}
	flush()

	chunks := make([]Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = Chunk{Index: i, Text: p, Final: i == len(pieces)-1}
	}
	return chunks
}

// splitParagraphs splits on blank-line boundaries and drops empty entries.
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var paras []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}

// packSentences splits an oversized paragraph into sentences and greedily
// packs them into pieces of at most maxSize characters. A sentence longer
// than maxSize becomes its own piece untouched.
func packSentences(para string, maxSize int) []string {
	var pieces []string
	var current strings.Builder

	for _, sent := range splitSentences(para) {
		if len(sent) > maxSize {
			if current.Len() > 0 {
				pieces = append(pieces, current.String())
				current.Reset()
			}
			pieces = append(pieces, sent)
			continue
		}
		if current.Len() > 0 && current.Len()+1+len(sent) > maxSize {
			pieces = append(pieces, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sent)
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}
	return pieces
}

// splitSentences scans for sentence-ending punctuation, both ASCII and the
// CJK forms machine-translated novels commonly carry.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	for i := 0; i < len(runes); i++ {
		if !isSentenceTerminator(runes[i]) {
			continue
		}
		// Consume a run of terminators plus any trailing closing quote.
		end := i
		for end+1 < len(runes) && (isSentenceTerminator(runes[end+1]) || isClosingQuote(runes[end+1])) {
			end++
		}
		sent := strings.TrimSpace(string(runes[start : end+1]))
		if sent != "" {
			sentences = append(sentences, sent)
		}
		start = end + 1
		i = end
	}

	tail := strings.TrimSpace(string(runes[start:]))
	if tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func isSentenceTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '…', '。', '！', '？':
		return true
	}
	return false
}

func isClosingQuote(r rune) bool {
	switch r {
	case '"', '\'', '”', '’', '」', '』':
		return true
	}
	return false
}
