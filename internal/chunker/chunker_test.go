package chunker

import (
	"fmt"
	"strings"
	"testing"
)

func TestPlan_Empty(t *testing.T) {
	if got := Plan("", 1000); got != nil {
		t.Errorf("expected nil for empty input, got %d chunks", len(got))
	}
	if got := Plan("   \n\n  ", 1000); got != nil {
		t.Errorf("expected nil for whitespace input, got %d chunks", len(got))
	}
}

func TestPlan_SingleChunkWhenSmall(t *testing.T) {
	text := "A short paragraph.\n\nAnd another one."
	chunks := Plan(text, 4000)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != text {
		t.Errorf("chunk text altered: %q", chunks[0].Text)
	}
	if !chunks[0].Final {
		t.Errorf("single chunk must be final")
	}
}

func TestPlan_RespectsMaxSize(t *testing.T) {
	var paras []string
	for i := 0; i < 30; i++ {
		paras = append(paras, fmt.Sprintf("Paragraph %d with some filler text to give it a bit of length.", i))
	}
	text := strings.Join(paras, "\n\n")

	chunks := Plan(text, 300)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c.Text) > 300 {
			t.Errorf("chunk %d exceeds max size: %d chars", c.Index, len(c.Text))
		}
	}
}

func TestPlan_Reassembly(t *testing.T) {
	var paras []string
	for i := 0; i < 20; i++ {
		paras = append(paras, fmt.Sprintf("Paragraph number %d. It has two sentences for good measure.", i))
	}
	text := strings.Join(paras, "\n\n")

	chunks := Plan(text, 250)

	var parts []string
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		parts = append(parts, c.Text)
	}
	reassembled := strings.Join(parts, ParagraphSeparator)

	if normalize(reassembled) != normalize(text) {
		t.Errorf("reassembly does not reproduce source")
	}
	if !chunks[len(chunks)-1].Final {
		t.Errorf("last chunk not marked final")
	}
	for _, c := range chunks[:len(chunks)-1] {
		if c.Final {
			t.Errorf("chunk %d marked final early", c.Index)
		}
	}
}

func TestPlan_OversizedParagraphSplitsOnSentences(t *testing.T) {
	var sents []string
	for i := 0; i < 40; i++ {
		sents = append(sents, fmt.Sprintf("Sentence %d has a reasonable amount of words in it.", i))
	}
	para := strings.Join(sents, " ")

	chunks := Plan(para, 400)
	if len(chunks) < 2 {
		t.Fatalf("expected oversized paragraph to split, got %d chunks", len(chunks))
	}
	for _, c := range chunks {
		if len(c.Text) > 400 {
			t.Errorf("chunk %d exceeds max after sentence split: %d", c.Index, len(c.Text))
		}
	}
}

func TestPlan_AtomicSentencePassesThrough(t *testing.T) {
	long := strings.Repeat("word ", 100) + "end."
	chunks := Plan("Short lead. "+long, 100)

	found := false
	for _, c := range chunks {
		if len(c.Text) > 100 {
			found = true
			if !strings.HasSuffix(c.Text, "end.") {
				t.Errorf("oversized chunk is not the atomic sentence")
			}
		}
	}
	if !found {
		t.Errorf("expected the atomic oversized sentence to pass through intact")
	}
}

func TestPlan_CJKTerminators(t *testing.T) {
	sent := strings.Repeat("李华看着远方的山脉，", 10) + "心中涌起一阵感慨。"
	para := strings.Repeat(sent, 4)

	chunks := Plan(para, len(sent)+10)
	if len(chunks) < 2 {
		t.Fatalf("expected CJK paragraph to split on 。, got %d chunks", len(chunks))
	}
}

func TestPlan_EndToEnd9000Chars(t *testing.T) {
	var paras []string
	for len(strings.Join(paras, "\n\n")) < 9000 {
		paras = append(paras, fmt.Sprintf("Paragraph %d of the chapter. The hero walked on through the night.", len(paras)))
	}
	text := strings.Join(paras, "\n\n")

	chunks := Plan(text, 4000)
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks for %d chars at max 4000, got %d", len(text), len(chunks))
	}
	for _, c := range chunks {
		if len(c.Text) > 4000 {
			t.Errorf("chunk %d exceeds 4000 chars", c.Index)
		}
	}

	var parts []string
	for _, c := range chunks {
		parts = append(parts, c.Text)
	}
	if normalize(strings.Join(parts, ParagraphSeparator)) != normalize(text) {
		t.Errorf("paragraph order not preserved across reassembly")
	}
}

func TestBuildNote(t *testing.T) {
	chunks := []Chunk{
		{Index: 0, Text: "Opening paragraph.\nThe last line of the first chunk runs long enough."},
		{Index: 1, Text: "Middle chunk body text."},
		{Index: 2, Text: "The first line of the final chunk is also long enough.\nRest."},
	}

	note := BuildNote(chunks, 1, nil)
	if note.Previous != "The last line of the first chunk runs long enough." {
		t.Errorf("unexpected previous line: %q", note.Previous)
	}
	if note.Next != "The first line of the final chunk is also long enough." {
		t.Errorf("unexpected next line: %q", note.Next)
	}
}

func TestBuildNote_PrefersEnhanced(t *testing.T) {
	chunks := []Chunk{
		{Index: 0, Text: "Original trailing line that is certainly long enough."},
		{Index: 1, Text: "Second chunk."},
	}
	enhanced := map[int]string{0: "The polished trailing line, rewritten by the model."}

	note := BuildNote(chunks, 1, enhanced)
	if note.Previous != "The polished trailing line, rewritten by the model." {
		t.Errorf("expected enhanced previous line, got %q", note.Previous)
	}
}

func TestBuildNote_ShortLinesSkipped(t *testing.T) {
	chunks := []Chunk{
		{Index: 0, Text: "Short."},
		{Index: 1, Text: "Middle."},
		{Index: 2, Text: "Tiny."},
	}
	note := BuildNote(chunks, 1, nil)
	if !note.Empty() {
		t.Errorf("expected empty note for short boundary lines, got %+v", note)
	}
}

func TestBuildNote_Edges(t *testing.T) {
	chunks := []Chunk{
		{Index: 0, Text: "Only chunk in the plan, long enough either way."},
	}
	note := BuildNote(chunks, 0, nil)
	if !note.Empty() {
		t.Errorf("single chunk should produce no context")
	}
}

// normalize collapses whitespace so trim-induced differences do not fail
// round-trip comparisons.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
