package prompts

import (
	"sort"
	"strings"
	"sync"
)

// StyleInfo describes the detected writing style of a novel. Computed once
// per novel and cached; Analyzed distinguishes a real analysis from the
// fallback default.
type StyleInfo struct {
	Style      string  `json:"style"`
	Tone       string  `json:"tone"`
	Confidence float64 `json:"confidence"`
	Analyzed   bool    `json:"analyzed"`
}

// DefaultStyle is the fallback when analysis finds nothing to go on.
func DefaultStyle() StyleInfo {
	return StyleInfo{Style: "web novel", Tone: "neutral", Confidence: 0.3, Analyzed: false}
}

// styleKeywords maps style labels to marker vocabulary. Plain data so new
// genres are additive.
var styleKeywords = map[string][]string{
	"xianxia/cultivation": {"cultivation", "qi", "sect", "dao", "immortal", "spirit stone", "dantian", "meridian", "alchemy", "tribulation"},
	"fantasy":             {"magic", "sword", "kingdom", "dragon", "mage", "dungeon", "guild", "elf", "knight", "quest"},
	"romance":             {"love", "heart", "kiss", "blush", "marriage", "wedding", "crush", "confession", "jealous"},
	"action":              {"battle", "fight", "attack", "enemy", "blade", "blood", "war", "strike", "weapon"},
	"slice of life":       {"school", "classroom", "breakfast", "neighbor", "shop", "weekend", "family dinner"},
}

var toneKeywords = map[string][]string{
	"dark":         {"death", "blood", "despair", "betrayal", "revenge", "corpse", "shadow"},
	"lighthearted": {"laughed", "giggled", "joke", "smiled", "teased", "grinned"},
	"dramatic":     {"screamed", "shocked", "trembled", "gasped", "roared", "collapsed"},
	"calm":         {"quietly", "gently", "peaceful", "serene", "softly"},
}

// AnalyzeStyle scores keyword families over a sample of the text and
// returns the best style/tone pairing, or the default when no family
// reaches a useful signal.
func AnalyzeStyle(text string) StyleInfo {
	sample := text
	if len(sample) > 20000 {
		sample = sample[:20000]
	}
	lower := strings.ToLower(sample)

	style, styleScore := bestLabel(lower, styleKeywords)
	tone, toneScore := bestLabel(lower, toneKeywords)

	if styleScore == 0 && toneScore == 0 {
		return DefaultStyle()
	}

	info := DefaultStyle()
	info.Analyzed = true
	if styleScore > 0 {
		info.Style = style
	}
	if toneScore > 0 {
		info.Tone = tone
	}

	confidence := 0.4 + 0.05*float64(styleScore+toneScore)
	if confidence > 0.9 {
		confidence = 0.9
	}
	info.Confidence = confidence
	return info
}

func bestLabel(lower string, families map[string][]string) (string, int) {
	labels := make([]string, 0, len(families))
	for label := range families {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	best, bestScore := "", 0
	for _, label := range labels {
		score := 0
		for _, kw := range families[label] {
			score += strings.Count(lower, kw)
		}
		if score > bestScore {
			best, bestScore = label, score
		}
	}
	return best, bestScore
}

// StyleCache memoizes one StyleInfo per novel id.
type StyleCache struct {
	mu     sync.Mutex
	styles map[string]StyleInfo
}

// NewStyleCache creates an empty style cache.
func NewStyleCache() *StyleCache {
	return &StyleCache{styles: make(map[string]StyleInfo)}
}

// Get returns the cached style for novelID, computing and storing it from
// text on first use.
func (c *StyleCache) Get(novelID, text string) StyleInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	if info, ok := c.styles[novelID]; ok {
		return info
	}
	info := AnalyzeStyle(text)
	c.styles[novelID] = info
	return info
}

// Refresh recomputes the style for novelID regardless of cache state.
func (c *StyleCache) Refresh(novelID, text string) StyleInfo {
	info := AnalyzeStyle(text)
	c.mu.Lock()
	c.styles[novelID] = info
	c.mu.Unlock()
	return info
}
