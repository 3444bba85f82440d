package faults

import (
	"log/slog"
	"sync"
	"time"
)

const (
	shownBeforeSuppression = 3
	suppressionWindow      = 5 * time.Minute
	defaultHistoryLimit    = 100
)

type pairKey struct {
	category Category
	context  string
}

type pairState struct {
	shown           int
	suppressedUntil time.Time
}

// Notifier decides which failures reach the user. Repeats of the same
// (category, context) pair are shown a few times and then suppressed for
// a window; history is kept bounded for diagnostics.
type Notifier struct {
	logger *slog.Logger
	now    func() time.Time
	limit  int

	mu      sync.Mutex
	pairs   map[pairKey]*pairState
	history []Record
}

// NewNotifier builds a Notifier. now is injectable for tests; nil means
// time.Now.
func NewNotifier(logger *slog.Logger, now func() time.Time) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Notifier{
		logger: logger,
		now:    now,
		limit:  defaultHistoryLimit,
		pairs:  make(map[pairKey]*pairState),
	}
}

// Report classifies err within contextLabel, records it, and reports
// whether the failure should be shown to the user. The first 3
// occurrences of a (category, context) pair are shown; the 4th opens a
// 5-minute suppression window during which repeats stay silent. Once the
// window elapses the counter resets and the pair is shown again.
func (n *Notifier) Report(err error, contextLabel string) (Record, bool) {
	now := n.now()
	rec := NewRecord(err, contextLabel, now)

	n.mu.Lock()
	defer n.mu.Unlock()

	n.history = append(n.history, rec)
	if len(n.history) > n.limit {
		n.history = n.history[len(n.history)-n.limit:]
	}

	key := pairKey{category: rec.Category, context: contextLabel}
	state := n.pairs[key]
	if state == nil {
		state = &pairState{}
		n.pairs[key] = state
	}

	if !state.suppressedUntil.IsZero() {
		if now.Before(state.suppressedUntil) {
			n.logger.Debug("suppressed repeated failure",
				"category", rec.Category, "context", contextLabel)
			return rec, false
		}
		*state = pairState{}
	}

	state.shown++
	if state.shown > shownBeforeSuppression {
		state.suppressedUntil = now.Add(suppressionWindow)
		n.logger.Debug("suppressing repeated failure",
			"category", rec.Category, "context", contextLabel,
			"until", state.suppressedUntil)
		return rec, false
	}

	n.logger.Warn("failure", "category", rec.Category,
		"severity", rec.Severity, "context", contextLabel, "error", rec.Message)
	return rec, true
}

// History returns a copy of the retained failure records, oldest first.
func (n *Notifier) History() []Record {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Record, len(n.history))
	copy(out, n.history)
	return out
}

// Reset clears history and suppression state.
func (n *Notifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.history = nil
	n.pairs = make(map[pairKey]*pairState)
}
