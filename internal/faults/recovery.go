package faults

import (
	"log/slog"
	"time"
)

// Action is the recovery decision for a classified failure.
type Action string

const (
	ActionRetryScheduled Action = "retry-scheduled"
	ActionSuggest        Action = "suggest"
	ActionHalt           Action = "halt"
	ActionNone           Action = "none"
)

// Plan reports what the recovery manager did or recommends.
type Plan struct {
	Action      Action
	Suggestions []string
}

// RecoveryManager applies category-specific recovery. Network failures
// get a single delayed retry; unrecoverable categories halt the session.
type RecoveryManager struct {
	logger     *slog.Logger
	retryDelay time.Duration
}

// NewRecoveryManager builds a RecoveryManager. retryDelay bounds the
// network retry backoff; zero uses 5 seconds.
func NewRecoveryManager(logger *slog.Logger, retryDelay time.Duration) *RecoveryManager {
	if logger == nil {
		logger = slog.Default()
	}
	if retryDelay <= 0 {
		retryDelay = 5 * time.Second
	}
	return &RecoveryManager{logger: logger, retryDelay: retryDelay}
}

// Recover decides how to proceed after rec. When the category warrants a
// delayed retry and retryFn is non-nil, the retry is scheduled on a
// timer and the plan reports it.
func (m *RecoveryManager) Recover(rec Record, retryFn func()) Plan {
	def := Define(rec.Category)

	if !def.Recoverable {
		m.logger.Error("unrecoverable failure, halting",
			"category", rec.Category, "context", rec.Context)
		return Plan{Action: ActionHalt, Suggestions: def.Suggestions}
	}

	switch rec.Category {
	case Network:
		if retryFn != nil {
			m.logger.Info("scheduling retry after network failure",
				"context", rec.Context, "delay", m.retryDelay)
			time.AfterFunc(m.retryDelay, retryFn)
			return Plan{Action: ActionRetryScheduled, Suggestions: def.Suggestions}
		}
		return Plan{Action: ActionSuggest, Suggestions: def.Suggestions}
	case Timeout, ProcessingError, InvalidContent:
		return Plan{Action: ActionSuggest, Suggestions: def.Suggestions}
	}
	return Plan{Action: ActionNone, Suggestions: def.Suggestions}
}
