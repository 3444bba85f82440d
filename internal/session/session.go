// Package session runs one enhancement pass over a novel's text:
// prerequisite checks, character analysis, batched model calls with
// cooperative cancellation, verification, and persistence.
package session

import (
	"sync"
	"time"
)

// State names a phase of the session state machine.
type State string

const (
	StateIdle                  State = "idle"
	StateCheckingPrerequisites State = "checking-prerequisites"
	StateAnalyzingCharacters   State = "analyzing-characters"
	StateProcessing            State = "processing"
	StateComplete              State = "complete"
	StateFailed                State = "failed"
	StateTerminated            State = "terminated"
)

// Terminal reports whether the state ends a session.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed || s == StateTerminated
}

// Session tracks one enhancement run.
type Session struct {
	mu sync.Mutex

	ID             string
	State          State
	TotalUnits     int
	CompletedUnits int
	FailedUnits    int
	Terminated     bool
	Pending        bool // a follow-up run was requested while active
	StartedAt      time.Time
}

// Snapshot is a copyable view of a session's progress.
type Snapshot struct {
	ID             string    `json:"id"`
	State          State     `json:"state"`
	TotalUnits     int       `json:"total_units"`
	CompletedUnits int       `json:"completed_units"`
	FailedUnits    int       `json:"failed_units"`
	Terminated     bool      `json:"terminated"`
	Pending        bool      `json:"pending"`
	StartedAt      time.Time `json:"started_at"`
}

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:             s.ID,
		State:          s.State,
		TotalUnits:     s.TotalUnits,
		CompletedUnits: s.CompletedUnits,
		FailedUnits:    s.FailedUnits,
		Terminated:     s.Terminated,
		Pending:        s.Pending,
		StartedAt:      s.StartedAt,
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.State = st
	if st == StateTerminated {
		s.Terminated = true
	}
	s.mu.Unlock()
}

func (s *Session) addCompleted(n int) {
	s.mu.Lock()
	s.CompletedUnits += n
	s.mu.Unlock()
}

func (s *Session) addFailed(n int) {
	s.mu.Lock()
	s.FailedUnits += n
	s.mu.Unlock()
}

func (s *Session) counts() (completed, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CompletedUnits, s.FailedUnits
}
