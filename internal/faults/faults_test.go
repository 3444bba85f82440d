package faults

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/webnovel-tools/enhancer/internal/gateway"
	"github.com/webnovel-tools/enhancer/internal/providers"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, Unknown},
		{"terminated sentinel", fmt.Errorf("request r1: %w", gateway.ErrTerminated), ProcessingError},
		{"deadline sentinel", context.DeadlineExceeded, Timeout},
		{"empty response sentinel", providers.ErrEmptyResponse, InvalidContent},
		{"timeout keyword", errors.New("request timed out after 120s"), Timeout},
		{"unavailable keyword", errors.New("model not found: qwen2.5"), LLMUnavailable},
		{"permission keyword", errors.New("401 unauthorized"), PermissionDenied},
		{"network keyword", errors.New("dial tcp 127.0.0.1:11434: connection refused"), Network},
		{"malformed keyword", errors.New("malformed payload"), InvalidContent},
		{"processing keyword", errors.New("failed to process section 3"), ProcessingError},
		{"unknown", errors.New("???"), Unknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Errorf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}

func TestDefine_CoversTaxonomy(t *testing.T) {
	for _, c := range []Category{Network, LLMUnavailable, Timeout, PermissionDenied, InvalidContent, ProcessingError, Unknown} {
		d := Define(c)
		if d.Message == "" || d.Severity == "" || len(d.Suggestions) == 0 {
			t.Errorf("%s: incomplete definition %+v", c, d)
		}
	}
	if Define(LLMUnavailable).Recoverable {
		t.Errorf("LLM_UNAVAILABLE must be unrecoverable")
	}
	if Define(PermissionDenied).Recoverable {
		t.Errorf("PERMISSION_DENIED must be unrecoverable")
	}
}

func TestNotifier_SuppressionWindow(t *testing.T) {
	current := time.Unix(5000, 0)
	n := NewNotifier(nil, func() time.Time { return current })

	err := errors.New("connection refused")

	for i := 1; i <= 3; i++ {
		if _, shown := n.Report(err, "batch-2"); !shown {
			t.Fatalf("occurrence %d should be shown", i)
		}
	}

	// 4th opens the window, 5th lands inside it.
	if _, shown := n.Report(err, "batch-2"); shown {
		t.Errorf("4th occurrence must be suppressed")
	}
	current = current.Add(time.Minute)
	if _, shown := n.Report(err, "batch-2"); shown {
		t.Errorf("5th occurrence inside the window must be suppressed")
	}

	// After the window elapses the counter resets.
	current = current.Add(5 * time.Minute)
	if _, shown := n.Report(err, "batch-2"); !shown {
		t.Errorf("occurrence after the window must be shown again")
	}
}

func TestNotifier_PairsAreIndependent(t *testing.T) {
	n := NewNotifier(nil, nil)
	netErr := errors.New("connection refused")

	for i := 0; i < 4; i++ {
		n.Report(netErr, "batch-1")
	}
	if _, shown := n.Report(netErr, "batch-7"); !shown {
		t.Errorf("a different context must not inherit suppression")
	}
	if _, shown := n.Report(errors.New("timed out"), "batch-1"); !shown {
		t.Errorf("a different category must not inherit suppression")
	}
}

func TestNotifier_HistoryBounded(t *testing.T) {
	n := NewNotifier(nil, nil)
	n.limit = 10
	for i := 0; i < 25; i++ {
		n.Report(errors.New("connection refused"), fmt.Sprintf("ctx-%d", i))
	}
	h := n.History()
	if len(h) != 10 {
		t.Fatalf("expected bounded history of 10, got %d", len(h))
	}
	if h[len(h)-1].Context != "ctx-24" {
		t.Errorf("expected newest record retained, got %s", h[len(h)-1].Context)
	}
}

func TestRetryPolicy_StopsOnUnrecoverable(t *testing.T) {
	p := RetryPolicy{Attempts: 5, BaseDelay: time.Millisecond}
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return errors.New("401 unauthorized")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Errorf("unrecoverable error must not retry, got %d calls", calls)
	}
}

func TestRetryPolicy_RetriesRecoverable(t *testing.T) {
	p := RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond}
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestRecoveryManager(t *testing.T) {
	m := NewRecoveryManager(nil, 5*time.Millisecond)

	halt := m.Recover(Record{Category: LLMUnavailable}, nil)
	if halt.Action != ActionHalt {
		t.Errorf("unavailable model must halt, got %s", halt.Action)
	}

	suggest := m.Recover(Record{Category: Timeout}, nil)
	if suggest.Action != ActionSuggest || len(suggest.Suggestions) == 0 {
		t.Errorf("timeout should suggest remediation, got %+v", suggest)
	}

	retried := make(chan struct{})
	plan := m.Recover(Record{Category: Network}, func() { close(retried) })
	if plan.Action != ActionRetryScheduled {
		t.Fatalf("network failure should schedule a retry, got %s", plan.Action)
	}
	select {
	case <-retried:
	case <-time.After(time.Second):
		t.Fatalf("scheduled retry never ran")
	}
}
