package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/webnovel-tools/enhancer/internal/chunker"
	"github.com/webnovel-tools/enhancer/internal/faults"
	"github.com/webnovel-tools/enhancer/internal/providers"
)

// fakeGateway satisfies ModelGateway with programmable behavior.
type fakeGateway struct {
	mu          sync.Mutex
	enhance     func(prompt string) (string, error)
	available   bool
	reason      string
	availCalls  int32
	enhCalls    int32
	prompts     []string      // every prompt seen, in order
	blockFirst  chan struct{} // when non-nil, the first Enhance blocks until closed
	blockedOnce bool
}

func (f *fakeGateway) Enhance(ctx context.Context, requestID, prompt, cacheKey string) (string, error) {
	atomic.AddInt32(&f.enhCalls, 1)

	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	block := f.blockFirst
	if block != nil && !f.blockedOnce {
		f.blockedOnce = true
		f.mu.Unlock()
		<-block
	} else {
		f.mu.Unlock()
	}

	if f.enhance != nil {
		return f.enhance(prompt)
	}
	return "enhanced: " + cacheKey[:8], nil
}

func (f *fakeGateway) Availability(ctx context.Context) *providers.AvailabilityStatus {
	atomic.AddInt32(&f.availCalls, 1)
	return &providers.AvailabilityStatus{Available: f.available, Reason: f.reason}
}

func (f *fakeGateway) TerminateAll() int { return 0 }

func newTestOrchestrator(t *testing.T, gw ModelGateway, mutate func(*Config)) *Orchestrator {
	t.Helper()
	cfg := Config{
		Gateway:    gw,
		Retry:      faults.RetryPolicy{Attempts: 1, BaseDelay: time.Millisecond},
		BatchDelay: time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	o, err := NewOrchestrator(cfg)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return o
}

// manyParagraphs builds n paragraphs too large to pack together at the
// given max size, so each becomes its own unit.
func manyParagraphs(n, maxSize int) string {
	para := strings.Repeat("w", maxSize*2/3)
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("P%02d %s", i, para)
	}
	return strings.Join(parts, "\n\n")
}

func TestBatchSize(t *testing.T) {
	cases := []struct{ units, want int }{
		{1, 5}, {12, 5}, {18, 6}, {30, 10}, {45, 15}, {100, 15},
	}
	for _, tc := range cases {
		if got := BatchSize(tc.units); got != tc.want {
			t.Errorf("BatchSize(%d) = %d, want %d", tc.units, got, tc.want)
		}
	}
}

func TestRun_CompletesAllUnits(t *testing.T) {
	gw := &fakeGateway{available: true}
	o := newTestOrchestrator(t, gw, nil)

	text := manyParagraphs(6, 120)
	chunks := chunker.Plan(text, 120)
	sink := NewTextSink(chunks)

	sess, err := o.Run(context.Background(), Input{Text: text, MaxChunkSize: 120, Sink: sink})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	snap := sess.Snapshot()
	if snap.State != StateComplete {
		t.Fatalf("expected complete, got %s", snap.State)
	}
	if snap.CompletedUnits != snap.TotalUnits || snap.FailedUnits != 0 {
		t.Errorf("unexpected counts %+v", snap)
	}
	if sink.Written() != len(chunks) {
		t.Errorf("expected every unit written, got %d of %d", sink.Written(), len(chunks))
	}
	if !strings.Contains(sink.Document(), "enhanced: ") {
		t.Errorf("document should contain enhanced units")
	}
}

func TestRun_UnavailableHostFails(t *testing.T) {
	gw := &fakeGateway{available: false, reason: "host down"}
	o := newTestOrchestrator(t, gw, nil)

	sess, err := o.Run(context.Background(), Input{Text: "some text", MaxChunkSize: 100})
	if err == nil {
		t.Fatalf("expected error for unavailable host")
	}
	if sess.Snapshot().State != StateFailed {
		t.Errorf("expected failed state, got %s", sess.Snapshot().State)
	}
	if got := atomic.LoadInt32(&gw.enhCalls); got != 0 {
		t.Errorf("no model calls should happen, got %d", got)
	}
}

func TestRun_TerminateStopsLaterBatches(t *testing.T) {
	gw := &fakeGateway{available: true}

	var o *Orchestrator
	o = newTestOrchestrator(t, gw, func(cfg *Config) {
		// Terminate during the first inter-batch delay.
		cfg.Sleep = func(time.Duration) { o.Terminate() }
	})

	text := manyParagraphs(12, 120) // 12 units, batch size 5
	chunks := chunker.Plan(text, 120)
	if len(chunks) != 12 {
		t.Fatalf("expected 12 units, got %d", len(chunks))
	}
	sink := NewTextSink(chunks)

	sess, err := o.Run(context.Background(), Input{Text: text, MaxChunkSize: 120, Sink: sink})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	snap := sess.Snapshot()
	if snap.State != StateTerminated || !snap.Terminated {
		t.Fatalf("expected terminated session, got %+v", snap)
	}
	if sink.Written() != 5 {
		t.Errorf("only the first batch should be committed, got %d writes", sink.Written())
	}
	for i := 5; i < 12; i++ {
		got, err := sink.Read(i)
		if err != nil {
			t.Fatalf("Read(%d): %v", i, err)
		}
		if got != chunks[i].Text {
			t.Errorf("unit %d must keep its original text after termination", i)
		}
	}
}

func TestRun_PartialFailureContinues(t *testing.T) {
	gw := &fakeGateway{available: true}
	gw.enhance = func(prompt string) (string, error) {
		if strings.Contains(prompt, "P03") {
			return "", errors.New("connection refused")
		}
		return "ok", nil
	}
	o := newTestOrchestrator(t, gw, nil)

	text := manyParagraphs(6, 120)
	sess, err := o.Run(context.Background(), Input{Text: text, MaxChunkSize: 120})
	if err != nil {
		t.Fatalf("a single failed unit must not fail the session: %v", err)
	}
	snap := sess.Snapshot()
	if snap.State != StateComplete {
		t.Fatalf("expected complete, got %s", snap.State)
	}
	if snap.FailedUnits != 1 || snap.CompletedUnits != 5 {
		t.Errorf("unexpected counts %+v", snap)
	}
}

func TestRun_FailureMarginAborts(t *testing.T) {
	gw := &fakeGateway{available: true}
	gw.enhance = func(string) (string, error) {
		return "", errors.New("401 unauthorized")
	}
	o := newTestOrchestrator(t, gw, nil)

	text := manyParagraphs(6, 120)
	sess, err := o.Run(context.Background(), Input{Text: text, MaxChunkSize: 120})
	if err == nil {
		t.Fatalf("expected session failure")
	}
	if sess.Snapshot().State != StateFailed {
		t.Errorf("expected failed state, got %s", sess.Snapshot().State)
	}
}

func TestRun_VerificationFailureRestoresUnit(t *testing.T) {
	gw := &fakeGateway{available: true}
	o := newTestOrchestrator(t, gw, nil)

	text := manyParagraphs(2, 120)
	chunks := chunker.Plan(text, 120)
	sink := &corruptingSink{TextSink: NewTextSink(chunks), corrupt: 1}

	sess, err := o.Run(context.Background(), Input{Text: text, MaxChunkSize: 120, Sink: sink})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	snap := sess.Snapshot()
	if snap.FailedUnits != 1 || snap.CompletedUnits != 1 {
		t.Errorf("verification failure must count the unit failed, got %+v", snap)
	}
	got, _ := sink.Read(1)
	if got != chunks[1].Text {
		t.Errorf("corrupted unit must be restored to its original text")
	}
}

// corruptingSink mangles reads for one unit to trip verification.
type corruptingSink struct {
	*TextSink
	corrupt int
}

func (s *corruptingSink) Read(index int) (string, error) {
	text, err := s.TextSink.Read(index)
	if err != nil {
		return "", err
	}
	if index == s.corrupt {
		if _, ok := s.units[index]; ok {
			return text + " [mangled]", nil
		}
	}
	return text, nil
}

func TestRun_CollapsesConcurrentTriggers(t *testing.T) {
	release := make(chan struct{})
	gw := &fakeGateway{available: true, blockFirst: release}
	o := newTestOrchestrator(t, gw, nil)

	text := "short paragraph long enough to enhance as a single unit of work"

	done := make(chan *Session, 1)
	go func() {
		sess, _ := o.Run(context.Background(), Input{Text: text, MaxChunkSize: 4000})
		done <- sess
	}()

	// Wait for the first run to reach the model call.
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&gw.enhCalls) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("first run never reached the model")
		}
		time.Sleep(5 * time.Millisecond)
	}

	second, err := o.Run(context.Background(), Input{Text: text, MaxChunkSize: 4000})
	if err != nil {
		t.Fatalf("re-entrant Run: %v", err)
	}
	if !second.Snapshot().Pending {
		t.Errorf("re-entrant trigger must mark the active session pending")
	}

	close(release)
	final := <-done

	if final.Snapshot().State != StateComplete {
		t.Errorf("expected the follow-up run to complete, got %s", final.Snapshot().State)
	}
	// One availability probe per run: the original and the collapsed follow-up.
	if calls := atomic.LoadInt32(&gw.availCalls); calls != 2 {
		t.Errorf("expected exactly one follow-up run, probes=%d", calls)
	}
}

func TestRun_FollowUpUsesCollapsedInput(t *testing.T) {
	release := make(chan struct{})
	gw := &fakeGateway{available: true, blockFirst: release}
	o := newTestOrchestrator(t, gw, nil)

	first := "the ALPHA chapter text, long enough to enhance as a single unit"
	second := "the BRAVO chapter text, long enough to enhance as a single unit"

	done := make(chan *Session, 1)
	go func() {
		sess, _ := o.Run(context.Background(), Input{Text: first, MaxChunkSize: 4000})
		done <- sess
	}()

	// Wait for the first run to reach the model call.
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&gw.enhCalls) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("first run never reached the model")
		}
		time.Sleep(5 * time.Millisecond)
	}

	var finished int32
	sink := NewTextSink(chunker.Plan(second, 4000))
	queued, err := o.Run(context.Background(), Input{
		Text:         second,
		MaxChunkSize: 4000,
		Sink:         sink,
		OnFinish:     func(*Session) { atomic.AddInt32(&finished, 1) },
	})
	if err != nil {
		t.Fatalf("re-entrant Run: %v", err)
	}
	if !queued.Snapshot().Pending {
		t.Errorf("re-entrant trigger must mark the active session pending")
	}

	close(release)
	final := <-done

	if final.Snapshot().State != StateComplete {
		t.Fatalf("expected the follow-up run to complete, got %s", final.Snapshot().State)
	}

	gw.mu.Lock()
	prompts := strings.Join(gw.prompts, "\n")
	gw.mu.Unlock()
	if !strings.Contains(prompts, "BRAVO") {
		t.Errorf("follow-up run must process the collapsed trigger's text, prompts never mentioned it")
	}
	if sink.Written() != 1 {
		t.Errorf("collapsed trigger's sink must receive the follow-up output, got %d writes", sink.Written())
	}
	if got := atomic.LoadInt32(&finished); got != 1 {
		t.Errorf("collapsed input's completion hook must run exactly once, ran %d times", got)
	}
}
