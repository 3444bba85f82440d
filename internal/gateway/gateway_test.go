package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/webnovel-tools/enhancer/internal/providers"
)

// fakeClient counts calls and can block until released.
type fakeClient struct {
	generateCalls int32
	availCalls    int32
	text          string
	err           error
	block         chan struct{} // when non-nil, Generate blocks until closed or ctx done
	availStatus   *providers.AvailabilityStatus
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) Generate(ctx context.Context, req *providers.GenerateRequest) (*providers.GenerateResult, error) {
	atomic.AddInt32(&f.generateCalls, 1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &providers.GenerateResult{Text: f.text, RequestID: req.RequestID}, nil
}

func (f *fakeClient) Availability(ctx context.Context) (*providers.AvailabilityStatus, error) {
	atomic.AddInt32(&f.availCalls, 1)
	if f.availStatus != nil {
		return f.availStatus, nil
	}
	return &providers.AvailabilityStatus{Available: true, Version: "1.0"}, nil
}

func newTestGateway(t *testing.T, client providers.Client, now func() time.Time) *Gateway {
	t.Helper()
	g, err := New(Config{Client: client, Model: "m", Now: now})
	if err != nil {
		t.Fatalf("New gateway: %v", err)
	}
	return g
}

func TestEnhance_CachesByKey(t *testing.T) {
	client := &fakeClient{text: "enhanced"}
	g := newTestGateway(t, client, nil)

	key := CacheKey("chunk text", "note")

	first, err := g.Enhance(context.Background(), "r1", "prompt", key)
	if err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	second, err := g.Enhance(context.Background(), "r2", "prompt", key)
	if err != nil {
		t.Fatalf("Enhance: %v", err)
	}

	if first != "enhanced" || second != "enhanced" {
		t.Errorf("unexpected results %q %q", first, second)
	}
	if calls := atomic.LoadInt32(&client.generateCalls); calls != 1 {
		t.Errorf("expected 1 model call for duplicate key, got %d", calls)
	}
}

func TestCacheKey_Distinct(t *testing.T) {
	if CacheKey("a", "b") == CacheKey("a", "c") {
		t.Errorf("different notes must produce different keys")
	}
	if CacheKey("ab", "") == CacheKey("a", "b") {
		t.Errorf("concatenation must not collide across the boundary")
	}
}

func TestTerminateAll(t *testing.T) {
	client := &fakeClient{block: make(chan struct{})}
	g := newTestGateway(t, client, nil)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = g.Enhance(context.Background(), string(rune('a'+i)), "p", "")
		}(i)
	}

	// Wait for all three to register.
	deadline := time.Now().Add(2 * time.Second)
	for g.InflightCount() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("requests never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	count := g.TerminateAll()
	if count != 3 {
		t.Errorf("expected 3 aborted requests, got %d", count)
	}

	wg.Wait()
	for i, err := range errs {
		if !errors.Is(err, ErrTerminated) {
			t.Errorf("request %d: expected ErrTerminated, got %v", i, err)
		}
	}
	if g.InflightCount() != 0 {
		t.Errorf("registry not drained after termination")
	}
}

func TestEnhance_TimeoutDistinguishedFromAbort(t *testing.T) {
	client := &fakeClient{block: make(chan struct{})}
	g, err := New(Config{Client: client, Model: "m", Timeout: 30 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = g.Enhance(context.Background(), "r1", "p", "")
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if errors.Is(err, ErrTerminated) {
		t.Errorf("timeout must not read as user termination")
	}
}

func TestAvailability_TTLSingleCall(t *testing.T) {
	current := time.Unix(1000, 0)
	now := func() time.Time { return current }

	client := &fakeClient{}
	g, err := New(Config{Client: client, Model: "m", TTL: 30 * time.Second, Now: now})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first := g.Availability(context.Background())
	second := g.Availability(context.Background())

	if !first.Available || !second.Available {
		t.Fatalf("expected available status")
	}
	if first != second {
		t.Errorf("expected identical cached status object")
	}
	if calls := atomic.LoadInt32(&client.availCalls); calls != 1 {
		t.Errorf("expected 1 probe within TTL, got %d", calls)
	}

	// Past the TTL a fresh probe runs.
	current = current.Add(31 * time.Second)
	g.Availability(context.Background())
	if calls := atomic.LoadInt32(&client.availCalls); calls != 2 {
		t.Errorf("expected second probe after TTL, got %d", calls)
	}
}

func TestAvailabilityCache_ConcurrentCallersShareProbe(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	probe := func(ctx context.Context) (*providers.AvailabilityStatus, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &providers.AvailabilityStatus{Available: true}, nil
	}

	c := NewAvailabilityCache(probe, 30*time.Second, nil)

	results := make(chan *providers.AvailabilityStatus, 2)
	go func() { results <- c.Check(context.Background()) }()
	time.Sleep(20 * time.Millisecond) // let the first caller start the probe
	go func() { results <- c.Check(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	close(release)

	a, b := <-results, <-results
	if !a.Available || !b.Available {
		t.Errorf("both callers should see the probe result")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected a single shared probe, got %d", got)
	}
}

func TestAvailabilityCache_WaitTimeoutDegrades(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	probe := func(ctx context.Context) (*providers.AvailabilityStatus, error) {
		<-release
		return &providers.AvailabilityStatus{Available: true}, nil
	}

	c := NewAvailabilityCache(probe, 30*time.Second, nil)
	c.waitTimeout = 20 * time.Millisecond

	go c.Check(context.Background())
	time.Sleep(10 * time.Millisecond)

	status := c.Check(context.Background())
	if status.Available {
		t.Errorf("expected degraded status on wait timeout")
	}
	if status.Reason != "availability check timed out" {
		t.Errorf("unexpected reason %q", status.Reason)
	}
}
