package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/webnovel-tools/enhancer/internal/characters"
	"github.com/webnovel-tools/enhancer/internal/chunker"
	"github.com/webnovel-tools/enhancer/internal/faults"
	"github.com/webnovel-tools/enhancer/internal/gateway"
	"github.com/webnovel-tools/enhancer/internal/prompts"
	"github.com/webnovel-tools/enhancer/internal/providers"
	"github.com/webnovel-tools/enhancer/internal/store"
)

const (
	minBatchSize = 5
	maxBatchSize = 15
)

// BatchSize targets a third of the units, clamped to [5, 15].
func BatchSize(totalUnits int) int {
	return batchSizeIn(totalUnits, minBatchSize, maxBatchSize)
}

func batchSizeIn(totalUnits, lo, hi int) int {
	size := int(math.Ceil(float64(totalUnits) / 3))
	if size < lo {
		size = lo
	}
	if size > hi {
		size = hi
	}
	return size
}

// ModelGateway is the slice of the gateway the orchestrator needs.
type ModelGateway interface {
	Enhance(ctx context.Context, requestID, prompt, cacheKey string) (string, error)
	Availability(ctx context.Context) *providers.AvailabilityStatus
	TerminateAll() int
}

// Input describes one enhancement run.
type Input struct {
	NovelID      string
	Text         string
	MaxChunkSize int
	Sink         Sink

	// OnFinish, when set, runs after the session for this input reaches
	// a terminal state. Collapsed triggers execute as follow-up runs on
	// the first caller's goroutine, so the hook is how their callers
	// learn the outcome.
	OnFinish func(*Session)
}

// Config assembles an Orchestrator.
type Config struct {
	Gateway       ModelGateway
	Store         *store.Store // optional persistence
	Notifier      *faults.Notifier
	Retry         faults.RetryPolicy
	Styles        *prompts.StyleCache
	Logger        *slog.Logger
	BatchDelay    time.Duration
	FailureMargin int
	MinBatch      int // clamp floor for adaptive batch sizing (default 5)
	MaxBatch      int // clamp ceiling (default 15)
	Sleep         func(time.Duration) // injectable (tests)
}

// Orchestrator sequences batched enhancement runs. Batches run one at a
// time; at most one session is active, and triggers arriving while one
// runs collapse into a single follow-up run.
type Orchestrator struct {
	gw            ModelGateway
	store         *store.Store
	notifier      *faults.Notifier
	retry         faults.RetryPolicy
	styles        *prompts.StyleCache
	logger        *slog.Logger
	batchDelay    time.Duration
	failureMargin int
	minBatch      int
	maxBatch      int
	sleep         func(time.Duration)

	mu       sync.Mutex
	active   bool
	runAgain bool
	pending  *Input // most recently collapsed trigger's input
	current  *Session

	cancelMu  sync.Mutex
	cancelled bool
}

// NewOrchestrator builds an Orchestrator.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("orchestrator requires a model gateway")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = faults.NewNotifier(cfg.Logger, nil)
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = faults.DefaultRetryPolicy()
	}
	if cfg.Styles == nil {
		cfg.Styles = prompts.NewStyleCache()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = time.Second
	}
	if cfg.FailureMargin <= 0 {
		cfg.FailureMargin = 2
	}
	if cfg.MinBatch <= 0 {
		cfg.MinBatch = minBatchSize
	}
	if cfg.MaxBatch < cfg.MinBatch {
		cfg.MaxBatch = maxBatchSize
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return &Orchestrator{
		gw:            cfg.Gateway,
		store:         cfg.Store,
		notifier:      cfg.Notifier,
		retry:         cfg.Retry,
		styles:        cfg.Styles,
		logger:        cfg.Logger,
		batchDelay:    cfg.BatchDelay,
		failureMargin: cfg.FailureMargin,
		minBatch:      cfg.MinBatch,
		maxBatch:      cfg.MaxBatch,
		sleep:         cfg.Sleep,
	}, nil
}

// Current returns the active or most recent session, or nil.
func (o *Orchestrator) Current() *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Terminate flips the cooperative cancellation flag and aborts every
// in-flight model request. Returns the number of aborted requests.
func (o *Orchestrator) Terminate() int {
	o.cancelMu.Lock()
	o.cancelled = true
	o.cancelMu.Unlock()
	return o.gw.TerminateAll()
}

func (o *Orchestrator) isCancelled() bool {
	o.cancelMu.Lock()
	defer o.cancelMu.Unlock()
	return o.cancelled
}

func (o *Orchestrator) resetCancel() {
	o.cancelMu.Lock()
	o.cancelled = false
	o.cancelMu.Unlock()
}

// Run executes one enhancement session. Calling Run while a session is
// active does not start a second one: the active session is returned
// with its pending flag set, and one follow-up run over the most
// recently collapsed input happens after the current session finishes.
func (o *Orchestrator) Run(ctx context.Context, input Input) (*Session, error) {
	o.mu.Lock()
	if o.active {
		sess := o.current
		o.runAgain = true
		queued := input
		o.pending = &queued
		if sess != nil {
			sess.mu.Lock()
			sess.Pending = true
			sess.mu.Unlock()
		}
		o.mu.Unlock()
		return sess, nil
	}
	o.active = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.active = false
		o.mu.Unlock()
	}()

	for {
		sess, err := o.runOnce(ctx, input)

		o.mu.Lock()
		again := o.runAgain
		o.runAgain = false
		if again && o.pending != nil {
			input = *o.pending
			o.pending = nil
		}
		o.mu.Unlock()
		if !again {
			return sess, err
		}
		o.logger.Info("running queued follow-up session", "novel", input.NovelID)
	}
}

func (o *Orchestrator) runOnce(ctx context.Context, input Input) (*Session, error) {
	sess := &Session{ID: uuid.NewString(), State: StateIdle, StartedAt: time.Now()}
	o.mu.Lock()
	o.current = sess
	o.mu.Unlock()
	o.resetCancel()

	if input.OnFinish != nil {
		defer func() { input.OnFinish(sess) }()
	}

	sess.setState(StateCheckingPrerequisites)
	status := o.gw.Availability(ctx)
	if !status.Available {
		err := fmt.Errorf("model host unavailable: %s", status.Reason)
		o.notifier.Report(err, "prerequisites")
		sess.setState(StateFailed)
		return sess, err
	}

	sess.setState(StateAnalyzingCharacters)
	roster := o.analyzeCharacters(input.NovelID, input.Text)

	chunks := chunker.Plan(input.Text, input.MaxChunkSize)
	sess.mu.Lock()
	sess.TotalUnits = len(chunks)
	sess.mu.Unlock()
	if len(chunks) == 0 {
		sess.setState(StateComplete)
		return sess, nil
	}

	sink := input.Sink
	if sink == nil {
		sink = NewTextSink(chunks)
	}

	style := o.styles.Get(input.NovelID, input.Text)
	composer := prompts.NewComposer(style, roster)

	sess.setState(StateProcessing)
	batchSize := batchSizeIn(len(chunks), o.minBatch, o.maxBatch)
	o.logger.Info("processing session",
		"session", sess.ID, "units", len(chunks), "batch_size", batchSize)

	enhanced := make(map[int]string) // committed + pending, for continuity notes
	units := make(map[string]store.EnhancedUnit)

	for start := 0; start < len(chunks); start += batchSize {
		if o.isCancelled() {
			sess.setState(StateTerminated)
			return sess, nil
		}

		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batchLabel := fmt.Sprintf("batch-%d", start/batchSize)

		results := make(map[int]string, end-start)
		for _, ch := range chunks[start:end] {
			note := chunker.BuildNote(chunks, ch.Index, enhanced)
			prompt := composer.Compose(ch, note)
			key := gateway.CacheKey(ch.Text, note.String())

			var text string
			err := o.retry.Do(ctx, func() error {
				var genErr error
				text, genErr = o.gw.Enhance(ctx, uuid.NewString(), prompt, key)
				return genErr
			})
			if errors.Is(err, gateway.ErrTerminated) {
				sess.setState(StateTerminated)
				return sess, nil
			}
			if err != nil {
				o.notifier.Report(err, batchLabel)
				sess.addFailed(1)
				continue
			}
			results[ch.Index] = text
			enhanced[ch.Index] = text
			units[key] = store.EnhancedUnit{
				Key: key, Index: ch.Index, Text: text, UpdatedAt: time.Now(),
			}
		}

		// Cancellation arriving mid-batch discards uncommitted output.
		if o.isCancelled() {
			sess.setState(StateTerminated)
			return sess, nil
		}

		o.commit(sess, sink, chunks, results, batchLabel)

		completed, failed := sess.counts()
		if failed-completed > o.failureMargin {
			err := fmt.Errorf("failed to process session: %d failures against %d successes", failed, completed)
			o.notifier.Report(err, batchLabel)
			sess.setState(StateFailed)
			return sess, err
		}

		if end < len(chunks) {
			o.sleep(o.batchDelay)
		}
	}

	o.persist(input.NovelID, roster, units)
	sess.setState(StateComplete)
	return sess, nil
}

// commit writes a batch's results and verifies each unit, restoring the
// original text when the read-back does not match.
func (o *Orchestrator) commit(sess *Session, sink Sink, chunks []chunker.Chunk, results map[int]string, batchLabel string) {
	for _, ch := range chunks {
		text, ok := results[ch.Index]
		if !ok {
			continue
		}
		if err := sink.Write(ch.Index, text); err != nil {
			o.notifier.Report(fmt.Errorf("failed to process unit %d: %w", ch.Index, err), batchLabel)
			sess.addFailed(1)
			continue
		}
		got, err := sink.Read(ch.Index)
		if err != nil || got != text {
			if restoreErr := sink.Restore(ch.Index, ch.Text); restoreErr != nil {
				o.logger.Error("restore failed", "unit", ch.Index, "error", restoreErr)
			}
			o.notifier.Report(fmt.Errorf("unit %d failed verification", ch.Index), batchLabel)
			sess.addFailed(1)
			continue
		}
		sess.addCompleted(1)
	}
}

// analyzeCharacters merges newly extracted names into the persisted
// roster and runs gender inference over every name.
func (o *Orchestrator) analyzeCharacters(novelID, text string) map[string]*characters.Record {
	roster := make(map[string]*characters.Record)
	if o.store != nil {
		saved, err := o.store.LoadCharacters(novelID)
		if err != nil {
			o.logger.Warn("could not load saved characters", "novel", novelID, "error", err)
		}
		for name, rec := range saved {
			r := rec
			roster[name] = &r
		}
	}

	for name, rec := range characters.Extract(text) {
		if existing, ok := roster[name]; ok {
			existing.Appearances += rec.Appearances
		} else {
			roster[name] = rec
		}
	}

	for name, rec := range roster {
		inf := characters.Infer(name, text, roster)
		rec.Apply(inf)
	}
	return roster
}

// persist saves the roster and enhanced units, best effort.
func (o *Orchestrator) persist(novelID string, roster map[string]*characters.Record, units map[string]store.EnhancedUnit) {
	if o.store == nil || novelID == "" {
		return
	}
	chars := make(map[string]characters.Record, len(roster))
	for name, rec := range roster {
		chars[name] = *rec
	}
	if err := o.store.SaveCharacters(novelID, chars); err != nil {
		o.logger.Warn("could not persist characters", "novel", novelID, "error", err)
	}
	if len(units) == 0 {
		return
	}
	saved, err := o.store.LoadEnhanced(novelID)
	if err != nil {
		o.logger.Warn("could not load enhanced sections", "novel", novelID, "error", err)
		saved = make(map[string]store.EnhancedUnit)
	}
	for key, unit := range saved {
		if _, ok := units[key]; !ok {
			units[key] = unit
		}
	}
	if err := o.store.SaveEnhanced(novelID, units); err != nil {
		o.logger.Warn("could not persist enhanced sections", "novel", novelID, "error", err)
	}
}
