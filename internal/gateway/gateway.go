package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/webnovel-tools/enhancer/internal/providers"
)

// ErrTerminated is the cancellation cause set by TerminateAll, so callers
// can tell a user-initiated abort from a timeout.
var ErrTerminated = errors.New("request terminated by user")

// Config assembles a Gateway.
type Config struct {
	Client        providers.Client
	Model         string
	Temperature   float64
	TopP          float64
	MaxTokens     int
	Timeout       time.Duration // client-side per-request timeout
	TTL           time.Duration // availability cache validity
	ResultEntries int           // LRU size for enhanced chunks
	Logger        *slog.Logger
	Now           func() time.Time // injectable clock (tests)
}

// Gateway dispatches generation requests with result caching and global
// termination.
type Gateway struct {
	client    providers.Client
	model     string
	temp      float64
	topP      float64
	maxTokens int
	timeout   time.Duration
	logger    *slog.Logger

	avail   *AvailabilityCache
	results *lru.Cache[string, string]

	mu      sync.Mutex
	cancels map[string]context.CancelCauseFunc
}

// New creates a Gateway around the given client.
func New(cfg Config) (*Gateway, error) {
	if cfg.Client == nil {
		return nil, errors.New("gateway requires a model client")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.ResultEntries <= 0 {
		cfg.ResultEntries = 256
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	results, err := lru.New[string, string](cfg.ResultEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}

	return &Gateway{
		client:    cfg.Client,
		model:     cfg.Model,
		temp:      cfg.Temperature,
		topP:      cfg.TopP,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		logger:    cfg.Logger,
		avail:     NewAvailabilityCache(cfg.Client.Availability, cfg.TTL, cfg.Now),
		results:   results,
		cancels:   make(map[string]context.CancelCauseFunc),
	}, nil
}

// Availability returns the cached availability status, probing on expiry.
func (g *Gateway) Availability(ctx context.Context) *providers.AvailabilityStatus {
	return g.avail.Check(ctx)
}

// CacheKey derives the result-cache key for a chunk and its continuity
// note.
func CacheKey(chunkText, note string) string {
	h := sha256.Sum256([]byte(chunkText + "\x00" + note))
	return hex.EncodeToString(h[:])
}

// Enhance sends the prompt to the model, returning a cached result when
// the cache key has been processed before in this session. requestID keys
// the cancellation registry; TerminateAll aborts every registered request.
func (g *Gateway) Enhance(ctx context.Context, requestID, prompt, cacheKey string) (string, error) {
	if cacheKey != "" {
		if text, ok := g.results.Get(cacheKey); ok {
			g.logger.Debug("result cache hit", "request_id", requestID)
			return text, nil
		}
	}

	reqCtx, cancel := context.WithCancelCause(ctx)
	timeoutCtx, cancelTimeout := context.WithTimeout(reqCtx, g.timeout)
	defer cancelTimeout()

	g.mu.Lock()
	g.cancels[requestID] = cancel
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		delete(g.cancels, requestID)
		g.mu.Unlock()
		cancel(nil)
	}()

	res, err := g.client.Generate(timeoutCtx, &providers.GenerateRequest{
		Model:       g.model,
		Prompt:      prompt,
		MaxTokens:   g.maxTokens,
		Temperature: g.temp,
		TopP:        g.topP,
		RequestID:   requestID,
	})
	if err != nil {
		switch {
		case errors.Is(context.Cause(reqCtx), ErrTerminated):
			return "", fmt.Errorf("request %s: %w", requestID, ErrTerminated)
		case errors.Is(timeoutCtx.Err(), context.DeadlineExceeded):
			return "", fmt.Errorf("request %s timed out after %s: %w", requestID, g.timeout, err)
		}
		return "", err
	}

	if cacheKey != "" {
		g.results.Add(cacheKey, res.Text)
	}
	return res.Text, nil
}

// TerminateAll aborts every outstanding request and returns how many were
// cancelled.
func (g *Gateway) TerminateAll() int {
	g.mu.Lock()
	cancels := make([]context.CancelCauseFunc, 0, len(g.cancels))
	for _, cancel := range g.cancels {
		cancels = append(cancels, cancel)
	}
	count := len(cancels)
	g.cancels = make(map[string]context.CancelCauseFunc)
	g.mu.Unlock()

	for _, cancel := range cancels {
		cancel(ErrTerminated)
	}
	if count > 0 {
		g.logger.Info("terminated outstanding requests", "count", count)
	}
	return count
}

// InflightCount reports how many requests are currently registered.
func (g *Gateway) InflightCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.cancels)
}
