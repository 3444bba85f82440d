package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/webnovel-tools/enhancer/internal/config"
	"github.com/webnovel-tools/enhancer/internal/faults"
	"github.com/webnovel-tools/enhancer/internal/gateway"
	"github.com/webnovel-tools/enhancer/internal/home"
	"github.com/webnovel-tools/enhancer/internal/providers"
	"github.com/webnovel-tools/enhancer/internal/session"
	"github.com/webnovel-tools/enhancer/internal/store"
)

// pipeline bundles the wired components behind every command.
type pipeline struct {
	configMgr    *config.Manager
	gateway      *gateway.Gateway
	orchestrator *session.Orchestrator
	notifier     *faults.Notifier
	store        *store.Store
	logger       *slog.Logger
}

// buildPipeline wires config, provider, gateway, store, and orchestrator.
func buildPipeline() (*pipeline, error) {
	configMgr, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg := configMgr.Get()
	logger := newLogger(cfg.LogLevel)

	client, err := buildClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	gw, err := gateway.New(gateway.Config{
		Client:        client,
		Model:         cfg.Provider.Model,
		Temperature:   cfg.Provider.Temperature,
		TopP:          cfg.Provider.TopP,
		MaxTokens:     cfg.Provider.MaxTokens,
		Timeout:       cfg.RequestTimeout(),
		TTL:           cfg.AvailabilityTTL(),
		ResultEntries: cfg.Cache.ResultEntries,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, err
	}
	st := store.New(h, logger, 0)

	notifier := faults.NewNotifier(logger, nil)
	orch, err := session.NewOrchestrator(session.Config{
		Gateway:  gw,
		Store:    st,
		Notifier: notifier,
		Retry: faults.RetryPolicy{
			Attempts:  uint(cfg.Retry.Attempts),
			BaseDelay: cfg.RetryBaseDelay(),
			MaxJitter: 250 * time.Millisecond,
		},
		Logger:        logger,
		BatchDelay:    cfg.BatchDelay(),
		FailureMargin: cfg.Enhancement.FailureMargin,
		MinBatch:      cfg.Enhancement.MinBatchSize,
		MaxBatch:      cfg.Enhancement.MaxBatchSize,
	})
	if err != nil {
		return nil, err
	}

	return &pipeline{
		configMgr:    configMgr,
		gateway:      gw,
		orchestrator: orch,
		notifier:     notifier,
		store:        st,
		logger:       logger,
	}, nil
}

// buildClient registers the known provider backends and selects the
// configured one.
func buildClient(cfg *config.Config, logger *slog.Logger) (providers.Client, error) {
	registry := providers.NewRegistry()
	registry.SetLogger(logger)
	registry.Register("ollama", providers.NewOllamaClient(providers.OllamaConfig{
		Endpoint: cfg.Provider.Endpoint,
		Model:    cfg.Provider.Model,
		Timeout:  cfg.RequestTimeout(),
	}))
	registry.Register("openai", providers.NewOpenAIClient(providers.OpenAIConfig{
		BaseURL: cfg.Provider.Endpoint,
		APIKey:  config.ResolveEnvVars(cfg.Provider.APIKey),
		Model:   cfg.Provider.Model,
		Timeout: cfg.RequestTimeout(),
	}))

	name := cfg.Provider.Type
	if name == "" {
		name = "ollama"
	}
	return registry.Get(name)
}
