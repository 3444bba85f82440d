// Package providers holds the model backend clients. The native Ollama
// client speaks the local /api/generate protocol; the OpenAI-compatible
// client covers hosts that expose a /v1 surface instead.
package providers

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyResponse is returned when a response parsed successfully but
// carried no generated text.
var ErrEmptyResponse = errors.New("no text in response")

// Client is the interface the gateway dispatches against.
type Client interface {
	// Generate sends a prompt and returns the generated text.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error)

	// Availability probes the host. Implementations query a version
	// endpoint and, best effort, a model listing; a listing failure never
	// invalidates an otherwise healthy result.
	Availability(ctx context.Context) (*AvailabilityStatus, error)

	// Name returns the client identifier (e.g. "ollama").
	Name() string
}

// GenerateRequest is one non-streaming generation call.
type GenerateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`

	// RequestID keys the cancellation registry.
	RequestID string `json:"-"`
}

// GenerateResult is the parsed response of a generation call.
type GenerateResult struct {
	Text      string        `json:"text"`
	Model     string        `json:"model"`
	Provider  string        `json:"provider"`
	Elapsed   time.Duration `json:"elapsed"`
	RequestID string        `json:"request_id"`
}

// AvailabilityStatus reports whether the model host is reachable and what
// it serves.
type AvailabilityStatus struct {
	Available bool      `json:"available"`
	Version   string    `json:"version,omitempty"`
	Models    []string  `json:"models,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}
