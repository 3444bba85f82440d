// Package faults categorizes failures from every pipeline boundary and
// drives the display-suppression and recovery policies.
package faults

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/webnovel-tools/enhancer/internal/gateway"
	"github.com/webnovel-tools/enhancer/internal/providers"
)

// Category is the fixed failure taxonomy.
type Category string

const (
	Network          Category = "NETWORK"
	LLMUnavailable   Category = "LLM_UNAVAILABLE"
	Timeout          Category = "TIMEOUT"
	PermissionDenied Category = "PERMISSION_DENIED"
	InvalidContent   Category = "INVALID_CONTENT"
	ProcessingError  Category = "PROCESSING_ERROR"
	Unknown          Category = "UNKNOWN"
)

// Severity grades how loudly a failure should surface.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Definition describes one category's user-facing treatment.
type Definition struct {
	Severity    Severity
	Message     string
	Suggestions []string
	Recoverable bool
}

// definitions is the taxonomy table. Plain data so treatment changes do
// not touch classification logic.
var definitions = map[Category]Definition{
	Network: {
		Severity:    SeverityMedium,
		Message:     "Could not reach the model host.",
		Suggestions: []string{"Check that the model host is running", "Verify the endpoint setting"},
		Recoverable: true,
	},
	LLMUnavailable: {
		Severity:    SeverityCritical,
		Message:     "The language model is not available.",
		Suggestions: []string{"Start the model host", "Pull the configured model"},
		Recoverable: false,
	},
	Timeout: {
		Severity:    SeverityMedium,
		Message:     "The model took too long to respond.",
		Suggestions: []string{"Try again", "Use smaller sections"},
		Recoverable: true,
	},
	PermissionDenied: {
		Severity:    SeverityHigh,
		Message:     "The model host rejected the request.",
		Suggestions: []string{"Check the API key", "Review host access settings"},
		Recoverable: false,
	},
	InvalidContent: {
		Severity:    SeverityLow,
		Message:     "The model returned unusable output.",
		Suggestions: []string{"Retry the section", "Try a different model"},
		Recoverable: true,
	},
	ProcessingError: {
		Severity:    SeverityMedium,
		Message:     "Processing failed for this section.",
		Suggestions: []string{"Use smaller sections", "Retry the enhancement"},
		Recoverable: true,
	},
	Unknown: {
		Severity:    SeverityMedium,
		Message:     "Something went wrong.",
		Suggestions: []string{"Try again"},
		Recoverable: true,
	},
}

// Define returns the display treatment for a category.
func Define(c Category) Definition {
	if d, ok := definitions[c]; ok {
		return d
	}
	return definitions[Unknown]
}

// Record is one classified failure.
type Record struct {
	ID        string    `json:"id"`
	Category  Category  `json:"category"`
	Severity  Severity  `json:"severity"`
	Context   string    `json:"context"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Classify maps an error to its category. Sentinel errors are checked
// first, then keyword matching over the message.
func Classify(err error) Category {
	if err == nil {
		return Unknown
	}

	switch {
	case errors.Is(err, gateway.ErrTerminated):
		return ProcessingError
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	case errors.Is(err, providers.ErrEmptyResponse):
		return InvalidContent
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "timed out", "timeout", "deadline exceeded"):
		return Timeout
	case containsAny(msg, "not available", "unavailable", "model not found", "no such model", "model is not"):
		return LLMUnavailable
	case containsAny(msg, "permission", "unauthorized", "forbidden", "api key", "401", "403"):
		return PermissionDenied
	case containsAny(msg, "connection refused", "no such host", "network", "dial tcp", "broken pipe", "connection reset", "eof"):
		return Network
	case containsAny(msg, "no text in response", "unusable", "malformed", "invalid response", "empty response"):
		return InvalidContent
	case containsAny(msg, "failed to process", "processing", "enhance"):
		return ProcessingError
	}
	return Unknown
}

// NewRecord classifies err within a context label.
func NewRecord(err error, contextLabel string, now time.Time) Record {
	category := Classify(err)
	def := Define(category)
	msg := def.Message
	if err != nil {
		msg = err.Error()
	}
	return Record{
		ID:        uuid.NewString(),
		Category:  category,
		Severity:  def.Severity,
		Context:   contextLabel,
		Message:   msg,
		Timestamp: now,
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
