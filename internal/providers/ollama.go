package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaConfig holds configuration for the native Ollama client.
type OllamaConfig struct {
	Endpoint   string        // base URL, e.g. http://localhost:11434
	Model      string        // default model when a request names none
	Timeout    time.Duration // client-side request timeout
	HTTPClient *http.Client  // optional (tests)
}

// OllamaClient talks to a local Ollama host.
type OllamaClient struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewOllamaClient creates a client for the given host.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:11434"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &OllamaClient{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		model:    cfg.Model,
		client:   client,
	}
}

// Name returns the provider identifier.
func (c *OllamaClient) Name() string { return "ollama" }

type ollamaGenerateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	Stream      bool    `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Generate issues a non-streaming generation request. Some hosts answer a
// single JSON object, others newline-delimited objects even when streaming
// was not requested; both shapes parse the same way here.
func (c *OllamaClient) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:       model,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	text, err := parseGenerateBody(resp.Body)
	if err != nil {
		return nil, err
	}

	return &GenerateResult{
		Text:      text,
		Model:     model,
		Provider:  c.Name(),
		Elapsed:   time.Since(start),
		RequestID: req.RequestID,
	}, nil
}

// parseGenerateBody handles both response shapes: one JSON object, or
// newline-delimited objects each contributing a response fragment.
// Malformed lines are skipped; only an empty concatenation is an error.
func parseGenerateBody(r io.Reader) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var single ollamaGenerateResponse
	if err := json.Unmarshal(bytes.TrimSpace(raw), &single); err == nil {
		if single.Error != "" {
			return "", fmt.Errorf("ollama error: %s", single.Error)
		}
		if single.Response == "" {
			return "", ErrEmptyResponse
		}
		return single.Response, nil
	}

	var b strings.Builder
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var obj ollamaGenerateResponse
		if err := json.Unmarshal(line, &obj); err != nil {
			// Malformed fragment; skip and keep what we have.
			continue
		}
		b.WriteString(obj.Response)
	}

	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

type ollamaVersionResponse struct {
	Version string `json:"version"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Availability queries /api/version and, best effort, /api/tags. A tags
// failure does not invalidate a successful version probe.
func (c *OllamaClient) Availability(ctx context.Context) (*AvailabilityStatus, error) {
	status := &AvailabilityStatus{CheckedAt: time.Now()}

	var version ollamaVersionResponse
	if err := c.getJSON(ctx, "/api/version", &version); err != nil {
		status.Reason = fmt.Sprintf("version check failed: %v", err)
		return status, nil
	}
	status.Available = true
	status.Version = version.Version

	var tags ollamaTagsResponse
	if err := c.getJSON(ctx, "/api/tags", &tags); err == nil {
		for _, m := range tags.Models {
			status.Models = append(status.Models, m.Name)
		}
	}

	return status, nil
}

func (c *OllamaClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
