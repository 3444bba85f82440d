package providers

import (
	"context"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIConfig holds configuration for an OpenAI-compatible host. Ollama
// itself exposes one at {endpoint}/v1, as do most local inference servers.
type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client // optional (tests)
}

// OpenAIClient implements Client via the official OpenAI SDK against any
// compatible /v1 surface.
type OpenAIClient struct {
	model   string
	baseURL string
	client  openai.Client
}

// NewOpenAIClient creates a client for an OpenAI-compatible host.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		// The gateway owns retries; the SDK transport must not add its own.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		model:   cfg.Model,
		baseURL: cfg.BaseURL,
		client:  openai.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (c *OpenAIClient) Name() string { return "openai" }

// Generate sends the prompt as a single user message.
func (c *OpenAIClient) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.TopP > 0 {
		params.TopP = openai.Float(req.TopP)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, ErrEmptyResponse
	}

	return &GenerateResult{
		Text:      resp.Choices[0].Message.Content,
		Model:     model,
		Provider:  c.Name(),
		Elapsed:   time.Since(start),
		RequestID: req.RequestID,
	}, nil
}

// Availability lists models via /v1/models. Compatible hosts do not expose
// a version endpoint, so the model listing is the primary probe here.
func (c *OpenAIClient) Availability(ctx context.Context) (*AvailabilityStatus, error) {
	status := &AvailabilityStatus{CheckedAt: time.Now()}

	page, err := c.client.Models.List(ctx)
	if err != nil {
		status.Reason = "model listing failed: " + err.Error()
		return status, nil
	}

	status.Available = true
	for _, m := range page.Data {
		status.Models = append(status.Models, m.ID)
	}
	return status, nil
}
