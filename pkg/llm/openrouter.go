package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/playmatelabs/go-playmate/internal/httpc"
)

const (
	openRouterBaseURL  = "https://openrouter.ai/api/v1"
	providerOpenRouter = "openrouter"
)

// OpenRouter implements Provider against an OpenAI-compatible
// chat-completions API.
type OpenRouter struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// Config holds LLM provider configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	APIKey      string
	BaseURL     string
	Temperature float64
	Timeout     time.Duration
	Logger      *slog.Logger
}

// Option is a functional option for configuring LLM providers.
type Option func(*Config)

// WithAPIKey sets the API key for the provider.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithTemperature sets the default sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) {
		c.Temperature = t
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithLogger sets the structured logger for the provider.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Temperature: 0.8,
		Timeout:     45 * time.Second,
		Logger:      slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}

// NewOpenRouter creates a new OpenRouter chat-completions provider.
func NewOpenRouter(opts ...Option) (*OpenRouter, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openRouterBaseURL
	}

	return &OpenRouter{
		config:  cfg,
		client:  httpc.NewClient(cfg.Timeout),
		logger:  cfg.Logger.With("component", "llm.openrouter"),
		baseURL: baseURL,
	}, nil
}

// chatRequest mirrors the chat-completions request body.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// chatResponse mirrors the chat-completions response body.
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Generate produces a reply for the given messages and model.
func (o *OpenRouter) Generate(ctx context.Context, genReq GenerateRequest) (*Response, error) {
	start := time.Now()

	temperature := genReq.Temperature
	if temperature == 0 {
		temperature = o.config.Temperature
	}

	payload := chatRequest{
		Model:       genReq.Model,
		Messages:    genReq.Messages,
		Temperature: temperature,
		MaxTokens:   genReq.MaxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ProviderError{Provider: providerOpenRouter, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	url := o.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: providerOpenRouter, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+o.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: providerOpenRouter, Err: fmt.Errorf("chat request: %w", err)}
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: providerOpenRouter, Err: fmt.Errorf("read response: %w", err)}
	}

	var decoded chatResponse
	if jsonErr := json.Unmarshal(raw, &decoded); jsonErr != nil && resp.StatusCode == http.StatusOK {
		return nil, &ProviderError{Provider: providerOpenRouter, Err: fmt.Errorf("decode response: %w", jsonErr)}
	}

	if resp.StatusCode != http.StatusOK || decoded.Error != nil {
		message := string(raw)
		if decoded.Error != nil && decoded.Error.Message != "" {
			message = decoded.Error.Message
		}
		return nil, newGenerationError(providerOpenRouter, genReq.Model, resp.StatusCode, message)
	}

	result := &Response{Model: decoded.Model}
	if result.Model == "" {
		result.Model = genReq.Model
	}
	if len(decoded.Choices) > 0 {
		result.Text = decoded.Choices[0].Message.Content
		result.FinishReason = decoded.Choices[0].FinishReason
	}

	o.logger.Debug("generated reply",
		"model", result.Model,
		"chars", len(result.Text),
		"latency_ms", latency,
	)

	return result, nil
}

// Health checks API connectivity and API key validity.
func (o *OpenRouter) Health(ctx context.Context) error {
	url := o.baseURL + "/models"
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return &ProviderError{Provider: providerOpenRouter, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+o.config.APIKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return &ProviderError{Provider: providerOpenRouter, Err: fmt.Errorf("health check: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return newGenerationError(providerOpenRouter, "", resp.StatusCode, string(body))
	}
	return nil
}

// Close releases resources held by the provider.
func (o *OpenRouter) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

// Verify OpenRouter implements Provider at compile time.
var _ Provider = (*OpenRouter)(nil)
