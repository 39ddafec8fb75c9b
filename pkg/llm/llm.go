// Package llm provides a unified interface for language-model providers and
// a dispatcher implementing primary/fallback model selection.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of conversation context sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest describes one generation call.
type GenerateRequest struct {
	Messages    []Message
	Model       string
	Temperature float64
	MaxTokens   int
}

// Response is the model's reply.
type Response struct {
	// Text is the generated reply.
	Text string

	// Model is the model identifier that actually produced the text.
	Model string

	// FinishReason reports why generation stopped, when the provider says.
	FinishReason string
}

// Provider defines the language-model provider interface.
type Provider interface {
	// Generate produces a reply for the given messages and model.
	Generate(ctx context.Context, req GenerateRequest) (*Response, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Sentinel errors.
var (
	// ErrNoAPIKey is returned when the API key is missing.
	ErrNoAPIKey = errors.New("llm: API key required")

	// ErrNoModels is returned when a candidate list is empty.
	ErrNoModels = errors.New("llm: no candidate models")
)

// Unavailability signatures in provider error messages. The adapter layer
// translates these into GenerationError.Retryable so callers never match on
// message wording themselves.
var retryableSignatures = []string{
	"no allowed providers are available",
	"404",
}

// GenerationError represents a failed generation call.
type GenerationError struct {
	// Provider identifies which provider returned the error.
	Provider string

	// Model is the model that was requested.
	Model string

	// StatusCode is the HTTP status code, when the failure was an API error.
	StatusCode int

	// Message is the provider's error text.
	Message string

	// Retryable marks provider-unavailability failures that warrant one
	// attempt against a fallback model. All other failures are fatal.
	Retryable bool
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	return fmt.Sprintf("llm [%s]: model %s: %s", e.Provider, e.Model, e.Message)
}

// newGenerationError builds a GenerationError, deriving Retryable from the
// status code and the documented unavailability signatures.
func newGenerationError(provider, model string, statusCode int, message string) *GenerationError {
	e := &GenerationError{
		Provider:   provider,
		Model:      model,
		StatusCode: statusCode,
		Message:    message,
	}
	if statusCode == 404 {
		e.Retryable = true
		return e
	}
	lowered := strings.ToLower(message)
	for _, sig := range retryableSignatures {
		if strings.Contains(lowered, sig) {
			e.Retryable = true
			break
		}
	}
	return e
}

// IsRetryable reports whether err carries a provider-unavailability signal.
func IsRetryable(err error) bool {
	var genErr *GenerationError
	return errors.As(err, &genErr) && genErr.Retryable
}

// ProviderError wraps a transport-level error with provider context.
type ProviderError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm [%s]: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}
