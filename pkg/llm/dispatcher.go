package llm

import (
	"context"
	"log/slog"
)

// Default model selection.
const (
	DefaultPrimaryModel  = "openai/gpt-4o-mini"
	DefaultFallbackModel = "meta-llama/llama-3.1-8b-instruct"
)

// FallbackText is substituted when a model returns no content. The pipeline
// must always have some toy utterance, so an empty reply is not an error.
const FallbackText = "Hmm, I'm not sure what to say about that. Can you tell me more?"

// Dispatcher routes generation calls to a provider with primary/fallback
// model selection.
type Dispatcher struct {
	provider Provider
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over the given provider.
func NewDispatcher(provider Provider) *Dispatcher {
	return &Dispatcher{
		provider: provider,
		logger:   slog.Default().With("component", "llm.dispatcher"),
	}
}

// NewDispatcherWithLogger creates a dispatcher with a custom logger.
func NewDispatcherWithLogger(provider Provider, logger *slog.Logger) *Dispatcher {
	d := NewDispatcher(provider)
	d.logger = logger.With("component", "llm.dispatcher")
	return d
}

// Generate calls the primary model, retrying exactly once with the fallback
// model when the primary fails with a provider-unavailability signal. Any
// other error propagates unchanged.
func (d *Dispatcher) Generate(ctx context.Context, messages []Message, primary, fallback string, maxTokens int) (*Response, error) {
	resp, err := d.provider.Generate(ctx, GenerateRequest{
		Messages:  messages,
		Model:     primary,
		MaxTokens: maxTokens,
	})
	if err != nil {
		if !IsRetryable(err) || fallback == "" {
			return nil, err
		}

		d.logger.Warn("primary model unavailable, trying fallback",
			"primary", primary,
			"fallback", fallback,
			"error", err,
		)

		resp, err = d.provider.Generate(ctx, GenerateRequest{
			Messages:  messages,
			Model:     fallback,
			MaxTokens: maxTokens,
		})
		if err != nil {
			return nil, err
		}
	}

	return d.ensureText(resp), nil
}

// GenerateWithCandidates tries each model in order until one succeeds,
// returning the last error when the list is exhausted. Used by the batch
// path, which prefers throughput over the single-retry contract.
func (d *Dispatcher) GenerateWithCandidates(ctx context.Context, messages []Message, models []string, maxTokens int) (*Response, error) {
	if len(models) == 0 {
		return nil, ErrNoModels
	}

	var lastErr error
	for i, model := range models {
		resp, err := d.provider.Generate(ctx, GenerateRequest{
			Messages:  messages,
			Model:     model,
			MaxTokens: maxTokens,
		})
		if err == nil {
			if i > 0 {
				d.logger.Info("candidate model succeeded",
					"model", model,
					"attempt", i+1,
				)
			}
			return d.ensureText(resp), nil
		}

		lastErr = err
		d.logger.Warn("candidate model failed, trying next",
			"model", model,
			"error", err,
		)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// Health checks the underlying provider's connectivity.
func (d *Dispatcher) Health(ctx context.Context) error {
	return d.provider.Health(ctx)
}

// ensureText substitutes the fixed fallback string when a model produced no
// content.
func (d *Dispatcher) ensureText(resp *Response) *Response {
	if resp.Text == "" {
		d.logger.Warn("model returned empty content, substituting fallback text",
			"model", resp.Model,
		)
		resp.Text = FallbackText
	}
	return resp
}
