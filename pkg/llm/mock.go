package llm

import (
	"context"
	"sync"
)

// Mock implements Provider for testing.
// Outcomes can be scripted per model via Script, or fully customized via
// GenerateFunc.
type Mock struct {
	// GenerateFunc is called when Generate is invoked.
	// If nil, Script decides the outcome.
	GenerateFunc func(ctx context.Context, req GenerateRequest) (*Response, error)

	// Script maps model names to a fixed outcome.
	Script map[string]MockOutcome

	// DefaultText is returned for models not present in Script.
	DefaultText string

	// HealthFunc is called when Health is invoked. If nil, Health reports
	// healthy.
	HealthFunc func(ctx context.Context) error

	mu          sync.Mutex
	calls       []GenerateRequest
	healthCalls int
}

// MockOutcome is the scripted result for one model.
type MockOutcome struct {
	Text string
	Err  error
}

// NewMock creates a mock that replies with text for every model.
func NewMock(text string) *Mock {
	return &Mock{DefaultText: text}
}

// Generate returns the scripted outcome for the requested model.
func (m *Mock) Generate(ctx context.Context, req GenerateRequest) (*Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}

	if outcome, ok := m.Script[req.Model]; ok {
		if outcome.Err != nil {
			return nil, outcome.Err
		}
		return &Response{Text: outcome.Text, Model: req.Model, FinishReason: "stop"}, nil
	}

	return &Response{Text: m.DefaultText, Model: req.Model, FinishReason: "stop"}, nil
}

// Health returns the scripted health outcome, healthy by default.
func (m *Mock) Health(ctx context.Context) error {
	m.mu.Lock()
	m.healthCalls++
	m.mu.Unlock()

	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// HealthCalls returns how many times Health was invoked.
func (m *Mock) HealthCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthCalls
}

// Close returns nil.
func (m *Mock) Close() error {
	return nil
}

// Calls returns every recorded generate request.
func (m *Mock) Calls() []GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]GenerateRequest, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallsForModel returns how many times a model was requested.
func (m *Mock) CallsForModel(model string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Model == model {
			count++
		}
	}
	return count
}

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
