package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/zero-day-ai/threatviz/internal/llm"
)

// MockCall represents a recorded call to the mock provider
type MockCall struct {
	Request llm.CompletionRequest
}

// MockProvider implements llm.Provider for testing. Responses are returned in
// order and cycle once exhausted; Respond, when set, takes precedence.
type MockProvider struct {
	mu            sync.RWMutex
	responses     []string
	responseIndex int
	calls         []MockCall
	err           error

	// Respond computes a response from the prompt text.
	Respond func(prompt string) string
}

// NewMockProvider creates a new mock provider
func NewMockProvider(responses []string) *MockProvider {
	return &MockProvider{
		responses: responses,
		calls:     make([]MockCall, 0),
	}
}

// Name returns the provider name
func (p *MockProvider) Name() string {
	return "mock"
}

// Model returns the mock model name
func (p *MockProvider) Model() string {
	return "mock-model"
}

// Complete generates a completion
func (p *MockProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.calls = append(p.calls, MockCall{Request: req})

	if p.err != nil {
		err := p.err
		p.mu.Unlock()
		return nil, err
	}

	var response string
	switch {
	case p.Respond != nil:
		prompt := ""
		if n := len(req.Messages); n > 0 {
			prompt = req.Messages[n-1].Content
		}
		response = p.Respond(prompt)
	case len(p.responses) == 0:
		p.mu.Unlock()
		return nil, fmt.Errorf("no responses configured")
	default:
		response = p.responses[p.responseIndex%len(p.responses)]
		p.responseIndex++
	}
	p.mu.Unlock()

	return &llm.CompletionResponse{
		ID:           uuid.New().String(),
		Model:        req.Model,
		Content:      response,
		FinishReason: llm.FinishReasonStop,
		Usage: llm.TokenUsage{
			PromptTokens:     10,
			CompletionTokens: len(response) / 4,
			TotalTokens:      10 + len(response)/4,
		},
	}, nil
}

// SetError makes every following call fail with err; nil clears it.
func (p *MockProvider) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// GetCalls returns all recorded calls (thread-safe)
func (p *MockProvider) GetCalls() []MockCall {
	p.mu.RLock()
	defer p.mu.RUnlock()

	calls := make([]MockCall, len(p.calls))
	copy(calls, p.calls)
	return calls
}

// Reset resets the mock provider state
func (p *MockProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = make([]MockCall, 0)
	p.responseIndex = 0
	p.err = nil
}
