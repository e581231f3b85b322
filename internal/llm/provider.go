package llm

import (
	"context"
)

// Provider defines the interface that all LLM providers must implement.
// It is a unified, stateless abstraction over the supported services.
type Provider interface {
	// Name returns the provider name (e.g., "groq", "anthropic")
	Name() string

	// Model returns the model used when a request leaves Model empty.
	Model() string

	// Complete sends a completion request and returns the full response.
	// This is a blocking call that waits for the entire response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Completer is the prompt-in, text-out capability the pipeline depends on.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
