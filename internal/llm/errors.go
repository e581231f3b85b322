package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zero-day-ai/threatviz/internal/types"
)

// Sentinels for errors.Is; they compare by code.
var (
	ErrProviderUnavailable = types.NewError(types.PROVIDER_UNAVAILABLE, "provider unavailable")
	ErrUpstream            = types.NewError(types.UPSTREAM_ERROR, "upstream provider error")
	ErrUnsupportedProvider = types.NewError(types.UNSUPPORTED_PROVIDER, "unsupported provider")
)

// NewProviderUnavailableError reports a provider that cannot be used because
// its credentials are missing.
func NewProviderUnavailableError(provider ProviderType, envVar string) *types.Error {
	msg := fmt.Sprintf("provider '%s' has no API key configured", provider)
	if envVar != "" {
		msg = fmt.Sprintf("provider '%s' has no API key configured (set %s)", provider, envVar)
	}
	return types.NewError(types.PROVIDER_UNAVAILABLE, msg)
}

// NewUnsupportedProviderError reports a provider name outside the supported set.
func NewUnsupportedProviderError(name string) *types.Error {
	return types.NewError(types.UNSUPPORTED_PROVIDER,
		fmt.Sprintf("unsupported provider %q - must be one of: %s", name, strings.Join(SupportedProviders(), ", ")))
}

// NewUpstreamError wraps a provider-side failure.
func NewUpstreamError(provider, message string, cause error) *types.Error {
	return types.WrapError(types.UPSTREAM_ERROR, fmt.Sprintf("%s: %s", provider, message), cause)
}

// TranslateError maps a raw client error to UPSTREAM_ERROR. Rate limits,
// timeouts and network failures are marked retryable; nothing in threatviz
// retries on its own.
func TranslateError(provider string, err error) error {
	if err == nil {
		return nil
	}

	var typed *types.Error
	if errors.As(err, &typed) {
		return err
	}

	lowerMsg := strings.ToLower(err.Error())
	upstream := NewUpstreamError(provider, "completion failed", err)

	switch {
	case errors.Is(err, context.Canceled):
		upstream.Message = provider + ": request canceled"
	case errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(lowerMsg, "timeout") || strings.Contains(lowerMsg, "deadline"):
		upstream.Message = provider + ": request timed out"
		upstream.Retryable = true
	case strings.Contains(lowerMsg, "rate limit") || strings.Contains(lowerMsg, "too many requests") ||
		strings.Contains(lowerMsg, "429"):
		upstream.Message = provider + ": rate limit exceeded"
		upstream.Retryable = true
	case strings.Contains(lowerMsg, "unauthorized") || strings.Contains(lowerMsg, "authentication") ||
		strings.Contains(lowerMsg, "api key") || strings.Contains(lowerMsg, "401"):
		upstream.Message = provider + ": authentication failed"
	case strings.Contains(lowerMsg, "network") || strings.Contains(lowerMsg, "connection"):
		upstream.Message = provider + ": network failure"
		upstream.Retryable = true
	}
	return upstream
}
