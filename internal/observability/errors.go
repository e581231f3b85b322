package observability

import (
	"fmt"

	"github.com/zero-day-ai/threatviz/internal/types"
)

// Observability error codes.
const (
	// ErrExporterConnection indicates failure to set up a telemetry exporter.
	ErrExporterConnection types.ErrorCode = "OBSERVABILITY_EXPORTER_CONNECTION"

	// ErrShutdownTimeout indicates pending telemetry could not be flushed.
	ErrShutdownTimeout types.ErrorCode = "OBSERVABILITY_SHUTDOWN_TIMEOUT"

	// ErrInvalidConfig indicates a logging, tracing or metrics setting is unusable.
	ErrInvalidConfig types.ErrorCode = "OBSERVABILITY_INVALID_CONFIG"
)

// NewExporterConnectionError creates an error for exporter connection failures.
// Network issues are often transient, so it is retryable.
func NewExporterConnectionError(endpoint string, cause error) *types.Error {
	return &types.Error{
		Code:      ErrExporterConnection,
		Message:   fmt.Sprintf("failed to connect to exporter at %s", endpoint),
		Retryable: true,
		Cause:     cause,
	}
}

// NewShutdownTimeoutError creates an error for a provider that failed to flush.
func NewShutdownTimeoutError(component string, cause error) *types.Error {
	return types.WrapError(ErrShutdownTimeout, fmt.Sprintf("failed to shut down %s", component), cause)
}
