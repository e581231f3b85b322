package embedder

import (
	"fmt"

	"github.com/zero-day-ai/threatviz/internal/types"
)

const (
	// ErrCodeInvalidConfig indicates the embedder configuration is unusable.
	ErrCodeInvalidConfig types.ErrorCode = "INVALID_EMBEDDER_CONFIG"
)

// ErrEmbeddingFailed matches any embedding failure via errors.Is.
var ErrEmbeddingFailed = types.NewError(types.EMBEDDING_FAILED, "embedding failed")

func newEmbeddingError(model string, cause error) error {
	return types.WrapError(types.EMBEDDING_FAILED, fmt.Sprintf("embedding with %s failed", model), cause)
}

func newDimensionError(model string, want, got int) error {
	return types.NewError(types.EMBEDDING_FAILED,
		fmt.Sprintf("embedding with %s returned %d dimensions, expected %d", model, got, want))
}
