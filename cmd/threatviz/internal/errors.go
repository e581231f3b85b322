package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zero-day-ai/threatviz/internal/pipeline"
	"github.com/zero-day-ai/threatviz/internal/types"
)

// Exit code constants for the CLI
const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitError indicates a general error
	ExitError = 1
	// ExitUsage indicates an unusable identifier or provider name
	ExitUsage = 2
	// ExitTimeout indicates the operation timed out
	ExitTimeout = 3
	// ExitCancelled indicates the operation was cancelled
	ExitCancelled = 4
	// ExitConfigError indicates a configuration error
	ExitConfigError = 10
	// ExitIndexError indicates the retrieval index could not be built or loaded
	ExitIndexError = 11
	// ExitFetchError indicates the registry lookup failed
	ExitFetchError = 12
	// ExitProviderError indicates the language model could not be reached
	ExitProviderError = 13
	// ExitReportError indicates the final report could not be parsed
	ExitReportError = 14
)

// CLIError represents a CLI-specific error with an exit code
type CLIError struct {
	Code    int
	Message string
	Cause   error
}

// Error implements the error interface
func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// WrapError creates a new CLIError wrapping an existing error
func WrapError(code int, message string, err error) *CLIError {
	return &CLIError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// NewCLIError creates a new CLIError with the given code and message
func NewCLIError(code int, message string) *CLIError {
	return &CLIError{
		Code:    code,
		Message: message,
	}
}

// HandleError prints err to the command's error output and returns the
// matching exit code.
func HandleError(cmd *cobra.Command, err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, context.Canceled) {
		cmd.PrintErrln("Operation cancelled")
		return ExitCancelled
	}

	if errors.Is(err, context.DeadlineExceeded) {
		cmd.PrintErrln("Operation timed out")
		return ExitTimeout
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		cmd.PrintErrln("Error:", cliErr.Message)
		if cliErr.Cause != nil && verboseFlagSet(cmd) {
			cmd.PrintErrln("Cause:", cliErr.Cause)
		}
		if cliErr.Code == ExitError {
			if code := ExitCodeFor(cliErr.Cause); code != ExitError {
				return code
			}
		}
		return cliErr.Code
	}

	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		cmd.PrintErrf("Error: %s stage failed: %v\n", stageErr.Stage, stageErr.Err)
		if verboseFlagSet(cmd) {
			if stageErr.Identifier != "" {
				cmd.PrintErrln("Identifier:", stageErr.Identifier)
			}
			if code := types.CodeOf(err); code != "" {
				cmd.PrintErrln("Code:", code)
			}
		}
		if IsRetryable(err) {
			cmd.PrintErrln("The failure looks transient; running the command again may succeed.")
		}
		return ExitCodeFor(err)
	}

	cmd.PrintErrln("Error:", err)
	return ExitCodeFor(err)
}

// ExitCodeFor maps a typed error code to a CLI exit code.
func ExitCodeFor(err error) int {
	code := types.CodeOf(err)
	switch {
	case code == "":
		return ExitError
	case code == types.INVALID_FORMAT, code == types.UNSUPPORTED_PROVIDER:
		return ExitUsage
	case strings.HasPrefix(string(code), "CONFIG_"):
		return ExitConfigError
	case code == types.NO_DOCUMENTS, code == types.INGEST_FAILED,
		code == types.INVALID_CHUNK_OPTIONS, code == types.EMBEDDING_FAILED,
		strings.HasPrefix(string(code), "INDEX_"):
		return ExitIndexError
	case code == types.FETCH_FAILED:
		return ExitFetchError
	case code == types.PROVIDER_UNAVAILABLE, code == types.UPSTREAM_ERROR:
		return ExitProviderError
	case code == types.MALFORMED_REPORT:
		return ExitReportError
	default:
		return ExitError
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	return types.IsRetryable(err)
}

func verboseFlagSet(cmd *cobra.Command) bool {
	flag := cmd.Flag("verbose")
	return flag != nil && flag.Changed
}

// IsVerbose checks if verbose mode is enabled via environment variable or flag.
// Panic recovery uses it before flags are parsed.
func IsVerbose() bool {
	if os.Getenv("THREATVIZ_VERBOSE") != "" {
		return true
	}

	for _, arg := range os.Args {
		if arg == "-v" || arg == "--verbose" {
			return true
		}
	}

	return false
}
