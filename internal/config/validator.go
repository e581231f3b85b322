package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/zero-day-ai/threatviz/internal/llm"
	"github.com/zero-day-ai/threatviz/internal/types"
)

// ConfigValidator validates configuration values.
type ConfigValidator interface {
	Validate(cfg *Config) error
}

// validatorImpl implements ConfigValidator using go-playground/validator.
type validatorImpl struct {
	validate *validator.Validate
}

// NewValidator creates a new ConfigValidator instance.
func NewValidator() ConfigValidator {
	return &validatorImpl{
		validate: validator.New(),
	}
}

// Validate checks struct tags first, then the cross-field rules tags cannot
// express. All problems are reported together as CONFIG_VALIDATION_FAILED.
func (v *validatorImpl) Validate(cfg *Config) error {
	if cfg == nil {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "configuration is nil")
	}

	var errorMessages []string

	if err := v.validate.Struct(cfg); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			return types.WrapError(types.CONFIG_VALIDATION_FAILED, "validation error", err)
		}
		for _, e := range validationErrs {
			errorMessages = append(errorMessages, formatValidationError(e))
		}
	}

	if cfg.LLM.DefaultProvider != "" {
		if _, err := llm.ParseProvider(cfg.LLM.DefaultProvider); err != nil {
			errorMessages = append(errorMessages, fmt.Sprintf("llm.default_provider must be one of [%s] (got: %s)",
				strings.Join(llm.SupportedProviders(), " "), cfg.LLM.DefaultProvider))
		}
	}
	for name := range cfg.LLM.Providers {
		if _, err := llm.ParseProvider(name); err != nil {
			errorMessages = append(errorMessages, fmt.Sprintf("llm.providers.%s is not a supported provider", name))
		}
	}

	if k := cfg.Knowledge; k.ChunkSize > 0 && k.ChunkOverlap >= k.ChunkSize {
		errorMessages = append(errorMessages, fmt.Sprintf(
			"knowledge.chunk_overlap must be less than knowledge.chunk_size (got: %d >= %d)", k.ChunkOverlap, k.ChunkSize))
	}

	for i, src := range cfg.Knowledge.JSONSources {
		if src.Location == "" {
			errorMessages = append(errorMessages, fmt.Sprintf("knowledge.json_sources[%d].location is required", i))
		}
	}

	if err := cfg.Logging.Validate(); err != nil {
		errorMessages = append(errorMessages, "logging: "+err.Error())
	}
	if err := cfg.Tracing.Validate(); err != nil {
		errorMessages = append(errorMessages, "tracing: "+err.Error())
	}
	if err := cfg.Metrics.Validate(); err != nil {
		errorMessages = append(errorMessages, "metrics: "+err.Error())
	}

	if len(errorMessages) == 0 {
		return nil
	}
	return types.NewError(types.CONFIG_VALIDATION_FAILED,
		fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(errorMessages, "\n  - ")))
}

// formatValidationError formats a single validation error with field path and details.
func formatValidationError(e validator.FieldError) string {
	fieldPath := formatFieldPath(e.Namespace())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fieldPath)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s (got: %v)", fieldPath, e.Param(), e.Value())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s (got: %v)", fieldPath, e.Param(), e.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", fieldPath, e.Param(), e.Value())
	case "url":
		return fmt.Sprintf("%s must be a valid URL (got: %v)", fieldPath, e.Value())
	default:
		return fmt.Sprintf("%s failed validation '%s' (got: %v)", fieldPath, e.Tag(), e.Value())
	}
}

// formatFieldPath converts validator namespace to a more readable field path.
// Example: "Config.Knowledge.ChunkSize" -> "knowledge.chunk_size"
func formatFieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) <= 1 {
		return namespace
	}

	result := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		result = append(result, camelToSnake(parts[i]))
	}

	return strings.Join(result, ".")
}

// camelToSnake converts CamelCase to snake_case. Runs of capitals such as
// "LLM" or "URLs" stay together.
func camelToSnake(s string) string {
	runes := []rune(s)
	var result strings.Builder
	for i, r := range runes {
		if i > 0 && isUpper(r) {
			prevLower := !isUpper(runes[i-1])
			nextLower := i+1 < len(runes) && !isUpper(runes[i+1]) && runes[i+1] != 's'
			if prevLower || nextLower {
				result.WriteRune('_')
			}
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}

func isUpper(r rune) bool {
	return r >= 'A' && r <= 'Z'
}
