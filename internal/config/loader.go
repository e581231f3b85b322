package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/zero-day-ai/threatviz/internal/fsx"
	"github.com/zero-day-ai/threatviz/internal/types"
	"gopkg.in/yaml.v3"
)

// ConfigLoader handles loading configuration from files.
type ConfigLoader interface {
	Load(path string) (*Config, error)
	LoadWithDefaults(path string) (*Config, error)
}

// viperConfigLoader implements ConfigLoader using Viper.
type viperConfigLoader struct {
	validator ConfigValidator
	homeDir   string
}

// NewConfigLoader creates a new ConfigLoader instance. Defaults for keys
// missing from a file are rooted at homeDir; empty means DefaultHomeDir.
func NewConfigLoader(validator ConfigValidator, homeDir string) ConfigLoader {
	if homeDir == "" {
		homeDir = DefaultHomeDir()
	}
	return &viperConfigLoader{
		validator: validator,
		homeDir:   homeDir,
	}
}

// Load reads path over the defaults, expands ${VAR} references in every
// string value and validates the result. Keys absent from the file keep
// their default values.
func (l *viperConfigLoader) Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to read config file", err)
	}

	// Interpolate the raw settings, then decode the result onto the defaults.
	interpolated := viper.New()
	settings, _ := interpolateEnvVars(v.AllSettings()).(map[string]interface{})
	if err := interpolated.MergeConfigMap(settings); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to apply environment variable interpolation", err)
	}

	// ZeroFields makes lists and maps in the file replace the defaults
	// instead of merging element by element.
	cfg := DefaultConfigFor(l.homeDir)
	if err := interpolated.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.ZeroFields = true
	}); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to unmarshal config", err)
	}

	if err := l.validator.Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration from the specified file path.
// If the file doesn't exist, returns default configuration.
func (l *viperConfigLoader) LoadWithDefaults(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := DefaultConfigFor(l.homeDir)
		if err := l.validator.Validate(cfg); err != nil {
			return nil, fmt.Errorf("default configuration validation failed: %w", err)
		}
		return cfg, nil
	}

	return l.Load(path)
}

// Write serializes cfg as YAML and replaces path atomically.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return types.WrapError(types.CONFIG_LOAD_FAILED, "failed to encode config", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return types.WrapError(types.CONFIG_LOAD_FAILED, "failed to create config directory", err)
	}
	if err := fsx.WriteFileAtomic(path, data, 0o600); err != nil {
		return types.WrapError(types.CONFIG_LOAD_FAILED, "failed to write config file", err)
	}
	return nil
}

// envPattern matches ${VAR_NAME}.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// interpolateEnvVars recursively interpolates environment variables in the config map.
func interpolateEnvVars(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, value := range v {
			result[key] = interpolateEnvVars(value)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, value := range v {
			result[i] = interpolateEnvVars(value)
		}
		return result
	case string:
		return interpolateString(v)
	default:
		return v
	}
}

// interpolateString replaces ${VAR_NAME} with the variable's value. Unset
// variables expand to the empty string so a missing secret reads as absent
// rather than as a literal placeholder.
func interpolateString(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}
