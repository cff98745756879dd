package config

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func documentSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})
	return schema, schemaErr
}

// ValidateDocument checks a raw config file against the embedded JSON schema.
// It catches unknown keys and wrong types, which viper would silently ignore.
func ValidateDocument(data []byte) error {
	s, err := documentSchema()
	if err != nil {
		return fmt.Errorf("failed to compile config schema: %w", err)
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(details, "; "))
}

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidatePort validates a TCP port; 0 picks a free one
func (v *Validator) ValidatePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("port out of range: %d", port)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	lanes := cfg.Lanes
	if lanes.MaxWaitSeconds <= 0 {
		errors = append(errors, fmt.Errorf("lanes.max_wait_seconds must be > 0"))
	}
	if lanes.DefaultWaitSeconds < 0 {
		errors = append(errors, fmt.Errorf("lanes.default_wait_seconds must be >= 0"))
	}
	if lanes.MaxWaitSeconds > 0 && lanes.DefaultWaitSeconds > lanes.MaxWaitSeconds {
		errors = append(errors, fmt.Errorf("lanes.default_wait_seconds (%d) exceeds lanes.max_wait_seconds (%d)",
			lanes.DefaultWaitSeconds, lanes.MaxWaitSeconds))
	}
	if lanes.SnapshotWidth < 1 {
		errors = append(errors, fmt.Errorf("lanes.snapshot_width must be >= 1"))
	}
	if lanes.MaxSourceChars < 4 {
		errors = append(errors, fmt.Errorf("lanes.max_source_chars must be >= 4"))
	}

	for i, hook := range cfg.Hooks {
		if strings.TrimSpace(hook.Event) == "" {
			errors = append(errors, fmt.Errorf("hooks[%d].event is required", i))
		}
		if strings.TrimSpace(hook.Script) == "" {
			errors = append(errors, fmt.Errorf("hooks[%d].script is required", i))
		}
		if hook.TimeoutSeconds < 0 {
			errors = append(errors, fmt.Errorf("hooks[%d].timeout_seconds must be >= 0", i))
		}
	}

	if strings.TrimSpace(cfg.Executor.Shell) == "" {
		errors = append(errors, fmt.Errorf("executor.shell is required"))
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}
	if cfg.Logging.MaxSize < 0 {
		errors = append(errors, fmt.Errorf("logging.max_size must be >= 0"))
	}
	if cfg.Logging.MaxAge < 0 {
		errors = append(errors, fmt.Errorf("logging.max_age must be >= 0"))
	}

	if cfg.Monitor.Enabled {
		if err := v.ValidatePort(cfg.Monitor.Port); err != nil {
			errors = append(errors, fmt.Errorf("monitor: %w", err))
		}
	}

	if cfg.Tracing.Enabled && strings.TrimSpace(cfg.Tracing.ServiceName) == "" {
		errors = append(errors, fmt.Errorf("tracing.service_name is required when tracing is enabled"))
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errors = append(errors, fmt.Errorf("tracing.sample_ratio must be between 0 and 1"))
	}

	return errors
}
