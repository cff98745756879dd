package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// Config represents the main bglane configuration
type Config struct {
	// Lanes
	Lanes LanesConfig `json:"lanes" mapstructure:"lanes"`

	// Executor
	Executor ExecutorConfig `json:"executor" mapstructure:"executor"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Monitor HTTP server
	Monitor MonitorConfig `json:"monitor" mapstructure:"monitor"`

	// Tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Shell hooks run on scheduler events
	Hooks []HookConfig `json:"hooks,omitempty" mapstructure:"hooks"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// LanesConfig holds scheduler and session limits
type LanesConfig struct {
	AutoLoad           bool `json:"auto_load" mapstructure:"auto_load"` // enable background mode at startup
	DefaultWaitSeconds int  `json:"default_wait_seconds" mapstructure:"default_wait_seconds"`
	MaxWaitSeconds     int  `json:"max_wait_seconds" mapstructure:"max_wait_seconds"`
	SnapshotWidth      int  `json:"snapshot_width" mapstructure:"snapshot_width"`
	MaxSourceChars     int  `json:"max_source_chars" mapstructure:"max_source_chars"`
}

// ExecutorConfig holds shell executor settings
type ExecutorConfig struct {
	Shell      string            `json:"shell" mapstructure:"shell"`
	WorkingDir string            `json:"working_dir" mapstructure:"working_dir"`
	Env        map[string]string `json:"env,omitempty" mapstructure:"env"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	// Console logs go to stderr so they do not mix with job output
	Console   bool   `json:"console" mapstructure:"console"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	Audit     bool   `json:"audit" mapstructure:"audit"`
}

// MonitorConfig holds monitor server configuration
type MonitorConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Host    string `json:"host" mapstructure:"host"`
	Port    int    `json:"port" mapstructure:"port"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
	Endpoint    string  `json:"endpoint,omitempty" mapstructure:"endpoint"` // OTLP/gRPC collector, empty keeps spans in-process
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// HookConfig is one shell hook bound to a scheduler event
type HookConfig struct {
	ID             string `json:"id,omitempty" mapstructure:"id"`
	Event          string `json:"event" mapstructure:"event"` // spawned, enqueued, started, completed, retired, enabled, disabled
	Script         string `json:"script" mapstructure:"script"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" mapstructure:"timeout_seconds"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Lanes: LanesConfig{
			AutoLoad:           true,
			DefaultWaitSeconds: 60,
			MaxWaitSeconds:     600,
			SnapshotWidth:      1,
			MaxSourceChars:     70,
		},
		Executor: ExecutorConfig{
			Shell: "/bin/sh",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Monitor: MonitorConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    7411,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "bglane",
			SampleRatio: 1,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// DefaultWait is the %bgwait timeout used without an argument
func (c *Config) DefaultWait() time.Duration {
	return time.Duration(c.Lanes.DefaultWaitSeconds) * time.Second
}

// MaxWait caps every wait
func (c *Config) MaxWait() time.Duration {
	return time.Duration(c.Lanes.MaxWaitSeconds) * time.Second
}

// MonitorAddr returns host:port for the monitor listener
func (c *Config) MonitorAddr() string {
	return net.JoinHostPort(c.Monitor.Host, strconv.Itoa(c.Monitor.Port))
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	errs := NewValidator().ValidateConfig(c)
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
