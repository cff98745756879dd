package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.Lanes.AutoLoad)
	assert.Equal(t, 60, cfg.Lanes.DefaultWaitSeconds)
	assert.Equal(t, 600, cfg.Lanes.MaxWaitSeconds)
	assert.Equal(t, 1, cfg.Lanes.SnapshotWidth)
	assert.Equal(t, 70, cfg.Lanes.MaxSourceChars)
	assert.Equal(t, "/bin/sh", cfg.Executor.Shell)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Redaction)
	assert.False(t, cfg.Monitor.Enabled)
	assert.Equal(t, "bglane", cfg.Tracing.ServiceName)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)

	assert.NoError(t, cfg.Validate())
}

func TestConfigDurations(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 60*time.Second, cfg.DefaultWait())
	assert.Equal(t, 600*time.Second, cfg.MaxWait())
	assert.Equal(t, "127.0.0.1:7411", cfg.MonitorAddr())
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(cfg.String()), &decoded))
	assert.Contains(t, decoded, "lanes")
	assert.Contains(t, decoded, "monitor")

	// The rendered default config must satisfy the document schema.
	assert.NoError(t, ValidateDocument([]byte(cfg.String())))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero max wait",
			mutate:  func(c *Config) { c.Lanes.MaxWaitSeconds = 0 },
			wantErr: "lanes.max_wait_seconds must be > 0",
		},
		{
			name:    "default wait above max",
			mutate:  func(c *Config) { c.Lanes.DefaultWaitSeconds = 700 },
			wantErr: "exceeds lanes.max_wait_seconds",
		},
		{
			name:    "snapshot width",
			mutate:  func(c *Config) { c.Lanes.SnapshotWidth = 0 },
			wantErr: "lanes.snapshot_width must be >= 1",
		},
		{
			name:    "source chars",
			mutate:  func(c *Config) { c.Lanes.MaxSourceChars = 2 },
			wantErr: "lanes.max_source_chars must be >= 4",
		},
		{
			name:    "empty shell",
			mutate:  func(c *Config) { c.Executor.Shell = " " },
			wantErr: "executor.shell is required",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: "invalid log level: trace",
		},
		{
			name: "monitor port",
			mutate: func(c *Config) {
				c.Monitor.Enabled = true
				c.Monitor.Port = 70000
			},
			wantErr: "port out of range",
		},
		{
			name: "tracing without service name",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.ServiceName = ""
			},
			wantErr: "tracing.service_name is required",
		},
		{
			name: "tracing sample ratio",
			mutate: func(c *Config) {
				c.Tracing.SampleRatio = 1.5
			},
			wantErr: "tracing.sample_ratio must be between 0 and 1",
		},
		{
			name: "hook without script",
			mutate: func(c *Config) {
				c.Hooks = []HookConfig{{Event: "retired"}}
			},
			wantErr: "hooks[0].script is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Lanes.SnapshotWidth = 0
	cfg.Logging.Level = "loud"

	errs := NewValidator().ValidateConfig(cfg)
	assert.Len(t, errs, 2)
}
