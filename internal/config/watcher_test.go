package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bglane.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"lanes": {"max_wait_seconds": 100}}`), 0644))

	changes := make(chan *Config, 4)
	w, err := NewWatcher(configPath, zerolog.Nop(), func(cfg *Config) {
		changes <- cfg
	})
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(configPath, []byte(`{"lanes": {"max_wait_seconds": 5, "default_wait_seconds": 3}, "logging": {"level": "debug"}}`), 0644))

	select {
	case cfg := <-changes:
		assert.Equal(t, 5, cfg.Lanes.MaxWaitSeconds)
		assert.Equal(t, 3, cfg.Lanes.DefaultWaitSeconds)
		assert.Equal(t, "debug", cfg.Logging.Level)
	case <-time.After(3 * time.Second):
		t.Fatal("config change not delivered")
	}
}

func TestWatcherSkipsInvalidDocument(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bglane.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{}`), 0644))

	changes := make(chan *Config, 4)
	w, err := NewWatcher(configPath, zerolog.Nop(), func(cfg *Config) {
		changes <- cfg
	})
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(configPath, []byte(`{"lanes": {"max_wait_seconds": "soon"}}`), 0644))

	select {
	case <-changes:
		t.Fatal("invalid config must not be delivered")
	case <-time.After(time.Second):
	}
}

func TestWatcherSkipsConfigFailingValidation(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bglane.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{}`), 0644))

	changes := make(chan *Config, 4)
	w, err := NewWatcher(configPath, zerolog.Nop(), func(cfg *Config) {
		changes <- cfg
	})
	require.NoError(t, err)
	defer w.Stop()

	// default_wait_seconds stays at 60, above the new cap.
	require.NoError(t, os.WriteFile(configPath, []byte(`{"lanes": {"max_wait_seconds": 5}}`), 0644))

	select {
	case <-changes:
		t.Fatal("config failing validation must not be delivered")
	case <-time.After(time.Second):
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bglane.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{}`), 0644))

	changes := make(chan *Config, 4)
	w, err := NewWatcher(configPath, zerolog.Nop(), func(cfg *Config) {
		changes <- cfg
	})
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0644))

	select {
	case <-changes:
		t.Fatal("unrelated file triggered a reload")
	case <-time.After(time.Second):
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bglane.json")

	w, err := NewWatcher(configPath, zerolog.Nop(), func(*Config) {})
	require.NoError(t, err)

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

func TestNewWatcherMissingDir(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing", "bglane.json"), zerolog.Nop(), func(*Config) {})
	assert.Error(t, err)
}
