package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/harun/bglane/internal/tracing"
	"github.com/harun/bglane/pkg/lanes"
	"github.com/rs/zerolog"
)

// DefaultShell is used when Config.Shell is empty
const DefaultShell = "/bin/sh"

// Config configures a Shell executor
type Config struct {
	Shell      string
	WorkingDir string
	Env        map[string]string
	Stdout     io.Writer
	Stderr     io.Writer
	Logger     zerolog.Logger
}

// Shell runs each work item's source with `<shell> -c`. Lanes run concurrently,
// so output goes through writers that serialize whole writes.
type Shell struct {
	path   string
	dir    string
	env    []string
	stdout io.Writer
	stderr io.Writer
	logger zerolog.Logger
}

var _ lanes.Executor = (*Shell)(nil)

// NewShell resolves the shell and working directory up front
func NewShell(cfg Config) (*Shell, error) {
	name := cfg.Shell
	if name == "" {
		name = DefaultShell
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrShellNotFound, name, err)
	}

	if cfg.WorkingDir != "" {
		info, err := os.Stat(cfg.WorkingDir)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidWorkingDir, cfg.WorkingDir)
		}
	}

	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	return &Shell{
		path:   path,
		dir:    cfg.WorkingDir,
		env:    buildEnvironment(cfg.Env),
		stdout: &syncWriter{w: stdout},
		stderr: &syncWriter{w: stderr},
		logger: cfg.Logger.With().Str("module", "executor").Logger(),
	}, nil
}

// Path returns the resolved shell binary
func (s *Shell) Path() string {
	return s.path
}

// Run executes item.Source and waits for it to exit
func (s *Shell) Run(ctx context.Context, item *lanes.WorkItem) error {
	if item.Source == "" {
		return nil
	}

	cmd := exec.CommandContext(ctx, s.path, "-c", item.Source)
	cmd.Dir = s.dir
	cmd.Env = s.env
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return fmt.Errorf("failed to start %s: %w", s.path, err)
		}
		exitCode = exitErr.ExitCode()
	}

	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Debug().
		Int("exit_code", exitCode).
		Dur("duration", duration).
		Msg("Shell command finished")

	if exitCode != 0 {
		return &ExitError{Code: exitCode}
	}
	return nil
}

// buildEnvironment layers extra variables over the inherited environment
func buildEnvironment(extra map[string]string) []string {
	env := os.Environ()
	if len(extra) == 0 {
		return env
	}

	keys := make([]string, 0, len(extra))
	for key := range extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		env = append(env, fmt.Sprintf("%s=%s", key, extra[key]))
	}
	return env
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}
