package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/harun/bglane/pkg/lanes"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestShell(t *testing.T, cfg Config) (*Shell, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cfg.Stdout = &stdout
	cfg.Stderr = &stderr

	sh, err := NewShell(cfg)
	require.NoError(t, err)
	return sh, &stdout, &stderr
}

func TestNewShell_Defaults(t *testing.T) {
	sh, err := NewShell(Config{})

	require.NoError(t, err)
	assert.Equal(t, DefaultShell, sh.Path())
}

func TestNewShell_UnknownShell(t *testing.T) {
	sh, err := NewShell(Config{Shell: "definitely-not-a-shell-xyz"})

	assert.ErrorIs(t, err, ErrShellNotFound)
	assert.Nil(t, sh)
}

func TestNewShell_InvalidWorkingDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	_, err := NewShell(Config{WorkingDir: file})
	assert.ErrorIs(t, err, ErrInvalidWorkingDir)

	_, err = NewShell(Config{WorkingDir: filepath.Join(t.TempDir(), "missing")})
	assert.ErrorIs(t, err, ErrInvalidWorkingDir)
}

func TestShell_Run(t *testing.T) {
	sh, stdout, stderr := newTestShell(t, Config{})

	err := sh.Run(context.Background(), &lanes.WorkItem{Source: "echo hello world; echo oops >&2"})

	require.NoError(t, err)
	assert.Equal(t, "hello world\n", stdout.String())
	assert.Equal(t, "oops\n", stderr.String())
}

func TestShell_RunLogsExitCode(t *testing.T) {
	var logs bytes.Buffer
	sh, _, _ := newTestShell(t, Config{Logger: zerolog.New(&logs).Level(zerolog.DebugLevel)})

	err := sh.Run(context.Background(), &lanes.WorkItem{Source: "exit 4"})

	require.Error(t, err)
	assert.Contains(t, logs.String(), `"exit_code":4`)
	assert.Contains(t, logs.String(), "Shell command finished")
}

func TestShell_RunMultiline(t *testing.T) {
	sh, stdout, _ := newTestShell(t, Config{})

	err := sh.Run(context.Background(), &lanes.WorkItem{Source: "x=1\necho $((x+1))"})

	require.NoError(t, err)
	assert.Equal(t, "2\n", stdout.String())
}

func TestShell_RunExitCode(t *testing.T) {
	sh, _, _ := newTestShell(t, Config{})

	err := sh.Run(context.Background(), &lanes.WorkItem{Source: "exit 3"})

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, "exit status 3", err.Error())
}

func TestShell_RunEmptySource(t *testing.T) {
	sh, stdout, _ := newTestShell(t, Config{})

	assert.NoError(t, sh.Run(context.Background(), &lanes.WorkItem{}))
	assert.Empty(t, stdout.String())
}

func TestShell_WorkingDirAndEnv(t *testing.T) {
	dir := t.TempDir()
	sh, stdout, _ := newTestShell(t, Config{
		WorkingDir: dir,
		Env:        map[string]string{"BGLANE_TEST_VALUE": "lane"},
	})

	err := sh.Run(context.Background(), &lanes.WorkItem{Source: "pwd; echo $BGLANE_TEST_VALUE"})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 2)

	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(lines[0])
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "lane", lines[1])
}

func TestShell_ConcurrentRuns(t *testing.T) {
	sh, stdout, _ := newTestShell(t, Config{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, sh.Run(context.Background(), &lanes.WorkItem{Source: fmt.Sprintf("echo line-%d", i)}))
		}(i)
	}
	wg.Wait()

	assert.Len(t, strings.Split(strings.TrimSpace(stdout.String()), "\n"), 8)
}

func TestShell_AsSchedulerExecutor(t *testing.T) {
	sh, stdout, _ := newTestShell(t, Config{})

	s, err := lanes.New(lanes.Config{Executor: sh})
	require.NoError(t, err)
	s.Enable()

	s.Submit(context.Background(), "echo first", nil)
	s.Submit(context.Background(), "exit 1", nil)
	s.Submit(context.Background(), "echo second", nil)
	s.Disable()

	assert.Equal(t, "first\nsecond\n", stdout.String())
}
