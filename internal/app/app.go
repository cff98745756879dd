package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harun/bglane/internal/config"
	"github.com/harun/bglane/internal/logger"
	"github.com/harun/bglane/internal/observability"
	"github.com/harun/bglane/internal/tracing"
	"github.com/harun/bglane/pkg/executor"
	"github.com/harun/bglane/pkg/hooks"
	"github.com/harun/bglane/pkg/lanes"
	"github.com/harun/bglane/pkg/monitor"
	"github.com/harun/bglane/pkg/session"
)

const (
	// maxLineBytes bounds a single line of session input
	maxLineBytes = 1 << 20

	// shutdownTimeout applies to the services stopped after the lanes drain
	shutdownTimeout = 5 * time.Second
)

// Options carries what the command line adds on top of the config file
type Options struct {
	ConfigPath    string // watched for changes when the file exists
	EnableMonitor bool
	MonitorAddr   string // overrides monitor.host/port
	Stdout        io.Writer
	Stderr        io.Writer
}

// App wires the scheduler, executor, session and monitor together and drives
// the interactive loop.
type App struct {
	config *config.Config
	logger *logger.Logger
	opts   Options
	stdout io.Writer
	stderr io.Writer

	scheduler *lanes.Scheduler
	shell     *executor.Shell
	session   *session.Session
	monitor   *monitor.Server
	hooks     *hooks.Manager
	watcher   *config.Watcher

	tracingEnabled bool
	auditEnabled   bool

	mu      sync.Mutex
	running bool
}

// New creates an application instance. Nothing runs until Start.
func New(cfg *config.Config, log *logger.Logger, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	a := &App{
		config: cfg,
		logger: log,
		opts:   opts,
		stdout: opts.Stdout,
		stderr: opts.Stderr,
	}
	if a.stdout == nil {
		a.stdout = os.Stdout
	}
	if a.stderr == nil {
		a.stderr = os.Stderr
	}

	observability.EnsureRegistered()

	if cfg.Tracing.Enabled {
		err := tracing.InitOpenTelemetry(context.Background(), tracing.Options{
			ServiceName: cfg.Tracing.ServiceName,
			Endpoint:    cfg.Tracing.Endpoint,
			SampleRatio: cfg.Tracing.SampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		} else {
			a.tracingEnabled = true
			log.Info().Msg("Tracing initialized successfully")
		}
	}

	if err := a.initializeCoreModules(); err != nil {
		a.shutdownTracing()
		return nil, fmt.Errorf("failed to initialize core modules: %w", err)
	}

	return a, nil
}

// initializeCoreModules builds the executor, scheduler and session in dependency order
func (a *App) initializeCoreModules() error {
	zl := a.logger.GetZerolog()

	shell, err := executor.NewShell(executor.Config{
		Shell:      a.config.Executor.Shell,
		WorkingDir: a.config.Executor.WorkingDir,
		Env:        a.config.Executor.Env,
		Stdout:     a.stdout,
		Stderr:     a.stderr,
		Logger:     zl,
	})
	if err != nil {
		return fmt.Errorf("failed to create executor: %w", err)
	}
	a.shell = shell
	a.logger.Debug().Str("shell", shell.Path()).Msg("Executor initialized")

	sched, err := lanes.New(lanes.Config{
		Executor:       shell,
		Logger:         zl,
		MaxWaitTimeout: a.config.MaxWait(),
	})
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	a.scheduler = sched

	if len(a.config.Hooks) > 0 {
		hookList := make([]hooks.Hook, 0, len(a.config.Hooks))
		for _, h := range a.config.Hooks {
			hookList = append(hookList, hooks.Hook{
				ID:      h.ID,
				Event:   h.Event,
				Script:  h.Script,
				Timeout: time.Duration(h.TimeoutSeconds) * time.Second,
			})
		}
		mgr, err := hooks.NewManager(hooks.Config{
			Shell:  shell.Path(),
			Hooks:  hookList,
			Logger: zl,
		})
		if err != nil {
			return fmt.Errorf("failed to create hooks: %w", err)
		}
		mgr.Attach(sched)
		a.hooks = mgr
	}

	sess, err := session.New(session.Config{
		Scheduler:     sched,
		Executor:      shell,
		Out:           a.stdout,
		Logger:        zl,
		DefaultWait:   a.config.DefaultWait(),
		SnapshotWidth: a.config.Lanes.SnapshotWidth,
		SourceChars:   a.config.Lanes.MaxSourceChars,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	a.session = sess

	if a.opts.EnableMonitor || a.config.Monitor.Enabled {
		addr := a.opts.MonitorAddr
		if addr == "" {
			addr = a.config.MonitorAddr()
		}
		mon, err := monitor.New(monitor.Config{
			Addr:          addr,
			Scheduler:     sched,
			Logger:        zl,
			SnapshotWidth: a.config.Lanes.SnapshotWidth,
			SourceChars:   a.config.Lanes.MaxSourceChars,
		})
		if err != nil {
			return fmt.Errorf("failed to create monitor: %w", err)
		}
		a.monitor = mon
	}

	return nil
}

// Start enables background mode (when configured) and starts the monitor and config watcher
func (a *App) Start() error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("already running")
	}
	a.running = true
	a.mu.Unlock()

	logger := a.logger.GetZerolog().With().Str("trace_id", tracing.NewTraceID()).Logger()
	logger.Info().Str("session_key", a.session.Key()).Msg("Starting bglane session")

	if a.config.DataDir != "" {
		if err := os.MkdirAll(a.config.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	if a.config.Logging.Audit && a.config.DataDir != "" {
		auditPath := filepath.Join(a.config.DataDir, "audit.log")
		if err := observability.InitAuditLogger(auditPath); err != nil {
			logger.Warn().Err(err).Str("path", auditPath).Msg("Failed to open audit log")
		} else {
			a.auditEnabled = true
		}
	}

	if a.config.Lanes.AutoLoad {
		a.scheduler.Enable()
	}

	if a.monitor != nil {
		if err := a.monitor.Start(); err != nil {
			return fmt.Errorf("failed to start monitor: %w", err)
		}
	}

	if a.opts.ConfigPath != "" {
		if _, err := os.Stat(a.opts.ConfigPath); err == nil {
			w, err := config.NewWatcher(a.opts.ConfigPath, a.logger.GetZerolog(), a.applyConfig)
			if err != nil {
				logger.Warn().Err(err).Msg("Config hot reload disabled")
			} else {
				a.watcher = w
			}
		}
	}

	logger.Info().
		Bool("background", a.scheduler.State() == lanes.StateEnabled).
		Bool("monitor", a.monitor != nil).
		Msg("Session started")

	return nil
}

// Run feeds lines from in to the session until EOF or ctx is cancelled.
// Command errors go to stderr and do not end the loop.
func (a *App) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			return nil
		case line := <-lines:
			if err := a.session.Handle(ctx, line); err != nil {
				fmt.Fprintf(a.stderr, "error: %v\n", err)
			}
		}
	}
}

// Stop disables background mode, which blocks until every lane has drained,
// then shuts the supporting services down.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return fmt.Errorf("not running")
	}
	a.running = false
	a.mu.Unlock()

	logger := a.logger.GetZerolog().With().Str("trace_id", tracing.NewTraceID()).Logger()

	pending := a.scheduler.PendingCount()
	if pending > 0 {
		logger.Info().Int("pending", pending).Msg("Waiting for background work to finish")
	}
	start := time.Now()
	a.scheduler.Disable()
	logger.Info().Dur("drain", time.Since(start)).Msg("Lanes drained")

	if a.hooks != nil {
		a.hooks.Wait()
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error

	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop config watcher: %w", err))
		}
	}

	if a.monitor != nil {
		if err := a.monitor.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if a.auditEnabled {
		if err := observability.GetAuditLogger().Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close audit log: %w", err))
		}
	}

	a.shutdownTracing()

	logger.Info().Msg("Session stopped")
	return errors.Join(errs...)
}

// applyConfig receives reloaded configs. Wait limits and log level apply to the
// live session; everything else needs a restart.
func (a *App) applyConfig(cfg *config.Config) {
	a.session.SetDefaultWait(cfg.DefaultWait())
	a.scheduler.SetMaxWaitTimeout(cfg.MaxWait())

	if err := a.logger.SetLevel(cfg.Logging.Level); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to apply log level")
	}

	observability.RecordConfigAudit(context.Background(), "reload", a.session.Key(), map[string]interface{}{
		"default_wait_seconds": cfg.Lanes.DefaultWaitSeconds,
		"max_wait_seconds":     cfg.Lanes.MaxWaitSeconds,
		"log_level":            cfg.Logging.Level,
	})

	a.logger.Info().
		Dur("default_wait", cfg.DefaultWait()).
		Dur("max_wait", cfg.MaxWait()).
		Str("log_level", cfg.Logging.Level).
		Msg("Configuration reloaded")
}

func (a *App) shutdownTracing() {
	if !a.tracingEnabled {
		return
	}
	if err := tracing.ShutdownOpenTelemetry(context.Background()); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to shutdown tracing")
	}
	a.tracingEnabled = false
}

// Scheduler returns the lane scheduler
func (a *App) Scheduler() *lanes.Scheduler {
	return a.scheduler
}

// Session returns the interactive session
func (a *App) Session() *session.Session {
	return a.session
}

// MonitorAddr returns the monitor's bound address, or "" when it is off
func (a *App) MonitorAddr() string {
	if a.monitor == nil {
		return ""
	}
	return a.monitor.Addr()
}
