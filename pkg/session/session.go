package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/harun/bglane/internal/observability"
	"github.com/harun/bglane/internal/tracing"
	"github.com/harun/bglane/pkg/lanes"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

const (
	// DefaultWait is the %bgwait timeout when no argument is given
	DefaultWait = 60 * time.Second

	defaultSnapshotWidth = 1
)

var (
	// ErrUnknownCommand is returned for a control command with no registered handler
	ErrUnknownCommand = errors.New("unknown command")

	// ErrInvalidArgument is returned when a control command's arguments do not parse
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNoScheduler is returned by New when Config.Scheduler is nil
	ErrNoScheduler = errors.New("session: scheduler is required")
)

// CommandFunc handles one control command
type CommandFunc func(ctx context.Context, cmd ControlCommand) error

// Config configures a Session
type Config struct {
	Scheduler     *lanes.Scheduler
	Executor      lanes.Executor // runs work synchronously while background mode is off
	Out           io.Writer
	Logger        zerolog.Logger
	SessionKey    string
	DefaultWait   time.Duration
	SnapshotWidth int
	SourceChars   int
}

// Session routes parsed input either to its command handlers or to the scheduler
type Session struct {
	sched         *lanes.Scheduler
	executor      lanes.Executor
	out           io.Writer
	logger        zerolog.Logger
	key           string
	defaultWait   time.Duration
	snapshotWidth int
	sourceChars   int

	mu       sync.RWMutex
	handlers map[string]CommandFunc
}

// New creates a session with the built-in commands registered
func New(cfg Config) (*Session, error) {
	if cfg.Scheduler == nil {
		return nil, ErrNoScheduler
	}

	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	key := cfg.SessionKey
	if key == "" {
		id, err := gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("failed to generate session key: %w", err)
		}
		key = id
	}

	s := &Session{
		sched:         cfg.Scheduler,
		executor:      cfg.Executor,
		out:           out,
		logger:        cfg.Logger.With().Str("module", "session").Str("session_key", key).Logger(),
		key:           key,
		defaultWait:   cfg.DefaultWait,
		snapshotWidth: cfg.SnapshotWidth,
		sourceChars:   cfg.SourceChars,
		handlers:      make(map[string]CommandFunc),
	}
	if s.defaultWait <= 0 {
		s.defaultWait = DefaultWait
	}
	if s.snapshotWidth < 1 {
		s.snapshotWidth = defaultSnapshotWidth
	}
	if s.sourceChars <= 0 {
		s.sourceChars = lanes.DefaultSummaryChars
	}

	s.registerBuiltins()
	return s, nil
}

// Key identifies the session in logs and audit records
func (s *Session) Key() string {
	return s.key
}

// Register registers a command handler, replacing any existing one
func (s *Session) Register(name string, handler CommandFunc) {
	s.mu.Lock()
	s.handlers[name] = handler
	s.mu.Unlock()

	s.logger.Debug().Str("command", name).Msg("Command registered")
}

// Unregister removes a command handler
func (s *Session) Unregister(name string) {
	s.mu.Lock()
	delete(s.handlers, name)
	s.mu.Unlock()
}

// SetDefaultWait changes the %bgwait timeout used without an argument.
// Non-positive values restore DefaultWait.
func (s *Session) SetDefaultWait(d time.Duration) {
	if d <= 0 {
		d = DefaultWait
	}
	s.mu.Lock()
	s.defaultWait = d
	s.mu.Unlock()
}

// DefaultWait returns the %bgwait timeout used without an argument
func (s *Session) DefaultWait() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultWait
}

// Commands returns the registered command names, sorted
func (s *Session) Commands() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle parses and dispatches one line of input
func (s *Session) Handle(ctx context.Context, line string) error {
	sub := Parse(line)
	if sub == nil {
		return nil
	}
	return s.Dispatch(ctx, sub)
}

// Dispatch routes a submission by its kind
func (s *Session) Dispatch(ctx context.Context, sub Submission) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.WithSessionKey(tracing.NewRequestContext(ctx), s.key)

	switch v := sub.(type) {
	case ControlCommand:
		return s.runCommand(ctx, v)
	case Work:
		return s.runWork(ctx, v)
	default:
		return fmt.Errorf("unsupported submission %T", sub)
	}
}

func (s *Session) runCommand(ctx context.Context, cmd ControlCommand) error {
	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Debug().
		Str("command", cmd.Name).
		Strs("args", cmd.Args).
		Msg("Command received")

	s.mu.RLock()
	handler, exists := s.handlers[cmd.Name]
	s.mu.RUnlock()

	var err error
	if !exists {
		err = fmt.Errorf("%w: %s%s", ErrUnknownCommand, CommandPrefix, cmd.Name)
	} else {
		err = handler(ctx, cmd)
	}

	status := "success"
	if err != nil {
		status = "failed"
		logger.Warn().Err(err).Str("command", cmd.Name).Msg("Command failed")
	}

	observability.RecordCommand(cmd.Name, err == nil)
	observability.RecordCommandAudit(ctx, cmd.Name, s.key, status, map[string]interface{}{
		"args": cmd.Raw,
	})

	return err
}

func (s *Session) runWork(ctx context.Context, work Work) error {
	if item, ok := s.sched.Submit(ctx, work.Source, nil); ok {
		observability.RecordWorkAudit(ctx, s.key, "queued", map[string]interface{}{
			"lane": item.LaneID,
			"item": item.ID,
		})
		return nil
	}

	// Background mode is off: run on the caller like a plain session would.
	if s.executor == nil {
		return errors.New("no executor for synchronous work")
	}

	item := &lanes.WorkItem{
		ID:          tracing.GetTraceID(ctx),
		Source:      work.Source,
		SubmittedAt: time.Now(),
	}

	err := s.executor.Run(ctx, item)

	status := "success"
	if err != nil {
		status = "failed"
	}
	observability.RecordWorkAudit(ctx, s.key, status, map[string]interface{}{
		"mode": "sync",
	})

	return err
}

func (s *Session) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format, args...)
}
