package hooks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harun/bglane/pkg/lanes"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

const (
	defaultShell   = "/bin/sh"
	defaultTimeout = 30 * time.Second
	envPrefix      = "BGLANE_HOOK_"
)

var knownEvents = map[string]bool{
	lanes.EventSpawned:   true,
	lanes.EventEnqueued:  true,
	lanes.EventStarted:   true,
	lanes.EventCompleted: true,
	lanes.EventRetired:   true,
	lanes.EventEnabled:   true,
	lanes.EventDisabled:  true,
}

// Hook is a shell script run when a scheduler event fires
type Hook struct {
	ID      string
	Event   string
	Script  string
	Timeout time.Duration // 0 means 30s
}

// Config configures a hook Manager
type Config struct {
	Shell  string
	Hooks  []Hook
	Logger zerolog.Logger
}

// Manager runs configured hooks for scheduler events. Hooks run on their own
// goroutines so a slow script never holds up a lane.
type Manager struct {
	shell  string
	logger zerolog.Logger

	mu           sync.RWMutex
	hooksByEvent map[string][]Hook

	running conc.WaitGroup
}

// NewManager validates the hooks and builds a manager
func NewManager(cfg Config) (*Manager, error) {
	shell := cfg.Shell
	if shell == "" {
		shell = defaultShell
	}

	manager := &Manager{
		shell:        shell,
		logger:       cfg.Logger.With().Str("module", "hooks").Logger(),
		hooksByEvent: make(map[string][]Hook),
	}

	for i, hook := range cfg.Hooks {
		event := strings.TrimSpace(hook.Event)
		if event == "" {
			return nil, fmt.Errorf("hook %d: event is required", i)
		}
		if !knownEvents[event] {
			return nil, fmt.Errorf("hook %d: unknown event %q", i, event)
		}
		if strings.TrimSpace(hook.Script) == "" {
			return nil, fmt.Errorf("hook script is required for event %q", event)
		}
		hook.Event = event
		if hook.ID == "" {
			hook.ID = fmt.Sprintf("%s-%d", event, i)
		}
		if hook.Timeout <= 0 {
			hook.Timeout = defaultTimeout
		}
		manager.hooksByEvent[event] = append(manager.hooksByEvent[event], hook)
	}

	return manager, nil
}

// Events returns the events that have at least one hook, sorted
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]string, 0, len(m.hooksByEvent))
	for event := range m.hooksByEvent {
		events = append(events, event)
	}
	sort.Strings(events)
	return events
}

// Attach subscribes the manager to the scheduler events it has hooks for
func (m *Manager) Attach(sched *lanes.Scheduler) {
	for _, event := range m.Events() {
		sched.On(event, m.handleEvent)
	}
}

func (m *Manager) handleEvent(event lanes.Event) {
	data := make(map[string]interface{}, len(event.Data)+2)
	for k, v := range event.Data {
		data[k] = v
	}
	if event.LaneID != 0 {
		data["lane_id"] = event.LaneID
	}
	if event.ItemID != "" {
		data["item_id"] = event.ItemID
	}

	m.running.Go(func() {
		if err := m.Trigger(context.Background(), event.Type, data); err != nil {
			m.logger.Warn().Err(err).Str("event", event.Type).Msg("Hook failed")
		}
	})
}

// Wait blocks until every hook started by an event has finished
func (m *Manager) Wait() {
	m.running.Wait()
}

// Trigger runs the hooks registered for an event and waits for them
func (m *Manager) Trigger(ctx context.Context, event string, data map[string]interface{}) error {
	if m == nil {
		return nil
	}
	event = strings.TrimSpace(event)
	if event == "" {
		return fmt.Errorf("event is required")
	}

	m.mu.RLock()
	hooks := append([]Hook(nil), m.hooksByEvent[event]...)
	m.mu.RUnlock()
	if len(hooks) == 0 {
		return nil
	}

	var errs []error
	for _, hook := range hooks {
		if err := m.executeHook(ctx, hook, data); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (m *Manager) executeHook(ctx context.Context, hook Hook, data map[string]interface{}) error {
	if ctx == nil {
		ctx = context.Background()
	}

	runCtx, cancel := context.WithTimeout(ctx, hook.Timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(runCtx, m.shell, "-c", hook.Script)
	cmd.Env = buildHookEnvironment(hook.Event, data)

	output, err := cmd.CombinedOutput()
	outputText := strings.TrimSpace(string(output))
	if err != nil {
		if outputText != "" {
			return fmt.Errorf("hook %s failed: %w: %s", hook.ID, err, outputText)
		}
		return fmt.Errorf("hook %s failed: %w", hook.ID, err)
	}

	m.logger.Debug().
		Str("event", hook.Event).
		Str("hook_id", hook.ID).
		Str("output", outputText).
		Dur("duration", time.Since(start)).
		Msg("Hook executed")

	return nil
}

func buildHookEnvironment(event string, data map[string]interface{}) []string {
	env := append([]string{}, os.Environ()...)
	env = append(env, envPrefix+"EVENT="+event)

	if len(data) == 0 {
		return env
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		env = append(env, envPrefix+normalizeEnvKey(key)+"="+fmt.Sprintf("%v", data[key]))
	}
	return env
}

func normalizeEnvKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "UNKNOWN"
	}

	upper := strings.ToUpper(key)
	builder := strings.Builder{}
	builder.Grow(len(upper))
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			builder.WriteRune(r)
			continue
		}
		builder.WriteRune('_')
	}
	return builder.String()
}
