package lanes

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harun/bglane/internal/observability"
	"github.com/harun/bglane/internal/tracing"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/attribute"
)

const (
	tracerName = "bglane.lanes"

	// DefaultMaxWaitTimeout caps the timeout of any Wait call
	DefaultMaxWaitTimeout = 600 * time.Second
)

// ErrNoExecutor is returned by New when Config.Executor is nil
var ErrNoExecutor = errors.New("lanes: executor is required")

// Config configures a Scheduler
type Config struct {
	Executor       Executor
	Logger         zerolog.Logger // zero value disables logging
	MaxWaitTimeout time.Duration  // 0 means DefaultMaxWaitTimeout
}

// lane is one strictly ordered queue with its own worker
type lane struct {
	id    int
	queue *fifo

	// marked is set once the retirement marker is queued. Guarded by Scheduler.mu.
	marked bool
}

// Scheduler owns the lane registry and the lane workers
type Scheduler struct {
	mu      sync.Mutex
	state   State
	lanes   []*lane // registered lanes, oldest first; the last one is the top
	pending map[int][]*WorkItem
	counter int
	total   int
	idle    chan struct{} // closed while total == 0

	executor Executor
	logger   zerolog.Logger
	maxWait  atomic.Int64

	lifecycleMu sync.Mutex
	workers     conc.WaitGroup

	eventHandlers map[string][]EventHandler
	eventMu       sync.RWMutex
}

// New creates a Scheduler in the NeverStarted state. Call Enable to start the first lane.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Executor == nil {
		return nil, ErrNoExecutor
	}

	observability.EnsureRegistered()

	idle := make(chan struct{})
	close(idle)

	s := &Scheduler{
		state:         StateNeverStarted,
		pending:       make(map[int][]*WorkItem),
		idle:          idle,
		executor:      cfg.Executor,
		logger:        cfg.Logger.With().Str("module", "lanes").Logger(),
		eventHandlers: make(map[string][]EventHandler),
	}
	s.SetMaxWaitTimeout(cfg.MaxWaitTimeout)

	return s, nil
}

// SetMaxWaitTimeout updates the cap applied to Wait timeouts. Non-positive values restore the default.
func (s *Scheduler) SetMaxWaitTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultMaxWaitTimeout
	}
	s.maxWait.Store(int64(d))
}

// MaxWaitTimeout returns the cap applied to Wait timeouts
func (s *Scheduler) MaxWaitTimeout() time.Duration {
	return time.Duration(s.maxWait.Load())
}

// topLocked returns the lane accepting submissions, or nil. Caller holds s.mu.
func (s *Scheduler) topLocked() *lane {
	if s.state != StateEnabled || len(s.lanes) == 0 {
		return nil
	}
	top := s.lanes[len(s.lanes)-1]
	if top.marked {
		return nil
	}
	return top
}

// spawnLaneLocked registers a new lane and starts its worker. Caller holds s.mu.
func (s *Scheduler) spawnLaneLocked() *lane {
	s.counter++
	l := &lane{
		id:    s.counter,
		queue: newFIFO(),
	}
	s.pending[l.id] = make([]*WorkItem, 0)
	s.lanes = append(s.lanes, l)

	s.workers.Go(func() {
		s.runWorker(l)
	})

	return l
}

func (s *Scheduler) laneSpawned(l *lane, registered int) {
	observability.RecordLaneSpawned(l.id, registered)

	s.logger.Debug().
		Int("lane", l.id).
		Int("registered", registered).
		Msg("Lane spawned")

	s.emit(Event{
		Type:   EventSpawned,
		LaneID: l.id,
		Data: map[string]interface{}{
			"registered": registered,
		},
	})
}

// Submit appends a work item to the top lane. It never blocks on execution.
// When no lane accepts work (not enabled, or shutting down) the submission is
// dropped and ok is false.
func (s *Scheduler) Submit(ctx context.Context, source string, payload interface{}) (*WorkItem, bool) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "lanes.submit")
	defer span.End()

	id, err := gonanoid.New()
	if err != nil {
		id = tracing.NewTraceID()
	}

	item := &WorkItem{
		ID:          id,
		Source:      source,
		Payload:     payload,
		SubmittedAt: time.Now(),
		ctx:         context.WithoutCancel(ctx),
	}

	s.mu.Lock()
	top := s.topLocked()
	if top == nil {
		state := s.state
		s.mu.Unlock()
		s.logger.Debug().
			Str("item", id).
			Str("state", state.String()).
			Msg("No active lane, submission dropped")
		return nil, false
	}

	item.LaneID = top.id
	s.pending[top.id] = append(s.pending[top.id], item)
	if s.total == 0 {
		s.idle = make(chan struct{})
	}
	s.total++
	queueSize := len(s.pending[top.id])
	top.queue.push(entry{item: item})
	s.mu.Unlock()

	span.SetAttributes(
		attribute.Int("lane_id", top.id),
		attribute.String("item_id", id),
	)

	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Debug().
		Int("lane", top.id).
		Str("item", id).
		Int("queueSize", queueSize).
		Msg("Work item enqueued")

	observability.RecordSubmit(top.id, queueSize)

	s.emit(Event{
		Type:   EventEnqueued,
		LaneID: top.id,
		ItemID: id,
		Data: map[string]interface{}{
			"queueSize": queueSize,
		},
	})

	return item, true
}

// RequestDrain places the retirement marker on the top lane and spawns a fresh
// top lane for future submissions. It never blocks and never looks at how much
// work the retired lane still holds. ok is false when the scheduler is not enabled.
func (s *Scheduler) RequestDrain() (retired, current int, ok bool) {
	s.mu.Lock()
	top := s.topLocked()
	if top == nil {
		s.mu.Unlock()
		return 0, 0, false
	}

	top.marked = true
	top.queue.push(entry{retire: true})
	next := s.spawnLaneLocked()
	registered := len(s.lanes)
	s.mu.Unlock()

	s.logger.Info().
		Int("retired_lane", top.id).
		Int("lane", next.id).
		Msg("Lane sent to background")

	s.laneSpawned(next, registered)

	return top.id, next.id, true
}

// SpawnAndRetireTop sends the current lane to the background. See RequestDrain.
func (s *Scheduler) SpawnAndRetireTop() (retired, current int, ok bool) {
	return s.RequestDrain()
}

// removeLaneLocked drops l from the registered stack. Caller holds s.mu.
func (s *Scheduler) removeLaneLocked(l *lane) {
	for i, candidate := range s.lanes {
		if candidate == l {
			copy(s.lanes[i:], s.lanes[i+1:])
			s.lanes[len(s.lanes)-1] = nil
			s.lanes = s.lanes[:len(s.lanes)-1]
			return
		}
	}
}
