package lanes

import (
	"time"

	"github.com/harun/bglane/internal/observability"
	"github.com/harun/bglane/internal/tracing"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// runWorker consumes one lane until its retirement marker has been seen and its
// pending list is empty. It is the only goroutine that pops from l.queue.
func (s *Scheduler) runWorker(l *lane) {
	logger := s.logger.With().Int("lane", l.id).Logger()
	logger.Debug().Msg("Lane worker started")

	draining := false
	for {
		if draining && s.tryRetire(l) {
			logger.Debug().Msg("Lane worker terminated")
			return
		}

		e := l.queue.pop()
		if e.retire {
			draining = true
			logger.Debug().Int("queued", l.queue.len()).Msg("Retirement marker reached")
			continue
		}

		s.execute(l, e.item)
	}
}

// execute runs one item. Errors and panics from the executor stop here.
func (s *Scheduler) execute(l *lane, item *WorkItem) {
	ctx := tracing.WithItemID(tracing.WithLaneID(item.ctx, l.id), item.ID)
	ctx, span := tracing.StartSpan(
		ctx,
		tracerName,
		"lanes.execute",
		attribute.Int("lane_id", l.id),
		attribute.String("item_id", item.ID),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Debug().
		Dur("waited", time.Since(item.SubmittedAt)).
		Msg("Work item started")

	start := time.Now()
	var err error
	defer func() {
		s.finish(l, item, time.Since(start), err, logger)
	}()

	s.emit(Event{
		Type:   EventStarted,
		LaneID: l.id,
		ItemID: item.ID,
	})

	var pc panics.Catcher
	pc.Try(func() {
		err = s.executor.Run(ctx, item)
	})
	if r := pc.Recovered(); r != nil {
		err = r.AsError()
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// finish pops the head of the lane's pending list and wakes waiters when the
// last pending item across all lanes is done.
func (s *Scheduler) finish(l *lane, item *WorkItem, duration time.Duration, err error, logger zerolog.Logger) {
	s.mu.Lock()
	if items := s.pending[l.id]; len(items) > 0 {
		items[0] = nil
		s.pending[l.id] = items[1:]
		s.total--
		if s.total == 0 {
			close(s.idle)
		}
	}
	remaining := len(s.pending[l.id])
	s.mu.Unlock()

	observability.RecordCompletion(l.id, duration, err == nil, remaining)

	if err != nil {
		logger.Error().
			Err(err).
			Dur("duration", duration).
			Msg("Work item failed")
	} else {
		logger.Debug().
			Dur("duration", duration).
			Msg("Work item completed")
	}

	s.emit(Event{
		Type:   EventCompleted,
		LaneID: l.id,
		ItemID: item.ID,
		Data: map[string]interface{}{
			"duration":  duration.Milliseconds(),
			"success":   err == nil,
			"remaining": remaining,
		},
	})
}

// tryRetire unregisters l if its pending list is empty.
func (s *Scheduler) tryRetire(l *lane) bool {
	s.mu.Lock()
	if len(s.pending[l.id]) > 0 {
		s.mu.Unlock()
		return false
	}
	delete(s.pending, l.id)
	s.removeLaneLocked(l)
	registered := len(s.lanes)
	s.mu.Unlock()

	observability.RecordLaneRetired(l.id, registered)

	s.logger.Info().
		Int("lane", l.id).
		Int("registered", registered).
		Msg("Lane retired")

	s.emit(Event{
		Type:   EventRetired,
		LaneID: l.id,
		Data: map[string]interface{}{
			"registered": registered,
		},
	})

	return true
}
