package lanes

import (
	"time"
)

// State returns the scheduler's lifecycle state
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Enable starts a single fresh lane. It is a no-op when already enabled.
func (s *Scheduler) Enable() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.mu.Lock()
	if s.state == StateEnabled {
		s.mu.Unlock()
		return
	}
	previous := s.state
	s.state = StateEnabled
	l := s.spawnLaneLocked()
	registered := len(s.lanes)
	s.mu.Unlock()

	s.logger.Info().
		Str("from", previous.String()).
		Int("lane", l.id).
		Msg("Scheduler enabled")

	s.laneSpawned(l, registered)
	s.emit(Event{
		Type:   EventEnabled,
		LaneID: l.id,
	})
}

// Disable retires every lane and blocks until all of them have drained and their
// workers have exited. Submissions made after Disable starts are dropped. It is a
// no-op unless the scheduler is enabled.
func (s *Scheduler) Disable() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.mu.Lock()
	if s.state != StateEnabled {
		s.mu.Unlock()
		return
	}
	s.state = StateDisabled

	marked := 0
	for _, l := range s.lanes {
		if l.marked {
			continue
		}
		l.marked = true
		l.queue.push(entry{retire: true})
		marked++
	}
	registered := len(s.lanes)
	pending := s.total
	s.mu.Unlock()

	s.logger.Info().
		Int("registered", registered).
		Int("marked", marked).
		Int("pending", pending).
		Msg("Scheduler disabling, draining lanes")

	start := time.Now()
	s.workers.Wait()

	s.logger.Info().
		Dur("drained_in", time.Since(start)).
		Msg("Scheduler disabled")

	s.emit(Event{
		Type: EventDisabled,
		Data: map[string]interface{}{
			"drained_lanes": registered,
		},
	})
}
