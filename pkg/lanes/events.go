package lanes

import (
	"time"

	"github.com/sourcegraph/conc/panics"
)

// On registers an event handler for a specific event type
func (s *Scheduler) On(eventType string, handler EventHandler) {
	s.eventMu.Lock()
	defer s.eventMu.Unlock()

	s.eventHandlers[eventType] = append(s.eventHandlers[eventType], handler)
}

// Off removes all handlers for the event type
func (s *Scheduler) Off(eventType string) {
	s.eventMu.Lock()
	defer s.eventMu.Unlock()

	delete(s.eventHandlers, eventType)
}

// emit calls the registered handlers synchronously. A panicking handler is
// logged and skipped. It must not be called with s.mu held.
func (s *Scheduler) emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	s.eventMu.RLock()
	handlers := s.eventHandlers[event.Type]
	s.eventMu.RUnlock()

	for _, handler := range handlers {
		var pc panics.Catcher
		pc.Try(func() {
			handler(event)
		})
		if r := pc.Recovered(); r != nil {
			s.logger.Error().
				Err(r.AsError()).
				Str("event", event.Type).
				Int("lane", event.LaneID).
				Msg("Event handler panicked")
		}
	}
}
