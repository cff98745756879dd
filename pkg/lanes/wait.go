package lanes

import (
	"context"
	"time"

	"github.com/harun/bglane/internal/observability"
)

// Wait blocks until every lane is empty or the timeout elapses. The timeout is
// capped at MaxWaitTimeout. Wait only observes; it never affects execution.
func (s *Scheduler) Wait(ctx context.Context, timeout time.Duration) WaitResult {
	result := s.wait(ctx, timeout)
	observability.RecordWait(result.String())
	return result
}

func (s *Scheduler) wait(ctx context.Context, timeout time.Duration) WaitResult {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	total := s.total
	idle := s.idle
	s.mu.Unlock()

	if total == 0 {
		return WaitNothing
	}

	if limit := s.MaxWaitTimeout(); timeout > limit {
		timeout = limit
	}
	if timeout <= 0 {
		select {
		case <-idle:
			return WaitDrained
		default:
			return WaitTimeout
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	s.logger.Debug().
		Int("pending", total).
		Dur("timeout", timeout).
		Msg("Waiting for lanes to drain")

	select {
	case <-idle:
		return WaitDrained
	case <-timer.C:
		s.logger.Info().Dur("timeout", timeout).Msg("Timeout waiting for lanes to drain")
		return WaitTimeout
	case <-ctx.Done():
		return WaitTimeout
	}
}
