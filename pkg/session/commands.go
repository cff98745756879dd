package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/harun/bglane/pkg/lanes"
)

func (s *Session) registerBuiltins() {
	s.Register("bg", s.cmdBackground)
	s.Register("bgwait", s.cmdWait)
	s.Register("bgjobs", s.cmdJobs)
	s.Register("load", s.cmdLoad)
	s.Register("unload", s.cmdUnload)
}

func (s *Session) enabled() bool {
	return s.sched.State() == lanes.StateEnabled
}

// cmdBackground sends the current lane to the background
func (s *Session) cmdBackground(ctx context.Context, cmd ControlCommand) error {
	if !s.enabled() {
		return nil
	}

	retired, _, ok := s.sched.SpawnAndRetireTop()
	if !ok {
		return nil
	}

	s.printf("[%d] sending to background\n", retired)
	return nil
}

// cmdWait blocks until background work drains: %bgwait [secs]
func (s *Session) cmdWait(ctx context.Context, cmd ControlCommand) error {
	if !s.enabled() {
		return nil
	}

	timeout := s.DefaultWait()
	switch len(cmd.Args) {
	case 0:
	case 1:
		secs, err := strconv.Atoi(cmd.Args[0])
		if err != nil {
			return fmt.Errorf("%w: bgwait expects whole seconds, got %q", ErrInvalidArgument, cmd.Args[0])
		}
		timeout = time.Duration(secs) * time.Second
	default:
		return fmt.Errorf("%w: bgwait takes at most one argument", ErrInvalidArgument)
	}

	switch s.sched.Wait(ctx, timeout) {
	case lanes.WaitNothing:
		s.printf("No background jobs\n")
	case lanes.WaitTimeout:
		s.printf("timeout reached\n")
	}
	return nil
}

// cmdJobs prints the head of every lane that still has work
func (s *Session) cmdJobs(ctx context.Context, cmd ControlCommand) error {
	if !s.enabled() {
		return nil
	}

	for _, snap := range s.sched.SnapshotPending(s.snapshotWidth) {
		for _, item := range snap.Items {
			s.printf("[%d] %q\n", snap.LaneID, lanes.Summary(item.Source, s.sourceChars))
		}
	}
	return nil
}

func (s *Session) cmdLoad(ctx context.Context, cmd ControlCommand) error {
	s.sched.Enable()
	return nil
}

func (s *Session) cmdUnload(ctx context.Context, cmd ControlCommand) error {
	s.sched.Disable()
	return nil
}
