// Package session routes the lines of an interactive session.
//
// Lines starting with % are control commands (%bg, %bgwait, %bgjobs, %load,
// %unload and anything registered later); every other non-blank line is work.
//
// Invariants:
// - Work goes to the scheduler's top lane while background mode is enabled and
//   runs synchronously on the caller otherwise.
// - %bg, %bgwait and %bgjobs do nothing unless background mode is enabled.
// - Commands and work are recorded in metrics and the audit log.
//
// Usage:
//
//	sched, _ := lanes.New(lanes.Config{Executor: shell})
//	s, _ := session.New(session.Config{Scheduler: sched, Executor: shell})
//	_ = s.Handle(ctx, "%load")
//	_ = s.Handle(ctx, "make test")
//	_ = s.Handle(ctx, "%bg")
package session
