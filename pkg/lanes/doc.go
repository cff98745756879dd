// Package lanes provides a background lane scheduler for an interactive session.
//
// Work is submitted to the top lane of a stack. Each lane owns one worker goroutine
// that runs its items strictly in submission order. Sending the top lane to the
// background places a retirement marker behind its queued work and pushes a fresh
// lane, so new work starts immediately while the retired lane drains.
//
// Invariants:
// - Items in the same lane execute in FIFO order, one at a time.
// - Lanes execute concurrently with each other, with no ordering between them.
// - A lane stays registered until its worker has seen its retirement marker and
//   its pending list is empty.
// - Disable returns only after every lane worker has terminated.
//
// Usage:
//
//	sched, err := lanes.New(lanes.Config{Executor: exec})
//	if err != nil {
//		return err
//	}
//	sched.Enable()
//	defer sched.Disable()
//
//	sched.Submit(ctx, "sleep 10", nil)
//	sched.SpawnAndRetireTop()
//	sched.Submit(ctx, "echo done", nil)
//	sched.Wait(ctx, time.Minute)
package lanes
