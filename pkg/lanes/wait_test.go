package lanes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWait_NothingPending(t *testing.T) {
	s := newTestScheduler(t, newRecorder())

	assert.Equal(t, WaitNothing, s.Wait(context.Background(), time.Minute))
}

func TestWait_ZeroTimeoutWithPending(t *testing.T) {
	s := newTestScheduler(t, newRecorder())

	block, release := gate()
	defer release()
	s.Submit(context.Background(), "held", block)

	start := time.Now()
	assert.Equal(t, WaitTimeout, s.Wait(context.Background(), 0))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestWait_DrainedBeforeTimeout(t *testing.T) {
	s := newTestScheduler(t, newRecorder())

	s.Submit(context.Background(), "J1", 1*time.Second)

	start := time.Now()
	result := s.Wait(context.Background(), 2*time.Second)
	elapsed := time.Since(start)

	assert.Equal(t, WaitDrained, result)
	assert.GreaterOrEqual(t, elapsed, 900*time.Millisecond)
	assert.Less(t, elapsed, 1900*time.Millisecond)
}

func TestWait_Timeout(t *testing.T) {
	s := newTestScheduler(t, newRecorder())

	block, release := gate()
	defer release()
	s.Submit(context.Background(), "held", block)

	start := time.Now()
	assert.Equal(t, WaitTimeout, s.Wait(context.Background(), 100*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 1, s.PendingCount(), "wait must not affect execution")
}

func TestWait_ClampedToMax(t *testing.T) {
	s := newTestScheduler(t, newRecorder())
	s.SetMaxWaitTimeout(50 * time.Millisecond)

	block, release := gate()
	defer release()
	s.Submit(context.Background(), "held", block)

	start := time.Now()
	assert.Equal(t, WaitTimeout, s.Wait(context.Background(), time.Hour))
	assert.Less(t, time.Since(start), time.Second)
}

func TestWait_ContextCancelled(t *testing.T) {
	s := newTestScheduler(t, newRecorder())

	block, release := gate()
	defer release()
	s.Submit(context.Background(), "held", block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.Equal(t, WaitTimeout, s.Wait(ctx, time.Minute))
}

func TestWait_CoversRetiredLanes(t *testing.T) {
	rec := newRecorder()
	s := newTestScheduler(t, rec)

	s.Submit(context.Background(), "background", 200*time.Millisecond)
	s.RequestDrain()

	require.Equal(t, WaitDrained, s.Wait(context.Background(), 2*time.Second))
	assert.True(t, rec.isDone("background"))
}

func TestWait_ReusableAfterDrain(t *testing.T) {
	s := newTestScheduler(t, newRecorder())

	s.Submit(context.Background(), "first", 20*time.Millisecond)
	require.Equal(t, WaitDrained, s.Wait(context.Background(), time.Second))
	assert.Equal(t, WaitNothing, s.Wait(context.Background(), time.Second))

	s.Submit(context.Background(), "second", 20*time.Millisecond)
	assert.Equal(t, WaitDrained, s.Wait(context.Background(), time.Second))
}

func TestWaitResultString(t *testing.T) {
	assert.Equal(t, "nothing", WaitNothing.String())
	assert.Equal(t, "drained", WaitDrained.String())
	assert.Equal(t, "timeout", WaitTimeout.String())
}
