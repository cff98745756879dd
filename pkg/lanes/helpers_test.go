package lanes

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recorder is an Executor whose behavior is chosen by the item payload:
// time.Duration sleeps, chan struct{} blocks until closed, error is returned,
// and the string "panic" panics.
type recorder struct {
	mu         sync.Mutex
	done       []string
	running    map[int]int
	maxRunning map[int]int
}

func newRecorder() *recorder {
	return &recorder{
		running:    make(map[int]int),
		maxRunning: make(map[int]int),
	}
}

func (r *recorder) Run(ctx context.Context, item *WorkItem) error {
	r.mu.Lock()
	r.running[item.LaneID]++
	if r.running[item.LaneID] > r.maxRunning[item.LaneID] {
		r.maxRunning[item.LaneID] = r.running[item.LaneID]
	}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running[item.LaneID]--
		r.done = append(r.done, item.Source)
		r.mu.Unlock()
	}()

	switch p := item.Payload.(type) {
	case time.Duration:
		time.Sleep(p)
	case chan struct{}:
		<-p
	case error:
		return p
	case string:
		if p == "panic" {
			panic("boom")
		}
	}
	return nil
}

func (r *recorder) completed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.done...)
}

func (r *recorder) isDone(source string) bool {
	for _, s := range r.completed() {
		if s == source {
			return true
		}
	}
	return false
}

func (r *recorder) peak(laneID int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxRunning[laneID]
}

var errJob = errors.New("job failed")

// newTestScheduler returns an enabled scheduler that is disabled when the test ends.
func newTestScheduler(t *testing.T, exec Executor) *Scheduler {
	t.Helper()

	s, err := New(Config{Executor: exec})
	require.NoError(t, err)

	s.Enable()
	t.Cleanup(s.Disable)

	return s
}

// gate returns a channel payload and an idempotent release func.
func gate() (chan struct{}, func()) {
	ch := make(chan struct{})
	return ch, sync.OnceFunc(func() { close(ch) })
}

// logBuffer collects log output written from several goroutines
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
