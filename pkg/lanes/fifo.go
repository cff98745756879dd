package lanes

import "sync"

// entry is either a work item or the lane's retirement marker
type entry struct {
	item   *WorkItem
	retire bool
}

// fifo is an unbounded queue with a single consumer. push never blocks.
type fifo struct {
	mu      sync.Mutex
	entries []entry
	wake    chan struct{}
}

func newFIFO() *fifo {
	return &fifo{
		entries: make([]entry, 0, 16),
		wake:    make(chan struct{}, 1),
	}
}

func (q *fifo) push(e entry) {
	q.mu.Lock()
	q.entries = append(q.entries, e)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// pop blocks until an entry is available
func (q *fifo) pop() entry {
	for {
		q.mu.Lock()
		if len(q.entries) > 0 {
			e := q.entries[0]
			q.entries[0] = entry{}
			q.entries = q.entries[1:]
			q.mu.Unlock()
			return e
		}
		q.mu.Unlock()

		<-q.wake
	}
}

func (q *fifo) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
