package lanes

import (
	"strings"
)

// DefaultSummaryChars is the default width used by Summary
const DefaultSummaryChars = 70

// SnapshotPending copies the first maxPerLane pending items of every registered
// lane, oldest lane first. A lane with nothing pending yields an empty Items slice.
func (s *Scheduler) SnapshotPending(maxPerLane int) []LaneSnapshot {
	if maxPerLane < 1 {
		maxPerLane = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshots := make([]LaneSnapshot, 0, len(s.lanes))
	for _, l := range s.lanes {
		items := s.pending[l.id]
		n := len(items)
		if n > maxPerLane {
			n = maxPerLane
		}

		infos := make([]ItemInfo, 0, n)
		for _, item := range items[:n] {
			infos = append(infos, ItemInfo{
				ID:          item.ID,
				Source:      item.Source,
				SubmittedAt: item.SubmittedAt,
			})
		}

		snapshots = append(snapshots, LaneSnapshot{
			LaneID: l.id,
			Items:  infos,
		})
	}

	return snapshots
}

// PendingCount returns the number of pending items across all lanes
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// LaneIDs returns the registered lane ids, oldest first
func (s *Scheduler) LaneIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int, 0, len(s.lanes))
	for _, l := range s.lanes {
		ids = append(ids, l.id)
	}
	return ids
}

// CurrentLane returns the id of the lane accepting submissions
func (s *Scheduler) CurrentLane() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	top := s.topLocked()
	if top == nil {
		return 0, false
	}
	return top.id, true
}

// Summary renders the first non-blank line of source, cut to width runes with a
// trailing "..." when it is longer.
func Summary(source string, width int) string {
	if width <= 0 {
		width = DefaultSummaryChars
	}

	line := ""
	for _, candidate := range strings.Split(source, "\n") {
		candidate = strings.TrimRight(candidate, " \t\r")
		if strings.TrimSpace(candidate) != "" {
			line = candidate
			break
		}
	}

	runes := []rune(line)
	if len(runes) <= width {
		return line
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
