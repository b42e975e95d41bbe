// Package queue implements the in-process queue subsystem: named lanes with
// independent ordering, concurrency caps and retry policy.
package queue

import (
	"container/heap"
	"time"

	"crosspost/internal/domain"
)

// queued wraps one item with the monotonically increasing sequence used as
// the FIFO tiebreak.
type queued struct {
	item *domain.QueueItem
	seq  uint64
}

// itemHeap orders ready items: PRIORITY lanes dequeue highest priority first
// with insertion order as tiebreak, FIFO lanes dequeue by insertion order
// only.
type itemHeap struct {
	items      []*queued
	byPriority bool
}

func (h *itemHeap) Len() int { return len(h.items) }

func (h *itemHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if h.byPriority && a.item.Priority != b.item.Priority {
		return a.item.Priority > b.item.Priority
	}
	return a.seq < b.seq
}

func (h *itemHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *itemHeap) Push(x any) { h.items = append(h.items, x.(*queued)) }

func (h *itemHeap) Pop() any {
	old := h.items
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	return x
}

// lane is one named processing domain. All fields are guarded by the
// manager-held mutex in Manager.
type lane struct {
	cfg     domain.QueueConfig
	ready   *itemHeap
	delayed []*queued
	seq     uint64

	processing int
	completed  int
	failed     int

	wake chan struct{}
}

func newLane(cfg domain.QueueConfig) *lane {
	return &lane{
		cfg:   cfg,
		ready: &itemHeap{byPriority: cfg.Order == domain.OrderPriority},
		wake:  make(chan struct{}, 1),
	}
}

func (l *lane) notify() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// promote moves delayed items whose NotBefore has passed into the ready heap.
func (l *lane) promote(now time.Time) {
	remaining := l.delayed[:0]
	for _, q := range l.delayed {
		if !q.item.NotBefore.After(now) {
			q.item.Status = domain.ItemStatusPending
			heap.Push(l.ready, q)
		} else {
			remaining = append(remaining, q)
		}
	}
	l.delayed = remaining
}

// nextWakeup returns how long the lane loop may sleep before a delayed item
// becomes due.
func (l *lane) nextWakeup(now time.Time, idle time.Duration) time.Duration {
	wait := idle
	for _, q := range l.delayed {
		if d := q.item.NotBefore.Sub(now); d < wait {
			wait = d
		}
	}
	if wait < 10*time.Millisecond {
		wait = 10 * time.Millisecond
	}
	return wait
}

func (l *lane) stats() *domain.QueueStats {
	counts := map[domain.QueueItemStatus]int{
		domain.ItemStatusPending:    l.ready.Len(),
		domain.ItemStatusProcessing: l.processing,
		domain.ItemStatusCompleted:  l.completed,
		domain.ItemStatusFailed:     l.failed,
	}
	for _, q := range l.delayed {
		counts[q.item.Status]++
	}

	stats := &domain.QueueStats{
		Name:              l.cfg.Name,
		CountsByStatus:    counts,
		Processing:        l.processing,
		Completed:         l.completed,
		PermanentlyFailed: l.failed,
	}
	if total := l.completed + l.failed; total > 0 {
		stats.SuccessRate = float64(l.completed) / float64(total)
	}
	return stats
}
