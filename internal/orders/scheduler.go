package orders

import (
	"container/heap"
	"time"
)

// modEntry is one pending re-evaluation of an in-flight order.
type modEntry struct {
	due     time.Time
	orderID string
}

// modQueue implements heap.Interface keyed by due time (earliest on top).
// Use container/heap package to manipulate this heap (Init, Push, Pop).
type modQueue []modEntry

func (q modQueue) Len() int           { return len(q) }
func (q modQueue) Less(i, j int) bool { return q[i].due.Before(q[j].due) }
func (q modQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *modQueue) Push(x interface{}) {
	*q = append(*q, x.(modEntry))
}

func (q *modQueue) Pop() interface{} {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[0 : n-1]
	return x
}

func (q *modQueue) push(e modEntry) {
	heap.Push(q, e)
}

// DueOrders pops every entry scheduled at or before now and returns the
// orders ready for an algorithm-driven re-modification.
//
//   - still in InProgress: the venue has not acknowledged the previous
//     mutation yet; the entry is requeued unchanged so the next poll retries
//     instead of racing the acknowledgment.
//   - in LastProcessed: confirmed and due, returned to the caller.
//   - in neither map: terminal, dropped silently.
//
// Draining stops at the first entry with a future due time; the heap
// property guarantees nothing behind it is due.
func (b *Book) DueOrders(now time.Time) []*Order {
	var due []*Order
	var requeue []modEntry

	for b.queue.Len() > 0 {
		if b.queue[0].due.After(now) {
			break
		}
		e := heap.Pop(&b.queue).(modEntry)

		if _, inflight := b.InProgress[e.orderID]; inflight {
			requeue = append(requeue, e)
			continue
		}
		if o, ok := b.LastProcessed[e.orderID]; ok {
			due = append(due, o)
			continue
		}
	}

	// Requeued after the drain so a still-in-progress entry is not popped
	// again within the same poll.
	for _, e := range requeue {
		heap.Push(&b.queue, e)
	}

	return due
}
