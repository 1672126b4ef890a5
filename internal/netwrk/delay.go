package netwrk

import (
	"container/heap"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DelayQueue holds deliveries back for a configured time, simulating one-way
// network latency. All pending deliveries live in one time-ordered heap
// drained by a single goroutine, so every message has its own delivery entry
// and scheduling a new one never cancels an in-flight one.
type DelayQueue struct {
	clock clockwork.Clock

	mu      sync.Mutex
	pending deliveryHeap
	seq     uint64

	wake chan struct{}
	done chan struct{}
}

type delivery struct {
	at  time.Time
	seq uint64 // breaks ties so equal-time deliveries keep enqueue order
	fn  func()
}

type deliveryHeap []delivery

func (h deliveryHeap) Len() int { return len(h) }
func (h deliveryHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}
func (h deliveryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *deliveryHeap) Push(x any) { *h = append(*h, x.(delivery)) }
func (h *deliveryHeap) Pop() any {
	old := *h
	n := len(old)
	d := old[n-1]
	*h = old[:n-1]
	return d
}

func NewDelayQueue(clock clockwork.Clock) *DelayQueue {
	q := &DelayQueue{
		clock: clock,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

// Schedule queues fn to run after d on the queue's goroutine.
func (q *DelayQueue) Schedule(d time.Duration, fn func()) {
	q.mu.Lock()
	heap.Push(&q.pending, delivery{at: q.clock.Now().Add(d), seq: q.seq, fn: fn})
	q.seq++
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Stop shuts the queue down. Undelivered entries are abandoned; senders rely
// on delivery targets tolerating that (a dead connection is simply never
// written to again).
func (q *DelayQueue) Stop() {
	close(q.done)
}

func (q *DelayQueue) run() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			select {
			case <-q.wake:
				continue
			case <-q.done:
				return
			}
		}

		now := q.clock.Now()
		next := q.pending[0].at
		if !next.After(now) {
			d := heap.Pop(&q.pending).(delivery)
			q.mu.Unlock()
			d.fn()
			continue
		}
		q.mu.Unlock()

		timer := q.clock.NewTimer(next.Sub(now))
		select {
		case <-timer.Chan():
		case <-q.wake:
			timer.Stop()
		case <-q.done:
			timer.Stop()
			return
		}
	}
}
