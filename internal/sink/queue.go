package sink

import (
	"sync"

	"github.com/gammazero/deque"

	"firestige.xyz/lidarpcd/internal/core"
	"firestige.xyz/lidarpcd/internal/metrics"
)

// queue is an unbounded FIFO with a blocking pop.
type queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  *deque.Deque
	closed bool
}

func newQueue() *queue {
	q := &queue{items: deque.New()}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends r. It never blocks.
func (q *queue) push(r Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return core.ErrSinkClosed
	}
	q.items.PushBack(r)
	metrics.SinkQueueDepth.Set(float64(q.items.Len()))
	q.cond.Signal()
	return nil
}

// pop waits for the next request. It returns false once the queue is
// closed and drained.
func (q *queue) pop() (Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Len() == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.items.Len() == 0 {
		return Request{}, false
	}
	r := q.items.PopFront().(Request)
	metrics.SinkQueueDepth.Set(float64(q.items.Len()))
	return r, true
}

// close rejects further pushes and wakes the consumer.
func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// discard drops everything still queued and returns how many were dropped.
func (q *queue) discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.items.Len()
	for q.items.Len() > 0 {
		q.items.PopFront()
	}
	metrics.SinkQueueDepth.Set(0)
	return n
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}
