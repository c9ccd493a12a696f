// Package signal provides the ingest side of the pipeline: signal
// sources, payload validation, and the arrival-ordered queue feeding
// the screening stage.
package signal

import (
	"context"
	"sync"

	"solana-auto-trader/internal/domain"
)

// Queue is an unbounded FIFO of signals. Enqueue never blocks; Dequeue
// blocks until a signal arrives or the context is cancelled. Signals
// come out in arrival order.
type Queue struct {
	mu     sync.Mutex
	items  []*domain.Signal
	queued map[string]bool // mints currently in the queue
	notify chan struct{}
}

// NewQueue creates an empty signal queue.
func NewQueue() *Queue {
	return &Queue{
		queued: make(map[string]bool),
		notify: make(chan struct{}, 1),
	}
}

// Enqueue appends a signal. A mint already waiting in the queue is
// suppressed and reports false.
func (q *Queue) Enqueue(sig *domain.Signal) bool {
	q.mu.Lock()
	if q.queued[sig.Mint] {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, sig)
	q.queued[sig.Mint] = true
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Dequeue removes and returns the oldest signal, blocking until one is
// available or ctx is cancelled.
func (q *Queue) Dequeue(ctx context.Context) (*domain.Signal, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			sig := q.items[0]
			q.items = q.items[1:]
			delete(q.queued, sig.Mint)
			remaining := len(q.items)
			q.mu.Unlock()

			// Keep the wakeup token alive for other waiters.
			if remaining > 0 {
				select {
				case q.notify <- struct{}{}:
				default:
				}
			}
			return sig, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		}
	}
}

// Len reports the number of queued signals.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
