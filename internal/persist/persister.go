// Package persist decouples durable writes from the trading loop.
// Fills are queued and written by a background worker with bounded
// retries; a slow or failing database never stalls a monitor.
package persist

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"solana-auto-trader/internal/domain"
	"solana-auto-trader/internal/observability"
	"solana-auto-trader/internal/storage"
)

// Options configures the persister worker.
type Options struct {
	Store      storage.TradeLogStore
	QueueSize  int
	MaxRetries int
	RetryDelay time.Duration
	Metrics    *observability.Metrics // optional
	Logger     *log.Logger
}

// Persister is an asynchronous trade-log writer. Record never blocks;
// if the queue is full the entry is dropped with a loud log line, the
// in-memory ledger remains the source of truth.
type Persister struct {
	store      storage.TradeLogStore
	queue      chan domain.TradeLogEntry
	maxRetries int
	retryDelay time.Duration
	metrics    *observability.Metrics
	logger     *log.Logger

	wg sync.WaitGroup
}

// New creates a persister. Run must be called to start the worker.
func New(opts Options) *Persister {
	queueSize := opts.QueueSize
	if queueSize == 0 {
		queueSize = 1024
	}
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	retryDelay := opts.RetryDelay
	if retryDelay == 0 {
		retryDelay = 500 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Persister{
		store:      opts.Store,
		queue:      make(chan domain.TradeLogEntry, queueSize),
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		metrics:    opts.Metrics,
		logger:     logger,
	}
}

// Record enqueues a fill for durable storage without blocking.
func (p *Persister) Record(entry domain.TradeLogEntry) {
	select {
	case p.queue <- entry:
	default:
		p.logger.Printf("[PERSIST] queue full, dropping fill %s", entry.FillID)
		if p.metrics != nil {
			p.metrics.PersistWrites.WithLabelValues("dropped").Inc()
		}
	}
	if p.metrics != nil {
		p.metrics.PersistQueueDepth.Set(float64(len(p.queue)))
	}
}

// Pending reports the number of queued fills.
func (p *Persister) Pending() int {
	return len(p.queue)
}

// Run starts the write worker. It drains the queue after ctx is
// cancelled so already-recorded fills still reach the store, then
// returns.
func (p *Persister) Run(ctx context.Context) {
	p.wg.Add(1)
	defer p.wg.Done()

	for {
		select {
		case entry := <-p.queue:
			p.write(ctx, entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-p.queue:
					p.write(context.Background(), entry)
				default:
					return
				}
			}
		}
	}
}

// Wait blocks until the worker has stopped.
func (p *Persister) Wait() {
	p.wg.Wait()
}

// write inserts one fill with bounded exponential-backoff retry.
// Duplicate-key means the fill is already durable; that is success.
func (p *Persister) write(ctx context.Context, entry domain.TradeLogEntry) {
	var lastErr error
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		err := p.store.Insert(ctx, &entry)
		if err == nil || errors.Is(err, storage.ErrDuplicateKey) {
			if p.metrics != nil {
				p.metrics.PersistWrites.WithLabelValues("ok").Inc()
				p.metrics.PersistQueueDepth.Set(float64(len(p.queue)))
			}
			return
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}

		delay := p.retryDelay * time.Duration(1<<attempt)
		p.logger.Printf("[PERSIST] retry %d/%d for fill %s after %v: %v",
			attempt+1, p.maxRetries, entry.FillID, delay, err)
		if p.metrics != nil {
			p.metrics.PersistRetries.Inc()
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}
	p.logger.Printf("[PERSIST] giving up on fill %s: %v", entry.FillID, lastErr)
	if p.metrics != nil {
		p.metrics.PersistWrites.WithLabelValues("error").Inc()
	}
}
