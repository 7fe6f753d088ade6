// Package worker provides an asynchronous worker pool that hands completed
// tracked calls to the local recorders: a storage.Driver and an
// eventstream.Publisher.
//
// The pool keeps recording off the instrumented call's path so the wrapped
// function returns as soon as its own work is done.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/ollamatrace/pkg/eventstream"
	"github.com/papercomputeco/ollamatrace/pkg/logger"
	"github.com/papercomputeco/ollamatrace/pkg/storage"
	"github.com/papercomputeco/ollamatrace/pkg/tracked"
)

var (
	defaultNumWorkers   uint = 2
	defaultJobQueueSize uint = 256
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Call *tracked.Call
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the optional storage backend for persisting calls.
	Driver storage.Driver

	// Publisher is the optional event stream for call events.
	Publisher eventstream.Publisher

	// Source is stamped on every published event.
	Source eventstream.EventSource

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	Logger *slog.Logger
}

// Pool records tracked calls asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	// ctx scopes recorder calls; cancel aborts them when Close runs out of time.
	ctx    context.Context
	cancel context.CancelFunc

	// mu guards closed so Enqueue never sends on a closed queue.
	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil && c.Publisher == nil {
		return nil, errors.New("worker pool requires a driver or a publisher")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
		ctx:    ctx,
		cancel: cancel,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	if job.Call == nil {
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("job not queued, pool closed, job dropped",
			"call_id", job.Call.ID,
			"name", job.Call.Name,
		)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"call_id", job.Call.ID,
			"name", job.Call.Name,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"call_id", job.Call.ID,
			"name", job.Call.Name,
		)
		return false
	}
}

// Close signals workers to stop and waits for queued jobs to drain. If ctx
// ends first, in-flight recorder calls are cancelled and ctx's error is
// returned. It is safe to call more than once.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		p.logger.Warn("worker pool did not drain before deadline", "error", ctx.Err())
		return fmt.Errorf("draining worker pool: %w", ctx.Err())
	}
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		if p.ctx.Err() != nil {
			p.logger.Warn("job dropped, pool cancelled", "call_id", job.Call.ID)
			continue
		}
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

// processJob persists the call and publishes its event. A failure in one
// recorder is logged and does not stop the other.
func (p *Pool) processJob(job Job) {
	ctx := p.ctx

	if p.config.Driver != nil {
		if err := p.config.Driver.Put(ctx, job.Call); err != nil {
			p.logger.Error("storing tracked call failed",
				"call_id", job.Call.ID,
				"error", err,
			)
		} else {
			p.logger.Debug("tracked call stored", "call_id", job.Call.ID)
		}
	}

	if p.config.Publisher != nil {
		event := eventstream.NewCallTrackedEvent(p.config.Source, job.Call)
		if err := p.config.Publisher.PublishCall(ctx, event); err != nil {
			p.logger.Error("publishing call event failed",
				"call_id", job.Call.ID,
				"event_id", event.EventID,
				"error", err,
			)
		} else {
			p.logger.Debug("call event published",
				"call_id", job.Call.ID,
				"event_id", event.EventID,
			)
		}
	}
}
