package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

const defaultDispatchTimeout = 20 * time.Second

// Processor is the work a Dispatcher runs in the background.
type Processor interface {
	Process(ctx context.Context, text, threadID, userID string)
}

// Dispatcher runs memory classification off the request path. Concurrency is
// bounded; when every slot is busy new work is dropped instead of queued so a
// burst of turns never waits on classification.
type Dispatcher struct {
	processor Processor
	sem       *semaphore.Weighted
	timeout   time.Duration
	base      context.Context
	wg        sync.WaitGroup
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher running at most workers jobs at once.
func NewDispatcher(processor Processor, workers int64, logger *slog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		processor: processor,
		sem:       semaphore.NewWeighted(workers),
		timeout:   defaultDispatchTimeout,
		base:      context.Background(),
		logger:    logger,
	}
}

// Dispatch schedules classification of text and returns immediately.
func (d *Dispatcher) Dispatch(text, threadID, userID string) {
	d.DispatchContext(d.base, text, threadID, userID)
}

// DispatchContext is Dispatch with a parent context whose values (not its
// cancellation) are carried into the background job.
func (d *Dispatcher) DispatchContext(parent context.Context, text, threadID, userID string) {
	if !d.sem.TryAcquire(1) {
		d.logger.Warn("memory dispatcher saturated, dropping message",
			"thread_id", threadID,
			"user_id", userID)
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.sem.Release(1)

		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), d.timeout)
		defer cancel()
		d.processor.Process(ctx, text, threadID, userID)
	}()
}

// Wait blocks until every dispatched job has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
