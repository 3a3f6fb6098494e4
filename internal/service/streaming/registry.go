package streaming

import (
	"context"
	"sync"
	"time"
)

// Registry tracks active and recently finished turn executors.
//
// At most one turn per thread is in flight: registering a new turn for a
// thread interrupts the previous one. Finished executors are kept for the
// retention period so clients can still reattach and read the final frame.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]*TurnExecutor // turnID -> executor
	active    map[string]string        // threadID -> turnID

	cleanupInterval time.Duration
	retentionPeriod time.Duration
}

// NewRegistry creates a registry. Call StartCleanup to evict old executors.
func NewRegistry(cleanupInterval, retentionPeriod time.Duration) *Registry {
	return &Registry{
		executors:       make(map[string]*TurnExecutor),
		active:          make(map[string]string),
		cleanupInterval: cleanupInterval,
		retentionPeriod: retentionPeriod,
	}
}

// Register adds executor, interrupting any earlier turn still running on the
// same thread. It returns the interrupted executor, if any.
func (r *Registry) Register(executor *TurnExecutor) *TurnExecutor {
	r.mu.Lock()
	var previous *TurnExecutor
	if prevID, ok := r.active[executor.ThreadID()]; ok && prevID != executor.TurnID() {
		previous = r.executors[prevID]
	}
	r.executors[executor.TurnID()] = executor
	r.active[executor.ThreadID()] = executor.TurnID()
	r.mu.Unlock()

	if previous != nil && previous.Interrupt() {
		previous.logger.Info("superseded by a newer turn", "new_turn_id", executor.TurnID())
	}
	return previous
}

// Get returns the executor for turnID, or nil.
func (r *Registry) Get(turnID string) *TurnExecutor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.executors[turnID]
}

// ActiveForThread returns the latest executor registered for threadID, or nil.
func (r *Registry) ActiveForThread(threadID string) *TurnExecutor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if turnID, ok := r.active[threadID]; ok {
		return r.executors[turnID]
	}
	return nil
}

// Count returns the number of tracked executors.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.executors)
}

// InterruptAll cancels every running turn. Used on shutdown.
func (r *Registry) InterruptAll() {
	r.mu.RLock()
	executors := make([]*TurnExecutor, 0, len(r.executors))
	for _, e := range r.executors {
		executors = append(executors, e)
	}
	r.mu.RUnlock()

	for _, e := range executors {
		e.Interrupt()
	}
}

// StartCleanup evicts finished executors until ctx is cancelled. It blocks,
// so callers run it on its own goroutine.
func (r *Registry) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.cleanup(now)
		}
	}
}

func (r *Registry) cleanup(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for turnID, e := range r.executors {
		if !e.Status().IsTerminal() {
			continue
		}
		if now.Sub(e.FinishedAt()) <= r.retentionPeriod {
			continue
		}
		delete(r.executors, turnID)
		if r.active[e.ThreadID()] == turnID {
			delete(r.active, e.ThreadID())
		}
	}
}
