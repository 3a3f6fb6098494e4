// Package streaming runs model generations in the background and relays them
// to SSE subscribers as chunk, complete and error frames.
package streaming

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain"
	domainllm "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/llm"
)

// Status of a turn executor.
type Status string

const (
	StatusPending    Status = "pending"
	StatusStreaming  Status = "streaming"
	StatusFinalizing Status = "finalizing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether the executor has finished.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusError || s == StatusCancelled
}

const clientBufferSize = 256

// FinalizeFunc runs once the full response text is known, before the complete
// event is sent. The returned map is merged into the complete event. An error
// turns the completion into an error event carrying domain.ErrorCode(err).
type FinalizeFunc func(ctx context.Context, content string, meta *domainllm.StreamMetadata) (map[string]interface{}, error)

// TurnOptions configures a TurnExecutor.
type TurnOptions struct {
	TurnID       string
	ThreadID     string
	Provider     domainllm.LLMProvider
	Request      *domainllm.GenerateRequest
	Finalize     FinalizeFunc
	StallTimeout time.Duration
	Logger       *slog.Logger
}

// TurnExecutor streams a single turn.
//
// Every subscriber sees chunk frames in generation order followed by exactly
// one terminal frame (complete or error). Interrupt ends the turn without a
// terminal frame and the finalize hook never runs.
type TurnExecutor struct {
	turnID       string
	threadID     string
	provider     domainllm.LLMProvider
	req          *domainllm.GenerateRequest
	finalize     FinalizeFunc
	stallTimeout time.Duration
	logger       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	status     Status
	content    strings.Builder
	terminal   string // final frame, replayed to late subscribers
	err        error
	finishedAt time.Time
	clients    map[string]chan string
}

// NewTurnExecutor creates an executor. The executor is detached from any
// request context so clients can reattach; use Interrupt to stop it.
func NewTurnExecutor(opts TurnOptions) *TurnExecutor {
	ctx, cancel := context.WithCancel(context.Background())
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TurnExecutor{
		turnID:       opts.TurnID,
		threadID:     opts.ThreadID,
		provider:     opts.Provider,
		req:          opts.Request,
		finalize:     opts.Finalize,
		stallTimeout: opts.StallTimeout,
		logger:       logger.With("turn_id", opts.TurnID, "thread_id", opts.ThreadID),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		status:       StatusPending,
		clients:      make(map[string]chan string),
	}
}

// TurnID returns the executor's turn id.
func (e *TurnExecutor) TurnID() string { return e.turnID }

// ThreadID returns the thread the turn belongs to.
func (e *TurnExecutor) ThreadID() string { return e.threadID }

// Start begins streaming (non-blocking). Calling it more than once is a no-op.
func (e *TurnExecutor) Start() {
	e.mu.Lock()
	if e.status != StatusPending {
		e.mu.Unlock()
		return
	}
	e.status = StatusStreaming
	e.mu.Unlock()

	go e.run()
}

// Done is closed when the executor reaches a terminal status.
func (e *TurnExecutor) Done() <-chan struct{} { return e.done }

// AddClient subscribes clientID. A client joining mid-stream first receives
// the text so far as one chunk; a client joining after the end receives the
// terminal frame (if any) and a closed channel.
func (e *TurnExecutor) AddClient(clientID string) <-chan string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan string, clientBufferSize)
	if e.content.Len() > 0 {
		ch <- NewChunkFrame(e.content.String())
	}
	if e.status.IsTerminal() {
		if e.terminal != "" {
			ch <- e.terminal
		}
		close(ch)
		return ch
	}
	e.clients[clientID] = ch
	return ch
}

// RemoveClient unsubscribes clientID. Safe to call after the turn ended.
func (e *TurnExecutor) RemoveClient(clientID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ch, ok := e.clients[clientID]; ok {
		close(ch)
		delete(e.clients, clientID)
	}
}

// Interrupt cancels the upstream stream. Once the finalize hook has started
// the turn is committed and Interrupt returns false.
func (e *TurnExecutor) Interrupt() bool {
	e.mu.Lock()
	switch e.status {
	case StatusPending, StatusStreaming:
	default:
		e.mu.Unlock()
		return false
	}
	wasPending := e.status == StatusPending
	e.status = StatusCancelled
	e.finishedAt = time.Now()
	e.closeClientsLocked()
	e.mu.Unlock()

	e.cancel()
	if wasPending {
		close(e.done)
	}
	e.logger.Info("turn interrupted")
	return true
}

// Status returns the current status.
func (e *TurnExecutor) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Err returns the terminal error when the status is error.
func (e *TurnExecutor) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Content returns the text generated so far.
func (e *TurnExecutor) Content() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.content.String()
}

// FinishedAt returns when the executor reached a terminal status.
func (e *TurnExecutor) FinishedAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finishedAt
}

func (e *TurnExecutor) run() {
	defer close(e.done)
	defer e.cancel()

	stream, err := e.provider.StreamResponse(e.ctx, e.req)
	if err != nil {
		e.fail(&domain.UpstreamError{Provider: e.provider.Name(), Err: err})
		return
	}

	var stall <-chan time.Time
	var timer *time.Timer
	if e.stallTimeout > 0 {
		timer = time.NewTimer(e.stallTimeout)
		defer timer.Stop()
		stall = timer.C
	}

	for {
		select {
		case <-e.ctx.Done():
			return

		case <-stall:
			e.logger.Warn("upstream stalled", "timeout", e.stallTimeout)
			e.cancel()
			e.fail(&domain.UpstreamError{
				Provider: e.provider.Name(),
				Code:     domain.CodeStreamStalled,
				Err:      fmt.Errorf("no output for %s", e.stallTimeout),
			})
			return

		case event, ok := <-stream:
			if !ok {
				if e.ctx.Err() != nil {
					return
				}
				e.fail(&domain.UpstreamError{Provider: e.provider.Name(), Err: errors.New("stream closed without metadata")})
				return
			}
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(e.stallTimeout)
			}

			switch {
			case event.Error != nil:
				if e.ctx.Err() != nil {
					return
				}
				e.fail(&domain.UpstreamError{Provider: e.provider.Name(), Err: event.Error})
				return
			case event.Metadata != nil:
				e.complete(event.Metadata)
				return
			case event.TextDelta != "":
				e.appendChunk(event.TextDelta)
			}
		}
	}
}

func (e *TurnExecutor) appendChunk(delta string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusStreaming {
		return
	}
	e.content.WriteString(delta)
	e.broadcastLocked(NewChunkFrame(delta))
}

func (e *TurnExecutor) complete(meta *domainllm.StreamMetadata) {
	e.mu.Lock()
	if e.status != StatusStreaming {
		e.mu.Unlock()
		return
	}
	e.status = StatusFinalizing
	content := e.content.String()
	e.mu.Unlock()

	var payload map[string]interface{}
	if e.finalize != nil {
		// Finalization is committed: it must not be cut short by Interrupt.
		var err error
		payload, err = e.finalize(context.WithoutCancel(e.ctx), content, meta)
		if err != nil {
			e.logger.Error("finalize failed", "error", err)
			e.finish(StatusError, err, NewErrorFrame(err.Error(), domain.ErrorCode(err)))
			return
		}
	}

	frame, err := NewCompleteFrame(e.threadID, payload)
	if err != nil {
		e.finish(StatusError, err, NewErrorFrame("failed to encode completion", ""))
		return
	}
	e.logger.Info("turn complete",
		"model", meta.Model,
		"input_tokens", meta.InputTokens,
		"output_tokens", meta.OutputTokens)
	e.finish(StatusComplete, nil, frame)
}

func (e *TurnExecutor) fail(err error) {
	e.logger.Error("turn failed", "error", err)
	e.finish(StatusError, err, NewErrorFrame(err.Error(), domain.ErrorCode(err)))
}

// finish records the terminal state, sends the terminal frame and closes
// every subscriber. It does nothing if the turn was already interrupted.
func (e *TurnExecutor) finish(status Status, err error, frame string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status.IsTerminal() {
		return
	}
	e.status = status
	e.err = err
	e.terminal = frame
	e.finishedAt = time.Now()
	e.broadcastLocked(frame)
	e.closeClientsLocked()
}

// broadcastLocked sends a frame to every subscriber. A subscriber whose buffer
// is full is dropped; it can reattach and receive the text so far.
func (e *TurnExecutor) broadcastLocked(frame string) {
	for id, ch := range e.clients {
		select {
		case ch <- frame:
		default:
			e.logger.Warn("sse client too slow, dropping", "client_id", id)
			close(ch)
			delete(e.clients, id)
		}
	}
}

func (e *TurnExecutor) closeClientsLocked() {
	for id, ch := range e.clients {
		close(ch)
		delete(e.clients, id)
	}
}
