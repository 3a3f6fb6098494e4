// Package streamclient consumes the chat turn endpoint: it posts a turn,
// reads the SSE frames and reports them through callbacks.
package streamclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	chatSvc "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/chat"
)

const maxFrameSize = 1 << 20

// Callbacks receive the events of one turn on the goroutine that called
// Stream. Any of them may be nil. OnComplete and OnError are mutually
// exclusive and fire at most once.
type Callbacks struct {
	OnChunk    func(delta, full string)
	OnComplete func(c Completion)
	OnError    func(err error)
}

// Completion is a finished turn. Payload holds every field of the complete
// frame (progress, workflow status, message id).
type Completion struct {
	ChatID  string
	Content string
	Payload map[string]interface{}
}

// StreamError is an error frame sent by the server.
type StreamError struct {
	Message string
	Code    string
}

func (e *StreamError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// HTTPError is a non-2xx response to the turn request.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("chat request failed: %d: %s", e.StatusCode, e.Message)
}

// Client streams chat turns. Only one turn is in flight at a time: starting
// a new one aborts the previous.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger

	mu     sync.Mutex
	active *turnGate
}

// turnGate decides whether a turn may still deliver callbacks. A callback
// runs with mu held, so a closed gate never lets another one start and
// wait blocks until a running one returns.
type turnGate struct {
	mu     sync.Mutex
	closed atomic.Bool
	cancel context.CancelFunc
}

// shut stops the turn without waiting for a running callback.
func (g *turnGate) shut() {
	g.closed.Store(true)
	g.cancel()
}

// wait blocks until no callback of the turn is running.
func (g *turnGate) wait() {
	g.mu.Lock()
	defer g.mu.Unlock()
}

// deliver runs fn unless the turn was aborted or its context is done.
func (g *turnGate) deliver(ctx context.Context, fn func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed.Load() || ctx.Err() != nil {
		return false
	}
	if fn != nil {
		fn()
	}
	return true
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for skipped frames.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Abort cancels the in-flight turn, if any. It waits for a callback that is
// already running on another goroutine to return; once Abort returns no
// callback of that turn fires. Abort must not be called from inside a
// callback: cancel the context passed to Stream instead.
func (c *Client) Abort() {
	c.mu.Lock()
	g := c.active
	c.active = nil
	c.mu.Unlock()

	if g != nil {
		g.shut()
		g.wait()
	}
}

// begin shuts the previous turn and registers the new one. The previous
// turn is not waited on, so a callback may start the next turn.
func (c *Client) begin(parent context.Context) (context.Context, *turnGate, func()) {
	ctx, cancel := context.WithCancel(parent)
	g := &turnGate{cancel: cancel}

	c.mu.Lock()
	prev := c.active
	c.active = g
	c.mu.Unlock()

	if prev != nil {
		prev.shut()
	}

	release := func() {
		cancel()
		c.mu.Lock()
		defer c.mu.Unlock()
		// A newer turn may already own the slot.
		if c.active == g {
			c.active = nil
		}
	}
	return ctx, g, release
}

// Stream posts req and blocks until the turn completes, fails or is aborted.
// The returned error matches what OnError received; an aborted turn returns
// context.Canceled and fires no callbacks.
func (c *Client) Stream(ctx context.Context, req *chatSvc.TurnRequest, cb Callbacks) error {
	ctx, gate, release := c.begin(ctx)
	defer release()

	s := &turnStream{ctx: ctx, gate: gate, cb: cb, logger: c.logger}

	body, err := json.Marshal(req)
	if err != nil {
		return s.fail(fmt.Errorf("encode turn request: %w", err))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return s.fail(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return s.fail(fmt.Errorf("chat request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return s.fail(decodeHTTPError(resp))
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		return s.readSSE(resp.Body)
	}
	return s.readJSON(resp.Body)
}

func decodeHTTPError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.Error != "":
			msg = body.Error
		case body.Detail != "":
			msg = body.Detail
		}
	}
	return &HTTPError{StatusCode: resp.StatusCode, Message: msg}
}

// turnStream is the read state of one turn.
type turnStream struct {
	ctx    context.Context
	gate   *turnGate
	cb     Callbacks
	logger *slog.Logger
	full   strings.Builder
}

func (s *turnStream) aborted() bool {
	return s.gate.closed.Load() || s.ctx.Err() != nil
}

func (s *turnStream) fail(err error) error {
	var fn func()
	if s.cb.OnError != nil {
		fn = func() { s.cb.OnError(err) }
	}
	if !s.gate.deliver(s.ctx, fn) {
		return context.Canceled
	}
	return err
}

func (s *turnStream) complete(c Completion) error {
	var fn func()
	if s.cb.OnComplete != nil {
		fn = func() { s.cb.OnComplete(c) }
	}
	if !s.gate.deliver(s.ctx, fn) {
		return context.Canceled
	}
	return nil
}

// readJSON handles a turn answered directly with {content, isStreamed:false}.
func (s *turnStream) readJSON(r io.Reader) error {
	var payload map[string]interface{}
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return s.fail(fmt.Errorf("decode chat response: %w", err))
	}
	content, _ := payload["content"].(string)
	chatID, _ := payload["chatId"].(string)
	return s.complete(Completion{ChatID: chatID, Content: content, Payload: payload})
}

// readSSE reads data frames until a terminal event. Comment lines are
// keep-alives; multi-line data fields are joined with newlines.
func (s *turnStream) readSSE(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxFrameSize)

	var data []string
	for scanner.Scan() {
		if s.aborted() {
			return context.Canceled
		}
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) == 0 {
				continue
			}
			frame := strings.Join(data, "\n")
			data = data[:0]
			if done, err := s.handleFrame(frame); done {
				return err
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}

	if s.aborted() {
		return context.Canceled
	}
	if err := scanner.Err(); err != nil {
		return s.fail(fmt.Errorf("read stream: %w", err))
	}
	return s.fail(errors.New("stream ended before the turn completed"))
}

// handleFrame applies one frame and reports whether the turn is over.
func (s *turnStream) handleFrame(frame string) (bool, error) {
	var ev map[string]interface{}
	if err := json.Unmarshal([]byte(frame), &ev); err != nil {
		s.logger.Warn("skipping malformed stream frame", "error", err, "frame", truncate(frame, 200))
		return false, nil
	}

	switch ev["type"] {
	case "chunk":
		delta, _ := ev["content"].(string)
		if delta == "" {
			return false, nil
		}
		s.full.WriteString(delta)
		if s.cb.OnChunk == nil {
			return false, nil
		}
		full := s.full.String()
		if !s.gate.deliver(s.ctx, func() { s.cb.OnChunk(delta, full) }) {
			return true, context.Canceled
		}
		return false, nil
	case "complete":
		chatID, _ := ev["chatId"].(string)
		return true, s.complete(Completion{ChatID: chatID, Content: s.full.String(), Payload: ev})
	case "error":
		msg, _ := ev["error"].(string)
		code, _ := ev["code"].(string)
		return true, s.fail(&StreamError{Message: msg, Code: code})
	default:
		s.logger.Debug("skipping unknown stream frame", "type", ev["type"])
		return false, nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
