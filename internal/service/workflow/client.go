// Package workflow hands completed tool answers to the external document
// workflow and reconciles its results back into threads.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
)

// Mode selects how the workflow replies.
type Mode string

const (
	// ModeWebhook treats any 2xx as accepted; the result arrives later on the callback endpoint.
	ModeWebhook Mode = "webhook"
	// ModeSync decodes the result from the submission response.
	ModeSync Mode = "sync"
)

const (
	DefaultTimeout  = 120 * time.Second
	maxResponseBody = 1 << 20
)

// ParseMode validates a configured mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeWebhook:
		return ModeWebhook, nil
	case ModeSync:
		return ModeSync, nil
	default:
		return "", fmt.Errorf("unknown workflow mode %q (want webhook or sync)", s)
	}
}

// Client submits answers to the workflow endpoint. Submissions are never
// retried: a failure is returned to the caller as a *domain.WorkflowError.
type Client struct {
	url        string
	mode       Mode
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client. An empty url yields a client whose Submit
// always fails with WORKFLOW_NOT_CONFIGURED.
func NewClient(url string, mode Mode, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:  url,
		mode: mode,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Mode returns the configured mode.
func (c *Client) Mode() Mode { return c.mode }

// Submit posts req to the workflow.
func (c *Client) Submit(ctx context.Context, req *chat.WorkflowRequest) (*chat.WorkflowSubmission, error) {
	if c.url == "" {
		return nil, &domain.WorkflowError{Message: "document workflow is not configured", Code: domain.CodeWorkflowNotConfig}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.transportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, c.transportError(err)
	}

	c.logger.Info("workflow submission",
		"chat_id", req.ChatID,
		"mode", c.mode,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.WorkflowError{
			Message: fmt.Sprintf("document workflow rejected the submission (status %d)", resp.StatusCode),
			Code:    domain.CodeWorkflowRejected,
			Err:     fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200)),
		}
	}

	if c.mode == ModeWebhook {
		return &chat.WorkflowSubmission{Status: chat.WorkflowPending}, nil
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &domain.WorkflowError{
			Message: "document workflow returned an unreadable response",
			Code:    domain.CodeWorkflowBadResponse,
			Err:     err,
		}
	}
	result := ParseResult(raw)
	status := chat.WorkflowComplete
	if !result.Success {
		status = chat.WorkflowFailed
	}
	return &chat.WorkflowSubmission{Status: status, Result: result}, nil
}

func (c *Client) transportError(err error) error {
	var netErr interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &domain.WorkflowError{Message: "document workflow timed out", Code: domain.CodeWorkflowTimeout, Err: err}
	}
	return &domain.WorkflowError{Message: "document workflow is unavailable", Code: domain.CodeWorkflowUnavailable, Err: err}
}

// ParseResult normalises a workflow payload. Workflows report the artifact
// link under a handful of names; success defaults to true unless the payload
// says otherwise or carries an error.
func ParseResult(raw map[string]interface{}) *chat.WorkflowResult {
	result := &chat.WorkflowResult{Success: true, Raw: raw}
	if raw == nil {
		return result
	}

	for _, key := range []string{"documentUrl", "document_url", "docUrl", "url", "link"} {
		if s, ok := raw[key].(string); ok && s != "" {
			result.DocumentURL = s
			break
		}
	}
	if s, ok := raw["error"].(string); ok && s != "" {
		result.Error = s
		result.Success = false
	}
	if b, ok := raw["success"].(bool); ok {
		result.Success = b
	}
	return result
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
