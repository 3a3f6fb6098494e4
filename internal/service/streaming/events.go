package streaming

import (
	"encoding/json"
	"fmt"
)

// Event types written to the client, one JSON object per SSE data frame.
const (
	EventChunk    = "chunk"
	EventComplete = "complete"
	EventError    = "error"
)

// ChunkEvent carries one text delta.
type ChunkEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ErrorEvent terminates a turn. Code is a stable machine-readable identifier.
type ErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// FormatFrame encodes v as a single SSE data frame.
func FormatFrame(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal sse frame: %w", err)
	}
	return fmt.Sprintf("data: %s\n\n", data), nil
}

// NewChunkFrame formats a chunk event.
func NewChunkFrame(content string) string {
	frame, _ := FormatFrame(ChunkEvent{Type: EventChunk, Content: content})
	return frame
}

// NewErrorFrame formats an error event.
func NewErrorFrame(message, code string) string {
	frame, _ := FormatFrame(ErrorEvent{Type: EventError, Error: message, Code: code})
	return frame
}

// NewCompleteFrame formats the completion event. payload holds the extra
// fields produced by the finalize hook; type and chatId are always set.
func NewCompleteFrame(chatID string, payload map[string]interface{}) (string, error) {
	body := make(map[string]interface{}, len(payload)+2)
	for k, v := range payload {
		body[k] = v
	}
	body["type"] = EventComplete
	body["chatId"] = chatID
	return FormatFrame(body)
}
