package adapters

import (
	llmprovider "github.com/haowjy/meridian-llm-go"

	domainllm "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/llm"
)

const (
	blockTypeText = "text"
	deltaTypeText = "text_delta"
)

// convertToLibraryRequest converts a plain-text GenerateRequest to the library's
// block-based request. Every message becomes a single text block.
func convertToLibraryRequest(req *domainllm.GenerateRequest) *llmprovider.GenerateRequest {
	messages := make([]llmprovider.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		content := msg.Content
		messages = append(messages, llmprovider.Message{
			Role: msg.Role,
			Blocks: []*llmprovider.Block{{
				BlockType:   blockTypeText,
				Sequence:    0,
				TextContent: &content,
			}},
		})
	}

	libReq := &llmprovider.GenerateRequest{
		Messages: messages,
		Model:    req.Model,
	}
	if req.System != "" {
		system := req.System
		libReq.Params = &llmprovider.RequestParams{System: &system}
	}
	return libReq
}

// eventConverter turns library events into plain text deltas. Block types are
// only announced on the first delta of a block, so they are tracked per index.
type eventConverter struct {
	blockTypes map[int]string
}

func newEventConverter() *eventConverter {
	return &eventConverter{blockTypes: make(map[int]string)}
}

// convert returns the backend event for a library event, and false when the
// event carries nothing the chat stream cares about (thinking, usage deltas).
func (c *eventConverter) convert(event llmprovider.StreamEvent) (domainllm.StreamEvent, bool) {
	if event.Error != nil {
		return domainllm.StreamEvent{Error: event.Error}, true
	}

	if event.Metadata != nil {
		return domainllm.StreamEvent{
			Metadata: &domainllm.StreamMetadata{
				Model:        event.Metadata.Model,
				InputTokens:  event.Metadata.InputTokens,
				OutputTokens: event.Metadata.OutputTokens,
				StopReason:   event.Metadata.StopReason,
			},
		}, true
	}

	if event.Delta == nil {
		return domainllm.StreamEvent{}, false
	}
	return c.convertDelta(event.Delta.BlockIndex, event.Delta.BlockType, event.Delta.DeltaType, event.Delta.TextDelta)
}

func (c *eventConverter) convertDelta(index int, blockType *string, deltaType string, text *string) (domainllm.StreamEvent, bool) {
	if blockType != nil {
		c.blockTypes[index] = *blockType
	}
	if known, ok := c.blockTypes[index]; ok && known != blockTypeText {
		return domainllm.StreamEvent{}, false
	}
	if deltaType != deltaTypeText || text == nil || *text == "" {
		return domainllm.StreamEvent{}, false
	}

	return domainllm.StreamEvent{TextDelta: *text}, true
}
