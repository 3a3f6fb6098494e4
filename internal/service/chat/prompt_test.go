package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	chatModels "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/service/progress"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/testutil"
)

type stubSearcher struct {
	hits  []chatModels.ScoredMemory
	err   error
	query string
}

func (s *stubSearcher) Search(ctx context.Context, userID, query string, k int) ([]chatModels.ScoredMemory, error) {
	s.query = query
	return s.hits, s.err
}

func TestFreeformPrompt_AddsProfileAndMemories(t *testing.T) {
	searcher := &stubSearcher{hits: []chatModels.ScoredMemory{
		{Memory: chatModels.Memory{Content: "Runs a 12-week group program for therapists"}, Score: 0.91},
	}}
	svc := NewService(Deps{Searcher: searcher, Logger: testutil.DiscardLogger()}, Options{})

	prompt := svc.freeformPrompt(context.Background(), &turnContext{
		userID:  "user-1",
		input:   "How do I raise my prices?",
		profile: map[string]string{"occupation": "coach"},
		current: progress.Progress{State: progress.StateFreeform},
	})

	assert.Contains(t, prompt, freeformSystemPrompt)
	assert.Contains(t, prompt, "- occupation: coach")
	assert.Contains(t, prompt, "- Runs a 12-week group program for therapists")
	assert.Equal(t, "How do I raise my prices?", searcher.query)
}

func TestFreeformPrompt_SearchFailureIsSilent(t *testing.T) {
	svc := NewService(Deps{Searcher: &stubSearcher{err: errors.New("embedding down")}, Logger: testutil.DiscardLogger()}, Options{})

	prompt := svc.freeformPrompt(context.Background(), &turnContext{
		userID:  "user-1",
		input:   "hello",
		current: progress.Progress{State: progress.StateFreeform},
	})

	assert.Equal(t, freeformSystemPrompt, prompt)
}

func TestBuildRequest_SkipsNonConversationalMessages(t *testing.T) {
	history := []chatModels.Message{
		{Role: chatModels.RoleSystem, Content: "internal"},
		{Role: chatModels.RoleUser, Content: "first"},
		{Role: chatModels.RoleAssistant, Content: "   "},
		{Role: chatModels.RoleAssistant, Content: "reply"},
	}

	req := buildRequest("lorem-fast", "sys", history, "second")

	assert.Equal(t, "lorem-fast", req.Model)
	assert.Equal(t, "sys", req.System)
	if assert.Len(t, req.Messages, 3) {
		assert.Equal(t, "first", req.Messages[0].Content)
		assert.Equal(t, "reply", req.Messages[1].Content)
		assert.Equal(t, "user", req.Messages[2].Role)
		assert.Equal(t, "second", req.Messages[2].Content)
	}
}
