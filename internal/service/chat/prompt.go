package chat

import (
	"context"
	"fmt"
	"strings"

	chatModels "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
	domainllm "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/llm"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/service/memory"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/service/progress"
)

const freeformSystemPrompt = `You are a business coach for online coaches and consultants. Give practical, specific advice.
Keep answers concise and ask a clarifying question when the user's goal is unclear.`

// freeformPrompt builds the system prompt for a free-form turn or a follow-up
// on a finished tool. Memories are added when they can be found quickly.
func (s *Service) freeformPrompt(ctx context.Context, tc *turnContext) string {
	var b strings.Builder
	b.WriteString(freeformSystemPrompt)

	if fields := tc.profile; len(fields) > 0 {
		b.WriteString("\n\nAbout the user:")
		for _, key := range []string{"fullName", "occupation", "businessName", "targetAudience", "desiredMRR", "desiredHours"} {
			if v := fields[key]; v != "" {
				fmt.Fprintf(&b, "\n- %s: %s", key, v)
			}
		}
	}

	if tc.current.State == progress.StateToolComplete {
		def := tc.current.Tool.Definition()
		fmt.Fprintf(&b, "\n\nThe user completed the %s tool. Their answers:", def.Name)
		for _, a := range tc.current.OrderedAnswers() {
			fmt.Fprintf(&b, "\n- %s: %s", a.Question, a.Text)
		}
		b.WriteString("\nHelp them refine or act on this work.")
	}

	if section := s.memorySection(ctx, tc); section != "" {
		b.WriteString("\n\n")
		b.WriteString(section)
	}
	return b.String()
}

func (s *Service) memorySection(ctx context.Context, tc *turnContext) string {
	if s.Searcher == nil {
		return ""
	}
	searchCtx, cancel := context.WithTimeout(ctx, memoryBudget)
	defer cancel()

	memories, err := s.Searcher.Search(searchCtx, tc.userID, tc.input, memoryTopK)
	if err != nil {
		s.Logger.Debug("memory enrichment skipped", "user_id", tc.userID, "error", err)
		return ""
	}
	return memory.FormatForPrompt(memories)
}

// buildRequest converts stored history plus the new input into a generation
// request. Only user and assistant messages are sent.
func buildRequest(model, system string, history []chatModels.Message, input string) *domainllm.GenerateRequest {
	messages := make([]domainllm.Message, 0, len(history)+1)
	for _, m := range history {
		if m.Role != chatModels.RoleUser && m.Role != chatModels.RoleAssistant {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		messages = append(messages, domainllm.Message{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, domainllm.Message{Role: string(chatModels.RoleUser), Content: input})

	return &domainllm.GenerateRequest{
		Messages: messages,
		Model:    model,
		System:   system,
	}
}
