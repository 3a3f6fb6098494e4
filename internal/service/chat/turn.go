package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/config"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain"
	chatModels "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
	chatSvc "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/chat"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/service/progress"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/service/streaming"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/tools"
)

// turnContext is everything loaded for one turn.
type turnContext struct {
	userID  string
	input   string
	thread  *chatModels.Thread
	history []chatModels.Message
	profile map[string]string
	current progress.Progress
}

// HandleTurn runs one user turn. Direct replies (tool opener, rejected
// answer) come back as Reply; generated replies come back as a started
// stream the caller is already subscribed to.
func (s *Service) HandleTurn(ctx context.Context, userID string, req *chatSvc.TurnRequest) (*chatSvc.TurnResult, error) {
	input := req.Input()
	if input == "" {
		return nil, domain.ErrEmptyInput
	}
	if err := req.Validate(); err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}

	thread, err := s.loadOrCreateThread(ctx, userID, input, req)
	if err != nil {
		return nil, err
	}
	history, err := s.Messages.ListMessages(ctx, thread.ID)
	if err != nil {
		return nil, err
	}

	tc := &turnContext{
		userID:  userID,
		input:   input,
		thread:  thread,
		history: history,
		profile: s.loadProfile(ctx, userID),
		current: s.Tracker.Load(thread, history),
	}

	logger := s.Logger.With("thread_id", thread.ID, "user_id", userID, "state", tc.current.State)

	if tc.current.State == progress.StateToolInProgress {
		if tc.current.CurrentQuestionKey == "" {
			logger.Debug("starting tool flow")
			return s.openTool(ctx, tc)
		}

		key := tc.current.CurrentQuestionKey
		verdict := s.Validator.Validate(ctx, key, input)
		if !verdict.IsValid {
			logger.Info("answer rejected", "question_key", key)
			return s.reprompt(ctx, tc, verdict)
		}

		next := progress.Advance(tc.current, key, input)
		system := next.Tool.SystemPrompt(tools.PromptInput{
			Answers: next.OrderedAnswers(),
			Next:    next.NextQuestion(),
			Profile: tc.profile,
		})
		return s.startGeneration(ctx, tc, system, &answeredTurn{key: key, next: next})
	}

	system := s.freeformPrompt(ctx, tc)
	return s.startGeneration(ctx, tc, system, nil)
}

// answeredTurn is a tentatively accepted answer, committed by finalize.
type answeredTurn struct {
	key  string
	next progress.Progress
}

func (s *Service) loadOrCreateThread(ctx context.Context, userID, input string, req *chatSvc.TurnRequest) (*chatModels.Thread, error) {
	if req.ChatID != "" {
		thread, err := s.Threads.GetThread(ctx, req.ChatID, userID)
		if err == nil {
			return thread, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		// Clients mint the chat id; the thread is created on its first turn.
		if _, parseErr := uuid.Parse(req.ChatID); parseErr != nil {
			return nil, &domain.ValidationError{Message: "chatId must be a UUID"}
		}
	}

	thread := &chatModels.Thread{
		ID:       req.ChatID,
		UserID:   userID,
		Title:    deriveTitle(input),
		Metadata: map[string]interface{}{},
	}
	if req.Tool != "" {
		tool, err := s.Catalog.Lookup(req.Tool)
		if err != nil {
			return nil, &domain.ValidationError{Message: err.Error()}
		}
		toolID := string(tool.Kind())
		thread.ToolID = &toolID
		seedProgress(thread, tool, req)
	}

	if err := s.Threads.CreateThread(ctx, thread); err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			// Lost a create race with a concurrent first turn
			return s.Threads.GetThread(ctx, thread.ID, userID)
		}
		return nil, err
	}

	s.Logger.Info("thread created",
		"thread_id", thread.ID,
		"user_id", userID,
		"tool", req.Tool)
	return thread, nil
}

// seedProgress copies client-held tool state into a new thread. Unknown keys
// are dropped and the tracker clamps the count on load.
func seedProgress(thread *chatModels.Thread, tool tools.Tool, req *chatSvc.TurnRequest) {
	def := tool.Definition()
	answers := map[string]interface{}{}
	for k, v := range req.CollectedAnswers {
		if def.HasKey(k) {
			answers[k] = v
		}
	}
	if len(answers) > 0 {
		thread.Metadata[chatModels.MetaCollectedAnswers] = answers
	}
	if req.QuestionsAnswered != nil {
		thread.Metadata[chatModels.MetaQuestionsAnswered] = *req.QuestionsAnswered
	}
	if req.CurrentQuestionKey != nil && def.HasKey(*req.CurrentQuestionKey) {
		thread.Metadata[chatModels.MetaCurrentQuestionKey] = *req.CurrentQuestionKey
	}
}

func deriveTitle(input string) string {
	title := strings.Join(strings.Fields(input), " ")
	if utf8.RuneCountInString(title) <= config.MaxDerivedTitleRunes {
		return title
	}
	runes := []rune(title)
	return strings.TrimSpace(string(runes[:config.MaxDerivedTitleRunes])) + "..."
}

func (s *Service) loadProfile(ctx context.Context, userID string) map[string]string {
	if s.Profiles == nil {
		return nil
	}
	profile, err := s.Profiles.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.Logger.Warn("failed to load profile", "user_id", userID, "error", err)
		}
		return nil
	}
	return profile.Fields()
}

// openTool replies with the tool intro and first question and positions the
// thread at that question.
func (s *Service) openTool(ctx context.Context, tc *turnContext) (*chatSvc.TurnResult, error) {
	started := progress.Start(tc.current)
	content := tools.Opener(started.Tool, tc.profile)

	err := s.Tx.ExecTx(ctx, func(ctx context.Context) error {
		if _, err := s.appendMessages(ctx, tc, "", content, map[string]interface{}{
			chatModels.MetaQuestionKey: started.CurrentQuestionKey,
		}); err != nil {
			return err
		}
		return s.Threads.MergeMetadata(ctx, tc.thread.ID, started.MetadataPatch())
	})
	if err != nil {
		return nil, err
	}
	s.remember(tc)

	return directResult(tc.thread.ID, content, started), nil
}

// reprompt answers a rejected answer with the reason and the same question.
// Progress is left unchanged.
func (s *Service) reprompt(ctx context.Context, tc *turnContext, verdict chatModels.Verdict) (*chatSvc.TurnResult, error) {
	reason := "Let's try that one again."
	if verdict.Reason != nil && *verdict.Reason != "" {
		reason = *verdict.Reason
	}
	content := reason
	if q := tc.current.NextQuestion(); q != nil {
		content = fmt.Sprintf("%s\n\n%s", reason, tools.RenderQuestion(*q, tc.profile))
	}

	err := s.Tx.ExecTx(ctx, func(ctx context.Context) error {
		_, err := s.appendMessages(ctx, tc, "", content, map[string]interface{}{
			chatModels.MetaQuestionKey: tc.current.CurrentQuestionKey,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.remember(tc)

	return directResult(tc.thread.ID, content, tc.current), nil
}

// remember hands the committed user input to memory classification.
func (s *Service) remember(tc *turnContext) {
	if s.Memory != nil {
		s.Memory.Dispatch(tc.input, tc.thread.ID, tc.userID)
	}
}

// appendMessages stores the user input (tagged with answeredKey when it was
// an accepted answer) followed by the assistant reply.
func (s *Service) appendMessages(ctx context.Context, tc *turnContext, answeredKey, reply string, replyMeta map[string]interface{}) (*chatModels.Message, error) {
	userMsg := &chatModels.Message{
		ThreadID: tc.thread.ID,
		UserID:   tc.userID,
		Role:     chatModels.RoleUser,
		Content:  tc.input,
	}
	if answeredKey != "" {
		userMsg.Metadata = map[string]interface{}{chatModels.MetaQuestionKey: answeredKey}
	}
	if err := s.Messages.CreateMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	assistantMsg := &chatModels.Message{
		ThreadID: tc.thread.ID,
		UserID:   tc.userID,
		Role:     chatModels.RoleAssistant,
		Content:  reply,
		Metadata: replyMeta,
	}
	if err := s.Messages.CreateMessage(ctx, assistantMsg); err != nil {
		return nil, err
	}
	return assistantMsg, nil
}

func directResult(chatID, content string, p progress.Progress) *chatSvc.TurnResult {
	return &chatSvc.TurnResult{
		ChatID: chatID,
		Reply: &chatSvc.DirectReply{
			Content:            content,
			IsStreamed:         false,
			ChatID:             chatID,
			CurrentQuestionKey: p.CurrentQuestionKey,
			QuestionsAnswered:  p.QuestionsAnswered,
		},
	}
}

// startGeneration registers and starts a streaming turn. Nothing is persisted
// until the finalize hook runs, so an interrupted turn leaves no trace.
func (s *Service) startGeneration(ctx context.Context, tc *turnContext, system string, answered *answeredTurn) (*chatSvc.TurnResult, error) {
	provider, model, err := s.Providers.ForModel(s.opts.Model)
	if err != nil {
		return nil, &domain.UpstreamError{Err: err}
	}

	turnID := uuid.NewString()
	executor := streaming.NewTurnExecutor(streaming.TurnOptions{
		TurnID:       turnID,
		ThreadID:     tc.thread.ID,
		Provider:     provider,
		Request:      buildRequest(model, system, tc.history, tc.input),
		Finalize:     s.finalizer(tc, answered),
		StallTimeout: s.opts.StallTimeout,
		Logger:       s.Logger,
	})

	s.Turns.Register(executor)
	clientID := uuid.NewString()
	events := executor.AddClient(clientID)
	executor.Start()

	s.Logger.Info("turn started",
		"turn_id", turnID,
		"thread_id", tc.thread.ID,
		"provider", provider.Name(),
		"model", model)

	return &chatSvc.TurnResult{
		ChatID:   tc.thread.ID,
		Stream:   executor,
		Events:   events,
		ClientID: clientID,
	}, nil
}
