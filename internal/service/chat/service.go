// Package chat orchestrates conversation turns: tool progress, answer
// validation, streaming generation, memory and the workflow handoff.
package chat

import (
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	chatModels "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain/repositories"
	chatRepo "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/repositories/chat"
	chatSvc "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/chat"
	domainllm "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/llm"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/service/progress"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/service/streaming"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/tools"
)

const (
	memoryBudget      = 3 * time.Second
	memoryTopK        = 5
	defaultWorkflowTO = 120 * time.Second
)

// ProviderResolver maps a model string to a streaming provider.
type ProviderResolver interface {
	ForModel(model string) (domainllm.LLMProvider, string, error)
}

// StatusStore records workflow handoff status per chat.
type StatusStore interface {
	Set(chatID string, status chatModels.WorkflowStatus)
	Get(chatID string) (chatModels.WorkflowStatus, bool)
}

// Deps are the collaborators of the chat service. Memory, Searcher and
// Workflow may be nil to disable those features.
type Deps struct {
	Threads    chatRepo.ThreadRepository
	Messages   chatRepo.MessageRepository
	Profiles   chatRepo.ProfileRepository
	Tx         repositories.TransactionManager
	Catalog    *tools.Catalog
	Tracker    *progress.Tracker
	Validator  chatSvc.AnswerValidator
	Providers  ProviderResolver
	Turns      *streaming.Registry
	Memory     chatSvc.MemoryDispatcher
	Searcher   chatSvc.MemorySearcher
	Workflow   chatSvc.WorkflowSubmitter
	Reconciler chatSvc.WorkflowReconciler
	Statuses   StatusStore
	Logger     *slog.Logger
}

// Options tune the chat service.
type Options struct {
	Model           string
	StallTimeout    time.Duration
	WorkflowTimeout time.Duration
}

// Service implements ChatService, ThreadService and WorkflowService.
type Service struct {
	Deps
	opts Options

	// collapses concurrent resubmissions of one chat
	resubmits singleflight.Group
}

var (
	_ chatSvc.ChatService     = (*Service)(nil)
	_ chatSvc.ThreadService   = (*Service)(nil)
	_ chatSvc.WorkflowService = (*Service)(nil)
)

// NewService creates the chat service.
func NewService(deps Deps, opts Options) *Service {
	if opts.WorkflowTimeout <= 0 {
		opts.WorkflowTimeout = defaultWorkflowTO
	}
	return &Service{Deps: deps, opts: opts}
}
