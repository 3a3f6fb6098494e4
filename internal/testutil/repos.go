// Package testutil holds in-memory repository fakes shared by service and
// handler tests.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain/repositories"
	chatRepo "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/repositories/chat"
)

var (
	_ chatRepo.ThreadRepository  = (*Store)(nil)
	_ chatRepo.MessageRepository = (*Store)(nil)
	_ chatRepo.ProfileRepository = (*Store)(nil)
)

// DiscardLogger returns a logger that writes nowhere.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Store is an in-memory implementation of the thread, message and profile
// repositories, with the same not-found, conflict and monotonic-merge
// behaviour as the Postgres ones.
type Store struct {
	mu       sync.Mutex
	threads  map[string]*chat.Thread
	messages []chat.Message
	profiles map[string]*chat.Profile
	clock    time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		threads:  make(map[string]*chat.Thread),
		profiles: make(map[string]*chat.Profile),
		clock:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick returns strictly increasing timestamps so ordering is deterministic.
func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

func copyMeta(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// PutProfile registers a profile.
func (s *Store) PutProfile(p *chat.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = p
}

// Messages returns a copy of every stored message of a thread.
func (s *Store) Messages(threadID string) []chat.Message {
	msgs, _ := s.ListMessages(context.Background(), threadID)
	return msgs
}

// Thread returns a copy of a stored thread, or nil.
func (s *Store) Thread(threadID string) *chat.Thread {
	t, err := s.GetThreadByIDOnly(context.Background(), threadID)
	if err != nil {
		return nil
	}
	return t
}

func (s *Store) CreateThread(ctx context.Context, thread *chat.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if thread.ID == "" {
		thread.ID = uuid.NewString()
	}
	if _, exists := s.threads[thread.ID]; exists {
		return &domain.ConflictError{Message: "thread already exists", ResourceType: "thread", ResourceID: thread.ID}
	}
	now := s.tick()
	thread.CreatedAt, thread.UpdatedAt = now, now
	if thread.Metadata == nil {
		thread.Metadata = map[string]interface{}{}
	}
	stored := *thread
	stored.Metadata = copyMeta(thread.Metadata)
	s.threads[thread.ID] = &stored
	return nil
}

func (s *Store) GetThread(ctx context.Context, threadID, userID string) (*chat.Thread, error) {
	t, err := s.GetThreadByIDOnly(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, fmt.Errorf("thread %s: %w", threadID, domain.ErrNotFound)
	}
	return t, nil
}

func (s *Store) GetThreadByIDOnly(ctx context.Context, threadID string) (*chat.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("thread %s: %w", threadID, domain.ErrNotFound)
	}
	out := *t
	out.Metadata = copyMeta(t.Metadata)
	return &out, nil
}

func (s *Store) ListThreads(ctx context.Context, userID string) ([]chat.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	threads := []chat.Thread{}
	for _, t := range s.threads {
		if t.UserID == userID {
			out := *t
			out.Metadata = copyMeta(t.Metadata)
			threads = append(threads, out)
		}
	}
	sort.Slice(threads, func(i, j int) bool { return threads[i].UpdatedAt.After(threads[j].UpdatedAt) })
	return threads, nil
}

func (s *Store) UpdateTitle(ctx context.Context, threadID, userID, title string, custom bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok || t.UserID != userID {
		return fmt.Errorf("thread %s: %w", threadID, domain.ErrNotFound)
	}
	t.Title = title
	t.HasCustomTitle = custom
	t.UpdatedAt = s.tick()
	return nil
}

func (s *Store) MergeMetadata(ctx context.Context, threadID string, patch map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return fmt.Errorf("thread %s: %w", threadID, domain.ErrNotFound)
	}
	if next, ok := chat.MetaInt(patch[chat.MetaQuestionsAnswered]); ok {
		current, _ := chat.MetaInt(t.Metadata[chat.MetaQuestionsAnswered])
		if current > next {
			return &domain.ConflictError{Message: "thread progress has moved on", ResourceType: "thread", ResourceID: threadID}
		}
	}
	if t.Metadata == nil {
		t.Metadata = map[string]interface{}{}
	}
	for k, v := range patch {
		t.Metadata[k] = v
	}
	t.UpdatedAt = s.tick()
	return nil
}

func (s *Store) DeleteThread(ctx context.Context, threadID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok || t.UserID != userID {
		return fmt.Errorf("thread %s: %w", threadID, domain.ErrNotFound)
	}
	delete(s.threads, threadID)
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.ThreadID != threadID {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	return nil
}

func (s *Store) CreateMessage(ctx context.Context, msg *chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[msg.ThreadID]
	if !ok {
		return fmt.Errorf("thread %s: %w", msg.ThreadID, domain.ErrNotFound)
	}
	if key, _ := msg.Metadata[chat.MetaWorkflowResultFor].(string); key != "" {
		for _, m := range s.messages {
			if m.ThreadID == msg.ThreadID && m.MetaString(chat.MetaWorkflowResultFor) != "" {
				return &domain.ConflictError{Message: "message already exists", ResourceType: "message", ResourceID: msg.ThreadID}
			}
		}
	}
	if key, _ := msg.Metadata[chat.MetaWorkflowFailureFor].(string); key != "" {
		for _, m := range s.messages {
			if m.ThreadID == msg.ThreadID && m.MetaString(chat.MetaWorkflowFailureFor) == key {
				return &domain.ConflictError{Message: "message already exists", ResourceType: "message", ResourceID: msg.ThreadID}
			}
		}
	}
	msg.ID = uuid.NewString()
	msg.CreatedAt = s.tick()
	stored := *msg
	stored.Metadata = copyMeta(msg.Metadata)
	s.messages = append(s.messages, stored)
	t.UpdatedAt = msg.CreatedAt
	return nil
}

func (s *Store) ListMessages(ctx context.Context, threadID string) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := []chat.Message{}
	for _, m := range s.messages {
		if m.ThreadID == threadID {
			out := m
			out.Metadata = copyMeta(m.Metadata)
			msgs = append(msgs, out)
		}
	}
	return msgs, nil
}

func (s *Store) FindByMetadata(ctx context.Context, threadID, key, value string) (*chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ThreadID == threadID && m.MetaString(key) == value {
			out := m
			out.Metadata = copyMeta(m.Metadata)
			return &out, nil
		}
	}
	return nil, fmt.Errorf("message with %s=%s: %w", key, value, domain.ErrNotFound)
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*chat.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", userID, domain.ErrNotFound)
	}
	out := *p
	return &out, nil
}

// TxManager runs fn against Store and, when fn fails, restores the threads
// and messages it held beforehand. With a nil Store it just calls fn.
// Concurrent writers outside the transaction are not isolated.
type TxManager struct {
	Store *Store
}

var _ repositories.TransactionManager = TxManager{}

func (m TxManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if m.Store == nil {
		return fn(ctx)
	}
	threads, messages := m.Store.snapshot()
	if err := fn(ctx); err != nil {
		m.Store.restore(threads, messages)
		return err
	}
	return nil
}

func (s *Store) snapshot() (map[string]*chat.Thread, []chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	threads := make(map[string]*chat.Thread, len(s.threads))
	for id, t := range s.threads {
		cp := *t
		cp.Metadata = copyMeta(t.Metadata)
		threads[id] = &cp
	}
	return threads, append([]chat.Message(nil), s.messages...)
}

func (s *Store) restore(threads map[string]*chat.Thread, messages []chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = threads
	s.messages = messages
}
