// Package progress derives and advances the per-thread state of a guided tool
// conversation.
package progress

import (
	"sort"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/tools"
)

// State is the conversation mode of a thread.
type State string

const (
	StateFreeform       State = "FREEFORM"
	StateToolInProgress State = "TOOL_IN_PROGRESS"
	StateToolComplete   State = "TOOL_COMPLETE"
)

// Progress is the derived position of a thread in its tool's question list.
// Values are never mutated in place; Advance returns a new Progress.
type Progress struct {
	State              State
	Tool               tools.Tool
	CurrentQuestionKey string
	QuestionsAnswered  int
	CollectedAnswers   map[string]string
	// JustCompleted is set only by the Advance call that answered the last question.
	JustCompleted bool
}

// IsComplete reports whether every question has been answered.
func (p Progress) IsComplete() bool {
	return p.State == StateToolComplete
}

// Total returns the tool's question count, 0 for free-form threads.
func (p Progress) Total() int {
	if p.Tool == nil {
		return 0
	}
	return p.Tool.Definition().Total()
}

// OrderedAnswers returns the collected answers in the tool's question order.
func (p Progress) OrderedAnswers() []tools.Answer {
	if p.Tool == nil {
		return nil
	}
	answers := make([]tools.Answer, 0, len(p.CollectedAnswers))
	for _, q := range p.Tool.Definition().Questions {
		if text, ok := p.CollectedAnswers[q.Key]; ok {
			answers = append(answers, tools.Answer{Key: q.Key, Question: q.Prompt, Text: text})
		}
	}
	return answers
}

// NextQuestion returns the pending question, or nil when none is pending.
func (p Progress) NextQuestion() *tools.Question {
	if p.Tool == nil || p.CurrentQuestionKey == "" {
		return nil
	}
	q, ok := p.Tool.Definition().Question(p.CurrentQuestionKey)
	if !ok {
		return nil
	}
	return &q
}

// MetadataPatch is the thread metadata merge that persists this progress.
func (p Progress) MetadataPatch() map[string]interface{} {
	answers := make(map[string]interface{}, len(p.CollectedAnswers))
	for k, v := range p.CollectedAnswers {
		answers[k] = v
	}
	patch := map[string]interface{}{
		chat.MetaQuestionsAnswered: p.QuestionsAnswered,
		chat.MetaCollectedAnswers:  answers,
	}
	if p.CurrentQuestionKey != "" {
		patch[chat.MetaCurrentQuestionKey] = p.CurrentQuestionKey
	} else {
		patch[chat.MetaCurrentQuestionKey] = nil
	}
	return patch
}

// ToolResolver looks up a tool by its stored identifier.
type ToolResolver interface {
	Lookup(id string) (tools.Tool, error)
}

// Tracker loads progress from persisted thread state.
type Tracker struct {
	tools ToolResolver
}

// NewTracker creates a tracker over the tool catalog.
func NewTracker(resolver ToolResolver) *Tracker {
	return &Tracker{tools: resolver}
}

// Load derives progress from the thread's tool id and metadata. When metadata
// lacks collected answers they are rebuilt from user messages tagged with a
// question key. An unknown tool id degrades to free-form.
func (t *Tracker) Load(thread *chat.Thread, history []chat.Message) Progress {
	if thread == nil || !thread.IsToolThread() {
		return Progress{State: StateFreeform}
	}
	tool, err := t.tools.Lookup(*thread.ToolID)
	if err != nil {
		return Progress{State: StateFreeform}
	}
	def := tool.Definition()

	answers := answersFromMetadata(thread.Metadata, def)
	if len(answers) == 0 {
		answers = answersFromHistory(history, def)
	}

	count, _ := chat.MetaInt(thread.Metadata[chat.MetaQuestionsAnswered])
	count = clamp(count, len(answers), def.Total())

	p := Progress{
		Tool:              tool,
		QuestionsAnswered: count,
		CollectedAnswers:  answers,
	}
	if count >= def.Total() {
		p.State = StateToolComplete
		return p
	}

	p.State = StateToolInProgress
	if key, _ := thread.Metadata[chat.MetaCurrentQuestionKey].(string); key != "" && def.HasKey(key) {
		p.CurrentQuestionKey = key
	} else if len(answers) > 0 {
		// Metadata lost the pointer but answers survive: resume at the first gap.
		p.CurrentQuestionKey = firstUnanswered(def, answers)
	}
	return p
}

// Start returns the progress of a tool thread that has not asked anything yet,
// positioned at the first question.
func Start(p Progress) Progress {
	if p.Tool == nil || p.State != StateToolInProgress || p.CurrentQuestionKey != "" {
		return p
	}
	next := clone(p)
	next.CurrentQuestionKey = firstUnanswered(p.Tool.Definition(), p.CollectedAnswers)
	return next
}

// Advance records answer for key and moves to the next unanswered question.
// It is pure: p is not modified. The count never decreases and never exceeds
// the question total.
func Advance(p Progress, key, answer string) Progress {
	next := clone(p)
	next.JustCompleted = false
	if p.Tool == nil || p.State != StateToolInProgress {
		return next
	}
	def := p.Tool.Definition()
	if !def.HasKey(key) {
		return next
	}

	next.CollectedAnswers[key] = answer
	next.QuestionsAnswered = clamp(p.QuestionsAnswered+1, len(next.CollectedAnswers), def.Total())

	if next.QuestionsAnswered >= def.Total() {
		next.State = StateToolComplete
		next.CurrentQuestionKey = ""
		next.JustCompleted = true
		return next
	}
	next.CurrentQuestionKey = firstUnanswered(def, next.CollectedAnswers)
	return next
}

func clone(p Progress) Progress {
	next := p
	next.CollectedAnswers = make(map[string]string, len(p.CollectedAnswers)+1)
	for k, v := range p.CollectedAnswers {
		next.CollectedAnswers[k] = v
	}
	return next
}

func firstUnanswered(def *tools.Definition, answers map[string]string) string {
	for _, q := range def.Questions {
		if _, ok := answers[q.Key]; !ok {
			return q.Key
		}
	}
	return ""
}

func answersFromMetadata(meta map[string]interface{}, def *tools.Definition) map[string]string {
	answers := make(map[string]string)
	raw, ok := meta[chat.MetaCollectedAnswers].(map[string]interface{})
	if !ok {
		return answers
	}
	for k, v := range raw {
		s, ok := v.(string)
		if ok && def.HasKey(k) {
			answers[k] = s
		}
	}
	return answers
}

// answersFromHistory rebuilds answers from tagged user messages. A later
// answer to the same key wins.
func answersFromHistory(history []chat.Message, def *tools.Definition) map[string]string {
	msgs := make([]chat.Message, len(history))
	copy(msgs, history)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })

	answers := make(map[string]string)
	for _, m := range msgs {
		if m.Role != chat.RoleUser {
			continue
		}
		if key := m.MetaString(chat.MetaQuestionKey); key != "" && def.HasKey(key) {
			answers[key] = m.Content
		}
	}
	return answers
}

func clamp(n, lo, hi int) int {
	if n < lo {
		n = lo
	}
	if n > hi {
		n = hi
	}
	return n
}
