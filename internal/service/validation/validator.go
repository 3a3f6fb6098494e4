// Package validation decides whether an answer to a tool question is acceptable
// before the conversation advances.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
	domainllm "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/llm"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/tools"
)

const (
	defaultTimeout = 10 * time.Second
	tooShortReason = "too short"
	genericRubric  = "The answer must be a genuine attempt to answer the question."
)

// QuestionFinder resolves a question key to its definition.
type QuestionFinder interface {
	FindQuestion(key string) (tools.Question, bool)
}

// Validator implements the answer gate. It fails open: when the model cannot
// be reached or its reply cannot be parsed, the answer is accepted.
type Validator struct {
	questions QuestionFinder
	completer domainllm.StructuredCompleter
	model     string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewValidator creates a validator. completer may be nil, in which case every
// answer that passes the length check and misses the heuristics is accepted.
func NewValidator(questions QuestionFinder, completer domainllm.StructuredCompleter, model string, logger *slog.Logger) *Validator {
	return &Validator{
		questions: questions,
		completer: completer,
		model:     model,
		timeout:   defaultTimeout,
		logger:    logger,
	}
}

// modelVerdict is the JSON shape requested from the model.
type modelVerdict struct {
	IsValid *bool   `json:"isValid"`
	Reason  *string `json:"reason"`
	Topic   *string `json:"topic"`
}

// Validate returns the verdict for answer to the question identified by key.
func (v *Validator) Validate(ctx context.Context, questionKey, answer string) chat.Verdict {
	trimmed := strings.TrimSpace(answer)
	if len(trimmed) < minAnswerLength {
		return chat.Reject(tooShortReason)
	}

	q, known := v.questions.FindQuestion(questionKey)
	if known && fastAccept(q.Category, trimmed) {
		v.logger.Debug("answer fast-accepted",
			"question_key", questionKey,
			"category", q.Category)
		return chat.Accept()
	}

	if v.completer == nil {
		return chat.Accept()
	}

	rubric := genericRubric
	prompt := questionKey
	if known {
		prompt = q.Prompt
		if q.Rubric != "" {
			rubric = q.Rubric
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	var out modelVerdict
	err := v.completer.CompleteJSON(callCtx, v.model, systemPrompt(rubric), userPrompt(prompt, trimmed), &out)
	if err != nil {
		v.logger.Warn("answer validation failed open",
			"question_key", questionKey,
			"error", err)
		return chat.Accept()
	}
	if out.IsValid == nil {
		v.logger.Warn("answer validation reply missing isValid, failing open",
			"question_key", questionKey)
		return chat.Accept()
	}

	if *out.IsValid {
		return chat.Verdict{IsValid: true, Topic: out.Topic}
	}
	reason := "That answer doesn't quite address the question."
	if out.Reason != nil && strings.TrimSpace(*out.Reason) != "" {
		reason = strings.TrimSpace(*out.Reason)
	}
	return chat.Verdict{IsValid: false, Reason: &reason, Topic: out.Topic}
}

func systemPrompt(rubric string) string {
	return fmt.Sprintf(`You check whether a user's answer to a coaching question is acceptable.
Rubric: %s
Be lenient: short answers are fine when they address the rubric.
Reply with a JSON object: {"isValid": boolean, "reason": string or null, "topic": string or null}.
When isValid is false, reason is one friendly sentence telling the user what is missing.
topic is a two to four word summary of the answer.`, rubric)
}

func userPrompt(question, answer string) string {
	return fmt.Sprintf("Question: %s\nAnswer: %s", question, answer)
}
