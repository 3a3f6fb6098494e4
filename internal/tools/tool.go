package tools

import (
	"fmt"
	"regexp"
	"strings"
)

// Tool is a guided tool. Implementations are the closed set HybridOffer and
// Workshop; each owns the way its system prompt is assembled.
type Tool interface {
	Kind() Kind
	Definition() *Definition
	SystemPrompt(in PromptInput) string
	isTool()
}

// Answer is one collected answer, in question order.
type Answer struct {
	Key      string
	Question string
	Text     string
}

// PromptInput carries what a tool needs to build the prompt for a turn.
type PromptInput struct {
	Answers []Answer
	// Next is the question to ask; nil once every question is answered.
	Next    *Question
	Profile map[string]string
}

func newTool(kind Kind, def *Definition) (Tool, error) {
	switch kind {
	case KindHybridOffer:
		return &HybridOffer{def: def}, nil
	case KindWorkshop:
		return &Workshop{def: def}, nil
	default:
		return nil, fmt.Errorf("no tool variant for kind %q", kind)
	}
}

// HybridOffer walks a coach through packaging a hybrid offer.
type HybridOffer struct {
	def *Definition
}

func (t *HybridOffer) Kind() Kind              { return KindHybridOffer }
func (t *HybridOffer) Definition() *Definition { return t.def }
func (t *HybridOffer) isTool()                 {}

func (t *HybridOffer) SystemPrompt(in PromptInput) string {
	var b strings.Builder
	b.WriteString(t.def.SystemPrompt)
	writeAnswers(&b, "What the user has told you about the offer", in.Answers)

	if in.Next == nil {
		b.WriteString("\n\n")
		b.WriteString(t.def.CompletionPrompt)
		return b.String()
	}

	fmt.Fprintf(&b, "\n\nAcknowledge the user's last answer in one sentence, then ask exactly this question:\n%s",
		RenderQuestion(*in.Next, in.Profile))
	if len(in.Next.Options) > 0 {
		fmt.Fprintf(&b, "\nYou may mention common choices such as: %s.", strings.Join(in.Next.Options, ", "))
	}
	return b.String()
}

// Workshop outlines a paid workshop.
type Workshop struct {
	def *Definition
}

func (t *Workshop) Kind() Kind              { return KindWorkshop }
func (t *Workshop) Definition() *Definition { return t.def }
func (t *Workshop) isTool()                 {}

func (t *Workshop) SystemPrompt(in PromptInput) string {
	var b strings.Builder
	b.WriteString(t.def.SystemPrompt)
	writeAnswers(&b, "Workshop plan so far", in.Answers)

	// Keep the promised outcome in front of the model for every later question.
	for _, a := range in.Answers {
		if a.Key == "participantOutcomes" {
			fmt.Fprintf(&b, "\n\nEvery suggestion must serve this participant outcome: %s", a.Text)
			break
		}
	}

	if in.Next == nil {
		b.WriteString("\n\n")
		b.WriteString(t.def.CompletionPrompt)
		return b.String()
	}

	fmt.Fprintf(&b, "\n\nIn one short sentence, react to the user's last answer. Then ask:\n%s",
		RenderQuestion(*in.Next, in.Profile))
	if len(in.Next.Options) > 0 {
		fmt.Fprintf(&b, "\nTypical formats are %s.", strings.Join(in.Next.Options, ", "))
	}
	return b.String()
}

func writeAnswers(b *strings.Builder, heading string, answers []Answer) {
	if len(answers) == 0 {
		return
	}
	fmt.Fprintf(b, "\n\n%s:", heading)
	for _, a := range answers {
		fmt.Fprintf(b, "\n- %s: %s", a.Question, a.Text)
	}
}

var placeholderRe = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// RenderQuestion returns the context-aware variant of q when every placeholder
// it references is present in profile, and the canonical prompt otherwise.
// The rendered text is only ever used to build prompts.
func RenderQuestion(q Question, profile map[string]string) string {
	if q.ContextPrompt == "" || len(profile) == 0 {
		return q.Prompt
	}

	missing := false
	out := placeholderRe.ReplaceAllStringFunc(q.ContextPrompt, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		v := profile[name]
		if v == "" {
			missing = true
			return m
		}
		return v
	})
	if missing {
		return q.Prompt
	}
	return strings.TrimSpace(out)
}

// Opener is the direct reply that starts a tool flow: the intro followed by
// the first question.
func Opener(t Tool, profile map[string]string) string {
	def := t.Definition()
	first, ok := def.QuestionAt(0)
	if !ok {
		return def.Intro
	}
	return strings.TrimSpace(def.Intro) + "\n\n" + RenderQuestion(first, profile)
}
