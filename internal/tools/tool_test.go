package tools

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCatalog_LoadsEveryKind(t *testing.T) {
	catalog, err := NewCatalog()
	require.NoError(t, err)

	for _, kind := range Kinds {
		tool, ok := catalog.Get(kind)
		require.True(t, ok, "missing %s", kind)
		assert.Equal(t, kind, tool.Kind())
		assert.Equal(t, kind, tool.Definition().Kind)
		assert.NotZero(t, tool.Definition().Total())
	}
	assert.Len(t, catalog.List(), len(Kinds))
}

func TestCatalog_HasDescriptionAndResultQuestions(t *testing.T) {
	catalog, err := NewCatalog()
	require.NoError(t, err)

	q, ok := catalog.FindQuestion("offerDescription")
	require.True(t, ok)
	assert.Equal(t, CategoryDescription, q.Category)
	assert.NotEmpty(t, q.Rubric)

	q, ok = catalog.FindQuestion("clientResult")
	require.True(t, ok)
	assert.Equal(t, CategoryResult, q.Category)
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("hybrid-offer")
	require.NoError(t, err)
	assert.Equal(t, KindHybridOffer, kind)

	_, err = ParseKind("sales-page")
	assert.Error(t, err)
}

func TestRenderQuestion(t *testing.T) {
	q := Question{
		Key:           "targetAudience",
		Prompt:        "Who is your ideal client?",
		ContextPrompt: "Is {{targetAudience}} still your ideal client, {{fullName}}?",
	}

	tests := []struct {
		name    string
		profile map[string]string
		want    string
	}{
		{"no profile", nil, "Who is your ideal client?"},
		{"missing placeholder", map[string]string{"targetAudience": "dentists"}, "Who is your ideal client?"},
		{
			"all placeholders",
			map[string]string{"targetAudience": "dentists", "fullName": "Sam"},
			"Is dentists still your ideal client, Sam?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderQuestion(q, tt.profile))
		})
	}
}

func TestSystemPrompt_NextQuestionAndCompletion(t *testing.T) {
	catalog, err := NewCatalog()
	require.NoError(t, err)
	tool, _ := catalog.Get(KindHybridOffer)
	def := tool.Definition()

	next, _ := def.QuestionAt(1)
	prompt := tool.SystemPrompt(PromptInput{
		Answers: []Answer{{Key: "offerDescription", Question: def.Questions[0].Prompt, Text: "group coaching for dentists"}},
		Next:    &next,
	})
	assert.Contains(t, prompt, "group coaching for dentists")
	assert.Contains(t, prompt, next.Prompt)

	done := tool.SystemPrompt(PromptInput{})
	assert.True(t, strings.HasSuffix(done, def.CompletionPrompt))
}

func TestOpener_StartsWithIntroAndAsksFirstQuestion(t *testing.T) {
	catalog, err := NewCatalog()
	require.NoError(t, err)
	tool, _ := catalog.Get(KindWorkshop)

	opener := Opener(tool, nil)
	assert.True(t, strings.HasPrefix(opener, strings.TrimSpace(tool.Definition().Intro)))
	assert.True(t, strings.HasSuffix(opener, tool.Definition().Questions[0].Prompt))
}
