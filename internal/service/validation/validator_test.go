package validation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/tools"
)

type fakeCompleter struct {
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) CompleteJSON(ctx context.Context, model, system, user string, out interface{}) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.reply), out)
}

func newTestValidator(t *testing.T, completer *fakeCompleter) *Validator {
	t.Helper()
	catalog, err := tools.NewCatalog()
	require.NoError(t, err)
	return NewValidator(catalog, completer, "test-model", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestValidate_RejectsShortAnswers(t *testing.T) {
	completer := &fakeCompleter{reply: `{"isValid":true}`}
	v := newTestValidator(t, completer)

	for _, answer := range []string{"", "  ", "ok", " a "} {
		verdict := v.Validate(context.Background(), "painPoints", answer)
		assert.False(t, verdict.IsValid, "answer %q", answer)
		require.NotNil(t, verdict.Reason)
		assert.Equal(t, "too short", *verdict.Reason)
	}
	assert.Zero(t, completer.calls)
}

func TestValidate_FastAcceptWithoutModelCall(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		answer string
	}{
		{"description two words", "offerDescription", "group coaching"},
		{"result with outcome keyword", "clientResult", "revenue went up"},
		{"result with helped", "clientResult", "I helped Sam"},
		{"result with percentage", "clientResult", "30% more"},
		{"result with currency", "participantOutcomes", "make $5k"},
		{"result with five words", "clientResult", "she finally felt like herself"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &fakeCompleter{reply: `{"isValid":false,"reason":"nope"}`}
			v := newTestValidator(t, completer)

			verdict := v.Validate(context.Background(), tt.key, tt.answer)
			assert.True(t, verdict.IsValid)
			assert.Zero(t, completer.calls)
		})
	}
}

func TestValidate_ModelRejects(t *testing.T) {
	completer := &fakeCompleter{reply: `{"isValid":false,"reason":"Please name a price.","topic":"pricing"}`}
	v := newTestValidator(t, completer)

	verdict := v.Validate(context.Background(), "pricing", "not sure yet")
	assert.False(t, verdict.IsValid)
	require.NotNil(t, verdict.Reason)
	assert.Equal(t, "Please name a price.", *verdict.Reason)
	require.NotNil(t, verdict.Topic)
	assert.Equal(t, "pricing", *verdict.Topic)
	assert.Equal(t, 1, completer.calls)
}

func TestValidate_ModelAccepts(t *testing.T) {
	completer := &fakeCompleter{reply: `{"isValid":true,"reason":null,"topic":"monthly retainer"}`}
	v := newTestValidator(t, completer)

	verdict := v.Validate(context.Background(), "pricing", "2000 a month")
	assert.True(t, verdict.IsValid)
	assert.Nil(t, verdict.Reason)
}

func TestValidate_FailsOpen(t *testing.T) {
	tests := []struct {
		name      string
		completer *fakeCompleter
	}{
		{"model error", &fakeCompleter{err: errors.New("503 from upstream")}},
		{"unparseable reply", &fakeCompleter{reply: `not json`}},
		{"missing verdict", &fakeCompleter{reply: `{"reason":"hm"}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestValidator(t, tt.completer)
			verdict := v.Validate(context.Background(), "painPoints", "they are stuck")
			assert.True(t, verdict.IsValid)
			assert.Equal(t, 1, tt.completer.calls)
		})
	}
}

func TestValidate_NilCompleterAccepts(t *testing.T) {
	catalog, err := tools.NewCatalog()
	require.NoError(t, err)
	v := NewValidator(catalog, nil, "m", slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.True(t, v.Validate(context.Background(), "painPoints", "they are stuck").IsValid)
}

func TestFastAccept_GeneralNeverShortCircuits(t *testing.T) {
	assert.False(t, fastAccept(tools.CategoryGeneral, "a very long answer with many many words"))
	assert.False(t, fastAccept(tools.CategoryDescription, "coaching"))
	assert.False(t, fastAccept(tools.CategoryResult, "it went well"))
}
