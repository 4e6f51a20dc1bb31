package translator

import (
	"context"
	"errors"
	"testing"

	"github.com/dimkroon/translate-subs/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

type fakeChat struct {
	prompt       string
	systemPrompt string
	reply        string
	err          error
}

func (f *fakeChat) Complete(ctx context.Context, systemPrompt string, prompt string) (string, error) {
	f.prompt = prompt
	f.systemPrompt = systemPrompt
	return f.reply, f.err
}

func TestLLMClient_Translate(t *testing.T) {
	chat := &fakeChat{reply: "  Goedemorgen, iedereen.\n"}
	client := NewLLMClient(chat)

	got, err := client.Translate(context.Background(), "Good morning, everyone.", language.Dutch)
	require.NoError(t, err)
	assert.Equal(t, "Goedemorgen, iedereen.", got)
	assert.Equal(t, "Good morning, everyone.", chat.prompt)
	assert.Contains(t, chat.systemPrompt, "Dutch (nl)")
	assert.Contains(t, chat.systemPrompt, "Return ONLY the translated text")
}

func TestLLMClient_Failures(t *testing.T) {
	tests := []struct {
		name   string
		chat   *fakeChat
		target language.Tag
	}{
		{name: "request error", chat: &fakeChat{err: errors.New("connection refused")}, target: language.Dutch},
		{name: "empty reply", chat: &fakeChat{reply: "   "}, target: language.Dutch},
		{name: "undetermined language", chat: &fakeChat{reply: "x"}, target: language.Und},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLLMClient(tt.chat).Translate(context.Background(), "Hello", tt.target)
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindTranslation))
		})
	}
}
