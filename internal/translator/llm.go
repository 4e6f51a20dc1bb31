package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dimkroon/translate-subs/internal/apperr"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ChatClient is implemented by llm.Client and llm.GeminiClient.
type ChatClient interface {
	Complete(ctx context.Context, system string, user string) (string, error)
}

type llmTranslator struct {
	chat ChatClient
}

// NewLLMClient translates with one chat completion per text.
func NewLLMClient(chat ChatClient) Client {
	return &llmTranslator{chat: chat}
}

func (t *llmTranslator) Translate(ctx context.Context, text string, target language.Tag) (string, error) {
	if target == language.Und {
		return "", apperr.TranslationFailure("unsupported target language", nil).WithContext("target", target.String())
	}

	content, err := t.chat.Complete(ctx, buildPrompt(target), text)
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return "", ctxErr
	}
	if err != nil {
		return "", apperr.TranslationFailure("translation request failed", err)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperr.TranslationFailure("empty translation returned", nil)
	}
	return content, nil
}

func languageName(tag language.Tag) string {
	if name := display.Tags(language.English).Name(tag); name != "" {
		return name
	}
	return tag.String()
}

func buildPrompt(target language.Tag) string {
	var prompt strings.Builder

	prompt.WriteString("You are a professional subtitle translator. ")
	prompt.WriteString(fmt.Sprintf("Translate the user's text into %s (%s).\n\n", languageName(target), target.String()))

	prompt.WriteString("=== TRANSLATION GUIDELINES ===\n")
	prompt.WriteString("1. The text is one or more consecutive subtitle lines joined into sentences\n")
	prompt.WriteString("2. Keep the meaning, tone and register of spoken dialogue\n")
	prompt.WriteString("3. Keep text in square or round brackets as a bracketed description\n")
	prompt.WriteString("4. Keep a leading dash that marks a speaker\n")
	prompt.WriteString("5. Keep the translation about as long as the source so it fits on screen\n")

	prompt.WriteString("\n=== OUTPUT FORMAT ===\n")
	prompt.WriteString("Return ONLY the translated text on a single line.\n")
	prompt.WriteString("Do not include any explanations, notes, quotes around the text or additional text.\n")

	return prompt.String()
}
