package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/dimkroon/translate-subs/pkg/log"
)

// GeminiClient completes prompts with the Gemini API. It is safe for
// concurrent use.
type GeminiClient struct {
	config Config
	models *genai.Models
}

// NewGeminiClient connects to the Gemini API at config.APIURL.
func NewGeminiClient(ctx context.Context, config *Config) (*GeminiClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     config.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: time.Duration(config.Timeout) * time.Second},
		HTTPOptions: genai.HTTPOptions{
			BaseURL: config.APIURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{config: *config, models: client.Models}, nil
}

func (c *GeminiClient) Model() string {
	return c.config.Model
}

// Complete sends user with system as the system instruction and returns
// the text of the first candidate. A reply cut off by the token limit is
// reported as ErrTruncated.
func (c *GeminiClient) Complete(ctx context.Context, system string, user string) (string, error) {
	gen := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(c.config.Temperature)),
		MaxOutputTokens: int32(c.config.MaxTokens),
	}
	if system != "" {
		gen.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := c.models.GenerateContent(ctx, c.config.Model, genai.Text(user), gen)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	if resp.UsageMetadata != nil {
		log.Debug("Gemini %s: %d prompt + %d candidate tokens",
			c.config.Model, resp.UsageMetadata.PromptTokenCount, resp.UsageMetadata.CandidatesTokenCount)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("gemini blocked the prompt: %s", resp.PromptFeedback.BlockReason)
		}
		return "", errors.New("empty response from gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonMaxTokens {
		return "", ErrTruncated
	}
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}
	return text.String(), nil
}
