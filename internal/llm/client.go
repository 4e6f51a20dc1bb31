// Package llm is a minimal client for OpenAI compatible chat completion
// APIs, used as the translation backend.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dimkroon/translate-subs/pkg/log"
)

const maxResponseBytes = 4 << 20

// Client is safe for concurrent use.
type Client struct {
	config     Config
	httpClient *http.Client
	endpoint   string
}

func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		config:   *config,
		endpoint: strings.TrimRight(config.APIURL, "/") + "/chat/completions",
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}, nil
}

func (c *Client) Model() string {
	return c.config.Model
}

// Complete sends one system and one user message and returns the reply.
// A reply cut off by the token limit is reported as ErrTruncated.
func (c *Client) Complete(ctx context.Context, system string, user string) (string, error) {
	messages := make([]Message, 0, 2)
	if system != "" {
		messages = append(messages, Message{Role: "system", Content: system})
	}
	messages = append(messages, Message{Role: "user", Content: user})

	resp, err := c.chat(ctx, ChatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response %s", resp.ID)
	}

	choice := resp.Choices[0]
	log.Debug("LLM %s: %d prompt + %d completion tokens, finish %q",
		resp.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, choice.FinishReason)
	if choice.FinishReason == "length" {
		return "", ErrTruncated
	}
	return choice.Message.Content, nil
}

func (c *Client) chat(ctx context.Context, payload ChatRequest) (*ChatResponse, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.config.setHeaders(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) && ctx.Err() == nil {
			return nil, fmt.Errorf("request timed out: %w", err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var chatResp ChatResponse
	parseErr := json.Unmarshal(body, &chatResp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		if parseErr == nil && chatResp.Error != nil {
			statusErr.API = chatResp.Error
		}
		return nil, statusErr
	}
	if parseErr != nil {
		return nil, fmt.Errorf("failed to parse response: %w", parseErr)
	}
	if chatResp.Error != nil && chatResp.Error.Message != "" {
		return nil, chatResp.Error
	}
	return &chatResp, nil
}
