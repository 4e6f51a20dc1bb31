package llm

import (
	"net/http"
	"strings"

	"github.com/dimkroon/translate-subs/internal/apperr"
)

// Config points the client at an OpenAI compatible chat completion
// endpoint (OpenRouter, OpenAI, a local server).
type Config struct {
	APIKey      string
	APIURL      string
	Model       string
	MaxTokens   int
	Temperature float64
	// Timeout in seconds for one HTTP round trip.
	Timeout int
	// SiteURL and AppName identify the caller to OpenRouter.
	SiteURL string
	AppName string
}

func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.APIKey) == "":
		return apperr.ConfigurationError("LLM API key is required")
	case strings.TrimSpace(c.APIURL) == "":
		return apperr.ConfigurationError("LLM API URL is required")
	case strings.TrimSpace(c.Model) == "":
		return apperr.ConfigurationError("LLM model is required")
	case c.MaxTokens < 1:
		return apperr.ConfigurationError("LLM max tokens must be greater than 0")
	case c.Temperature < 0 || c.Temperature > 2:
		return apperr.ConfigurationError("LLM temperature must be between 0 and 2")
	case c.Timeout < 1:
		return apperr.ConfigurationError("LLM timeout must be greater than 0")
	}
	return nil
}

func (c *Config) setHeaders(h http.Header) {
	h.Set("Authorization", "Bearer "+c.APIKey)
	h.Set("Content-Type", "application/json")
	if c.SiteURL != "" {
		h.Set("HTTP-Referer", c.SiteURL)
	}
	if c.AppName != "" {
		h.Set("X-Title", c.AppName)
	}
}
