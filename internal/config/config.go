package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dimkroon/translate-subs/internal/apperr"
	"github.com/dimkroon/translate-subs/pkg/log"
	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"
)

// Config holds all application configuration.
// Values come from environment variables with sensible defaults; a runtime
// settings file can override part of them through WithRuntimeSettings.
//
// Environment Variables:
// LLM Configuration:
// - LLM_PROVIDER: openai for any OpenAI compatible endpoint, or gemini (default: openai)
// - LLM_API_KEY: API key for the translation backend (required)
// - LLM_API_URL: API endpoint URL (default: https://openrouter.ai/api/v1, or the Gemini API)
// - LLM_MODEL: Model name to use (default: openai/gpt-4o-mini, or gemini-2.0-flash)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 2000)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.3)
// - LLM_TIMEOUT: HTTP timeout in seconds (default: 60)
//
// Translate Configuration:
// - TARGET_LANGUAGE: BCP 47 tag of the output language (default: en)
// - MIN_DISPLAY_SECONDS: Minimum on-screen time of a cue (default: 0)
// - FILTER_COLOUR, FILTER_SOUND, FILTER_LYRICS, FILTER_CAPS: markup filters (default: false)
// - TRANSLATE_CONCURRENCY: Parallel translation calls (default: 4)
// - TRANSLATE_TIMEOUT: Per-call timeout in seconds (default: 30)
// - TRANSLATE_BACKOFF_MS: Delay before the single retry (default: 500)
// - CRON_EXPR: Schedule for scanning watch directories (default: 0 0 * * *)
//
// System Configuration:
// - WATCH_DIRS: Comma separated directories holding subtitle files
// - OUTPUT_DIR: Where translated files go (default: next to the source)
// - DATA_DIR: Database and diagnostics root (default: /app/data)
// - DIAGNOSTICS_DIR: Snapshot export root (default: DATA_DIR/diagnostics)
// - HTTP_ADDR: API listen address (default: :8080)
// - CORS_ORIGINS: Comma separated allowed origins (default: any)
// - UI_STATIC_DIR: Web UI build served at / (default: disabled)
// - API_JWT_SECRET: Require HS256 bearer tokens signed with this secret (default: no auth)
// - JOB_WORKERS: Parallel file jobs (default: 1)
// - LOG_LEVEL: debug, info, warn or error (default: info)
// - LOG_FILE: Also append log entries to this file (default: stdout only)
type Config struct {
	LLM       LLMConfig       `json:"llm"`
	Translate TranslateConfig `json:"translate"`
	Filter    FilterConfig    `json:"filter"`
	Media     MediaConfig     `json:"media"`
	System    SystemConfig    `json:"system"`
}

// Translation backends selected by LLM_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// LLMConfig holds the configuration for the chat completion backend
type LLMConfig struct {
	Provider    string  `json:"provider"`
	APIKey      string  `json:"-"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
}

type TranslateConfig struct {
	TargetLanguage language.Tag `json:"target_language"`
	CronExpr       string       `json:"cron_expr"`
	Concurrency    int          `json:"concurrency"`
	TimeoutSeconds int          `json:"timeout_seconds"`
	BackoffMillis  int          `json:"backoff_ms"`
}

func (c TranslateConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c TranslateConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffMillis) * time.Millisecond
}

type FilterConfig struct {
	MinDisplaySeconds float64 `json:"min_display_seconds"`
	Colour            bool    `json:"colour"`
	Sound             bool    `json:"sound"`
	Lyrics            bool    `json:"lyrics"`
	Caps              bool    `json:"caps"`
}

type MediaConfig struct {
	WatchDirs []string `json:"watch_dirs"`
	OutputDir string   `json:"output_dir"`
}

type SystemConfig struct {
	DataDir        string   `json:"data_dir"`
	DiagnosticsDir string   `json:"diagnostics_dir"`
	HTTPAddr       string   `json:"http_addr"`
	CORSOrigins    []string `json:"cors_origins"`
	UIStaticDir    string   `json:"ui_static_dir"`
	APISecret      string   `json:"-"`
	JobWorkers     int      `json:"job_workers"`
	LogLevel       string   `json:"log_level"`
	LogFile        string   `json:"log_file"`
}

// DBPath is the sqlite database location inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.System.DataDir, "translate-subs.db")
}

// Settings derives the per-run pipeline settings.
func (c *Config) Settings() Settings {
	return Settings{
		MinDisplaySeconds: c.Filter.MinDisplaySeconds,
		FilterColour:      c.Filter.Colour,
		FilterSound:       c.Filter.Sound,
		FilterLyrics:      c.Filter.Lyrics,
		FilterCaps:        c.Filter.Caps,
		TargetLanguage:    c.Translate.TargetLanguage,
	}
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	dataDir := getEnvString("DATA_DIR", "/app/data")
	provider := strings.ToLower(getEnvString("LLM_PROVIDER", ProviderOpenAI))
	apiURL, model := "https://openrouter.ai/api/v1", "openai/gpt-4o-mini"
	if provider == ProviderGemini {
		apiURL, model = "https://generativelanguage.googleapis.com/", "gemini-2.0-flash"
	}

	config := &Config{
		LLM: LLMConfig{
			Provider:    provider,
			APIKey:      getEnvString("LLM_API_KEY", ""),
			APIURL:      getEnvString("LLM_API_URL", apiURL),
			Model:       getEnvString("LLM_MODEL", model),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 2000),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.3),
			Timeout:     getEnvInt("LLM_TIMEOUT", 60),
		},
		Translate: TranslateConfig{
			TargetLanguage: getEnvLanguage("TARGET_LANGUAGE", language.English),
			CronExpr:       getEnvString("CRON_EXPR", "0 0 * * *"),
			Concurrency:    getEnvInt("TRANSLATE_CONCURRENCY", 4),
			TimeoutSeconds: getEnvInt("TRANSLATE_TIMEOUT", 30),
			BackoffMillis:  getEnvInt("TRANSLATE_BACKOFF_MS", 500),
		},
		Filter: FilterConfig{
			MinDisplaySeconds: getEnvFloat("MIN_DISPLAY_SECONDS", 0),
			Colour:            getEnvBool("FILTER_COLOUR", false),
			Sound:             getEnvBool("FILTER_SOUND", false),
			Lyrics:            getEnvBool("FILTER_LYRICS", false),
			Caps:              getEnvBool("FILTER_CAPS", false),
		},
		Media: MediaConfig{
			WatchDirs: getEnvList("WATCH_DIRS"),
			OutputDir: getEnvString("OUTPUT_DIR", ""),
		},
		System: SystemConfig{
			DataDir:        dataDir,
			DiagnosticsDir: getEnvString("DIAGNOSTICS_DIR", filepath.Join(dataDir, "diagnostics")),
			HTTPAddr:       getEnvString("HTTP_ADDR", ":8080"),
			CORSOrigins:    getEnvList("CORS_ORIGINS"),
			UIStaticDir:    getEnvString("UI_STATIC_DIR", ""),
			APISecret:      getEnvString("API_JWT_SECRET", ""),
			JobWorkers:     getEnvInt("JOB_WORKERS", 1),
			LogLevel:       getEnvString("LOG_LEVEL", "info"),
			LogFile:        getEnvString("LOG_FILE", ""),
		},
	}

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug("Config: model=%s target=%s cron=%q watch=%v data=%s",
		config.LLM.Model, config.Translate.TargetLanguage, config.Translate.CronExpr, config.Media.WatchDirs, config.System.DataDir)
	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.LLM.APIKey == "" {
		return apperr.ConfigurationError("LLM_API_KEY is required")
	}
	if c.LLM.Provider != ProviderOpenAI && c.LLM.Provider != ProviderGemini {
		return apperr.ConfigurationError(fmt.Sprintf("unknown LLM_PROVIDER %q", c.LLM.Provider))
	}
	if _, err := cron.ParseStandard(c.Translate.CronExpr); err != nil {
		return apperr.ConfigurationError(fmt.Sprintf("invalid CRON_EXPR %q: %v", c.Translate.CronExpr, err))
	}
	if c.Translate.Concurrency < 1 {
		return apperr.ConfigurationError("TRANSLATE_CONCURRENCY must be at least 1")
	}
	if c.Translate.TimeoutSeconds < 1 {
		return apperr.ConfigurationError("TRANSLATE_TIMEOUT must be at least 1 second")
	}
	return c.Settings().Validate()
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvLanguage(key string, defaultValue language.Tag) language.Tag {
	if value := os.Getenv(key); value != "" {
		if tag, err := language.Parse(value); err == nil {
			return tag
		}
		log.Warn("Ignoring invalid %s=%q", key, value)
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	ret := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			ret = append(ret, item)
		}
	}
	return ret
}
