package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dimkroon/translate-subs/internal/apperr"
	"github.com/dimkroon/translate-subs/pkg/file"
	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const DefaultRuntimeSettingsFile = "/app/config/settings.json"

// RuntimeSettings is the operator-editable subset of Config. It is stored as
// JSON, or as YAML when the file name ends in .yaml or .yml.
// Nil filter fields leave the environment value untouched.
type RuntimeSettings struct {
	LLMAPIURL         string   `json:"llm_api_url" yaml:"llm_api_url"`
	LLMAPIKey         string   `json:"llm_api_key" yaml:"llm_api_key"`
	LLMModel          string   `json:"llm_model" yaml:"llm_model"`
	CronExpr          string   `json:"cron_expr" yaml:"cron_expr"`
	TargetLanguage    string   `json:"target_language" yaml:"target_language"`
	MinDisplaySeconds *float64 `json:"min_display_seconds,omitempty" yaml:"min_display_seconds,omitempty"`
	FilterColour      *bool    `json:"filter_colour,omitempty" yaml:"filter_colour,omitempty"`
	FilterSound       *bool    `json:"filter_sound,omitempty" yaml:"filter_sound,omitempty"`
	FilterLyrics      *bool    `json:"filter_lyrics,omitempty" yaml:"filter_lyrics,omitempty"`
	FilterCaps        *bool    `json:"filter_caps,omitempty" yaml:"filter_caps,omitempty"`
}

func RuntimeSettingsFilePath() string {
	return getEnvString("SETTINGS_FILE", DefaultRuntimeSettingsFile)
}

// Validate checks a complete settings document; every string field is
// required.
func (s RuntimeSettings) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"llm_api_url", s.LLMAPIURL},
		{"llm_api_key", s.LLMAPIKey},
		{"llm_model", s.LLMModel},
		{"cron_expr", s.CronExpr},
		{"target_language", s.TargetLanguage},
	} {
		if strings.TrimSpace(f.value) == "" {
			return apperr.ConfigurationError(f.name + " is required")
		}
	}
	if _, err := cron.ParseStandard(s.CronExpr); err != nil {
		return apperr.ConfigurationError(fmt.Sprintf("invalid cron_expr: %v", err))
	}
	if _, err := language.Parse(s.TargetLanguage); err != nil {
		return apperr.ConfigurationError(fmt.Sprintf("invalid target_language: %v", err))
	}
	if v := s.MinDisplaySeconds; v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0) {
		return apperr.ConfigurationError("min_display_seconds must be a finite, non-negative number")
	}
	return nil
}

// RuntimeSettings returns the editable part of c with every field set.
func (c *Config) RuntimeSettings() RuntimeSettings {
	f := c.Filter
	return RuntimeSettings{
		LLMAPIURL:         c.LLM.APIURL,
		LLMAPIKey:         c.LLM.APIKey,
		LLMModel:          c.LLM.Model,
		CronExpr:          c.Translate.CronExpr,
		TargetLanguage:    c.Translate.TargetLanguage.String(),
		MinDisplaySeconds: &f.MinDisplaySeconds,
		FilterColour:      &f.Colour,
		FilterSound:       &f.Sound,
		FilterLyrics:      &f.Lyrics,
		FilterCaps:        &f.Caps,
	}
}

func overrideIfSet[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func overrideIfNotBlank(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

// Settings derives the pipeline settings from s on top of base.
func (s RuntimeSettings) Settings(base Settings) Settings {
	out := base
	if tag, err := language.Parse(s.TargetLanguage); err == nil {
		out.TargetLanguage = tag
	}
	overrideIfSet(&out.MinDisplaySeconds, s.MinDisplaySeconds)
	overrideIfSet(&out.FilterColour, s.FilterColour)
	overrideIfSet(&out.FilterSound, s.FilterSound)
	overrideIfSet(&out.FilterLyrics, s.FilterLyrics)
	overrideIfSet(&out.FilterCaps, s.FilterCaps)
	return out
}

// WithRuntimeSettings applies the non-empty fields of settings.
func WithRuntimeSettings(settings RuntimeSettings) Option {
	return func(c *Config) {
		overrideIfNotBlank(&c.LLM.APIURL, settings.LLMAPIURL)
		overrideIfNotBlank(&c.LLM.APIKey, settings.LLMAPIKey)
		overrideIfNotBlank(&c.LLM.Model, settings.LLMModel)
		overrideIfNotBlank(&c.Translate.CronExpr, settings.CronExpr)

		s := settings.Settings(c.Settings())
		c.Translate.TargetLanguage = s.TargetLanguage
		c.Filter = FilterConfig{
			MinDisplaySeconds: s.MinDisplaySeconds,
			Colour:            s.FilterColour,
			Sound:             s.FilterSound,
			Lyrics:            s.FilterLyrics,
			Caps:              s.FilterCaps,
		}
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeSettings{}, err
	}
	unmarshal := json.Unmarshal
	if isYAML(path) {
		unmarshal = yaml.Unmarshal
	}
	var settings RuntimeSettings
	if err := unmarshal(data, &settings); err != nil {
		return RuntimeSettings{}, apperr.Wrap(err, apperr.KindConfig, "invalid settings file").WithContext("path", path)
	}
	return settings, nil
}

func encodeRuntimeSettings(path string, settings RuntimeSettings) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(settings)
	}
	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(content, '\n'), nil
}

// WriteRuntimeSettingsFile validates settings and replaces the file at path.
func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	content, err := encodeRuntimeSettings(path, settings)
	if err != nil {
		return err
	}
	return file.WriteAtomic(path, content, 0o600)
}

type RuntimeSettingsStore struct {
	path string

	mu      sync.RWMutex
	current RuntimeSettings
}

func NewRuntimeSettingsStore(path string, initial RuntimeSettings) (*RuntimeSettingsStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, apperr.ConfigurationError("settings file path is required")
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &RuntimeSettingsStore{
		path:    path,
		current: initial,
	}, nil
}

func (s *RuntimeSettingsStore) GetRuntimeSettings() (RuntimeSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

func (s *RuntimeSettingsStore) UpdateRuntimeSettings(next RuntimeSettings) (RuntimeSettings, error) {
	if err := next.Validate(); err != nil {
		return RuntimeSettings{}, err
	}
	if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
		return RuntimeSettings{}, err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return next, nil
}
