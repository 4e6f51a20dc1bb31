package config

import (
	"fmt"
	"math"
	"time"

	"github.com/dimkroon/translate-subs/internal/apperr"
	"golang.org/x/text/language"
)

// Settings is the read-only configuration of one pipeline run.
// It is passed by value to every stage that needs it.
type Settings struct {
	MinDisplaySeconds float64      `json:"min_display_seconds" yaml:"min_display_seconds"`
	FilterColour      bool         `json:"filter_colour" yaml:"filter_colour"`
	FilterSound       bool         `json:"filter_sound" yaml:"filter_sound"`
	FilterLyrics      bool         `json:"filter_lyrics" yaml:"filter_lyrics"`
	FilterCaps        bool         `json:"filter_caps" yaml:"filter_caps"`
	TargetLanguage    language.Tag `json:"target_language" yaml:"target_language"`
}

// Validate returns a configuration error when the settings cannot be used.
func (s Settings) Validate() error {
	if math.IsNaN(s.MinDisplaySeconds) || math.IsInf(s.MinDisplaySeconds, 0) {
		return apperr.ConfigurationError("min_display_seconds must be a finite number")
	}
	if s.MinDisplaySeconds < 0 {
		return apperr.ConfigurationError(fmt.Sprintf("min_display_seconds must not be negative, got %v", s.MinDisplaySeconds))
	}
	if s.TargetLanguage == language.Und {
		return apperr.ConfigurationError("target_language is required")
	}
	return nil
}

// MinDisplay converts MinDisplaySeconds to a duration.
func (s Settings) MinDisplay() time.Duration {
	return time.Duration(s.MinDisplaySeconds * float64(time.Second))
}
