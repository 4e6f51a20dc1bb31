package service

import (
	"time"

	"golang.org/x/text/language"
)

// TranslationResult describes one translated subtitle file.
type TranslationResult struct {
	SourcePath string
	OutputPath string
	Skipped    bool
	Metadata   TranslationMetadata
}

// TranslationMetadata contains translation metadata
type TranslationMetadata struct {
	SourceLanguage  language.Tag
	TargetLanguage  language.Tag
	ModelUsed       string
	TranslationTime time.Duration
	CueCount        int
	UnitCount       int
	FailedUnits     int
	DroppedCues     int
	Warnings        int
	CharCount       int
}

// Job sources.
const (
	SourceManual = "manual"
	SourceCron   = "cron"
	SourceWatch  = "watch"
)

// DefaultCacheMaxAge is how long an unused unit translation is kept.
const DefaultCacheMaxAge = 60 * 24 * time.Hour
