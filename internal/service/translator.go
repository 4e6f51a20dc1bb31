package service

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/dimkroon/translate-subs/internal/config"
	"github.com/dimkroon/translate-subs/internal/pipeline"
	"github.com/dimkroon/translate-subs/internal/subtitle"
	"github.com/dimkroon/translate-subs/internal/translator"
	"github.com/dimkroon/translate-subs/pkg/file"
	"github.com/dimkroon/translate-subs/pkg/log"
	"golang.org/x/text/language"
)

// TranslatorConfig contains translator configuration
type TranslatorConfig struct {
	Settings    config.Settings
	OutputDir   string
	Concurrency int
	Timeout     time.Duration
	Backoff     time.Duration
	Model       string
}

// OutputPath returns where the translation of input into target is written:
// next to the input, or in outputDir when set. A language suffix already on
// the input name is replaced, so "movie.en.srt" becomes "movie.nl.srt".
func OutputPath(input string, outputDir string, target language.Tag) string {
	out := file.ReplaceExt(input, "")
	if isLanguageSuffix(filepath.Ext(out)) {
		out = file.ReplaceExt(out, "")
	}
	out += "." + target.String() + ".srt"
	if outputDir != "" {
		out = filepath.Join(outputDir, filepath.Base(out))
	}
	return out
}

func isLanguageSuffix(ext string) bool {
	code := strings.TrimPrefix(ext, ".")
	if len(code) < 2 || len(code) > 3 {
		return false
	}
	_, err := language.ParseBase(code)
	return err == nil
}

// FileTranslator translates whole subtitle files through the pipeline.
type FileTranslator struct {
	config TranslatorConfig
	client translator.Client
	reader subtitle.Reader
	writer subtitle.Writer
	last   atomic.Pointer[pipeline.Snapshot]
}

func NewFileTranslator(cfg TranslatorConfig, client translator.Client) *FileTranslator {
	return &FileTranslator{
		config: cfg,
		client: client,
		reader: subtitle.NewReader(),
		writer: subtitle.NewWriter(),
	}
}

// Snapshot returns the cue window of the most recent file, or nil.
func (t *FileTranslator) Snapshot() *pipeline.Snapshot {
	return t.last.Load()
}

// Translate reads path, translates its cues and writes the result as SRT.
// Files already in the target language are skipped. On cancellation
// nothing is written.
func (t *FileTranslator) Translate(ctx context.Context, path string) (*TranslationResult, error) {
	started := time.Now()
	target := t.config.Settings.TargetLanguage

	src, err := t.reader.Read(path)
	if err != nil {
		return nil, err
	}
	for _, w := range src.Warnings {
		log.Warn("%s: %v", path, w)
	}

	result := &TranslationResult{
		SourcePath: path,
		Metadata: TranslationMetadata{
			SourceLanguage: src.Language,
			TargetLanguage: target,
			ModelUsed:      t.config.Model,
			CueCount:       len(src.Cues),
			Warnings:       len(src.Warnings),
		},
	}

	if sameLanguage(src.Language, target) {
		log.Info("Skipping %s, already in %s", path, target)
		result.Skipped = true
		return result, nil
	}

	dispatcher := translator.NewDispatcher(t.client,
		translator.WithConcurrency(t.config.Concurrency),
		translator.WithTimeout(t.config.Timeout),
		translator.WithBackoff(t.config.Backoff),
	)
	p := pipeline.New(t.config.Settings, dispatcher)
	res, err := p.Run(ctx, src.Cues)
	if snap := p.Snapshot(); snap != nil {
		t.last.Store(snap)
	}
	if err != nil {
		return nil, err
	}

	result.OutputPath = OutputPath(path, t.config.OutputDir, target)
	if err := t.writer.Write(result.OutputPath, res.Cues); err != nil {
		return nil, err
	}

	for _, u := range res.Units {
		result.Metadata.CharCount += utf8.RuneCountInString(u.Plain)
	}
	result.Metadata.UnitCount = len(res.Units)
	result.Metadata.FailedUnits = len(res.Failed)
	result.Metadata.DroppedCues = len(res.Dropped)
	result.Metadata.TranslationTime = time.Since(started)

	log.Info("Translated %s -> %s (%d units, %d failed, %d cues dropped) in %v",
		path, result.OutputPath, len(res.Units), len(res.Failed), len(res.Dropped), result.Metadata.TranslationTime)
	return result, nil
}

// sameLanguage compares base languages, so "en-GB" matches "en".
func sameLanguage(a, b language.Tag) bool {
	if a == language.Und || b == language.Und {
		return false
	}
	ab, _ := a.Base()
	bb, _ := b.Base()
	return ab == bb
}
