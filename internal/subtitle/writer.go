package subtitle

import (
	"github.com/dimkroon/translate-subs/internal/apperr"
	"github.com/dimkroon/translate-subs/pkg/file"
)

// DefaultWriter is the default subtitle file writer
type DefaultWriter struct{}

// NewWriter creates a new subtitle file writer
func NewWriter() Writer {
	return &DefaultWriter{}
}

// Write writes cues as SRT to path through a temporary file.
func (w *DefaultWriter) Write(path string, cues []Cue) error {
	if len(cues) == 0 {
		return apperr.New(apperr.KindValidation, "subtitle data is empty").WithContext("path", path)
	}

	if err := file.WriteAtomic(path, FormatSRT(cues), 0o644); err != nil {
		return apperr.Wrap(err, apperr.KindFileWrite, "failed to write output file").WithContext("path", path)
	}
	return nil
}
