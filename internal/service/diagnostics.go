package service

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/dimkroon/translate-subs/internal/apperr"
	"github.com/dimkroon/translate-subs/internal/pipeline"
	"github.com/dimkroon/translate-subs/internal/subtitle"
	"github.com/dimkroon/translate-subs/pkg/file"
)

const diagnosticsTimeLayout = "20060102-150405"

// ExportDiagnostics dumps snap into a new <dir>/<timestamp> folder and
// returns the folder. It holds cues.srt, settings.json and, once the run
// finished, translated.srt.
func ExportDiagnostics(dir string, snap *pipeline.Snapshot) (string, error) {
	if snap == nil {
		return "", apperr.New(apperr.KindValidation, "no translation has run yet")
	}

	out := filepath.Join(dir, snap.Taken.Format(diagnosticsTimeLayout))
	if err := os.MkdirAll(out, 0o755); err != nil {
		return "", apperr.Wrap(err, apperr.KindFileWrite, "failed to create diagnostics folder").WithContext("path", out)
	}

	settings, err := json.MarshalIndent(snap.Settings, "", "  ")
	if err != nil {
		return "", apperr.Wrap(err, apperr.KindUnknown, "failed to encode settings")
	}

	files := map[string][]byte{
		"cues.srt":      subtitle.FormatSRT(snap.Source),
		"settings.json": settings,
	}
	if snap.Output != nil {
		files["translated.srt"] = subtitle.FormatSRT(snap.Output)
	}
	for name, data := range files {
		path := filepath.Join(out, name)
		if err := file.WriteAtomic(path, data, 0o644); err != nil {
			return "", apperr.Wrap(err, apperr.KindFileWrite, "failed to write diagnostics").WithContext("path", path)
		}
	}
	return out, nil
}
