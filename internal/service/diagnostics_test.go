package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dimkroon/translate-subs/internal/apperr"
	"github.com/dimkroon/translate-subs/internal/config"
	"github.com/dimkroon/translate-subs/internal/pipeline"
	"github.com/dimkroon/translate-subs/internal/subtitle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestExportDiagnostics(t *testing.T) {
	dir := t.TempDir()
	taken := time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)
	snap := &pipeline.Snapshot{
		Taken:    taken,
		Settings: config.Settings{TargetLanguage: language.Dutch, FilterSound: true},
		Source:   []subtitle.Cue{{Index: 1, Start: time.Second, End: 2 * time.Second, Text: "Hello"}},
		Output:   []subtitle.Cue{{Index: 1, Start: time.Second, End: 2 * time.Second, Text: "Hallo"}},
	}

	out, err := ExportDiagnostics(dir, snap)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260314-092653"), out)

	cues, err := os.ReadFile(filepath.Join(out, "cues.srt"))
	require.NoError(t, err)
	assert.Contains(t, string(cues), "Hello")

	translated, err := os.ReadFile(filepath.Join(out, "translated.srt"))
	require.NoError(t, err)
	assert.Contains(t, string(translated), "Hallo")

	settings, err := os.ReadFile(filepath.Join(out, "settings.json"))
	require.NoError(t, err)
	assert.Contains(t, string(settings), "nl")
}

func TestExportDiagnostics_UnfinishedRun(t *testing.T) {
	snap := &pipeline.Snapshot{Taken: time.Now(), Source: []subtitle.Cue{{Index: 1, End: time.Second, Text: "Hi"}}}

	out, err := ExportDiagnostics(t.TempDir(), snap)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out, "cues.srt"))
	assert.NoFileExists(t, filepath.Join(out, "translated.srt"))
}

func TestExportDiagnostics_NothingToExport(t *testing.T) {
	_, err := ExportDiagnostics(t.TempDir(), nil)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}
