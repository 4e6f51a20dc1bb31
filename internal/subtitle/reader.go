package subtitle

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/dimkroon/translate-subs/internal/apperr"
	"golang.org/x/text/language"
)

var formatsByExt = map[string]string{
	".srt":  "SRT",
	".vtt":  "VTT",
	".ttml": "TTML",
	".dfxp": "TTML",
	".xml":  "TTML",
}

// IsSubtitleFile reports whether path has an extension ReadFile understands.
func IsSubtitleFile(path string) bool {
	_, ok := formatsByExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// DefaultReader is the default subtitle file reader
type DefaultReader struct{}

// NewReader creates a new subtitle file reader
func NewReader() Reader {
	return &DefaultReader{}
}

// Read reads a subtitle file, choosing the parser by extension.
func (r *DefaultReader) Read(path string) (*File, error) {
	return ReadFile(path)
}

// ReadFile reads and parses an SRT, VTT or TTML file and detects its language.
func ReadFile(path string) (*File, error) {
	if !IsSubtitleFile(path) {
		return nil, apperr.New(apperr.KindValidation, "unsupported subtitle format").WithContext("path", path)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.Wrap(err, apperr.KindFileNotFound, "subtitle file does not exist").WithContext("path", path)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindFileRead, "failed to read subtitle file").WithContext("path", path)
	}

	return ReadBytes(data, path)
}

// ReadBytes parses data in the format implied by name's extension.
func ReadBytes(data []byte, name string) (*File, error) {
	var file *File
	switch formatsByExt[strings.ToLower(filepath.Ext(name))] {
	case "SRT":
		file = ParseSRT(data)
	case "VTT":
		file = ParseVTT(data)
	case "TTML":
		var err error
		if file, err = ParseTTML(data); err != nil {
			return nil, err
		}
	default:
		return nil, apperr.New(apperr.KindValidation, "unsupported subtitle format").WithContext("path", name)
	}

	file.Path = name
	file.Language = DetectLanguage(file.Cues)
	return file, nil
}

var anyTag = regexp.MustCompile(`<[^>]*>`)

// DetectLanguage votes per cue and returns the most frequent language.
func DetectLanguage(cues []Cue) language.Tag {
	if len(cues) == 0 {
		return language.Und
	}

	langMap := make(map[string]int)
	for _, cue := range cues {
		text := anyTag.ReplaceAllString(cue.Text, "")
		lang := whatlanggo.DetectLang(text).Iso6391()
		if lang == "" {
			continue
		}
		langMap[lang]++
	}

	// Get top language
	var topLang string
	var topCount int
	for lang, count := range langMap {
		if count > topCount || (count == topCount && lang < topLang) {
			topLang = lang
			topCount = count
		}
	}
	if topLang == "" {
		return language.Und
	}

	return language.Make(topLang)
}
