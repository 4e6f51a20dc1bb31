package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dimkroon/translate-subs/pkg/log"
)

type Kind int

const (
	KindParse Kind = iota
	KindTranslation
	KindConfig
	KindFileNotFound
	KindFileRead
	KindFileWrite
	KindValidation
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "Parse"
	case KindTranslation:
		return "Translation"
	case KindConfig:
		return "Config"
	case KindFileNotFound:
		return "FileNotFound"
	case KindFileRead:
		return "FileRead"
	case KindFileWrite:
		return "FileWrite"
	case KindValidation:
		return "Validation"
	default:
		return "Unknown"
	}
}

// Error is the typed error shared by all stages.
// Parse and Translation errors are local to one cue or unit; Config errors
// abort a run before it starts.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
	Cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
	}
}

func Wrap(err error, kind Kind, message string) *Error {
	e := New(kind, message)
	e.Cause = err
	return e
}

// ParseError reports a cue that could not be read and was dropped.
func ParseError(message string, cause error) *Error {
	return Wrap(cause, KindParse, message)
}

// TranslationFailure reports a unit whose translation call failed.
func TranslationFailure(message string, cause error) *Error {
	return Wrap(cause, KindTranslation, message)
}

// ConfigurationError reports settings that cannot be used for a run.
func ConfigurationError(message string) *Error {
	return New(KindConfig, message)
}

func (e *Error) Error() string {
	parts := []string{fmt.Sprintf("[%s] %s", e.Kind, e.Message)}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, "context: "+strings.Join(ctxParts, ", "))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// IsKind reports whether any error in err's chain is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// Advice returns an operator hint for err.
func Advice(err error) string {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return "Please review detailed error information and check relevant configuration and files"
	}
	switch appErr.Kind {
	case KindParse:
		return "The subtitle file contains cues with malformed timing; those cues were dropped"
	case KindTranslation:
		return "Check the translation backend URL, API key and network; failed units keep their original text"
	case KindConfig:
		return "Please check that the settings file or environment variables are set correctly"
	case KindFileNotFound:
		return "Please check that the file path is correct and the file exists with read permissions"
	case KindFileRead:
		return "Please check file permissions and verify the file is not corrupted"
	case KindFileWrite:
		return "Please ensure the output directory exists and has write permissions"
	case KindValidation:
		return "Please verify input parameters are correct"
	default:
		return "Please review detailed error information and check relevant configuration and files"
	}
}

// Log writes err with its advice; it returns false for errors that are not *Error.
func Log(err error) bool {
	var appErr *Error
	if !errors.As(err, &appErr) {
		log.Error("Unknown error: %v", err)
		return false
	}
	log.Error("Error detail: %v | advice: %s", err, Advice(err))
	return true
}
