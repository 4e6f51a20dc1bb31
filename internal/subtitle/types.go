package subtitle

import (
	"time"

	"golang.org/x/text/language"
)

// Reader is the interface for reading subtitle files
type Reader interface {
	Read(path string) (*File, error)
}

// Writer is the interface for writing subtitle files
type Writer interface {
	Write(path string, cues []Cue) error
}

// Cue is one timed block of subtitle text.
type Cue struct {
	Index       int           // ordinal position, 1-based after parsing
	Start       time.Duration // start time
	End         time.Duration // end time
	Text        string        // raw text, may contain markup
	SpeakerHint string        // voice name when the source format carries one
}

// File represents a parsed subtitle file
type File struct {
	Path     string
	Format   string // SRT, VTT or TTML
	Cues     []Cue
	Language language.Tag
	// Warnings holds one ParseError per dropped cue.
	Warnings []error
}
