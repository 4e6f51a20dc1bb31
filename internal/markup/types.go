// Package markup separates subtitle cue text into plain text and positioned
// markup spans, and renders the two back into cue text.
package markup

type Kind int

const (
	Colour Kind = iota
	SoundEffect
	Lyric
)

func (k Kind) String() string {
	switch k {
	case Colour:
		return "colour"
	case SoundEffect:
		return "sound"
	case Lyric:
		return "lyric"
	default:
		return "unknown"
	}
}

// Span is a markup annotation over Plain[Start:End]. Offsets are byte
// offsets into the plain text.
type Span struct {
	Kind    Kind
	Start   int
	End     int
	Payload string // colour value for Colour spans
}

// TokenizedCue is the plain text of one cue plus its markup.
// Spans never overlap and are sorted by Start.
type TokenizedCue struct {
	CueIndex      int
	Plain         string
	Spans         []Span
	SpeakerChange bool
}

// Empty reports whether filtering left no text.
func (t TokenizedCue) Empty() bool {
	return len(t.Plain) == 0
}
