// Package merge groups consecutive tokenized cues into translation units
// along sentence boundaries.
package merge

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dimkroon/translate-subs/internal/markup"
)

// DefaultMaxChars bounds the plain text of one unit.
const DefaultMaxChars = 1000

// Segment locates one member cue inside the unit's plain text.
type Segment struct {
	CueIndex int
	Start    int // byte offset into Unit.Plain
	End      int
}

// Unit is one or more consecutive cues translated as a single text.
type Unit struct {
	ID         int
	MemberCues []int
	Segments   []Segment
	Plain      string
	Spans      []markup.Span
}

// Weights returns each member's share of the plain text in runes.
func (u Unit) Weights() []int {
	w := make([]int, len(u.Segments))
	for i, seg := range u.Segments {
		w[i] = utf8.RuneCountInString(u.Plain[seg.Start:seg.End])
	}
	return w
}

// MemberSpans returns the spans of member i, relative to that member's text.
func (u Unit) MemberSpans(i int) []markup.Span {
	seg := u.Segments[i]
	var out []markup.Span
	for _, sp := range u.Spans {
		if sp.Start >= seg.Start && sp.End <= seg.End {
			sp.Start -= seg.Start
			sp.End -= seg.Start
			out = append(out, sp)
		}
	}
	return out
}

type Merger struct {
	// MaxChars closes a unit once its plain text reaches this many runes.
	// Zero disables the limit.
	MaxChars int
}

func New() *Merger {
	return &Merger{MaxChars: DefaultMaxChars}
}

// Merge groups cues with the default limits.
func Merge(cues []markup.TokenizedCue) []Unit {
	return New().Merge(cues)
}

// Merge makes a single left to right pass. After each cue the open unit is
// closed when the text ends a sentence and the next cue does not continue
// it, when the next cue starts with a speaker change, when the size limit
// is reached, or at the end of the input.
func (m *Merger) Merge(cues []markup.TokenizedCue) []Unit {
	var (
		units []Unit
		open  *builder
	)

	for i, cue := range cues {
		if open == nil {
			open = &builder{id: len(units) + 1}
		}
		open.add(cue)

		if i == len(cues)-1 || m.closes(open, cues[i+1]) {
			units = append(units, open.unit())
			open = nil
		}
	}
	return units
}

func (m *Merger) closes(open *builder, next markup.TokenizedCue) bool {
	if next.SpeakerChange {
		return true
	}
	if m.MaxChars > 0 && utf8.RuneCountInString(open.plain.String()) >= m.MaxChars {
		return true
	}
	return endsSentence(open.plain.String()) && !continuesSentence(next.Plain)
}

type builder struct {
	id       int
	plain    strings.Builder
	members  []int
	segments []Segment
	spans    []markup.Span
}

func (b *builder) add(cue markup.TokenizedCue) {
	if len(b.members) > 0 {
		b.plain.WriteByte(' ')
	}
	offset := b.plain.Len()
	// line breaks become spaces of the same length, so offsets still hold
	b.plain.WriteString(strings.ReplaceAll(cue.Plain, "\n", " "))

	b.members = append(b.members, cue.CueIndex)
	b.segments = append(b.segments, Segment{CueIndex: cue.CueIndex, Start: offset, End: b.plain.Len()})
	for _, sp := range cue.Spans {
		sp.Start += offset
		sp.End += offset
		b.spans = append(b.spans, sp)
	}
}

func (b *builder) unit() Unit {
	return Unit{
		ID:         b.id,
		MemberCues: b.members,
		Segments:   b.segments,
		Plain:      b.plain.String(),
		Spans:      b.spans,
	}
}

const (
	terminals     = ".!?…"
	closingQuotes = `"'”’»`
	openingQuotes = `"'“‘«¿¡`
)

func endsSentence(text string) bool {
	text = strings.TrimRight(text, " \t")
	text = strings.TrimRight(text, closingQuotes)
	r, _ := utf8.DecodeLastRuneInString(text)
	return r != utf8.RuneError && strings.ContainsRune(terminals, r)
}

// continuesSentence reports whether text starts lower case once leading
// ellipses and quotes are skipped.
func continuesSentence(text string) bool {
	text = strings.TrimLeft(text, " \t.…"+openingQuotes)
	r, _ := utf8.DecodeRuneInString(text)
	return unicode.IsLower(r)
}
