package markup

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dimkroon/translate-subs/internal/config"
)

var (
	fontOpenTag  = regexp.MustCompile(`(?i)^font\s[^>]*?\bcolou?r\s*=\s*["']?([^"'\s>]+)["']?`)
	fontCloseTag = regexp.MustCompile(`(?i)^/\s*font\s*$`)
)

// state of the per-line scanner.
type state int

const (
	stText     state = iota
	stTagOpen        // after '<'
	stTagBody        // reading an opening tag up to '>'
	stTagClose       // reading a closing tag up to '>'
	stBracket        // inside '[' or '(' waiting for its closer
)

// cell is one rune of plain text and the markup that owns it.
type cell struct {
	r      rune
	colour int // index into scanner.payloads, -1 when uncoloured
	sound  int // bracket group, -1 when none
	lyric  int // lyric line, -1 when none
}

func (c cell) blank() bool {
	return c.r == ' ' || c.r == '\t'
}

type scanner struct {
	settings config.Settings
	payloads []string
	colour   int
	sounds   int
	lines    int
}

// Tokenize splits one cue's raw text into plain text and markup spans.
// It never fails: anything it does not recognize is kept as literal text.
func Tokenize(index int, raw string, s config.Settings) TokenizedCue {
	sc := &scanner{settings: s, colour: -1}

	var cells []cell
	first := true
	for _, rawLine := range strings.Split(raw, "\n") {
		line, keep := sc.line(rawLine)
		if !keep {
			continue
		}
		if !first {
			nl := cell{r: '\n', colour: -1, sound: -1, lyric: -1}
			if len(cells) > 0 && len(line) > 0 {
				prev, next := cells[len(cells)-1], line[0]
				if prev.colour >= 0 && prev.colour == next.colour && plainColour(prev) && plainColour(next) {
					nl.colour = prev.colour
				}
			}
			cells = append(cells, nl)
		}
		first = false
		cells = append(cells, line...)
	}

	var b strings.Builder
	offsets := make([]int, len(cells)+1)
	for i, c := range cells {
		offsets[i] = b.Len()
		b.WriteRune(c.r)
	}
	offsets[len(cells)] = b.Len()
	plain := b.String()

	return TokenizedCue{
		CueIndex:      index,
		Plain:         plain,
		Spans:         sc.spans(cells, offsets),
		SpeakerChange: speakerChange(plain),
	}
}

func plainColour(c cell) bool {
	return c.sound < 0 && c.lyric < 0
}

// line scans one raw line and applies the filters. It returns false when
// the line is removed as a whole.
func (s *scanner) line(raw string) ([]cell, bool) {
	cells := s.scan(raw)
	lineID := s.lines
	s.lines++

	text := strings.TrimLeft(cellText(cells), " \t")
	if strings.HasPrefix(text, "#") || strings.HasPrefix(text, "♪") || strings.HasPrefix(text, "♫") {
		if s.settings.FilterLyrics {
			return nil, false
		}
		for i := range cells {
			cells[i].lyric = lineID
			cells[i].sound = -1
		}
		return cells, true
	}

	var cuts []int
	if s.settings.FilterSound {
		cells, cuts = removeSound(cells)
	}

	if s.settings.FilterCaps && allCaps(cellText(cells)) {
		return nil, false
	}

	if len(cuts) > 0 {
		cells = collapse(cells, cuts)
		if !hasAlnum(cells) {
			return nil, false
		}
	}
	return cells, true
}

// scan runs the tag and bracket state machine over one line. Colour state
// carries over from previous lines of the same cue.
func (s *scanner) scan(raw string) []cell {
	var (
		cells  []cell
		st     = stText
		ret    = stText
		tag    strings.Builder
		openAt = -1
		closer rune
	)
	emit := func(r rune) {
		cells = append(cells, cell{r: r, colour: s.colour, sound: -1, lyric: -1})
	}
	literal := func(text string) {
		for _, r := range text {
			emit(r)
		}
	}

	for _, r := range raw {
		switch st {
		case stText, stBracket:
			switch {
			case r == '<':
				ret = st
				st = stTagOpen
				tag.Reset()
			case st == stText && (r == '[' || r == '('):
				openAt = len(cells)
				closer = ']'
				if r == '(' {
					closer = ')'
				}
				emit(r)
				st = stBracket
			case st == stBracket && r == closer:
				emit(r)
				for i := openAt; i < len(cells); i++ {
					cells[i].sound = s.sounds
				}
				s.sounds++
				openAt = -1
				st = stText
			default:
				emit(r)
			}

		case stTagOpen:
			switch r {
			case '/':
				tag.WriteRune(r)
				st = stTagClose
			case '>':
				literal("<>")
				st = ret
			case '<':
				literal("<")
			default:
				tag.WriteRune(r)
				st = stTagBody
			}

		case stTagBody, stTagClose:
			switch r {
			case '>':
				s.endTag(tag.String(), literal)
				st = ret
			case '<':
				literal("<" + tag.String())
				tag.Reset()
				st = stTagOpen
			default:
				tag.WriteRune(r)
			}
		}
	}

	switch st {
	case stTagOpen, stTagBody, stTagClose:
		literal("<" + tag.String())
	}
	// an unmatched bracket stays literal text
	return cells
}

func (s *scanner) endTag(body string, literal func(string)) {
	if m := fontOpenTag.FindStringSubmatch(body); m != nil {
		s.payloads = append(s.payloads, m[1])
		s.colour = len(s.payloads) - 1
		return
	}
	if fontCloseTag.MatchString(body) && s.colour >= 0 {
		s.colour = -1
		return
	}
	literal("<" + body + ">")
}

func removeSound(cells []cell) ([]cell, []int) {
	out := make([]cell, 0, len(cells))
	var cuts []int
	removing := false
	for _, c := range cells {
		if c.sound >= 0 {
			if !removing {
				cuts = append(cuts, len(out))
			}
			removing = true
			continue
		}
		removing = false
		out = append(out, c)
	}
	return out, cuts
}

// collapse removes the whitespace left around removed markup: all of it
// at line edges and before closing punctuation, all but one blank elsewhere.
func collapse(cells []cell, cuts []int) []cell {
	drop := make([]bool, len(cells))
	for _, p := range cuts {
		i := p
		for i > 0 && cells[i-1].blank() {
			i--
		}
		j := p
		for j < len(cells) && cells[j].blank() {
			j++
		}
		from := i + 1
		if i == 0 || j == len(cells) || closingPunct(cells[j].r) {
			from = i
		}
		for k := from; k < j; k++ {
			drop[k] = true
		}
	}

	out := cells[:0]
	for k, c := range cells {
		if !drop[k] {
			out = append(out, c)
		}
	}
	return out
}

func closingPunct(r rune) bool {
	return strings.ContainsRune(",.!?;:…", r)
}

func hasAlnum(cells []cell) bool {
	for _, c := range cells {
		if unicode.IsLetter(c.r) || unicode.IsDigit(c.r) {
			return true
		}
	}
	return false
}

// allCaps matches description lines such as "MAN: " or "DOOR SLAMS".
func allCaps(text string) bool {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < 3 {
		return false
	}
	letters := 0
	for _, r := range text {
		switch {
		case unicode.IsUpper(r):
			letters++
		case r == ' ' || r == ':' || r == ',':
		default:
			return false
		}
	}
	return letters > 0
}

func cellText(cells []cell) string {
	var b strings.Builder
	for _, c := range cells {
		b.WriteRune(c.r)
	}
	return b.String()
}

// spans groups runs of cells owned by the same markup. A cell belongs to at
// most one span, so colour runs are cut around sound and lyric text.
func (s *scanner) spans(cells []cell, offsets []int) []Span {
	type owner struct {
		kind Kind
		id   int
	}
	ownerOf := func(c cell) (owner, bool) {
		switch {
		case c.lyric >= 0:
			return owner{Lyric, c.lyric}, true
		case c.sound >= 0:
			return owner{SoundEffect, c.sound}, true
		case c.colour >= 0:
			return owner{Colour, c.colour}, true
		}
		return owner{}, false
	}

	var spans []Span
	for i := 0; i < len(cells); {
		o, ok := ownerOf(cells[i])
		if !ok {
			i++
			continue
		}
		j := i + 1
		for j < len(cells) {
			next, ok := ownerOf(cells[j])
			if !ok || next != o {
				break
			}
			j++
		}
		span := Span{Kind: o.kind, Start: offsets[i], End: offsets[j]}
		if o.kind == Colour {
			span.Payload = s.payloads[o.id]
		}
		spans = append(spans, span)
		i = j
	}
	return spans
}

func speakerChange(plain string) bool {
	first, _, _ := strings.Cut(plain, "\n")
	first = strings.TrimLeft(first, " \t")
	return strings.HasPrefix(first, "-") || strings.HasPrefix(first, "–") || strings.HasPrefix(first, "—")
}
