// Package split maps a translated unit back onto the cues it was merged from.
package split

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dimkroon/translate-subs/internal/markup"
	"github.com/dimkroon/translate-subs/internal/merge"
	"github.com/dimkroon/translate-subs/internal/translator"
)

// CueText is the translated text for one member cue.
type CueText struct {
	CueIndex int
	Text     string
	Spans    []markup.Span
}

const cjkPunct = "，。、！？；："

// twins maps a pause character to its full-width form.
var twins = map[rune]rune{',': '，', ';': '；', ':': '：'}

// Split cuts the translated text into one part per member cue, sized by
// each member's share of the source text. Parts only end at whitespace or
// after CJK punctuation; when there are too few such boundaries the last
// members get empty text.
func Split(tu translator.TranslatedUnit, src merge.Unit) []CueText {
	n := len(src.MemberCues)
	if n == 0 {
		return nil
	}

	rs := []rune(strings.Join(strings.Fields(tu.Text), " "))
	parts := make([]CueText, n)
	for i, idx := range src.MemberCues {
		parts[i].CueIndex = idx
	}

	if n == 1 {
		parts[0].Text = string(rs)
		parts[0].Spans = mapColour(src, rs)
		return parts
	}

	weights := src.Weights()
	pos := 0
	for i := 0; i < n-1; i++ {
		pos = skipSpace(rs, pos)
		if pos >= len(rs) {
			break
		}

		preferred := pos + share(len(rs)-pos, weights[i:])
		cut, ok := pauseCut(rs, pos, preferred, sourceText(src, i))
		if !ok {
			cut = nearestBoundary(rs, pos, preferred)
		}

		parts[i].Text = strings.TrimSpace(string(rs[pos:cut]))
		pos = cut
	}
	pos = skipSpace(rs, pos)
	if pos < len(rs) {
		parts[n-1].Text = string(rs[pos:])
	}

	return parts
}

// share returns the rune count of the first weight's proportion of remaining.
func share(remaining int, weights []int) int {
	sum := 0
	for _, w := range weights {
		sum += w
	}
	if sum == 0 {
		return remaining / len(weights)
	}
	return int(math.Round(float64(remaining) * float64(weights[0]) / float64(sum)))
}

func sourceText(src merge.Unit, i int) string {
	seg := src.Segments[i]
	return src.Plain[seg.Start:seg.End]
}

// pauseCut splits after the same pause character the source member ends
// with, when the translation has one within half the preferred length.
// The character must end a word, so "1,000" is never cut.
func pauseCut(rs []rune, pos, preferred int, source string) (int, bool) {
	source = strings.TrimRightFunc(source, unicode.IsSpace)
	last, _ := utf8.DecodeLastRuneInString(source)
	twin, ok := twins[last]
	if !ok {
		return 0, false
	}

	deviation := (preferred - pos) / 2
	best, bestDist := -1, deviation+1
	for j := pos; j < len(rs)-1; j++ {
		if (rs[j] != last && rs[j] != twin) || !isBoundary(rs, j+1) {
			continue
		}
		if d := abs(j + 1 - preferred); d < bestDist {
			best, bestDist = j+1, d
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

// nearestBoundary returns the boundary closest to preferred, or len(rs)
// when there is none after pos.
func nearestBoundary(rs []rune, pos, preferred int) int {
	best, bestDist := len(rs), math.MaxInt
	for b := pos + 1; b < len(rs); b++ {
		if !isBoundary(rs, b) {
			continue
		}
		if d := abs(b - preferred); d < bestDist {
			best, bestDist = b, d
		}
	}
	return best
}

func isBoundary(rs []rune, b int) bool {
	return unicode.IsSpace(rs[b]) || strings.ContainsRune(cjkPunct, rs[b-1])
}

func skipSpace(rs []rune, pos int) int {
	for pos < len(rs) && unicode.IsSpace(rs[pos]) {
		pos++
	}
	return pos
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// mapColour places the colour spans of a single-cue unit at the same
// relative position in the translation, widened to whole words.
func mapColour(src merge.Unit, rs []rune) []markup.Span {
	srcLen := utf8.RuneCountInString(src.Plain)
	if srcLen == 0 || len(rs) == 0 {
		return nil
	}

	starts, ends := wordEdges(rs)
	scale := float64(len(rs)) / float64(srcLen)

	var out []markup.Span
	prevEnd := 0
	for _, sp := range src.Spans {
		if sp.Kind != markup.Colour {
			continue
		}
		rs0 := utf8.RuneCountInString(src.Plain[:sp.Start])
		rs1 := utf8.RuneCountInString(src.Plain[:sp.End])

		start := nearest(starts, int(math.Round(float64(rs0)*scale)))
		end := nearest(ends, int(math.Round(float64(rs1)*scale)))
		start = max(start, prevEnd)
		if start >= end {
			continue
		}
		out = append(out, markup.Span{
			Kind:    markup.Colour,
			Start:   len(string(rs[:start])),
			End:     len(string(rs[:end])),
			Payload: sp.Payload,
		})
		prevEnd = end
	}
	return out
}

// wordEdges returns the rune positions where words start and end.
func wordEdges(rs []rune) (starts, ends []int) {
	for k := 0; k <= len(rs); k++ {
		inWord := k < len(rs) && !unicode.IsSpace(rs[k])
		prevInWord := k > 0 && !unicode.IsSpace(rs[k-1])
		if inWord && !prevInWord {
			starts = append(starts, k)
		}
		if prevInWord && !inWord {
			ends = append(ends, k)
		}
	}
	return starts, ends
}

func nearest(sorted []int, x int) int {
	i := sort.SearchInts(sorted, x)
	switch {
	case i == 0:
		return sorted[0]
	case i == len(sorted):
		return sorted[len(sorted)-1]
	case x-sorted[i-1] <= sorted[i]-x:
		return sorted[i-1]
	default:
		return sorted[i]
	}
}
