package markup

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Render re-emits plain text with font tags around colour spans. Sound and
// lyric spans cover text that is already present, so they add nothing.
// With filterColour set the plain text is returned as is.
func Render(plain string, spans []Span, filterColour bool) string {
	if filterColour {
		return plain
	}

	colour := make([]Span, 0, len(spans))
	for _, sp := range spans {
		if sp.Kind == Colour && sp.Start < sp.End {
			colour = append(colour, sp)
		}
	}
	if len(colour) == 0 {
		return plain
	}
	slices.SortFunc(colour, func(a, b Span) int { return cmp.Compare(a.Start, b.Start) })

	var b strings.Builder
	pos := 0
	for _, sp := range colour {
		start := min(max(sp.Start, 0), len(plain))
		end := min(sp.End, len(plain))
		if start < pos || start >= end {
			continue
		}
		b.WriteString(plain[pos:start])
		fmt.Fprintf(&b, `<font color="%s">%s</font>`, sp.Payload, plain[start:end])
		pos = end
	}
	b.WriteString(plain[pos:])
	return b.String()
}
