package split

import (
	"strings"
	"testing"

	"github.com/dimkroon/translate-subs/internal/markup"
	"github.com/dimkroon/translate-subs/internal/merge"
	"github.com/dimkroon/translate-subs/internal/translator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitOf(plains ...string) merge.Unit {
	cues := make([]markup.TokenizedCue, len(plains))
	for i, p := range plains {
		cues[i] = markup.TokenizedCue{CueIndex: i + 1, Plain: p}
	}
	m := &merge.Merger{}
	units := m.Merge(cues)
	if len(units) != 1 {
		panic("test cues did not merge into one unit")
	}
	return units[0]
}

func texts(parts []CueText) []string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = p.Text
	}
	return out
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name       string
		source     []string
		translated string
		want       []string
	}{
		{
			name:       "single cue",
			source:     []string{"Good morning."},
			translated: "Goedemorgen.",
			want:       []string{"Goedemorgen."},
		},
		{
			name:       "nearest word boundary",
			source:     []string{"I was going", "to the station"},
			translated: "Ik ging naar het station",
			want:       []string{"Ik ging naar", "het station"},
		},
		{
			name:       "proportional to source length",
			source:     []string{"Well", "I really do not think that is a good idea at all"},
			translated: "Nou ik denk echt niet dat dat een goed idee is",
			want:       []string{"Nou", "ik denk echt niet dat dat een goed idee is"},
		},
		{
			name:       "single long word leaves later cues empty",
			source:     []string{"Super", "califragilistic"},
			translated: "Supercalifragilistisch",
			want:       []string{"Supercalifragilistisch", ""},
		},
		{
			name:       "empty translation",
			source:     []string{"one", "two", "three"},
			translated: "",
			want:       []string{"", "", ""},
		},
		{
			name:       "cjk punctuation is a boundary",
			source:     []string{"If you go,", "I will go too"},
			translated: "如果你去，我也去",
			want:       []string{"如果你去，", "我也去"},
		},
		{
			name:       "source pause is matched in translation",
			source:     []string{"Yes, I know,", "but it is late"},
			translated: "Ja, dat weet ik wel, maar het is laat",
			want:       []string{"Ja, dat weet ik wel,", "maar het is laat"},
		},
		{
			name:       "line breaks in translation are collapsed",
			source:     []string{"first part", "second part"},
			translated: "eerste deel\n tweede deel",
			want:       []string{"eerste deel", "tweede deel"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := unitOf(tt.source...)
			parts := Split(translator.TranslatedUnit{UnitID: src.ID, Text: tt.translated}, src)
			assert.Equal(t, tt.want, texts(parts))
		})
	}
}

func TestSplit_Conservation(t *testing.T) {
	sources := [][]string{
		{"a", "bb", "ccc", "dddd"},
		{"This is the first line", "and this the second,", "then a third one."},
		{"x"},
		{"Short", "A much much longer line with many words in it", "mid"},
	}
	translations := []string{
		"",
		"word",
		"een twee drie vier vijf zes zeven acht negen tien",
		"   leading and   trailing   ",
		"一二三，四五六。七八九",
	}

	for _, source := range sources {
		src := unitOf(source...)
		for _, tr := range translations {
			parts := Split(translator.TranslatedUnit{UnitID: src.ID, Text: tr}, src)
			require.Len(t, parts, len(source))

			var joined strings.Builder
			for i, p := range parts {
				assert.Equal(t, src.MemberCues[i], p.CueIndex)
				assert.Equal(t, strings.TrimSpace(p.Text), p.Text)
				joined.WriteString(p.Text)
			}
			assert.Equal(t, squash(tr), squash(joined.String()), "source %q translation %q", source, tr)
		}
	}
}

func TestSplit_NeverBreaksWords(t *testing.T) {
	tests := []struct {
		name       string
		source     []string
		translated string
	}{
		{
			name:       "plain words",
			source:     []string{"one two three", "four five", "six"},
			translated: "alpha beta gamma delta epsilon zeta",
		},
		{
			name:       "thousands separator after source pause",
			source:     []string{"We paid a lot,", "and then we left."},
			translated: "Wir zahlten 1,000 Euro und gingen dann weg.",
		},
		{
			name:       "decimal comma after source pause",
			source:     []string{"We paid a lot,", "and then we left."},
			translated: "We betaalden 12,50 euro en gingen toen weg.",
		},
		{
			name:       "comma inside a word",
			source:     []string{"We paid a lot,", "and then we left."},
			translated: "We betaalden veel,en gingen toen snel weg.",
		},
		{
			name:       "colon inside a time",
			source:     []string{"Be there at:", "the usual time."},
			translated: "Sei um 10:30 Uhr da, wie immer.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			words := map[string]bool{}
			for _, w := range strings.Fields(tt.translated) {
				words[w] = true
			}

			src := unitOf(tt.source...)
			for _, p := range Split(translator.TranslatedUnit{UnitID: src.ID, Text: tt.translated}, src) {
				for _, w := range strings.Fields(p.Text) {
					assert.True(t, words[w], "broken word %q in part %q", w, p.Text)
				}
			}
		})
	}
}

func TestSplit_ColourOnSingleCue(t *testing.T) {
	plain := "Hello there"
	src := merge.Unit{
		ID:         1,
		MemberCues: []int{4},
		Segments:   []merge.Segment{{CueIndex: 4, Start: 0, End: len(plain)}},
		Plain:      plain,
		Spans:      []markup.Span{{Kind: markup.Colour, Start: 0, End: len(plain), Payload: "#ffff00"}},
	}

	parts := Split(translator.TranslatedUnit{UnitID: 1, Text: "Hallo daar"}, src)
	require.Len(t, parts, 1)
	assert.Equal(t, []markup.Span{{Kind: markup.Colour, Start: 0, End: len("Hallo daar"), Payload: "#ffff00"}}, parts[0].Spans)
	assert.Equal(t, `<font color="#ffff00">Hallo daar</font>`, markup.Render(parts[0].Text, parts[0].Spans, false))
}

func TestSplit_ColourSnapsToWords(t *testing.T) {
	plain := "Look at the red car"
	start := strings.Index(plain, "red")
	src := merge.Unit{
		ID:         1,
		MemberCues: []int{1},
		Segments:   []merge.Segment{{CueIndex: 1, Start: 0, End: len(plain)}},
		Plain:      plain,
		Spans: []markup.Span{
			{Kind: markup.Colour, Start: start, End: start + len("red"), Payload: "red"},
			{Kind: markup.SoundEffect, Start: 0, End: 4},
		},
	}

	tr := "Kijk naar de rode auto"
	parts := Split(translator.TranslatedUnit{UnitID: 1, Text: tr}, src)
	require.Len(t, parts, 1)
	require.Len(t, parts[0].Spans, 1)

	sp := parts[0].Spans[0]
	assert.Equal(t, markup.Colour, sp.Kind)
	coloured := tr[sp.Start:sp.End]
	assert.NotEmpty(t, coloured)
	for _, w := range strings.Fields(coloured) {
		assert.Contains(t, strings.Fields(tr), w)
	}
}

func TestSplit_ColourDroppedAcrossCues(t *testing.T) {
	cues := []markup.TokenizedCue{
		{CueIndex: 1, Plain: "I am", Spans: []markup.Span{{Kind: markup.Colour, Start: 0, End: 4, Payload: "yellow"}}},
		{CueIndex: 2, Plain: "here now", Spans: []markup.Span{{Kind: markup.Colour, Start: 0, End: 8, Payload: "yellow"}}},
	}
	units := (&merge.Merger{}).Merge(cues)
	require.Len(t, units, 1)

	for _, p := range Split(translator.TranslatedUnit{UnitID: 1, Text: "Ik ben nu hier"}, units[0]) {
		assert.Empty(t, p.Spans)
	}
}

func TestSplit_NoMembers(t *testing.T) {
	assert.Nil(t, Split(translator.TranslatedUnit{Text: "x"}, merge.Unit{}))
}
