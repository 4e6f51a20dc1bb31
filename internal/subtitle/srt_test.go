package subtitle

import (
	"testing"
	"time"

	"github.com/dimkroon/translate-subs/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSRT(t *testing.T) {
	data := []byte("\xef\xbb\xbf1\r\n00:00:01,000 --> 00:00:02,500\r\nHello\r\nthere\r\n\r\n2\r\n00:00:03,000 --> 00:00:04,000\r\nWorld\r\n")

	file := ParseSRT(data)
	require.Len(t, file.Cues, 2)
	assert.Empty(t, file.Warnings)
	assert.Equal(t, "SRT", file.Format)

	assert.Equal(t, Cue{Index: 1, Start: time.Second, End: 2500 * time.Millisecond, Text: "Hello\nthere"}, file.Cues[0])
	assert.Equal(t, "World", file.Cues[1].Text)
	assert.Equal(t, 2, file.Cues[1].Index)
}

func TestParseSRT_DropsMalformedTiming(t *testing.T) {
	data := []byte(`1
00:00:01,000 --> 00:00:02,000
First

2
00:00:0x,000 --> 00:00:04,000
Broken

3
00:00:09,000 --> 00:00:08,000
Backwards

4
00:00:10,000 --> 00:00:11,000
Last
`)

	file := ParseSRT(data)
	require.Len(t, file.Cues, 2)
	assert.Equal(t, "First", file.Cues[0].Text)
	assert.Equal(t, "Last", file.Cues[1].Text)
	assert.Equal(t, 2, file.Cues[1].Index)

	require.Len(t, file.Warnings, 2)
	for _, w := range file.Warnings {
		assert.True(t, apperr.IsKind(w, apperr.KindParse))
	}
}

func TestParseSRT_LenientTiming(t *testing.T) {
	file := ParseSRT([]byte("00:01:02.5 --> 01:00:00.250\ntext without index\n"))
	require.Len(t, file.Cues, 1)
	assert.Equal(t, time.Minute+2500*time.Millisecond, file.Cues[0].Start)
	assert.Equal(t, time.Hour+250*time.Millisecond, file.Cues[0].End)
}

func TestFormatSRT_RenumbersAndSkipsEmpty(t *testing.T) {
	cues := []Cue{
		{Index: 7, Start: 0, End: 1500 * time.Millisecond, Text: "One"},
		{Index: 8, Start: 2 * time.Second, End: 3 * time.Second, Text: "  "},
		{Index: 9, Start: time.Hour + 2*time.Minute + 3*time.Second + 4*time.Millisecond, End: 2 * time.Hour, Text: "Two\nlines"},
	}

	got := string(FormatSRT(cues))
	want := "1\n00:00:00,000 --> 00:00:01,500\nOne\n\n" +
		"2\n01:02:03,004 --> 02:00:00,000\nTwo\nlines\n\n"
	assert.Equal(t, want, got)

	reparsed := ParseSRT([]byte(got))
	require.Len(t, reparsed.Cues, 2)
	assert.Equal(t, "Two\nlines", reparsed.Cues[1].Text)
}
