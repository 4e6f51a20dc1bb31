package subtitle

import (
	"testing"
	"time"

	"github.com/dimkroon/translate-subs/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTTML = `<?xml version="1.0" encoding="utf-8"?>
<tt xmlns="http://www.w3.org/ns/ttml" xmlns:tts="http://www.w3.org/ns/ttml#styling" xmlns:ttp="http://www.w3.org/ns/ttml#parameter" ttp:tickRate="10000000">
  <head>
    <styling>
      <style xml:id="s1" tts:color="#FFFF00FF"/>
    </styling>
  </head>
  <body>
    <div>
      <p begin="00:00:01.000" end="00:00:02.500">Plain text<br/>second line</p>
      <p begin="00:03:33:14" end="00:03:36:06" style="s1">Yellow <span tts:color="cyan">and cyan</span></p>
      <p begin="30000000t" end="45000000t">Ticks</p>
      <p begin="later" end="00:00:10.000">Bad</p>
      <p>No timing</p>
    </div>
  </body>
</tt>`

func TestParseTTML(t *testing.T) {
	file, err := ParseTTML([]byte(sampleTTML))
	require.NoError(t, err)
	require.Len(t, file.Cues, 3)
	assert.Len(t, file.Warnings, 2)

	assert.Equal(t, Cue{Index: 1, Start: time.Second, End: 2500 * time.Millisecond, Text: "Plain text\nsecond line"}, file.Cues[0])

	second := file.Cues[1]
	assert.Equal(t, 3*time.Minute+33*time.Second+140*time.Millisecond, second.Start)
	assert.Equal(t, 3*time.Minute+36*time.Second+60*time.Millisecond, second.End)
	assert.Equal(t, `<font color="#FFFF00">Yellow</font> <font color="cyan">and cyan</font>`, second.Text)

	assert.Equal(t, 3*time.Second, file.Cues[2].Start)
	assert.Equal(t, 4500*time.Millisecond, file.Cues[2].End)
}

func TestParseTTML_InvalidDocument(t *testing.T) {
	_, err := ParseTTML([]byte("not xml at all <"))
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindParse))
}
