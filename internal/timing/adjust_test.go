package timing

import (
	"testing"
	"time"

	"github.com/dimkroon/translate-subs/internal/subtitle"
	"github.com/stretchr/testify/assert"
)

func sec(n float64) time.Duration {
	return time.Duration(n * float64(time.Second))
}

func ptr(d time.Duration) *time.Duration {
	return &d
}

func TestAdjust(t *testing.T) {
	tests := []struct {
		name    string
		start   time.Duration
		end     time.Duration
		min     time.Duration
		next    *time.Duration
		wantEnd time.Duration
	}{
		{name: "extends to minimum", start: 0, end: sec(1), min: sec(3), next: ptr(sec(10)), wantEnd: sec(3)},
		{name: "bounded by next cue", start: 0, end: sec(1), min: sec(3), next: ptr(sec(2)), wantEnd: sec(2)},
		{name: "never shrinks", start: 0, end: sec(5), min: sec(3), next: ptr(sec(10)), wantEnd: sec(5)},
		{name: "last cue extends fully", start: sec(4), end: sec(5), min: sec(3), next: nil, wantEnd: sec(7)},
		{name: "zero minimum", start: sec(1), end: sec(2), min: 0, next: ptr(sec(3)), wantEnd: sec(2)},
		{name: "overlapping next keeps end", start: 0, end: sec(2), min: sec(3), next: ptr(sec(1)), wantEnd: sec(2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := subtitle.Cue{Index: 1, Start: tt.start, End: tt.end, Text: "x"}
			got := Adjust(in, tt.next, tt.min)
			assert.Equal(t, tt.wantEnd, got.End)
			assert.Equal(t, tt.start, got.Start)
			assert.Equal(t, "x", got.Text)
		})
	}
}

func TestAdjustAll(t *testing.T) {
	cues := []subtitle.Cue{
		{Index: 1, Start: 0, End: sec(0.5)},
		{Index: 2, Start: sec(1), End: sec(4)},
		{Index: 3, Start: sec(5), End: sec(5.5)},
	}

	got := AdjustAll(cues, sec(2))

	assert.Equal(t, sec(1), got[0].End)
	assert.Equal(t, sec(4), got[1].End)
	assert.Equal(t, sec(7), got[2].End)
	assert.Equal(t, sec(0.5), cues[0].End, "input is not modified")
}
