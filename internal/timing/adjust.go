// Package timing extends short cue display times.
package timing

import (
	"time"

	"github.com/dimkroon/translate-subs/internal/subtitle"
)

// Adjust extends c to last at least min, but never past next (the start of
// the following cue, nil for the last cue). A cue that is already long
// enough is returned unchanged.
func Adjust(c subtitle.Cue, next *time.Duration, min time.Duration) subtitle.Cue {
	candidate := c.Start + min
	limit := candidate
	if next != nil && *next < limit {
		limit = *next
	}
	if limit > c.End {
		c.End = limit
	}
	return c
}

// AdjustAll applies Adjust to every cue with its successor's start.
func AdjustAll(cues []subtitle.Cue, min time.Duration) []subtitle.Cue {
	out := make([]subtitle.Cue, len(cues))
	for i, c := range cues {
		var next *time.Duration
		if i+1 < len(cues) {
			start := cues[i+1].Start
			next = &start
		}
		out[i] = Adjust(c, next, min)
	}
	return out
}
