package subtitle

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dimkroon/translate-subs/internal/apperr"
	"github.com/dimkroon/translate-subs/pkg/log"
)

var (
	// Cue timings with or without hours; cue settings after the end time are ignored.
	vttTiming = regexp.MustCompile(`^(?:(\d+):)?(\d{2}):(\d{2})\.(\d{3})\s+-->\s+(?:(\d+):)?(\d{2}):(\d{2})\.(\d{3})`)
	vttVoice  = regexp.MustCompile(`<v(?:\.[^ >]*)?\s+([^>]*)>`)
	vttColour = regexp.MustCompile(`<c\.([^>]*)>(.*?)</c>`)
	// Any tag other than b, i, u and font; timestamps like <00:01.000> included.
	vttOtherTag = regexp.MustCompile(`</?(?:[^biuf/>][^>]*|f[^o>][^>]*)?>`)
)

var vttNamedColours = map[string]bool{
	"white":  true,
	"yellow": true,
	"green":  true,
	"cyan":   true,
	"red":    true,
	"blue":   true,
	"lime":   true,
}

// ParseVTT parses a WebVTT document. Styling other than bold, italic,
// underline and colour classes is removed; colour classes become font tags.
func ParseVTT(data []byte) *File {
	file := &File{Format: "VTT"}

	for n, block := range splitBlocks(data) {
		timingAt := -1
		for i := 0; i < len(block) && i < 2; i++ {
			if strings.Contains(block[i], "-->") {
				timingAt = i
				break
			}
		}
		if timingAt < 0 {
			// header, NOTE, STYLE or REGION block
			continue
		}

		m := vttTiming.FindStringSubmatch(strings.TrimSpace(block[timingAt]))
		if m == nil {
			file.Warnings = append(file.Warnings,
				apperr.ParseError("malformed cue timing dropped", fmt.Errorf("invalid time format: %s", block[timingAt])).
					WithContext("block", n+1))
			continue
		}
		start := clockDuration(orZero(m[1]), m[2], m[3], m[4])
		end := clockDuration(orZero(m[5]), m[6], m[7], m[8])
		if end < start {
			file.Warnings = append(file.Warnings,
				apperr.ParseError("malformed cue timing dropped", fmt.Errorf("end before start: %s", block[timingAt])).
					WithContext("block", n+1))
			continue
		}

		text, speaker := convertVTTPayload(strings.Join(block[timingAt+1:], "\n"))
		file.Cues = append(file.Cues, Cue{
			Index:       len(file.Cues) + 1,
			Start:       start,
			End:         end,
			Text:        text,
			SpeakerHint: speaker,
		})
	}

	return file
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func convertVTTPayload(payload string) (string, string) {
	var speaker string
	if m := vttVoice.FindStringSubmatch(payload); m != nil {
		speaker = strings.TrimSpace(m[1])
	}

	payload = vttColour.ReplaceAllStringFunc(payload, func(match string) string {
		m := vttColour.FindStringSubmatch(match)
		return vttColourTag(m[1], m[2])
	})
	payload = vttOtherTag.ReplaceAllString(payload, "")
	payload = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&nbsp;", " ").Replace(payload)

	return payload, speaker
}

// vttColourTag converts a colour class such as "yellow" or "color00FF00FF".
func vttColourTag(class, text string) string {
	for _, c := range strings.Split(class, ".") {
		switch {
		case vttNamedColours[c]:
			return fmt.Sprintf(`<font color="%s">%s</font>`, c, text)
		case strings.HasPrefix(c, "color") && len(c) >= 11:
			return fmt.Sprintf(`<font color="#%s">%s</font>`, c[5:11], text)
		}
	}
	log.Debug("Unsupported colour class '%s' in vtt file", class)
	return text
}
