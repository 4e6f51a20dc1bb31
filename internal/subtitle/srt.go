package subtitle

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dimkroon/translate-subs/internal/apperr"
)

// 00:02:16,612 --> 00:02:19,376, also accepting a dot and short fractions.
var srtTiming = regexp.MustCompile(`^\s*(\d+):(\d{1,2}):(\d{1,2})[,.](\d{1,3})\s*-->\s*(\d+):(\d{1,2}):(\d{1,2})[,.](\d{1,3})`)

// ParseSRT parses SRT data. Blocks with malformed timing are dropped and
// reported in File.Warnings; the remaining cues are numbered from 1.
func ParseSRT(data []byte) *File {
	file := &File{Format: "SRT"}

	for n, block := range splitBlocks(data) {
		lines := block
		if !strings.Contains(lines[0], "-->") {
			// index line
			lines = lines[1:]
		}
		if len(lines) == 0 || !strings.Contains(lines[0], "-->") {
			file.Warnings = append(file.Warnings,
				apperr.ParseError("block without timing line dropped", nil).WithContext("block", n+1))
			continue
		}

		start, end, err := parseSRTTiming(lines[0])
		if err != nil {
			file.Warnings = append(file.Warnings,
				apperr.ParseError("malformed cue timing dropped", err).WithContext("block", n+1))
			continue
		}

		file.Cues = append(file.Cues, Cue{
			Index: len(file.Cues) + 1,
			Start: start,
			End:   end,
			Text:  strings.Join(lines[1:], "\n"),
		})
	}

	return file
}

// splitBlocks normalizes line endings and returns the non-empty blocks
// separated by blank lines, each as a slice of lines.
func splitBlocks(data []byte) [][]string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	s := strings.ReplaceAll(string(data), "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var (
		blocks  [][]string
		current []string
	)
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				blocks = append(blocks, current)
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	return blocks
}

func parseSRTTiming(line string) (time.Duration, time.Duration, error) {
	m := srtTiming.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid time format: %s", strings.TrimSpace(line))
	}
	start := clockDuration(m[1], m[2], m[3], m[4])
	end := clockDuration(m[5], m[6], m[7], m[8])
	if end < start {
		return 0, 0, fmt.Errorf("end %s before start %s", formatSRTTime(end), formatSRTTime(start))
	}
	return start, end, nil
}

// clockDuration builds a duration from regexp-validated digit groups. The
// fraction is read as a decimal, so "5" means 500ms.
func clockDuration(hours, minutes, seconds, fraction string) time.Duration {
	h, _ := strconv.Atoi(hours)
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.Atoi(seconds)
	for len(fraction) < 3 {
		fraction += "0"
	}
	ms, _ := strconv.Atoi(fraction)

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond
}

// formatSRTTime formats a duration in SRT time format
func formatSRTTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	d -= time.Duration(h) * time.Hour
	m := int(d / time.Minute)
	d -= time.Duration(m) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	ms := int(d / time.Millisecond)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// FormatSRT renders cues as SRT, renumbering them from 1. Cues without
// text are skipped.
func FormatSRT(cues []Cue) []byte {
	var buf bytes.Buffer
	n := 0
	for _, cue := range cues {
		text := strings.TrimSpace(cue.Text)
		if text == "" {
			continue
		}
		n++
		fmt.Fprintf(&buf, "%d\n", n)
		fmt.Fprintf(&buf, "%s --> %s\n", formatSRTTime(cue.Start), formatSRTTime(cue.End))
		fmt.Fprintf(&buf, "%s\n\n", text)
	}
	return buf.Bytes()
}
