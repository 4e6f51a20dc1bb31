package subtitle

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dimkroon/translate-subs/internal/apperr"
)

var (
	ttmlClock  = regexp.MustCompile(`^(\d+):(\d{2}):(\d{2})(?:\.(\d+))?$`)
	ttmlFrames = regexp.MustCompile(`^(\d+):(\d{2}):(\d{2}):(\d{2})$`)
	ttmlOffset = regexp.MustCompile(`^(\d+(?:\.\d+)?)(h|m|s|ms|t)$`)
	spaceRun   = regexp.MustCompile(`\s+`)
)

const defaultTickRate = 10_000_000

type ttmlPiece struct {
	text   string
	colour string
}

// ParseTTML parses TTML/DFXP documents. Paragraph and span colours become
// font tags; <br/> becomes a line break. Frame based clock times treat the
// last field as hundredths of a second.
func ParseTTML(data []byte) (*File, error) {
	file := &File{Format: "TTML"}
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	var (
		tickRate   = float64(defaultTickRate)
		styles     = map[string]string{}
		inP        bool
		pBegin     string
		pEnd       string
		pColour    string
		spanColour []string
		pieces     []ttmlPiece
		paragraphs int
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if paragraphs == 0 {
				return nil, apperr.Wrap(err, apperr.KindParse, "invalid ttml document")
			}
			file.Warnings = append(file.Warnings, apperr.ParseError("ttml document truncated", err))
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tt":
				if v := attr(t, "tickRate"); v != "" {
					if r, err := strconv.ParseFloat(v, 64); err == nil && r > 0 {
						tickRate = r
					}
				}
			case "style":
				if !inP {
					if id := attr(t, "id"); id != "" {
						if c := normalizeColour(attr(t, "color")); c != "" {
							styles[id] = c
						}
					}
				}
			case "p":
				inP = true
				paragraphs++
				pBegin, pEnd = attr(t, "begin"), attr(t, "end")
				pColour = colourOf(t, styles, "")
				spanColour = spanColour[:0]
				pieces = pieces[:0]
			case "span":
				if inP {
					parent := pColour
					if len(spanColour) > 0 {
						parent = spanColour[len(spanColour)-1]
					}
					spanColour = append(spanColour, colourOf(t, styles, parent))
				}
			case "br":
				if inP {
					pieces = append(pieces, ttmlPiece{text: "\n"})
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "span":
				if inP && len(spanColour) > 0 {
					spanColour = spanColour[:len(spanColour)-1]
				}
			case "p":
				inP = false
				cue, err := ttmlCue(pBegin, pEnd, tickRate, pieces)
				if err != nil {
					file.Warnings = append(file.Warnings,
						apperr.ParseError("malformed cue timing dropped", err).WithContext("paragraph", paragraphs))
					continue
				}
				cue.Index = len(file.Cues) + 1
				file.Cues = append(file.Cues, cue)
			}
		case xml.CharData:
			if inP {
				colour := pColour
				if len(spanColour) > 0 {
					colour = spanColour[len(spanColour)-1]
				}
				pieces = append(pieces, ttmlPiece{text: spaceRun.ReplaceAllString(string(t), " "), colour: colour})
			}
		}
	}

	return file, nil
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func colourOf(el xml.StartElement, styles map[string]string, inherited string) string {
	if c := normalizeColour(attr(el, "color")); c != "" {
		return c
	}
	if c, ok := styles[attr(el, "style")]; ok {
		return c
	}
	return inherited
}

// normalizeColour strips the alpha channel from #RRGGBBAA values.
func normalizeColour(c string) string {
	c = strings.TrimSpace(c)
	if strings.HasPrefix(c, "#") && len(c) > 7 {
		return c[:7]
	}
	return c
}

func ttmlCue(begin, end string, tickRate float64, pieces []ttmlPiece) (Cue, error) {
	if begin == "" || end == "" {
		return Cue{}, fmt.Errorf("paragraph without begin/end")
	}
	start, err := parseTTMLTime(begin, tickRate)
	if err != nil {
		return Cue{}, err
	}
	stop, err := parseTTMLTime(end, tickRate)
	if err != nil {
		return Cue{}, err
	}
	if stop < start {
		return Cue{}, fmt.Errorf("end %s before begin %s", end, begin)
	}
	return Cue{Start: start, End: stop, Text: renderPieces(pieces)}, nil
}

func renderPieces(pieces []ttmlPiece) string {
	var lines []string
	var sb strings.Builder
	flush := func() {
		lines = append(lines, strings.TrimSpace(sb.String()))
		sb.Reset()
	}
	for _, p := range pieces {
		if p.text == "\n" {
			flush()
			continue
		}
		text := p.text
		if sb.Len() == 0 {
			text = strings.TrimLeft(text, " ")
		}
		if text == "" || (strings.TrimSpace(text) == "" && p.colour != "") {
			sb.WriteString(text)
			continue
		}
		if p.colour != "" {
			lead, trail := "", ""
			if strings.HasPrefix(text, " ") {
				lead = " "
			}
			if strings.HasSuffix(text, " ") {
				trail = " "
			}
			fmt.Fprintf(&sb, `%s<font color="%s">%s</font>%s`, lead, p.colour, strings.TrimSpace(text), trail)
			continue
		}
		sb.WriteString(text)
	}
	flush()

	out := lines[:0]
	for _, l := range lines {
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func parseTTMLTime(s string, tickRate float64) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if m := ttmlClock.FindStringSubmatch(s); m != nil {
		return clockDuration(m[1], m[2], m[3], truncFraction(m[4])), nil
	}
	if m := ttmlFrames.FindStringSubmatch(s); m != nil {
		return clockDuration(m[1], m[2], m[3], m[4]+"0"), nil
	}
	if m := ttmlOffset.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, err
		}
		var unit float64
		switch m[2] {
		case "h":
			unit = float64(time.Hour)
		case "m":
			unit = float64(time.Minute)
		case "s":
			unit = float64(time.Second)
		case "ms":
			unit = float64(time.Millisecond)
		case "t":
			unit = float64(time.Second) / tickRate
		}
		return time.Duration(v * unit).Round(time.Millisecond), nil
	}
	return 0, fmt.Errorf("invalid time expression: %q", s)
}

func truncFraction(f string) string {
	if f == "" {
		return "0"
	}
	if len(f) > 3 {
		return f[:3]
	}
	return f
}
