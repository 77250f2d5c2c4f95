package codec

import (
	"fmt"
	"strconv"
	"strings"
)

type vttCodec struct{}

func (c *vttCodec) Format() Format { return FormatVTT }

func (c *vttCodec) Parse(data []byte) ([]Cue, error) {
	blocks := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n\n")

	var cues []Cue
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		lines := strings.Split(block, "\n")
		if strings.HasPrefix(lines[0], "WEBVTT") || strings.HasPrefix(lines[0], "NOTE") {
			continue
		}

		timingIdx := -1
		for i, line := range lines {
			if strings.Contains(line, "-->") {
				timingIdx = i
				break
			}
		}
		if timingIdx == -1 {
			continue
		}

		startMs, endMs, ok := parseVTTTiming(lines[timingIdx])
		if !ok {
			continue
		}

		text := strings.TrimSpace(strings.Join(lines[timingIdx+1:], "\n"))
		if text == "" {
			continue
		}

		cues = append(cues, Cue{StartMs: startMs, EndMs: endMs, Text: text})
	}
	return cues, nil
}

func parseVTTTiming(line string) (startMs, endMs int64, ok bool) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}

	start, sOK := parseVTTTimestamp(strings.TrimSpace(parts[0]))
	endField := strings.Fields(strings.TrimSpace(parts[1]))
	if len(endField) == 0 {
		return 0, 0, false
	}
	end, eOK := parseVTTTimestamp(endField[0])
	if !sOK || !eOK {
		return 0, 0, false
	}
	return start, end, true
}

func parseVTTTimestamp(ts string) (int64, bool) {
	// Strip any cue-setting suffix after whitespace (caller already split on
	// whitespace for the end timestamp; this guards the start timestamp too).
	ts = strings.Fields(ts)[0]

	var h, m int64
	var sec float64

	parts := strings.Split(ts, ":")
	switch len(parts) {
	case 3: // HH:MM:SS.mmm
		hh, err1 := strconv.ParseInt(parts[0], 10, 64)
		mm, err2 := strconv.ParseInt(parts[1], 10, 64)
		ss, err3 := strconv.ParseFloat(parts[2], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return 0, false
		}
		h, m, sec = hh, mm, ss
	case 2: // MM:SS.mmm
		mm, err1 := strconv.ParseInt(parts[0], 10, 64)
		ss, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 != nil || err2 != nil {
			return 0, false
		}
		m, sec = mm, ss
	default:
		return 0, false
	}

	totalMs := (h*3600+m*60)*1000 + int64(sec*1000+0.5)
	return totalMs, true
}

func formatVTTTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3600000
	ms -= h * 3600000
	m := ms / 60000
	ms -= m * 60000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

func (c *vttCodec) Render(cues []Cue) ([]byte, error) {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for i, cue := range cues {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", formatVTTTimestamp(cue.StartMs), formatVTTTimestamp(cue.EndMs))
		b.WriteString(cue.Text)
		b.WriteString("\n\n")
	}
	return []byte(b.String()), nil
}
