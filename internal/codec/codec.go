// Package codec parses and renders the three subtitle wire formats YouTube's
// timed-text endpoint can return: JSON3, SRV3, and WebVTT.
package codec

import (
	"bytes"
	"fmt"
)

// Format identifies one of the three wire formats handled at the proxy's edge.
type Format string

const (
	FormatJSON3 Format = "json3"
	FormatSRV3  Format = "srv3"
	FormatVTT   Format = "vtt"
)

// Cue is the unit of the internal pipeline: one timed subtitle record.
type Cue struct {
	StartMs int64
	EndMs   int64
	Text    string
}

// Codec parses raw bytes of one wire format into cues and renders cues back
// into that same format.
type Codec interface {
	Parse(data []byte) ([]Cue, error)
	Render(cues []Cue) ([]byte, error)
	Format() Format
}

// DefaultOverlapGapMs is the minimum gap SRV3 rendering enforces between
// adjacent cues when no positive gap is configured, so the player never
// draws two cues simultaneously.
const DefaultOverlapGapMs = 100

// For gets the codec implementation for a format.
func For(format Format, overlapGapMs int) (Codec, error) {
	switch format {
	case FormatJSON3:
		return &json3Codec{}, nil
	case FormatSRV3:
		return &srv3Codec{overlapGapMs: overlapGapMs}, nil
	case FormatVTT:
		return &vttCodec{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown format %q", format)
	}
}

// Sniff dispatches by Content-Type or document shape, per the upstream
// fetcher's contract: JSON3 if the body starts with '{', WebVTT if it starts
// with "WEBVTT", otherwise SRV3.
func Sniff(data []byte, contentType string) Format {
	switch {
	case bytes.Contains([]byte(contentType), []byte("json")):
		return FormatJSON3
	case bytes.Contains([]byte(contentType), []byte("vtt")):
		return FormatVTT
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	switch {
	case bytes.HasPrefix(trimmed, []byte("{")):
		return FormatJSON3
	case bytes.HasPrefix(trimmed, []byte("WEBVTT")):
		return FormatVTT
	default:
		return FormatSRV3
	}
}
