package codec

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type srv3Codec struct {
	overlapGapMs int
}

func (c *srv3Codec) Format() Format { return FormatSRV3 }

// Parse walks the <timedtext><body><p t="…" d="…">...</p></body></timedtext>
// document with encoding/xml's tokenizer instead of regexps, so nested <s>
// spans, <br/> line breaks, and entity/CDATA decoding all go through the
// standard library rather than ad hoc pattern matching.
func (c *srv3Codec) Parse(data []byte) ([]Cue, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var cues []Cue
	var inParagraph bool
	var t, d int64
	var tOK, dOK bool
	var text strings.Builder

	flush := func() {
		if inParagraph && tOK && dOK {
			if trimmed := strings.TrimSpace(text.String()); trimmed != "" {
				cues = append(cues, Cue{StartMs: t, EndMs: t + d, Text: trimmed})
			}
		}
		inParagraph, tOK, dOK = false, false, false
		text.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("codec: srv3 parse: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "p":
				flush()
				inParagraph = true
				for _, attr := range el.Attr {
					switch attr.Name.Local {
					case "t":
						if v, err := strconv.ParseInt(attr.Value, 10, 64); err == nil {
							t, tOK = v, true
						}
					case "d":
						if v, err := strconv.ParseInt(attr.Value, 10, 64); err == nil {
							d, dOK = v, true
						}
					}
				}
			case "br":
				if inParagraph {
					text.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inParagraph {
				text.Write(el)
			}
		case xml.EndElement:
			if el.Name.Local == "p" {
				flush()
			}
		}
	}
	flush()

	return cues, nil
}

// Render embeds each cue as <p t d> with two <s> spans (original, translation)
// separated by an explicit line break entity. Adjacent cues' durations are
// clamped so the player never draws two cues simultaneously.
func (c *srv3Codec) Render(cues []Cue) ([]byte, error) {
	gap := int64(c.overlapGapMs)
	if gap <= 0 {
		gap = DefaultOverlapGapMs
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8" ?><timedtext format="3">`)
	b.WriteString(`<body>`)

	for i, cue := range cues {
		d := cue.EndMs - cue.StartMs
		if i+1 < len(cues) {
			maxD := cues[i+1].StartMs - gap - cue.StartMs
			if d > maxD {
				d = maxD
			}
		}
		if d < 0 {
			d = 0
		}

		lines := strings.SplitN(cue.Text, "\n", 2)
		fmt.Fprintf(&b, `<p t="%d" d="%d">`, cue.StartMs, d)
		for i, line := range lines {
			if i > 0 {
				b.WriteString("&#x0A;")
			}
			b.WriteString(`<s>`)
			if err := xml.EscapeText(&b, []byte(line)); err != nil {
				return nil, fmt.Errorf("codec: srv3 render: %w", err)
			}
			b.WriteString(`</s>`)
		}
		b.WriteString(`</p>`)
	}

	b.WriteString(`</body></timedtext>`)
	return []byte(b.String()), nil
}
