package codec

import (
	"encoding/json"
	"strings"
)

type json3Codec struct{}

func (c *json3Codec) Format() Format { return FormatJSON3 }

type json3Document struct {
	Events []json3Event `json:"events"`
}

type json3Event struct {
	TStartMs     int64          `json:"tStartMs"`
	DDurationMs  int64          `json:"dDurationMs"`
	Segs         []json3Segment `json:"segs"`
}

type json3Segment struct {
	Utf8 string `json:"utf8"`
}

func (c *json3Codec) Parse(data []byte) ([]Cue, error) {
	var doc json3Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	cues := make([]Cue, 0, len(doc.Events))
	for _, ev := range doc.Events {
		if len(ev.Segs) == 0 {
			continue
		}
		var b strings.Builder
		for _, seg := range ev.Segs {
			b.WriteString(seg.Utf8)
		}
		text := strings.TrimSpace(b.String())
		if text == "" {
			continue
		}
		cues = append(cues, Cue{
			StartMs: ev.TStartMs,
			EndMs:   ev.TStartMs + ev.DDurationMs,
			Text:    text,
		})
	}
	return cues, nil
}

func (c *json3Codec) Render(cues []Cue) ([]byte, error) {
	doc := json3Document{Events: make([]json3Event, 0, len(cues))}
	for _, cue := range cues {
		doc.Events = append(doc.Events, json3Event{
			TStartMs:    cue.StartMs,
			DDurationMs: cue.EndMs - cue.StartMs,
			Segs:        []json3Segment{{Utf8: cue.Text}},
		})
	}
	return json.Marshal(doc)
}
