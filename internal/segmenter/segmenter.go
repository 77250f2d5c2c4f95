// Package segmenter fuses fine-grained cues (often one word per event, as
// auto-captioning produces) into paragraph-level cues suitable for a
// bilingual subtitle overlay.
package segmenter

import (
	"regexp"
	"strings"

	"github.com/double-tu/youtube-subtitle-proxy/internal/codec"
)

// Params holds the segmenter's tunable thresholds.
type Params struct {
	MinDurationMs  int64
	MaxDurationMs  int64
	GapThresholdMs int64
	MaxChars       int
	MaxWords       int
	OverlapGapMs   int64
}

// DefaultParams matches spec.md §4.2's defaults.
func DefaultParams() Params {
	return Params{
		MinDurationMs:  3000,
		MaxDurationMs:  7000,
		GapThresholdMs: 1200,
		OverlapGapMs:   100,
	}
}

var sentenceEndRe = regexp.MustCompile(`[.!?…。！？]$`)

type paragraph struct {
	start, end int64
	pieces     []string
	chars      int
	words      int
}

func (p *paragraph) append(cue codec.Cue) {
	if len(p.pieces) == 0 {
		p.start = cue.StartMs
	}
	p.end = cue.EndMs
	p.pieces = append(p.pieces, cue.Text)
	p.chars += len([]rune(cue.Text))
	p.words += len(strings.Fields(cue.Text))
}

func (p *paragraph) emit() codec.Cue {
	return codec.Cue{
		StartMs: p.start,
		EndMs:   p.end,
		Text:    joinAndNormalize(p.pieces),
	}
}

// Segment fuses raw cues into paragraph-level cues per spec.md §4.2.
func Segment(cues []codec.Cue, p Params) []codec.Cue {
	var out []codec.Cue
	var cur *paragraph

	for _, cue := range cues {
		text := strings.TrimSpace(cue.Text)
		if text == "" {
			continue
		}
		cue.Text = text

		if cur == nil {
			cur = &paragraph{}
			cur.append(cue)
			continue
		}

		durationIfIncluded := cue.EndMs - cur.start
		gap := cue.StartMs - cur.end

		if durationIfIncluded >= p.MaxDurationMs || gap > p.GapThresholdMs {
			out = append(out, cur.emit())
			cur = &paragraph{}
			cur.append(cue)
			continue
		}

		cur.append(cue)

		if softBreak(cur, p) {
			out = append(out, cur.emit())
			cur = nil
		}
	}

	if cur != nil {
		tail := cur.emit()
		if len(out) > 0 && tail.EndMs-tail.StartMs < p.MinDurationMs {
			prev := out[len(out)-1]
			out[len(out)-1] = codec.Cue{
				StartMs: prev.StartMs,
				EndMs:   tail.EndMs,
				Text:    joinAndNormalize([]string{prev.Text, tail.Text}),
			}
		} else {
			out = append(out, tail)
		}
	}

	return out
}

// OptimizeTiming gives each cue at least 1000ms of display time where
// possible without overlapping the next cue, enforcing an absolute floor of
// 500ms per spec.md §4.2.
func OptimizeTiming(cues []codec.Cue) []codec.Cue {
	const minDisplayMs = 1000
	const floorMs = 500

	out := make([]codec.Cue, len(cues))
	copy(out, cues)

	for i := range out {
		duration := out[i].EndMs - out[i].StartMs
		if duration >= minDisplayMs {
			continue
		}

		desiredEnd := out[i].StartMs + minDisplayMs
		if i+1 < len(out) {
			maxEnd := out[i+1].StartMs - 100
			if desiredEnd > maxEnd {
				desiredEnd = maxEnd
			}
		}
		if desiredEnd > out[i].EndMs {
			out[i].EndMs = desiredEnd
		}
		if out[i].EndMs-out[i].StartMs < floorMs {
			out[i].EndMs = out[i].StartMs + floorMs
		}
	}

	return out
}

func softBreak(p *paragraph, params Params) bool {
	duration := p.end - p.start
	if duration < params.MinDurationMs {
		return false
	}

	last := p.pieces[len(p.pieces)-1]
	if sentenceEndRe.MatchString(last) {
		return true
	}
	if params.MaxChars > 0 && p.chars >= params.MaxChars {
		return true
	}
	if params.MaxWords > 0 && p.words >= params.MaxWords {
		return true
	}
	return false
}

// joinAndNormalize space-joins paragraph pieces, then strips spaces before
// closing punctuation and inside brackets/quotes, collapsing whitespace runs.
func joinAndNormalize(pieces []string) string {
	joined := strings.Join(pieces, " ")
	joined = collapseWhitespace(joined)
	joined = stripSpaceBeforeClosing(joined)
	joined = stripSpaceInsideBrackets(joined)
	return strings.TrimSpace(joined)
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return whitespaceRe.ReplaceAllString(s, " ")
}

var closingPunct = []string{",", ".", ";", ":", "!", "?", "。", "！", "？", "；", "："}

func stripSpaceBeforeClosing(s string) string {
	for _, p := range closingPunct {
		s = strings.ReplaceAll(s, " "+p, p)
	}
	return s
}

func stripSpaceInsideBrackets(s string) string {
	replacer := strings.NewReplacer(
		"( ", "(", " )", ")",
		"[ ", "[", " ]", "]",
		"\" ", "\"", // opening quote followed by space (heuristic, inner side)
	)
	return replacer.Replace(s)
}
