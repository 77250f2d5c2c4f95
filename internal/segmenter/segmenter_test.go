package segmenter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/double-tu/youtube-subtitle-proxy/internal/codec"
)

func TestSegmentFusesSentenceOnSoftBreak(t *testing.T) {
	cues := []codec.Cue{
		{StartMs: 0, EndMs: 500, Text: "I"},
		{StartMs: 500, EndMs: 1000, Text: "have"},
		{StartMs: 1000, EndMs: 1500, Text: "a"},
		{StartMs: 1500, EndMs: 2000, Text: "dream."},
		{StartMs: 4000, EndMs: 4500, Text: "Next"},
		{StartMs: 4500, EndMs: 5000, Text: "line"},
	}

	p := Params{MinDurationMs: 0, MaxDurationMs: 7000, GapThresholdMs: 1000}
	out := Segment(cues, p)

	require.Len(t, out, 2)
	assert.Equal(t, "I have a dream.", out[0].Text)
	assert.Equal(t, "Next line", out[1].Text)
}

func TestSegmentDurationBounds(t *testing.T) {
	var cues []codec.Cue
	for i := int64(0); i < 40; i++ {
		cues = append(cues, codec.Cue{StartMs: i * 300, EndMs: i*300 + 300, Text: "word"})
	}

	p := DefaultParams()
	out := Segment(cues, p)

	for i, cue := range out {
		duration := cue.EndMs - cue.StartMs
		if i == len(out)-1 {
			// the last segment may have absorbed a short tail and so exceed
			// MaxDurationMs
			continue
		}
		assert.GreaterOrEqual(t, duration, p.MinDurationMs)
		assert.LessOrEqual(t, duration, p.MaxDurationMs)
	}
}

func TestSegmentHardBreakOnGap(t *testing.T) {
	cues := []codec.Cue{
		{StartMs: 0, EndMs: 500, Text: "hello"},
		{StartMs: 5000, EndMs: 5500, Text: "later"},
	}
	// MinDurationMs is 0 so the short second paragraph is not folded back
	// into the first as a tail.
	p := Params{MinDurationMs: 0, MaxDurationMs: 7000, GapThresholdMs: 1200}
	out := Segment(cues, p)
	require.Len(t, out, 2)
}

func TestSegmentTailFoldsIntoPrevious(t *testing.T) {
	cues := []codec.Cue{
		{StartMs: 0, EndMs: 1500, Text: "A complete"},
		{StartMs: 1500, EndMs: 3000, Text: "sentence."},
		{StartMs: 3100, EndMs: 3300, Text: "tiny"},
	}
	p := Params{MinDurationMs: 3000, MaxDurationMs: 7000, GapThresholdMs: 1200}
	out := Segment(cues, p)
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Text, "tiny")
}

func TestJoinAndNormalizeStripsSpaceBeforePunctuation(t *testing.T) {
	got := joinAndNormalize([]string{"hello", ",", "world", "."})
	assert.Equal(t, "hello, world.", got)
}

func TestOptimizeTimingEnforcesFloor(t *testing.T) {
	cues := []codec.Cue{
		{StartMs: 0, EndMs: 100, Text: "a"},
		{StartMs: 5000, EndMs: 5100, Text: "b"},
	}
	out := OptimizeTiming(cues)
	assert.GreaterOrEqual(t, out[0].EndMs-out[0].StartMs, int64(500))
}

func TestOptimizeTimingDoesNotOverlapNext(t *testing.T) {
	cues := []codec.Cue{
		{StartMs: 0, EndMs: 100, Text: "a"},
		{StartMs: 500, EndMs: 1000, Text: "b"},
	}
	out := OptimizeTiming(cues)
	assert.LessOrEqual(t, out[0].EndMs, out[1].StartMs)
}
