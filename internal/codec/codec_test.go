package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON3RoundTrip(t *testing.T) {
	cues := []Cue{
		{StartMs: 0, EndMs: 500, Text: "I"},
		{StartMs: 500, EndMs: 1000, Text: "have a dream."},
	}

	c, err := For(FormatJSON3, 0)
	require.NoError(t, err)

	data, err := c.Render(cues)
	require.NoError(t, err)

	parsed, err := c.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cues, parsed)
}

func TestJSON3ParseSkipsEmptySegments(t *testing.T) {
	c, err := For(FormatJSON3, 0)
	require.NoError(t, err)

	data := []byte(`{"events":[{"tStartMs":0,"dDurationMs":100},{"tStartMs":100,"dDurationMs":200,"segs":[{"utf8":"  "}]},{"tStartMs":300,"dDurationMs":100,"segs":[{"utf8":"hi"}]}]}`)
	cues, err := c.Parse(data)
	require.NoError(t, err)
	require.Len(t, cues, 1)
	assert.Equal(t, "hi", cues[0].Text)
}

func TestSRV3RoundTrip(t *testing.T) {
	cues := []Cue{
		{StartMs: 0, EndMs: 2000, Text: "hello\nhola"},
		{StartMs: 3000, EndMs: 5000, Text: "world\nmundo"},
	}

	c, err := For(FormatSRV3, 100)
	require.NoError(t, err)

	data, err := c.Render(cues)
	require.NoError(t, err)

	parsed, err := c.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cues, parsed)
}

func TestSRV3RenderClampsOverlap(t *testing.T) {
	cues := []Cue{
		{StartMs: 0, EndMs: 3000, Text: "a"},
		{StartMs: 1000, EndMs: 4000, Text: "b"},
	}

	c, err := For(FormatSRV3, 100)
	require.NoError(t, err)

	data, err := c.Render(cues)
	require.NoError(t, err)

	parsed, err := c.Parse(data)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	// p[0].t + p[0].d + overlapGapMs <= p[1].t
	assert.LessOrEqual(t, parsed[0].StartMs+(parsed[0].EndMs-parsed[0].StartMs)+100, parsed[1].StartMs)
}

func TestSRV3ParseSkipsNonFiniteTiming(t *testing.T) {
	c, err := For(FormatSRV3, 100)
	require.NoError(t, err)

	data := []byte(`<timedtext><body><p t="abc" d="100">broken</p><p t="0" d="500">ok</p></body></timedtext>`)
	cues, err := c.Parse(data)
	require.NoError(t, err)
	require.Len(t, cues, 1)
	assert.Equal(t, "ok", cues[0].Text)
}

func TestVTTRoundTrip(t *testing.T) {
	cues := []Cue{
		{StartMs: 0, EndMs: 1500, Text: "hello\nhola"},
		{StartMs: 61500, EndMs: 63000, Text: "world\nmundo"},
	}

	c, err := For(FormatVTT, 0)
	require.NoError(t, err)

	data, err := c.Render(cues)
	require.NoError(t, err)

	parsed, err := c.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cues, parsed)
}

func TestVTTParseShortTimestampForm(t *testing.T) {
	c, err := For(FormatVTT, 0)
	require.NoError(t, err)

	data := []byte("WEBVTT\n\n00:01.500 --> 00:03.000 align:start\nhi\n")
	cues, err := c.Parse(data)
	require.NoError(t, err)
	require.Len(t, cues, 1)
	assert.Equal(t, int64(1500), cues[0].StartMs)
	assert.Equal(t, int64(3000), cues[0].EndMs)
}

func TestSniff(t *testing.T) {
	assert.Equal(t, FormatJSON3, Sniff([]byte(`{"events":[]}`), ""))
	assert.Equal(t, FormatVTT, Sniff([]byte("WEBVTT\n\n"), ""))
	assert.Equal(t, FormatSRV3, Sniff([]byte("<timedtext></timedtext>"), ""))
	assert.Equal(t, FormatJSON3, Sniff([]byte("ignored"), "application/json; charset=utf-8"))
}
