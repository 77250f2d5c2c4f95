package translator

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/double-tu/youtube-subtitle-proxy/internal/codec"
)

// mockClient dispatches to a caller-supplied function so each test can shape
// the fake LLM's behavior precisely.
type mockClient struct {
	calls int32
	fn    func(systemPrompt, userPrompt string, maxTokens int) (string, error)
}

func (m *mockClient) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	atomic.AddInt32(&m.calls, 1)
	return m.fn(systemPrompt, userPrompt, maxTokens)
}

func noGuidanceConfig() Config {
	cfg := DefaultConfig()
	cfg.SummaryEnabled = false
	cfg.GlossaryEnabled = false
	return cfg
}

func cuesOf(texts ...string) []codec.Cue {
	cues := make([]codec.Cue, len(texts))
	for i, t := range texts {
		cues[i] = codec.Cue{StartMs: int64(i * 1000), EndMs: int64(i*1000 + 900), Text: t}
	}
	return cues
}

func TestTranslateWithContextHappyPath(t *testing.T) {
	cfg := noGuidanceConfig()
	cfg.BatchSize = 2
	cfg.Concurrency = 2

	client := &mockClient{fn: func(_, userPrompt string, _ int) (string, error) {
		// Echo back a translation derived on the ids present in CURRENT BATCH
		// only (preceding/following context also print "[n]" tags and must
		// not be mistaken for the batch to answer).
		start := strings.Index(userPrompt, "CURRENT BATCH:")
		end := strings.Index(userPrompt, "Translate ONLY")
		require.True(t, start >= 0 && end > start)
		section := userPrompt[start:end]

		var ids []int
		for i := 0; i < 10; i++ {
			if strings.Contains(section, fmt.Sprintf("[%d]", i)) {
				ids = append(ids, i)
			}
		}
		var items []string
		for _, id := range ids {
			items = append(items, fmt.Sprintf(`{"id": %d, "translation": "T%d"}`, id, id))
		}
		return "[" + joinComma(items) + "]", nil
	}}

	tr := New(client, cfg)
	out, err := tr.Translate(context.Background(), cuesOf("a", "b", "c", "d", "e"), "en", "fr")
	require.NoError(t, err)
	require.Len(t, out, 5)
	for i, c := range out {
		assert.Equal(t, fmt.Sprintf("%s\nT%d", string(rune('a'+i)), i), c.Text)
	}
}

func TestTranslateBatchRetriesThenFallsBackPerLine(t *testing.T) {
	cfg := noGuidanceConfig()
	cfg.BatchSize = 2
	cfg.Concurrency = 1
	cfg.BatchRetries = 1

	client := &mockClient{fn: func(_, userPrompt string, _ int) (string, error) {
		if strings.Contains(userPrompt, "CURRENT BATCH") && strings.Contains(userPrompt, "[0]") {
			// Always malformed for the batch call containing line 0.
			return "not json", nil
		}
		// Single-line fallback prompts contain "Line:" instead.
		return "translated-line", nil
	}}

	tr := New(client, cfg)
	out, err := tr.Translate(context.Background(), cuesOf("a", "b"), "en", "fr")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a\ntranslated-line", out[0].Text)
	assert.Equal(t, "b\ntranslated-line", out[1].Text)
}

func TestTranslateSimpleModeUsesOriginalOnFailure(t *testing.T) {
	cfg := noGuidanceConfig()
	cfg.ContextEnabled = false
	cfg.SimpleConcurrency = 2
	cfg.SimpleWaveDelayMs = 1

	client := &mockClient{fn: func(_, userPrompt string, _ int) (string, error) {
		if strings.Contains(userPrompt, `"fail"`) {
			return "", mockErr{}
		}
		return "ok-translation", nil
	}}

	tr := New(client, cfg)
	out, err := tr.Translate(context.Background(), cuesOf("fail", "pass"), "en", "fr")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "fail\nfail", out[0].Text)
	assert.Equal(t, "pass\nok-translation", out[1].Text)
}

func TestSummarizeMapReducesOverChunks(t *testing.T) {
	var calls []string
	client := &mockClient{fn: func(_, userPrompt string, _ int) (string, error) {
		calls = append(calls, userPrompt)
		return "partial-or-final-summary", nil
	}}

	// Each cue exceeds the 10-char chunk limit, so each becomes its own chunk.
	cues := cuesOf("first line of text", "second line of text")
	_, err := summarize(context.Background(), client, cues, "en", 0, 10)
	require.NoError(t, err)
	// Two chunk summaries plus one consolidation call.
	assert.Len(t, calls, 3)
}

func TestExtractGlossaryParsesJSONArray(t *testing.T) {
	client := &mockClient{fn: func(_, _ string, _ int) (string, error) {
		return "```json\n[{\"source\": \"Foo\", \"target\": \"Bar\"}]\n```", nil
	}}

	items, err := extractGlossary(context.Background(), client, cuesOf("Foo appears here"), "en", "fr", 0, 8000)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Foo", items[0].Source)
	assert.Equal(t, "Bar", items[0].Target)
}

func TestGuidanceFailureIsNonFatal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ContextEnabled = false
	cfg.SimpleWaveDelayMs = 1

	client := &mockClient{fn: func(_, userPrompt string, _ int) (string, error) {
		if strings.Contains(userPrompt, "Summarize") || strings.Contains(userPrompt, "Extract a glossary") {
			return "", mockErr{}
		}
		return "ok", nil
	}}

	tr := New(client, cfg)
	out, err := tr.Translate(context.Background(), cuesOf("hello"), "en", "fr")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "hello\nok", out[0].Text)
}

type mockErr struct{}

func (mockErr) Error() string { return "mock failure" }

func joinComma(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ", "
		}
		out += item
	}
	return out
}
