package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/double-tu/youtube-subtitle-proxy/internal/codec"
)

// indexedLine pairs a cue's text with its absolute position in the full
// transcript, so batches can be translated out of order and still be
// written back to the right output slot.
type indexedLine struct {
	Index int
	Text  string
}

// Config holds the context.*/summary.*/glossary.* knobs from
// internal/config.Config that shape a Translate call (spec.md §6). Summary
// and glossary calls use MaxTokens; config's SummaryMaxTokens and
// GlossaryMaxTokens are not carried here and have no effect.
type Config struct {
	SummaryEnabled  bool
	SummaryMaxChars int
	SummaryChunkChars int

	GlossaryEnabled   bool
	GlossaryChunkChars int

	ContextEnabled     bool
	BatchSize          int
	PrecedingLines     int
	FollowingLines     int
	Concurrency        int
	BatchRetries       int
	MaxTokens          int

	SimpleConcurrency int
	SimpleWaveDelayMs int
}

// DefaultConfig mirrors the defaults in internal/config.Config.
func DefaultConfig() Config {
	return Config{
		SummaryEnabled:     true,
		SummaryMaxChars:    6000,
		SummaryChunkChars:  8000,
		GlossaryEnabled:    true,
		GlossaryChunkChars: 8000,
		ContextEnabled:     true,
		BatchSize:          8,
		PrecedingLines:     3,
		FollowingLines:     2,
		Concurrency:        4,
		BatchRetries:       2,
		MaxTokens:          1024,
		SimpleConcurrency:  4,
		SimpleWaveDelayMs:  200,
	}
}

// Translator orchestrates guidance generation and batched translation.
type Translator struct {
	client Client
	cfg    Config
}

// New builds a Translator around client using cfg.
func New(client Client, cfg Config) *Translator {
	return &Translator{client: client, cfg: cfg}
}

type batchResponseItem struct {
	ID          int    `json:"id"`
	Translation string `json:"translation"`
}

// Translate produces a parallel cue list whose text is
// "original\ntranslation", per spec.md §4.6/§4.8.
func (t *Translator) Translate(ctx context.Context, cues []codec.Cue, sourceLang, targetLang string) ([]codec.Cue, error) {
	if len(cues) == 0 {
		return nil, nil
	}

	var summary string
	var glossary []GlossaryItem

	if t.cfg.SummaryEnabled {
		s, err := summarize(ctx, t.client, cues, sourceLang, t.cfg.MaxTokens, t.cfg.SummaryChunkChars)
		if err != nil {
			log.Printf("translator: summary generation failed, continuing without it: %v", err)
		} else {
			summary = s
		}
	}

	if t.cfg.GlossaryEnabled {
		g, err := extractGlossary(ctx, t.client, cues, sourceLang, targetLang, t.cfg.MaxTokens, t.cfg.GlossaryChunkChars)
		if err != nil {
			log.Printf("translator: glossary extraction failed, continuing without it: %v", err)
		} else {
			glossary = g
		}
	}

	var translations []string
	var err error
	if t.cfg.ContextEnabled {
		translations, err = t.translateWithContext(ctx, cues, sourceLang, targetLang, summary, glossary)
	} else {
		translations, err = t.translateSimple(ctx, cues, sourceLang, targetLang)
	}
	if err != nil {
		return nil, err
	}

	out := make([]codec.Cue, len(cues))
	for i, cue := range cues {
		out[i] = codec.Cue{
			StartMs: cue.StartMs,
			EndMs:   cue.EndMs,
			Text:    cue.Text + "\n" + translations[i],
		}
	}
	return out, nil
}

// translateWithContext dispatches batches across a bounded worker pool,
// writing each batch's results into fixed output slots so completion order
// never affects output order (spec.md §4.6 "Batched translation").
func (t *Translator) translateWithContext(ctx context.Context, cues []codec.Cue, sourceLang, targetLang, summary string, glossary []GlossaryItem) ([]string, error) {
	lines := make([]indexedLine, len(cues))
	for i, c := range cues {
		lines[i] = indexedLine{Index: i, Text: c.Text}
	}

	batchSize := t.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 8
	}

	type batch struct {
		start, end int
	}
	var batches []batch
	for start := 0; start < len(lines); start += batchSize {
		end := start + batchSize
		if end > len(lines) {
			end = len(lines)
		}
		batches = append(batches, batch{start: start, end: end})
	}

	out := make([]string, len(lines))

	concurrency := t.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, b := range batches {
		b := b
		g.Go(func() error {
			current := lines[b.start:b.end]
			preceding := precedingWindow(lines, b.start, t.cfg.PrecedingLines)
			following := followingWindow(lines, b.end, t.cfg.FollowingLines)

			results, err := t.translateBatch(gctx, sourceLang, targetLang, summary, glossary, preceding, current, following)
			if err != nil {
				log.Printf("translator: batch [%d,%d) failed after retries, falling back to per-line: %v", b.start, b.end, err)
				results = t.translateBatchPerLine(gctx, sourceLang, targetLang, summary, glossary, current)
			}
			for i, r := range results {
				out[b.start+i] = r
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

func precedingWindow(lines []indexedLine, start, n int) []indexedLine {
	if n <= 0 {
		return nil
	}
	from := start - n
	if from < 0 {
		from = 0
	}
	return lines[from:start]
}

func followingWindow(lines []indexedLine, end, n int) []indexedLine {
	if n <= 0 {
		return nil
	}
	to := end + n
	if to > len(lines) {
		to = len(lines)
	}
	return lines[end:to]
}

// translateBatch issues the batch prompt and retries up to BatchRetries on
// malformed or incomplete responses (spec.md §4.6).
func (t *Translator) translateBatch(ctx context.Context, sourceLang, targetLang, summary string, glossary []GlossaryItem, preceding, current, following []indexedLine) ([]string, error) {
	prompt := fmt.Sprintf(batchTranslatePrompt,
		sourceLang, targetLang,
		summaryChunkSection(summary),
		glossarySection(glossary),
		contextSection("PRECEDING CONTEXT", preceding),
		contextSection("FOLLOWING CONTEXT (for reference only, do not translate)", following),
		currentBatchSection(current),
	)

	retries := t.cfg.BatchRetries
	if retries < 0 {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		resp, err := t.client.Complete(ctx, "", prompt, t.cfg.MaxTokens)
		if err != nil {
			lastErr = err
			continue
		}
		results, err := parseBatchResponse(resp, current)
		if err != nil {
			lastErr = err
			continue
		}
		return results, nil
	}
	return nil, lastErr
}

func parseBatchResponse(raw string, current []indexedLine) ([]string, error) {
	arr, err := extractJSONArray(raw)
	if err != nil {
		return nil, err
	}

	var items []batchResponseItem
	if err := json.Unmarshal([]byte(arr), &items); err != nil {
		return nil, fmt.Errorf("translator: batch response is not a JSON array of {id,translation}: %w", err)
	}
	if len(items) != len(current) {
		return nil, fmt.Errorf("translator: batch response has %d items, expected %d", len(items), len(current))
	}

	byID := make(map[int]string, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Translation) == "" {
			return nil, fmt.Errorf("translator: batch response has empty translation for id %d", item.ID)
		}
		byID[item.ID] = item.Translation
	}

	results := make([]string, len(current))
	for i, l := range current {
		tr, ok := byID[l.Index]
		if !ok {
			return nil, fmt.Errorf("translator: batch response missing id %d", l.Index)
		}
		results[i] = tr
	}
	return results, nil
}

// translateBatchPerLine is the last-resort fallback when a batch exhausts
// its retries: each line is translated individually (including summary/
// glossary context, per spec.md §4.6 "each original line is translated with
// a single-line prompt including summary/glossary if present"), and a line
// that still fails keeps its original text verbatim.
func (t *Translator) translateBatchPerLine(ctx context.Context, sourceLang, targetLang, summary string, glossary []GlossaryItem, current []indexedLine) []string {
	results := make([]string, len(current))
	for i, l := range current {
		tr, err := t.translateSingleLine(ctx, sourceLang, targetLang, summary, glossary, l.Text)
		if err != nil {
			log.Printf("translator: single-line fallback failed for index %d, using original text: %v", l.Index, err)
			results[i] = l.Text
			continue
		}
		results[i] = tr
	}
	return results
}

func (t *Translator) translateSingleLine(ctx context.Context, sourceLang, targetLang, summary string, glossary []GlossaryItem, text string) (string, error) {
	prompt := fmt.Sprintf(singleLinePrompt, sourceLang, targetLang, summaryChunkSection(summary), glossarySection(glossary), text)
	resp, err := t.client.Complete(ctx, "", prompt, t.cfg.MaxTokens)
	if err != nil {
		return "", err
	}
	resp = strings.TrimSpace(resp)
	if resp == "" {
		return "", errEmptyResponse
	}
	return resp, nil
}
