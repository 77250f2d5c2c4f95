package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/double-tu/youtube-subtitle-proxy/internal/codec"
)

// GlossaryItem is one term mapping extracted from the transcript
// (spec.md §4.6 "glossary").
type GlossaryItem struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Note   string `json:"note,omitempty"`
}

// chunkText splits the joined transcript into chunks no larger than
// maxChars, breaking on cue boundaries so a single cue is never split.
func chunkText(cues []codec.Cue, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = 8000
	}

	var chunks []string
	var cur strings.Builder
	for _, cue := range cues {
		if cur.Len() > 0 && cur.Len()+len(cue.Text)+1 > maxChars {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString(" ")
		}
		cur.WriteString(cue.Text)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// summarize produces a whole-transcript summary in the source language,
// map-reducing over chunks for long transcripts (spec.md §4.6 "guidance").
// A failure here is non-fatal to the caller: it returns an error that the
// caller should log and proceed without a summary.
func summarize(ctx context.Context, client Client, cues []codec.Cue, sourceLang string, maxTokens, chunkChars int) (string, error) {
	chunks := chunkText(cues, chunkChars)
	if len(chunks) == 0 {
		return "", nil
	}
	if len(chunks) == 1 {
		return client.Complete(ctx, "", fmt.Sprintf(summaryChunkPrompt, sourceLang, chunks[0]), maxTokens)
	}

	partials := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		s, err := client.Complete(ctx, "", fmt.Sprintf(summaryChunkPrompt, sourceLang, chunk), maxTokens)
		if err != nil {
			return "", err
		}
		partials = append(partials, s)
	}

	combined := strings.Join(partials, "\n---\n")
	return client.Complete(ctx, "", fmt.Sprintf(summaryConsolidatePrompt, sourceLang, sourceLang, combined), maxTokens)
}

// extractGlossary extracts a source->target term glossary, map-reducing over
// chunks for long transcripts. Like summarize, failure here is non-fatal.
func extractGlossary(ctx context.Context, client Client, cues []codec.Cue, sourceLang, targetLang string, maxTokens, chunkChars int) ([]GlossaryItem, error) {
	chunks := chunkText(cues, chunkChars)
	if len(chunks) == 0 {
		return nil, nil
	}

	if len(chunks) == 1 {
		raw, err := client.Complete(ctx, "", fmt.Sprintf(glossaryChunkPrompt, sourceLang, targetLang, chunks[0]), maxTokens)
		if err != nil {
			return nil, err
		}
		return parseGlossary(raw)
	}

	var partialsRaw []string
	for _, chunk := range chunks {
		raw, err := client.Complete(ctx, "", fmt.Sprintf(glossaryChunkPrompt, sourceLang, targetLang, chunk), maxTokens)
		if err != nil {
			return nil, err
		}
		partialsRaw = append(partialsRaw, raw)
	}

	combined := strings.Join(partialsRaw, "\n---\n")
	raw, err := client.Complete(ctx, "", fmt.Sprintf(glossaryConsolidatePrompt, combined), maxTokens)
	if err != nil {
		return nil, err
	}
	return parseGlossary(raw)
}

func parseGlossary(raw string) ([]GlossaryItem, error) {
	arr, err := extractJSONArray(raw)
	if err != nil {
		return nil, err
	}
	var items []GlossaryItem
	if err := json.Unmarshal([]byte(arr), &items); err != nil {
		return nil, err
	}
	return items, nil
}
