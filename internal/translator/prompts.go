package translator

import (
	"fmt"
	"strings"
)

const summaryChunkPrompt = `Summarize the following transcript excerpt in %s (the SOURCE language — do not translate this summary). Preserve names, tone, and register. Be concise.

Transcript excerpt:
%s`

const summaryConsolidatePrompt = `The following are summaries of consecutive chunks of one transcript, all already in %s. Combine them into a single coherent summary in %s, preserving names, tone, and register.

Chunk summaries:
%s`

const glossaryChunkPrompt = `Extract a glossary of proper nouns, names, and recurring technical or domain-specific terms from the following transcript excerpt, mapping each %s term to its canonical %s translation.

Return ONLY a JSON array of objects: [{"source": "...", "target": "...", "note": "..."}]. The "note" field is optional.

Transcript excerpt:
%s`

const glossaryConsolidatePrompt = `The following are JSON glossary arrays extracted from consecutive chunks of one transcript. Merge them into a single glossary array, de-duplicating entries for the same source term and preferring the most complete translation.

Return ONLY a JSON array of objects: [{"source": "...", "target": "...", "note": "..."}].

Glossary chunks:
%s`

const batchTranslatePrompt = `You are translating subtitle lines from %s to %s.
%s%s%s%s%s
Translate ONLY the lines in CURRENT BATCH. Return exactly one JSON array of objects with this shape: [{"id": <line id>, "translation": "..."}]. The "id" values must exactly match the ids given in CURRENT BATCH. Return nothing else — no explanation, no markdown fences.`

const singleLinePrompt = `You are translating a single subtitle line from %s to %s.
%s%s
Line: %q

Return ONLY the translated line as plain text, nothing else.`

func summaryChunkSection(s string) string {
	if s == "" {
		return ""
	}
	return fmt.Sprintf("\nTranscript summary (source language, for context only):\n%s\n", s)
}

func glossarySection(items []GlossaryItem) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nGlossary (use these exact translations when these terms appear):\n")
	for _, item := range items {
		if item.Note != "" {
			fmt.Fprintf(&b, "- %q -> %q (%s)\n", item.Source, item.Target, item.Note)
		} else {
			fmt.Fprintf(&b, "- %q -> %q\n", item.Source, item.Target)
		}
	}
	return b.String()
}

func contextSection(label string, lines []indexedLine) string {
	if len(lines) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s:\n", label)
	for _, l := range lines {
		fmt.Fprintf(&b, "[%d] %s\n", l.Index, l.Text)
	}
	return b.String()
}

func currentBatchSection(lines []indexedLine) string {
	var b strings.Builder
	b.WriteString("\nCURRENT BATCH:\n")
	for _, l := range lines {
		fmt.Fprintf(&b, "[%d] %s\n", l.Index, l.Text)
	}
	return b.String()
}
