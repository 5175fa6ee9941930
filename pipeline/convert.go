package pipeline

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/textsplitter"
)

// convertToText extracts plain text from raw page content. HTML is run
// through the langchaingo HTML loader; anything else passes through as-is.
func convertToText(ctx context.Context, raw string) (string, error) {
	if !looksLikeHTML(raw) {
		return strings.TrimSpace(raw), nil
	}

	loader := documentloaders.NewHTML(strings.NewReader(raw))
	docs, err := loader.Load(ctx)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if text := strings.TrimSpace(doc.PageContent); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// looksLikeHTML sniffs for markup in the first kilobyte of content.
func looksLikeHTML(raw string) bool {
	head := strings.ToLower(raw)
	if len(head) > 1024 {
		head = head[:1024]
	}
	return strings.Contains(head, "<html") ||
		strings.Contains(head, "<!doctype html") ||
		strings.Contains(head, "<body") ||
		strings.Contains(head, "<div") ||
		strings.Contains(head, "<p>")
}

// chunkText splits text into overlapping chunks sized for embedding.
func chunkText(text string, chunkSize, chunkOverlap int) ([]string, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)
	chunks, err := splitter.SplitText(text)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if trimmed := strings.TrimSpace(chunk); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out, nil
}
