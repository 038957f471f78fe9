package ingest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"textbookrag/internal/batcher"
	"textbookrag/internal/domain"
	"textbookrag/internal/source"
)

// TextPipeline embeds page_<N>.txt files into the text collection.
type TextPipeline struct {
	runner
	embedder domain.TextEmbedder
	minChars int
}

func NewTextPipeline(layout source.Layout, sink batcher.Sink, embedder domain.TextEmbedder, minChars int, opts Options) *TextPipeline {
	p := &TextPipeline{embedder: embedder, minChars: minChars}
	p.runner = runner{layout: layout, sink: sink, opts: opts, kind: "text", list: layout.TextPages, embed: p.embedPage}
	return p
}

// Run walks every chapter, embeds admitted pages, and flushes the final
// partial batch.
func (p *TextPipeline) Run(ctx context.Context) (*Report, error) {
	return p.run(ctx)
}

func (p *TextPipeline) embedPage(ctx context.Context, it source.Item) (domain.Payload, []float32, string, error) {
	data, err := os.ReadFile(it.Path)
	if err != nil {
		return domain.Payload{}, nil, "unreadable: " + err.Error(), nil
	}
	text := strings.TrimSpace(string(data))
	if n := utf8.RuneCountInString(text); n < p.minChars {
		return domain.Payload{}, nil, fmt.Sprintf("text too short (%d < %d chars)", n, p.minChars), nil
	}
	vec, err := p.embedder.EmbedText(ctx, text)
	if err != nil {
		return domain.Payload{}, nil, "", fmt.Errorf("embed text: %w", err)
	}
	payload := p.payload(it, domain.ContentPageText)
	payload.Text = text
	return payload, vec, "", nil
}
