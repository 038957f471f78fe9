package ingest

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"textbookrag/internal/batcher"
	"textbookrag/internal/domain"
	"textbookrag/internal/source"
)

// ImagePipeline embeds page images into the image collection.
type ImagePipeline struct {
	runner
	embedder  domain.ImageEmbedder
	minWidth  int
	minHeight int
}

func NewImagePipeline(layout source.Layout, sink batcher.Sink, embedder domain.ImageEmbedder, minWidth, minHeight int, opts Options) *ImagePipeline {
	p := &ImagePipeline{embedder: embedder, minWidth: minWidth, minHeight: minHeight}
	p.runner = runner{layout: layout, sink: sink, opts: opts, kind: "image", list: layout.Images, embed: p.embedImage}
	return p
}

// Run walks every chapter, embeds decodable images of sufficient size, and
// flushes the final partial batch.
func (p *ImagePipeline) Run(ctx context.Context) (*Report, error) {
	return p.run(ctx)
}

func (p *ImagePipeline) embedImage(ctx context.Context, it source.Item) (domain.Payload, []float32, string, error) {
	img, skip := decodeImage(it.Path)
	if skip != "" {
		return domain.Payload{}, nil, skip, nil
	}
	b := img.Bounds()
	if b.Dx() < p.minWidth || b.Dy() < p.minHeight {
		return domain.Payload{}, nil, fmt.Sprintf("image too small (%dx%d)", b.Dx(), b.Dy()), nil
	}
	vec, err := p.embedder.EmbedImage(ctx, toRGBA(img))
	if err != nil {
		return domain.Payload{}, nil, "", fmt.Errorf("embed image: %w", err)
	}
	payload := p.payload(it, domain.ContentPageImage)
	payload.FileName = it.FileName
	return payload, vec, "", nil
}

// decodeImage treats unreadable and corrupt files alike: both are skipped.
func decodeImage(path string) (image.Image, string) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Sprintf("cannot open: %v", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Sprintf("cannot decode: %v", err)
	}
	return img, ""
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
