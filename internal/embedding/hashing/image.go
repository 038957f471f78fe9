package hashing

import (
	"context"
	"errors"
	"image"
)

// ImageEmbedder builds a colour-histogram vector for images and a hashed
// term vector for text queries. Both live in the same dimension, so the
// image collection can be exercised end to end without a CLIP server.
type ImageEmbedder struct {
	text *TextEmbedder
}

// NewImageEmbedder creates a histogram embedder producing vectors of length dim.
func NewImageEmbedder(dim int) *ImageEmbedder {
	return &ImageEmbedder{text: NewTextEmbedder(dim)}
}

func (e *ImageEmbedder) Name() string { return "hashing-histogram" }

func (e *ImageEmbedder) Dimension() int { return e.text.dimension }

// EmbedImage quantises each channel to 8 levels (512 colour cells) and folds
// the cell counts into the configured dimension.
func (e *ImageEmbedder) EmbedImage(_ context.Context, img image.Image) ([]float32, error) {
	dim := e.text.dimension
	if dim <= 0 {
		return nil, errors.New("hashing embedder has no dimension")
	}
	if img == nil {
		return nil, errors.New("nil image")
	}
	acc := make([]float64, dim)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			cell := int(r>>13)<<6 | int(g>>13)<<3 | int(bl>>13)
			acc[cell%dim]++
		}
	}
	return normalize(acc), nil
}

func (e *ImageEmbedder) EmbedQueryForImages(ctx context.Context, text string) ([]float32, error) {
	return e.text.EmbedText(ctx, text)
}
