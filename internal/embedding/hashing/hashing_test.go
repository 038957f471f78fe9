package hashing

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"
)

func norm(v []float32) float64 {
	s := 0.0
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestTextEmbedder_DeterministicFixedDimension(t *testing.T) {
	e := NewTextEmbedder(384)
	ctx := context.Background()
	a, err := e.EmbedText(ctx, "Photosynthesis converts light energy into chemical energy.")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.EmbedText(ctx, "Photosynthesis converts light energy into chemical energy.")
	if len(a) != 384 {
		t.Fatalf("len = %d, want 384", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("embedding must be deterministic")
		}
	}
	if math.Abs(norm(a)-1) > 1e-5 {
		t.Fatalf("vector should be unit length, got %f", norm(a))
	}
}

func TestTextEmbedder_EmptyTextIsZeroVector(t *testing.T) {
	v, err := NewTextEmbedder(8).EmbedText(context.Background(), "the of and")
	if err != nil {
		t.Fatal(err)
	}
	if norm(v) != 0 {
		t.Fatal("only stopwords should produce a zero vector")
	}
}

func TestImageEmbedder_Histogram(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	e := NewImageEmbedder(512)
	v, err := e.EmbedImage(context.Background(), img)
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 512 {
		t.Fatalf("len = %d", len(v))
	}
	nonZero := 0
	for _, x := range v {
		if x != 0 {
			nonZero++
		}
	}
	if nonZero != 1 {
		t.Fatalf("single-colour image should fill one cell, filled %d", nonZero)
	}

	q, err := e.EmbedQueryForImages(context.Background(), "diagram of a leaf")
	if err != nil || len(q) != 512 {
		t.Fatalf("query embedding: len=%d err=%v", len(q), err)
	}
}
