package domain

import (
	"context"
	"image"
)

// ContentType tags what a point was built from.
type ContentType string

const (
	ContentPageText  ContentType = "page_text"
	ContentPageImage ContentType = "page_image"
)

// Payload is the metadata stored next to every vector. Text is set for
// page_text points, FileName for page_image points.
type Payload struct {
	Class       int         `json:"class"`
	Subject     string      `json:"subject"`
	Chapter     int         `json:"chapter"`
	PageNumber  int         `json:"page_number"`
	ContentType ContentType `json:"content_type"`
	Text        string      `json:"text,omitempty"`
	FileName    string      `json:"file_name,omitempty"`
}

// Point is one vector record in a collection.
type Point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// SearchResult is a scored point returned by a similarity search.
type SearchResult struct {
	ID      string
	Score   float64
	Payload Payload
}

// Filter is an exact-match conjunction over payload fields.
// A nil Chapter means the search spans every chapter.
type Filter struct {
	Class       int
	Subject     string
	ContentType ContentType
	Chapter     *int
}

// Query is a single filtered nearest-neighbour request.
type Query struct {
	Vector []float32
	Filter Filter
	Limit  int
}

// TextEmbedder maps text into the text collection's vector space.
type TextEmbedder interface {
	Name() string
	Dimension() int
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ImageEmbedder maps images, and text queries aimed at images, into one
// shared cross-modal space.
type ImageEmbedder interface {
	Name() string
	Dimension() int
	EmbedImage(ctx context.Context, img image.Image) ([]float32, error)
	EmbedQueryForImages(ctx context.Context, text string) ([]float32, error)
}

// AnswerGenerator turns an assembled prompt into answer text.
type AnswerGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
