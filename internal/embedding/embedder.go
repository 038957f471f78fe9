package embedding

import (
	"fmt"
	"time"

	"textbookrag/internal/config"
	"textbookrag/internal/domain"
	"textbookrag/internal/embedding/clip"
	"textbookrag/internal/embedding/hashing"
	"textbookrag/internal/embedding/openai"
)

// Models bundles the embedders for the two collections. Text goes with the
// text collection; Image (and its query tower) goes with the image collection.
type Models struct {
	Text  domain.TextEmbedder
	Image domain.ImageEmbedder
}

// New builds the embedders selected in cfg. Each embedder is sized to its
// collection's declared dimension.
func New(cfg *config.AppConfig) (*Models, error) {
	text, err := newText(cfg)
	if err != nil {
		return nil, err
	}
	img, err := newImage(cfg)
	if err != nil {
		return nil, err
	}
	return &Models{Text: text, Image: img}, nil
}

func newText(cfg *config.AppConfig) (domain.TextEmbedder, error) {
	dim := cfg.Collections.Text.Dimension
	switch cfg.Embedder.Text {
	case "hashing":
		return hashing.NewTextEmbedder(dim), nil
	case "openai":
		o := cfg.Embedder.OpenAI
		if o == nil {
			return nil, fmt.Errorf("embedder.openai config is required")
		}
		return openai.NewClient(openai.Config{
			BaseURL:   o.BaseURL,
			APIKeyEnv: o.APIKeyEnv,
			Model:     o.Model,
			Dimension: dim,
			Timeout:   time.Duration(o.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown text embedder: %s", cfg.Embedder.Text)
	}
}

func newImage(cfg *config.AppConfig) (domain.ImageEmbedder, error) {
	dim := cfg.Collections.Image.Dimension
	switch cfg.Embedder.Image {
	case "hashing":
		return hashing.NewImageEmbedder(dim), nil
	case "clip":
		c := cfg.Embedder.CLIP
		if c == nil {
			return nil, fmt.Errorf("embedder.clip config is required")
		}
		return clip.NewClient(clip.Config{
			BaseURL:   c.BaseURL,
			APIKeyEnv: c.APIKeyEnv,
			Model:     c.Model,
			Dimension: dim,
			Timeout:   time.Duration(c.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown image embedder: %s", cfg.Embedder.Image)
	}
}
