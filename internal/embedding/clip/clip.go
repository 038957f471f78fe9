package clip

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Client embeds images and text queries into a shared CLIP space through an
// HTTP embeddings server (infinity and similar) that accepts image data URIs.
type Client struct {
	baseURL   string
	apiKey    string
	model     string
	dimension int
	client    *http.Client
}

type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Dimension int
	Timeout   time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("clip dimension must be positive, got %d", cfg.Dimension)
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("clip base url is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("clip model is required")
	}
	t := cfg.Timeout
	if t == 0 {
		t = 60 * time.Second
	}
	key := ""
	if cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    key,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		client:    &http.Client{Timeout: t},
	}, nil
}

func (c *Client) Name() string { return "clip:" + c.model }

func (c *Client) Dimension() int { return c.dimension }

// EmbedImage encodes img as PNG and sends it as a base64 data URI.
func (c *Client) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
	return c.embed(ctx, uri, "image")
}

// EmbedQueryForImages embeds a question with the text tower of the same model.
func (c *Client) EmbedQueryForImages(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text, "text")
}

func (c *Client) embed(ctx context.Context, input, modality string) ([]float32, error) {
	body, _ := json.Marshal(map[string]any{
		"model":    c.model,
		"input":    []string{input},
		"modality": modality,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("clip %s request: %w", modality, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read clip response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("clip %s request failed: HTTP %d: %s", modality, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode clip response: %w", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return out.Data[0].Embedding, nil
}
