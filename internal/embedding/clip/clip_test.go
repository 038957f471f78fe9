package clip

import (
	"context"
	"encoding/json"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type captured struct {
	Model    string   `json:"model"`
	Input    []string `json:"input"`
	Modality string   `json:"modality"`
}

func newServer(t *testing.T, got *captured) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, got); err != nil {
			t.Errorf("bad body: %v", err)
		}
		_, _ = io.WriteString(w, `{"data":[{"embedding":[0.1,0.2,0.3,0.4]}]}`)
	}))
}

func TestClient_EmbedImageSendsDataURI(t *testing.T) {
	var got captured
	srv := newServer(t, &got)
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, Model: "openai/clip-vit-base-patch32", Dimension: 4})
	if err != nil {
		t.Fatal(err)
	}
	v, err := c.EmbedImage(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 4 {
		t.Fatalf("len = %d", len(v))
	}
	if got.Modality != "image" || len(got.Input) != 1 || !strings.HasPrefix(got.Input[0], "data:image/png;base64,") {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestClient_EmbedQueryUsesTextModality(t *testing.T) {
	var got captured
	srv := newServer(t, &got)
	defer srv.Close()

	c, _ := NewClient(Config{BaseURL: srv.URL, Model: "m", Dimension: 4})
	if _, err := c.EmbedQueryForImages(context.Background(), "diagram of the heart"); err != nil {
		t.Fatal(err)
	}
	if got.Modality != "text" || got.Input[0] != "diagram of the heart" {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestClient_EmptyDataIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[]}`)
	}))
	defer srv.Close()
	c, _ := NewClient(Config{BaseURL: srv.URL, Model: "m", Dimension: 4})
	if _, err := c.EmbedQueryForImages(context.Background(), "x"); err == nil {
		t.Fatal("expected error for empty data")
	}
}
