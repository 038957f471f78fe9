package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	t.Setenv("QDRANT_URL", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Collections.Text.Name != "text_pages" || cfg.Collections.Text.Dimension != 384 {
		t.Errorf("text collection = %+v", cfg.Collections.Text)
	}
	if cfg.Collections.Image.Name != "page_images" || cfg.Collections.Image.Dimension != 512 {
		t.Errorf("image collection = %+v", cfg.Collections.Image)
	}
	if cfg.Ingest.TextBatchSize != 50 || cfg.Ingest.ImageBatchSize != 16 || cfg.Ingest.MinTextChars != 50 {
		t.Errorf("ingest = %+v", cfg.Ingest)
	}
	if cfg.Ingest.MinImageWidth != 120 || cfg.Ingest.MinImageHeight != 120 || cfg.Ingest.IDStrategy != "deterministic" {
		t.Errorf("ingest = %+v", cfg.Ingest)
	}
	if cfg.Retrieval.TopKText != 1 || cfg.Retrieval.TopKImages != 1 || len(cfg.Retrieval.ImageKeywords) != 6 {
		t.Errorf("retrieval = %+v", cfg.Retrieval)
	}
	if cfg.Answer.Model != "openai/gpt-oss-120b:free" || cfg.Answer.Temperature != 0.2 || cfg.Answer.MaxTokens != 1000 {
		t.Errorf("answer = %+v", cfg.Answer)
	}
	if cfg.VectorStore.Qdrant.URL != "http://localhost:6333" {
		t.Errorf("qdrant url = %s", cfg.VectorStore.Qdrant.URL)
	}
}

func TestLoad_YAMLOverridesAndFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
vector_store:
  type: qdrant
  qdrant:
    url: http://qdrant:6333
collections:
  text:
    name: class7_text
corpus:
  base_dir: extracted/class7_science
  class: 7
retrieval:
  top_k_text: 3
  image_keywords: [diagram, chart]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("QDRANT_URL", "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Collections.Text.Name != "class7_text" || cfg.Collections.Text.Dimension != 384 {
		t.Errorf("text collection = %+v", cfg.Collections.Text)
	}
	if cfg.Corpus.Class != 7 || cfg.Corpus.ChapterPrefix != "chapter" {
		t.Errorf("corpus = %+v", cfg.Corpus)
	}
	if cfg.Retrieval.TopKText != 3 || cfg.Retrieval.TopKImages != 1 || strings.Join(cfg.Retrieval.ImageKeywords, ",") != "diagram,chart" {
		t.Errorf("retrieval = %+v", cfg.Retrieval)
	}
	if cfg.VectorStore.Qdrant.URL != "http://qdrant:6333" || cfg.VectorStore.Qdrant.TimeoutSecs != 60 {
		t.Errorf("qdrant = %+v", cfg.VectorStore.Qdrant)
	}
	if cfg.Prompt.MaxPageChars != 4000 || cfg.Ingest.MinTextChars != 50 || cfg.Ingest.MinImageWidth != 120 {
		t.Errorf("thresholds not defaulted: prompt %+v ingest %+v", cfg.Prompt, cfg.Ingest)
	}
}

func TestLoad_ExplicitZeroThresholdsSurvive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
vector_store:
  type: memory
prompt:
  max_page_chars: 0
ingest:
  min_text_chars: 0
  min_image_width: 0
  min_image_height: 0
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Prompt.MaxPageChars != 0 {
		t.Errorf("max_page_chars: 0 should disable condensing, got %d", cfg.Prompt.MaxPageChars)
	}
	if cfg.Ingest.MinTextChars != 0 || cfg.Ingest.MinImageWidth != 0 || cfg.Ingest.MinImageHeight != 0 {
		t.Errorf("zero minimums replaced: %+v", cfg.Ingest)
	}
	if cfg.Ingest.TextBatchSize != 50 {
		t.Errorf("text batch size = %d", cfg.Ingest.TextBatchSize)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("QDRANT_URL", "https://cloud.qdrant.io")
	t.Setenv("QDRANT_API_KEY", "secret")
	t.Setenv("TEXTBOOKRAG_CLASS", "8")
	t.Setenv("TEXTBOOKRAG_SUBJECT", "Biology")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.VectorStore.Qdrant.URL != "https://cloud.qdrant.io" || cfg.VectorStore.Qdrant.APIKey != "secret" {
		t.Errorf("qdrant = %+v", cfg.VectorStore.Qdrant)
	}
	if cfg.Corpus.Class != 8 || cfg.Corpus.Subject != "Biology" {
		t.Errorf("corpus = %+v", cfg.Corpus)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		want   string
	}{
		{"unknown store", func(c *AppConfig) { c.VectorStore.Type = "pinecone" }, "vector_store.type"},
		{"same collection", func(c *AppConfig) { c.Collections.Image.Name = c.Collections.Text.Name }, "must differ"},
		{"zero dimension", func(c *AppConfig) { c.Collections.Text.Dimension = 0 }, "dimension"},
		{"zero batch", func(c *AppConfig) { c.Ingest.ImageBatchSize = 0 }, "batch sizes"},
		{"negative minimum", func(c *AppConfig) { c.Ingest.MinTextChars = -1 }, "minimums"},
		{"bad id strategy", func(c *AppConfig) { c.Ingest.IDStrategy = "sequential" }, "id_strategy"},
		{"zero top-k", func(c *AppConfig) { c.Retrieval.TopKImages = 0 }, "top-k"},
		{"no keywords", func(c *AppConfig) { c.Retrieval.ImageKeywords = nil }, "image_keywords"},
		{"unknown text embedder", func(c *AppConfig) { c.Embedder.Text = "bert" }, "text embedder"},
		{"unknown image embedder", func(c *AppConfig) { c.Embedder.Image = "siglip" }, "image embedder"},
		{"sample ratio", func(c *AppConfig) { c.Telemetry.SampleRatio = 2 }, "sample_ratio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
	if err := defaultConfig().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Corpus.Subject = "Physics"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TEXTBOOKRAG_SUBJECT", "")
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Corpus.Subject != "Physics" {
		t.Fatalf("subject = %s", got.Corpus.Subject)
	}
}

func TestProgressEnabled(t *testing.T) {
	var c IngestConfig
	if !c.ProgressEnabled(true) || c.ProgressEnabled(false) {
		t.Fatal("unset progress must follow the fallback")
	}
	off := false
	c.Progress = &off
	if c.ProgressEnabled(true) {
		t.Fatal("explicit false must win")
	}
}
