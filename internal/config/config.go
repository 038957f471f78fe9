package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// CollectionConfig describes one vector collection.
type CollectionConfig struct {
	Name      string `yaml:"name"`
	Dimension int    `yaml:"dimension"`
	Distance  string `yaml:"distance"`
}

// CollectionsConfig names the text and image collections.
type CollectionsConfig struct {
	Text  CollectionConfig `yaml:"text"`
	Image CollectionConfig `yaml:"image"`
}

// CorpusConfig describes the extracted content source and the constants
// stamped onto every point.
type CorpusConfig struct {
	BaseDir       string   `yaml:"base_dir"`
	ChapterPrefix string   `yaml:"chapter_prefix"`
	TextDir       string   `yaml:"text_dir"`
	ImageDir      string   `yaml:"image_dir"`
	ImageGlobs    []string `yaml:"image_globs"`
	Class         int      `yaml:"class"`
	Subject       string   `yaml:"subject"`
}

// IngestConfig tunes the ingestion pipelines.
type IngestConfig struct {
	TextBatchSize  int    `yaml:"text_batch_size"`
	ImageBatchSize int    `yaml:"image_batch_size"`
	MinTextChars   int    `yaml:"min_text_chars"`
	MinImageWidth  int    `yaml:"min_image_width"`
	MinImageHeight int    `yaml:"min_image_height"`
	IDStrategy     string `yaml:"id_strategy"`
	LockDir        string `yaml:"lock_dir"`
	Progress       *bool  `yaml:"progress,omitempty"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible text embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// CLIPEmbedderConfig holds configuration for the cross-modal embedding server.
type CLIPEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects the text and image embedder implementations.
type EmbedderConfig struct {
	Text   string                `yaml:"text"`
	Image  string                `yaml:"image"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	CLIP   *CLIPEmbedderConfig   `yaml:"clip,omitempty"`
}

// RetrievalConfig holds the routing rule table and result limits.
type RetrievalConfig struct {
	TopKText       int      `yaml:"top_k_text"`
	TopKImages     int      `yaml:"top_k_images"`
	ImageKeywords  []string `yaml:"image_keywords"`
	ChapterPattern string   `yaml:"chapter_pattern"`
}

// PromptConfig bounds the grounding context.
type PromptConfig struct {
	MaxPageChars int `yaml:"max_page_chars"`
}

// AnswerConfig configures the chat-completion service.
type AnswerConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	Temperature       float32 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	RequestsPerMinute int     `yaml:"requests_per_minute"`
	BreakerFailures   int     `yaml:"breaker_failures"`
}

// LoggingConfig selects the log handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig enables OTLP trace export when Endpoint is set.
type TelemetryConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Collections CollectionsConfig `yaml:"collections"`
	Corpus      CorpusConfig      `yaml:"corpus"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Prompt      PromptConfig      `yaml:"prompt"`
	Answer      AnswerConfig      `yaml:"answer"`
	Logging     LoggingConfig     `yaml:"logging"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnvOverrides(cfg)
			return cfg, cfg.Validate()
		}
		return nil, err
	}
	cfg := AppConfig{Ingest: ingestThresholds(), Prompt: PromptConfig{MaxPageChars: 4000}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, cfg.Validate()
}

// LoadDefault tries ./config.yaml first, then ~/.config/textbookrag/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnvOverrides(cfg)
	return cfg, userPath, cfg.Validate()
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects configurations the pipelines cannot run with.
func (c *AppConfig) Validate() error {
	switch c.VectorStore.Type {
	case "qdrant", "memory":
	default:
		return fmt.Errorf("vector_store.type must be qdrant or memory, got %q", c.VectorStore.Type)
	}
	if c.VectorStore.Type == "qdrant" && (c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "") {
		return errors.New("vector_store.qdrant.url is required")
	}
	for _, col := range []CollectionConfig{c.Collections.Text, c.Collections.Image} {
		if col.Name == "" {
			return errors.New("collection name must not be empty")
		}
		if col.Dimension <= 0 {
			return fmt.Errorf("collection %s: dimension must be positive, got %d", col.Name, col.Dimension)
		}
	}
	if c.Collections.Text.Name == c.Collections.Image.Name {
		return fmt.Errorf("text and image collections must differ, both are %q", c.Collections.Text.Name)
	}
	if c.Ingest.TextBatchSize <= 0 || c.Ingest.ImageBatchSize <= 0 {
		return fmt.Errorf("ingest batch sizes must be positive, got %d/%d", c.Ingest.TextBatchSize, c.Ingest.ImageBatchSize)
	}
	if c.Ingest.MinTextChars < 0 || c.Ingest.MinImageWidth < 0 || c.Ingest.MinImageHeight < 0 {
		return errors.New("ingest minimums must not be negative")
	}
	switch c.Ingest.IDStrategy {
	case "deterministic", "random":
	default:
		return fmt.Errorf("ingest.id_strategy must be deterministic or random, got %q", c.Ingest.IDStrategy)
	}
	if c.Retrieval.TopKText <= 0 || c.Retrieval.TopKImages <= 0 {
		return fmt.Errorf("retrieval top-k must be positive, got %d/%d", c.Retrieval.TopKText, c.Retrieval.TopKImages)
	}
	if len(c.Retrieval.ImageKeywords) == 0 {
		return errors.New("retrieval.image_keywords must not be empty")
	}
	switch c.Embedder.Text {
	case "openai", "hashing":
	default:
		return fmt.Errorf("unknown text embedder: %s", c.Embedder.Text)
	}
	switch c.Embedder.Image {
	case "clip", "hashing":
	default:
		return fmt.Errorf("unknown image embedder: %s", c.Embedder.Image)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be 0-1, got %f", c.Telemetry.SampleRatio)
	}
	return nil
}

// ProgressEnabled reports whether progress bars were explicitly switched on or off.
func (c IngestConfig) ProgressEnabled(fallback bool) bool {
	if c.Progress == nil {
		return fallback
	}
	return *c.Progress
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "textbookrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		VectorStore: VectorStoreConfig{Type: "qdrant", Qdrant: &QdrantConfig{URL: "http://localhost:6333"}},
		Corpus:      CorpusConfig{BaseDir: "extracted/class10_science", Class: 10, Subject: "Science"},
		Ingest:      ingestThresholds(),
		Prompt:      PromptConfig{MaxPageChars: 4000},
		Embedder: EmbedderConfig{
			Text:   "openai",
			Image:  "clip",
			OpenAI: &OpenAIEmbedderConfig{},
			CLIP:   &CLIPEmbedderConfig{},
		},
	}
	applyConfigDefaults(cfg)
	return cfg
}

// ingestThresholds are seeded before decoding; an explicit 0 in YAML disables
// the matching check.
func ingestThresholds() IngestConfig {
	return IngestConfig{MinTextChars: 50, MinImageWidth: 120, MinImageHeight: 120}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "qdrant"
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.URL == "" {
			cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 60
		}
	}
	setCollectionDefaults(&cfg.Collections.Text, "text_pages", 384)
	setCollectionDefaults(&cfg.Collections.Image, "page_images", 512)

	if cfg.Corpus.ChapterPrefix == "" {
		cfg.Corpus.ChapterPrefix = "chapter"
	}
	if cfg.Corpus.TextDir == "" {
		cfg.Corpus.TextDir = "page_text"
	}
	if cfg.Corpus.ImageDir == "" {
		cfg.Corpus.ImageDir = "images"
	}
	if len(cfg.Corpus.ImageGlobs) == 0 {
		cfg.Corpus.ImageGlobs = []string{"*.png", "*.jpg", "*.jpeg"}
	}

	if cfg.Ingest.TextBatchSize == 0 {
		cfg.Ingest.TextBatchSize = 50
	}
	if cfg.Ingest.ImageBatchSize == 0 {
		cfg.Ingest.ImageBatchSize = 16
	}
	if cfg.Ingest.IDStrategy == "" {
		cfg.Ingest.IDStrategy = "deterministic"
	}

	if cfg.Embedder.Text == "" {
		cfg.Embedder.Text = "openai"
	}
	if cfg.Embedder.Image == "" {
		cfg.Embedder.Image = "clip"
	}
	if cfg.Embedder.Text == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "http://localhost:7997"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "EMBEDDINGS_API_KEY"
		}
		if o.Model == "" {
			o.Model = "sentence-transformers/all-MiniLM-L6-v2"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
	}
	if cfg.Embedder.Image == "clip" {
		if cfg.Embedder.CLIP == nil {
			cfg.Embedder.CLIP = &CLIPEmbedderConfig{}
		}
		c := cfg.Embedder.CLIP
		if c.BaseURL == "" {
			c.BaseURL = "http://localhost:7997"
		}
		if c.APIKeyEnv == "" {
			c.APIKeyEnv = "EMBEDDINGS_API_KEY"
		}
		if c.Model == "" {
			c.Model = "openai/clip-vit-base-patch32"
		}
		if c.TimeoutSecs == 0 {
			c.TimeoutSecs = 60
		}
	}

	if cfg.Retrieval.TopKText == 0 {
		cfg.Retrieval.TopKText = 1
	}
	if cfg.Retrieval.TopKImages == 0 {
		cfg.Retrieval.TopKImages = 1
	}
	if len(cfg.Retrieval.ImageKeywords) == 0 {
		cfg.Retrieval.ImageKeywords = []string{"image", "diagram", "picture", "figure", "illustration", "shown"}
	}
	if cfg.Retrieval.ChapterPattern == "" {
		cfg.Retrieval.ChapterPattern = `(?i)chapter\s*(\d+)`
	}

	if cfg.Answer.BaseURL == "" {
		cfg.Answer.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Answer.APIKeyEnv == "" {
		cfg.Answer.APIKeyEnv = "OPENROUTER_API_KEY"
	}
	if cfg.Answer.Model == "" {
		cfg.Answer.Model = "openai/gpt-oss-120b:free"
	}
	if cfg.Answer.Temperature == 0 {
		cfg.Answer.Temperature = 0.2
	}
	if cfg.Answer.MaxTokens == 0 {
		cfg.Answer.MaxTokens = 1000
	}
	if cfg.Answer.TimeoutSecs == 0 {
		cfg.Answer.TimeoutSecs = 60
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "textbookrag"
	}
	if cfg.Telemetry.SampleRatio == 0 {
		cfg.Telemetry.SampleRatio = 1
	}
}

func setCollectionDefaults(c *CollectionConfig, name string, dim int) {
	if c.Name == "" {
		c.Name = name
	}
	if c.Dimension == 0 {
		c.Dimension = dim
	}
	if c.Distance == "" {
		c.Distance = "Cosine"
	}
}

// applyEnvOverrides lets deployment secrets and endpoints come from the
// environment (or a .env file loaded by the caller).
func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("QDRANT_URL"); v != "" && cfg.VectorStore.Qdrant != nil {
		cfg.VectorStore.Qdrant.URL = v
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" && cfg.VectorStore.Qdrant != nil {
		cfg.VectorStore.Qdrant.APIKey = v
	}
	if v := os.Getenv("TEXTBOOKRAG_BASE_DIR"); v != "" {
		cfg.Corpus.BaseDir = v
	}
	if v := os.Getenv("TEXTBOOKRAG_CLASS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Corpus.Class = n
		}
	}
	if v := os.Getenv("TEXTBOOKRAG_SUBJECT"); v != "" {
		cfg.Corpus.Subject = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" && cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = v
	}
}
