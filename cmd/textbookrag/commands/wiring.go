package commands

import (
	"context"
	"fmt"
	"time"

	"textbookrag/internal/answer"
	"textbookrag/internal/config"
	"textbookrag/internal/embedding"
	"textbookrag/internal/prompt"
	"textbookrag/internal/retrieval"
	"textbookrag/internal/service"
	"textbookrag/internal/source"
	"textbookrag/internal/vectorstore"
	"textbookrag/internal/vectorstore/memory"
	"textbookrag/internal/vectorstore/qdrant"
)

func newStorage(cfg *config.AppConfig) (vectorstore.Storage, error) {
	switch cfg.VectorStore.Type {
	case "memory":
		return memory.NewStorage(), nil
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		return qdrant.NewStorage(qdrant.Config{
			URL:     q.URL,
			APIKey:  q.APIKey,
			Timeout: time.Duration(q.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}
}

func collectionSpecs(cfg *config.AppConfig) []vectorstore.CollectionSpec {
	return []vectorstore.CollectionSpec{
		{Name: cfg.Collections.Text.Name, Dimension: cfg.Collections.Text.Dimension, Distance: cfg.Collections.Text.Distance},
		{Name: cfg.Collections.Image.Name, Dimension: cfg.Collections.Image.Dimension, Distance: cfg.Collections.Image.Distance},
	}
}

func ensureCollections(ctx context.Context, store vectorstore.Storage, cfg *config.AppConfig) error {
	for _, spec := range collectionSpecs(cfg) {
		if err := store.CreateCollection(ctx, spec); err != nil {
			return fmt.Errorf("create collection %s: %w", spec.Name, err)
		}
	}
	return nil
}

func layoutFromConfig(cfg *config.AppConfig) source.Layout {
	return source.Layout{
		BaseDir:       cfg.Corpus.BaseDir,
		ChapterPrefix: cfg.Corpus.ChapterPrefix,
		TextDir:       cfg.Corpus.TextDir,
		ImageDir:      cfg.Corpus.ImageDir,
		ImageGlobs:    cfg.Corpus.ImageGlobs,
	}
}

// newQAService builds the query path. withAnswer=false skips the answer
// client so prompts can be inspected without a credential.
func newQAService(cfg *config.AppConfig, withAnswer bool) (*service.QAService, error) {
	store, err := newStorage(cfg)
	if err != nil {
		return nil, err
	}
	models, err := embedding.New(cfg)
	if err != nil {
		return nil, err
	}
	rules, err := retrieval.NewRules(cfg.Retrieval.ImageKeywords, cfg.Retrieval.ChapterPattern)
	if err != nil {
		return nil, err
	}
	router := retrieval.NewRouter(store, models.Text, models.Image, rules, retrieval.Config{
		TextCollection:  cfg.Collections.Text.Name,
		ImageCollection: cfg.Collections.Image.Name,
		TopKText:        cfg.Retrieval.TopKText,
		TopKImages:      cfg.Retrieval.TopKImages,
	}, app.log)

	var svc *service.QAService
	if withAnswer {
		gen, err := answer.NewClient(cfg.Answer, app.log)
		if err != nil {
			return nil, err
		}
		svc = service.NewQAService(router, prompt.NewAssembler(cfg.Prompt.MaxPageChars), gen, app.log)
	} else {
		svc = service.NewQAService(router, prompt.NewAssembler(cfg.Prompt.MaxPageChars), nil, app.log)
	}
	return svc, nil
}
