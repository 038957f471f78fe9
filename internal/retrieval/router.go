package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"textbookrag/internal/domain"
)

// ErrNoGrounding is returned when the store has nothing to ground an answer
// on. It is an expected outcome, not a failure of the store.
var ErrNoGrounding = errors.New("retrieval: no relevant textbook content found")

// Searcher is the read side of the vector store.
type Searcher interface {
	Search(ctx context.Context, collection string, q domain.Query) ([]domain.SearchResult, error)
}

// Config holds collection names and result limits for the router.
type Config struct {
	TextCollection  string
	ImageCollection string
	TopKText        int
	TopKImages      int
}

// Request is one question scoped to a class and subject.
type Request struct {
	Question string
	Class    int
	Subject  string
}

// Retrieval is what the router found for a question. Images is empty in
// text mode.
type Retrieval struct {
	Mode    Mode
	Chapter *int
	Images  []domain.SearchResult
	Texts   []domain.SearchResult
}

// Router decides which collections to search and with which filters.
type Router struct {
	store    Searcher
	textEmb  domain.TextEmbedder
	imageEmb domain.ImageEmbedder
	rules    Rules
	cfg      Config
	log      *slog.Logger
}

func NewRouter(store Searcher, textEmb domain.TextEmbedder, imageEmb domain.ImageEmbedder, rules Rules, cfg Config, log *slog.Logger) *Router {
	if cfg.TopKText <= 0 {
		cfg.TopKText = 1
	}
	if cfg.TopKImages <= 0 {
		cfg.TopKImages = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Router{store: store, textEmb: textEmb, imageEmb: imageEmb, rules: rules, cfg: cfg, log: log}
}

// Route classifies the question, searches the relevant collections, and
// returns ErrNoGrounding when the deciding search comes back empty.
func (r *Router) Route(ctx context.Context, req Request) (*Retrieval, error) {
	ctx, span := otel.Tracer("textbookrag/retrieval").Start(ctx, "retrieval.route")
	defer span.End()

	out := &Retrieval{Mode: r.rules.Classify(req.Question)}
	if n, ok := r.rules.ExtractChapter(req.Question); ok {
		out.Chapter = domain.IntPtr(n)
	}
	span.SetAttributes(attribute.String("mode", string(out.Mode)))
	if out.Chapter != nil {
		span.SetAttributes(attribute.Int("chapter", *out.Chapter))
	}

	base := domain.Filter{Class: req.Class, Subject: req.Subject, Chapter: out.Chapter}

	if out.Mode == ModeImage {
		vec, err := r.imageEmb.EmbedQueryForImages(ctx, req.Question)
		if err != nil {
			return nil, fmt.Errorf("embed image query: %w", err)
		}
		f := base
		f.ContentType = domain.ContentPageImage
		imgs, err := r.store.Search(ctx, r.cfg.ImageCollection, domain.Query{Vector: vec, Filter: f, Limit: r.cfg.TopKImages})
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", r.cfg.ImageCollection, err)
		}
		if len(imgs) == 0 {
			r.log.Info("no image grounding", "chapter", chapterAttr(out.Chapter))
			return nil, ErrNoGrounding
		}
		out.Images = imgs
	}

	vec, err := r.textEmb.EmbedText(ctx, req.Question)
	if err != nil {
		return nil, fmt.Errorf("embed text query: %w", err)
	}
	f := base
	f.ContentType = domain.ContentPageText
	texts, err := r.store.Search(ctx, r.cfg.TextCollection, domain.Query{Vector: vec, Filter: f, Limit: r.cfg.TopKText})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", r.cfg.TextCollection, err)
	}
	if out.Mode == ModeText && len(texts) == 0 {
		r.log.Info("no text grounding", "chapter", chapterAttr(out.Chapter))
		return nil, ErrNoGrounding
	}
	out.Texts = texts
	r.log.Debug("routed question", "mode", out.Mode, "chapter", chapterAttr(out.Chapter), "images", len(out.Images), "texts", len(out.Texts))
	return out, nil
}

func chapterAttr(ch *int) any {
	if ch == nil {
		return "any"
	}
	return *ch
}
