package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"textbookrag/internal/batcher"
	"textbookrag/internal/domain"
	"textbookrag/internal/source"
)

// ErrDimensionMismatch aborts a run when an embedder returns a vector whose
// length differs from the collection dimension.
var ErrDimensionMismatch = errors.New("ingest: embedding dimension mismatch")

// pointNamespace scopes deterministic point IDs to this application.
var pointNamespace = uuid.MustParse("6f1c2a8e-3b7d-5e4f-9a21-7c0d8b5e4a13")

// Options are the per-run constants shared by both pipelines.
type Options struct {
	Collection string
	Dimension  int
	Class      int
	Subject    string
	BatchSize  int
	IDStrategy string
	LockDir    string
	Progress   bool
	Log        *slog.Logger
}

// Report summarises one ingestion run.
type Report struct {
	Chapters int
	Admitted int
	Skipped  int
	Flushes  int
	Points   int
}

// embedFunc turns one source item into a payload and vector. A non-empty
// skip reason means the item is a data defect and is dropped.
type embedFunc func(ctx context.Context, it source.Item) (payload domain.Payload, vector []float32, skip string, err error)

// listFunc lists the items of one chapter for a pipeline.
type listFunc func(ch source.Chapter) (items []source.Item, skipped []string, err error)

type runner struct {
	layout source.Layout
	sink   batcher.Sink
	opts   Options
	kind   string
	list   listFunc
	embed  embedFunc
}

func (r *runner) run(ctx context.Context) (*Report, error) {
	log := r.opts.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("pipeline", r.kind, "collection", r.opts.Collection)

	unlock, err := Lock(r.opts.LockDir, r.opts.Collection)
	if err != nil {
		return nil, err
	}
	defer unlock()

	chapters, skippedDirs, err := r.layout.Chapters()
	if err != nil {
		return nil, err
	}
	for _, name := range skippedDirs {
		log.Warn("skipping directory", "name", name, "reason", "not a chapter directory")
	}

	rep := &Report{Chapters: len(chapters)}
	var items []source.Item
	for _, ch := range chapters {
		chItems, skipped, err := r.list(ch)
		if err != nil {
			return rep, err
		}
		for _, name := range skipped {
			log.Warn("skipping file", "chapter", ch.Number, "file", name, "reason", "unrecognised name")
		}
		rep.Skipped += len(skipped)
		items = append(items, chItems...)
	}

	b := batcher.New(r.sink, r.opts.Collection, r.opts.BatchSize, log)
	bar := newProgress(r.opts.Progress, len(items), r.kind)
	defer bar.Finish()

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		payload, vec, skip, err := r.embed(ctx, it)
		if err != nil {
			return rep, fmt.Errorf("%s: %w", it.Path, err)
		}
		bar.Increment()
		if skip != "" {
			log.Warn("skipping file", "chapter", it.Chapter, "file", it.FileName, "reason", skip)
			rep.Skipped++
			continue
		}
		if len(vec) != r.opts.Dimension {
			return rep, fmt.Errorf("%w: %s produced %d values, collection %s expects %d",
				ErrDimensionMismatch, it.Path, len(vec), r.opts.Collection, r.opts.Dimension)
		}
		if err := payload.Validate(); err != nil {
			return rep, fmt.Errorf("%s: %w", it.Path, err)
		}
		point := domain.Point{ID: pointID(r.opts.IDStrategy, payload), Vector: vec, Payload: payload}
		if err := b.Add(ctx, point); err != nil {
			return rep, err
		}
		rep.Admitted++
		rep.Flushes = b.Flushes()
	}
	if err := b.FlushRemaining(ctx); err != nil {
		return rep, err
	}
	rep.Flushes = b.Flushes()
	rep.Points = b.Points()
	log.Info("ingestion complete", "chapters", rep.Chapters, "admitted", rep.Admitted, "skipped", rep.Skipped, "flushes", rep.Flushes)
	return rep, nil
}

func (r *runner) payload(it source.Item, ct domain.ContentType) domain.Payload {
	return domain.Payload{
		Class:       r.opts.Class,
		Subject:     r.opts.Subject,
		Chapter:     it.Chapter,
		PageNumber:  it.Page,
		ContentType: ct,
	}
}

// pointID is stable across runs unless the random strategy is selected, so
// re-ingesting a page overwrites its previous point.
func pointID(strategy string, p domain.Payload) string {
	if strategy == "random" {
		return uuid.NewString()
	}
	key := fmt.Sprintf("%d|%s|%d|%d|%s|%s", p.Class, p.Subject, p.Chapter, p.PageNumber, p.ContentType, p.FileName)
	return uuid.NewSHA1(pointNamespace, []byte(key)).String()
}
