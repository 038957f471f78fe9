package batcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"textbookrag/internal/domain"
)

// ErrAlreadyFlushed is returned when the batcher is used after FlushRemaining.
var ErrAlreadyFlushed = errors.New("batcher: already flushed")

// Sink receives full batches. vectorstore.Storage satisfies it.
type Sink interface {
	Upsert(ctx context.Context, collection string, points []domain.Point) error
}

// Batcher buffers points for one collection and writes them in fixed-size
// batches. It is owned by a single pipeline and is not safe for concurrent use.
type Batcher struct {
	sink       Sink
	collection string
	size       int
	log        *slog.Logger

	buf     []domain.Point
	flushes int
	points  int
	closed  bool
}

func New(sink Sink, collection string, size int, log *slog.Logger) *Batcher {
	if size <= 0 {
		size = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Batcher{
		sink:       sink,
		collection: collection,
		size:       size,
		log:        log,
		buf:        make([]domain.Point, 0, size),
	}
}

// Add appends p and flushes once the batch is full.
func (b *Batcher) Add(ctx context.Context, p domain.Point) error {
	if b.closed {
		return ErrAlreadyFlushed
	}
	b.buf = append(b.buf, p)
	if len(b.buf) >= b.size {
		return b.flush(ctx)
	}
	return nil
}

// FlushRemaining writes any partial batch. It must be called exactly once,
// after the source traversal completes.
func (b *Batcher) FlushRemaining(ctx context.Context) error {
	if b.closed {
		return ErrAlreadyFlushed
	}
	b.closed = true
	if len(b.buf) == 0 {
		return nil
	}
	return b.flush(ctx)
}

// Pending is the number of buffered, unflushed points.
func (b *Batcher) Pending() int { return len(b.buf) }

// Flushes is the number of successful upsert calls so far.
func (b *Batcher) Flushes() int { return b.flushes }

// Points is the number of points successfully upserted so far.
func (b *Batcher) Points() int { return b.points }

func (b *Batcher) flush(ctx context.Context) error {
	n := len(b.buf)
	if err := b.sink.Upsert(ctx, b.collection, b.buf); err != nil {
		return fmt.Errorf("upsert batch of %d into %s: %w", n, b.collection, err)
	}
	b.flushes++
	b.points += n
	b.log.Info("upserted batch", "collection", b.collection, "points", n, "total", b.points)
	// The sink may hold on to the slice, so start a fresh one.
	b.buf = make([]domain.Point, 0, b.size)
	return nil
}
