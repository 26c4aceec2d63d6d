package lazy

import (
	"context"

	"github.com/caffix/queue"
)

// BatchProducer is implemented by sources that naturally fetch several
// elements per round trip. NextBatch returns the next batch, or false when no
// further batches exist. A batch may be empty.
type BatchProducer[T any] interface {
	NextBatch(ctx context.Context, hints Hints) ([]T, bool, error)
}

// BatchProducerFunc is an adapter to allow the use of plain functions as
// BatchProducer instances.
type BatchProducerFunc[T any] func(context.Context, Hints) ([]T, bool, error)

// NextBatch calls f(ctx, hints).
func (f BatchProducerFunc[T]) NextBatch(ctx context.Context, hints Hints) ([]T, bool, error) {
	return f(ctx, hints)
}

type batches[T any] struct {
	latch
	producer BatchProducer[T]
	buf      queue.Queue
	// seq orders the buffer, which pops the highest priority first
	seq int
}

// Batches returns a Supplier that hands out the elements of the batches
// emitted by p one at a time. Overflow from a batch is buffered, and p is
// only asked for another batch once the buffer has been drained. Elements are
// delivered in batch order, and within a batch in the order listed.
func Batches[T any](p BatchProducer[T]) Supplier[T] {
	return &batches[T]{
		producer: p,
		buf:      queue.NewQueue(),
	}
}

// Next implements Supplier.
func (b *batches[T]) Next(ctx context.Context, hints Hints) (T, bool, error) {
	var zero T

	for b.buf.Len() == 0 {
		if b.done {
			return zero, false, b.err
		}

		items, ok, err := b.producer.NextBatch(ctx, hints)
		if err != nil || !ok {
			b.finish(err)
			return zero, false, err
		}
		for _, item := range items {
			b.buf.AppendPriority(item, -b.seq)
			b.seq++
		}
	}

	e, ok := b.buf.Next()
	if !ok {
		return zero, false, nil
	}
	v, _ := e.(T)
	return v, true, nil
}
