// Package lazy implements the pull-based sequences that carry collections
// between pipeline stages, and the hint protocol consumers use to let an
// upstream source batch its auxiliary fetches.
package lazy

import "context"

// Supplier is a single-consumer cursor over a lazy sequence. Next returns the
// next element, or false once the sequence is exhausted. After reporting
// exhaustion, every later call also reports exhaustion. Once Next returns an
// error, every later call returns the same error.
//
// Suppliers are not safe for concurrent use.
type Supplier[T any] interface {
	Next(ctx context.Context, hints Hints) (T, bool, error)
}

// SupplierFunc is an adapter to allow the use of plain functions as Supplier
// instances. The returned Supplier guards the function so that it is not
// called again after exhaustion or an error.
func SupplierFunc[T any](f func(context.Context, Hints) (T, bool, error)) Supplier[T] {
	return &funcSupplier[T]{f: f}
}

type funcSupplier[T any] struct {
	latch
	f func(context.Context, Hints) (T, bool, error)
}

// Next implements Supplier.
func (s *funcSupplier[T]) Next(ctx context.Context, hints Hints) (T, bool, error) {
	var zero T

	if s.done {
		return zero, false, s.err
	}

	v, ok, err := s.f(ctx, hints)
	if err != nil || !ok {
		s.finish(err)
		return zero, false, err
	}
	return v, true, nil
}

// latch records that a supplier has reached its terminal state.
type latch struct {
	done bool
	err  error
}

func (l *latch) finish(err error) {
	l.done = true
	l.err = err
}

type sliceSupplier[T any] struct {
	items []T
	index int
}

// FromSlice returns a Supplier that yields the items in order.
func FromSlice[T any](items ...T) Supplier[T] {
	return &sliceSupplier[T]{items: items}
}

// Empty returns a Supplier that is exhausted from the start.
func Empty[T any]() Supplier[T] {
	return &sliceSupplier[T]{}
}

// Next implements Supplier.
func (s *sliceSupplier[T]) Next(context.Context, Hints) (T, bool, error) {
	if s.index >= len(s.items) {
		var zero T
		return zero, false, nil
	}

	v := s.items[s.index]
	s.index++
	return v, true, nil
}

// Drain pulls every element from s, passing the same hints on each pull, and
// calls fn for each of them. Drain stops at the first error.
func Drain[T any](ctx context.Context, s Supplier[T], hints Hints, fn func(T) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		v, ok, err := s.Next(ctx, hints)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(v); err != nil {
			return err
		}
	}
}

// Collect pulls every element from s and returns them as a slice.
func Collect[T any](ctx context.Context, s Supplier[T], hints Hints) ([]T, error) {
	var out []T

	err := Drain(ctx, s, hints, func(v T) error {
		out = append(out, v)
		return nil
	})
	return out, err
}
