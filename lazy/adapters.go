package lazy

import "context"

type mapper[T, R any] struct {
	latch
	src Supplier[T]
	fn  func(context.Context, T, Hints) (R, error)
}

// Map returns a Supplier that pulls one element from s per call, forwarding
// the hints, and yields fn applied to it.
func Map[T, R any](s Supplier[T], fn func(context.Context, T, Hints) (R, error)) Supplier[R] {
	return &mapper[T, R]{src: s, fn: fn}
}

// Next implements Supplier.
func (m *mapper[T, R]) Next(ctx context.Context, hints Hints) (R, bool, error) {
	var zero R

	if m.done {
		return zero, false, m.err
	}

	v, ok, err := m.src.Next(ctx, hints)
	if err != nil || !ok {
		m.finish(err)
		return zero, false, err
	}

	out, err := m.fn(ctx, v, hints)
	if err != nil {
		m.finish(err)
		return zero, false, err
	}
	return out, true, nil
}

// FlatMap returns a Supplier that expands each element of s into zero or more
// elements using fn. Expansion happens one upstream element at a time.
func FlatMap[T, R any](s Supplier[T], fn func(context.Context, T, Hints) ([]R, error)) Supplier[R] {
	return Batches[R](BatchProducerFunc[R](func(ctx context.Context, hints Hints) ([]R, bool, error) {
		v, ok, err := s.Next(ctx, hints)
		if err != nil || !ok {
			return nil, false, err
		}

		out, err := fn(ctx, v, hints)
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	}))
}

// Filter returns a Supplier yielding the elements of s for which keep
// returns true.
func Filter[T any](s Supplier[T], keep func(T) bool) Supplier[T] {
	return SupplierFunc(func(ctx context.Context, hints Hints) (T, bool, error) {
		for {
			v, ok, err := s.Next(ctx, hints)
			if err != nil || !ok {
				return v, false, err
			}
			if keep(v) {
				return v, true, nil
			}
		}
	})
}

// Limit returns a Supplier yielding at most n elements of s. Once n elements
// have been delivered, s is not pulled again.
func Limit[T any](s Supplier[T], n int) Supplier[T] {
	var count int

	return SupplierFunc(func(ctx context.Context, hints Hints) (T, bool, error) {
		if count >= n {
			var zero T
			return zero, false, nil
		}

		v, ok, err := s.Next(ctx, hints)
		if err != nil || !ok {
			return v, false, err
		}
		count++
		return v, true, nil
	})
}
