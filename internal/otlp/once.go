package otlp

import (
	"go.uber.org/atomic"
)

// Once guards a single-pass sequence. The first iteration runs the
// underlying sequence; any later iteration, or one started after
// Invalidate, yields ErrInvalidated.
type Once[T any] struct {
	seq  Seq[T]
	used *atomic.Bool
}

// NewOnce wraps seq in a one-shot guard.
func NewOnce[T any](seq Seq[T]) *Once[T] {
	return &Once[T]{seq: seq, used: atomic.NewBool(false)}
}

// Seq returns the guarded sequence.
func (o *Once[T]) Seq() Seq[T] {
	return func(yield func(T, error) bool) {
		if o.used.Swap(true) {
			var zero T
			yield(zero, ErrInvalidated)
			return
		}
		o.seq(yield)
	}
}

// Invalidate marks the sequence as consumed without running it.
func (o *Once[T]) Invalidate() {
	o.used.Store(true)
}

// Consumed reports whether the sequence was started or invalidated.
func (o *Once[T]) Consumed() bool {
	return o.used.Load()
}
