// Package fn provides the Result type and the composable stages that the
// ingestion pipeline is built from.
package fn

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
)

// Result carries either a value or the error that prevented it.
type Result[T any] struct {
	value T
	err   error
	valid bool
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] { return Result[T]{value: v, valid: true} }

// Err wraps a failure.
func Err[T any](err error) Result[T] { return Result[T]{err: err} }

// Errf builds a failed Result from a format string. The %w verb wraps as
// it does in fmt.Errorf.
func Errf[T any](format string, args ...any) Result[T] {
	return Result[T]{err: fmt.Errorf(format, args...)}
}

func (r Result[T]) IsOk() bool  { return r.valid }
func (r Result[T]) IsErr() bool { return !r.valid }

// Unwrap returns the value and error in Go's usual pair form.
func (r Result[T]) Unwrap() (T, error) { return r.value, r.err }

// Stage transforms an In into an Out under a context. Stages are composed
// with Then; a stage must not panic on malformed input, it returns Err.
type Stage[In, Out any] func(context.Context, In) Result[Out]

// Then chains two stages into one, short-circuiting on the first error.
// Each half runs under its own trace span so pipeline hot spots show up
// per stage.
func Then[A, B, C any](first Stage[A, B], second Stage[B, C]) Stage[A, C] {
	tracer := otel.Tracer("pkg/fn")
	return func(ctx context.Context, a A) Result[C] {
		sctx, span := tracer.Start(ctx, "stage.first")
		mid := first(sctx, a)
		span.End()
		b, err := mid.Unwrap()
		if mid.IsErr() {
			return Err[C](err)
		}
		sctx, span = tracer.Start(ctx, "stage.second")
		defer span.End()
		return second(sctx, b)
	}
}

// Chunk splits items into consecutive groups of at most size elements,
// preserving order. The returned slices alias the input. A size below 1
// yields nil.
func Chunk[T any](items []T, size int) [][]T {
	if size < 1 || len(items) == 0 {
		return nil
	}
	groups := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		groups = append(groups, items[start:end])
	}
	return groups
}
