package editor

import (
	"context"
	"sync"
)

type FutureStatus string

const (
	FuturePending FutureStatus = "pending"
	FutureSuccess FutureStatus = "success"
	FutureFailure FutureStatus = "failure"
)

// Future is the result of an asynchronous call: pending until resolved
// exactly once with a value or an error.
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// failedFuture returns an already-resolved failure.
func failedFuture[T any](err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	f.resolve(zero, err)
	return f
}

func (f *Future[T]) resolve(v T, err error) {
	f.once.Do(func() {
		f.value = v
		f.err = err
		close(f.done)
	})
}

// Done is closed once the future resolves.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future resolves or ctx ends. A ctx error does not
// affect the underlying call.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (f *Future[T]) Status() FutureStatus {
	select {
	case <-f.done:
		if f.err != nil {
			return FutureFailure
		}
		return FutureSuccess
	default:
		return FuturePending
	}
}
