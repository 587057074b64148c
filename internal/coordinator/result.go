package coordinator

import "context"

// Result is the eventual outcome of an operation. It resolves exactly once,
// after the operation's reconciliation step has been applied to the cache.
type Result[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newResult[T any]() *Result[T] {
	return &Result[T]{done: make(chan struct{})}
}

func resolved[T any](val T, err error) *Result[T] {
	r := newResult[T]()
	r.resolve(val, err)
	return r
}

func (r *Result[T]) resolve(val T, err error) {
	r.val, r.err = val, err
	close(r.done)
}

// Done is closed once the result is available.
func (r *Result[T]) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the result is available or ctx is done. Giving up on
// the wait does not abort the operation.
func (r *Result[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-r.done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
