package httpclient

import (
	"context"
	"sync"
)

// Future is the pending settlement of a call started with DoAsync. It
// settles exactly once, with either a Result or an error.
//
//	f := client.DoAsync(ctx, http.MethodGet, opts, nil)
//	// ...
//	res, err := f.Await(ctx)
type Future struct {
	done chan struct{}
	once sync.Once
	res  *Result
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) settle(res *Result, err error) {
	f.once.Do(func() {
		f.res, f.err = res, err
		close(f.done)
	})
}

// Done is closed when the call settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the call settles or ctx is done. Giving up on ctx does
// not cancel the call; cancel the context passed to DoAsync for that.
func (f *Future) Await(ctx context.Context) (*Result, error) {
	select {
	case <-f.done:
		return f.res, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Then calls fn with the settlement from a new goroutine once the call
// settles.
func (f *Future) Then(fn func(*Result, error)) {
	go func() {
		<-f.done
		fn(f.res, f.err)
	}()
}
