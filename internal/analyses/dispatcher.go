package analyses

import (
	"context"
	"sync"
)

// Dispatcher runs pipeline jobs on a bounded pool of goroutines so a burst
// of submissions cannot fan out into unbounded concurrent LLM calls.
type Dispatcher struct {
	slots chan struct{}
	wg    sync.WaitGroup
}

// NewDispatcher creates a dispatcher allowing up to size concurrent jobs.
func NewDispatcher(size int) *Dispatcher {
	if size <= 0 {
		size = 4
	}
	return &Dispatcher{slots: make(chan struct{}, size)}
}

// Dispatch runs fn on its own goroutine once a slot frees up. The call
// returns immediately; fn receives the supplied context.
func (d *Dispatcher) Dispatch(ctx context.Context, fn func(ctx context.Context)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.slots <- struct{}{}
		defer func() { <-d.slots }()
		fn(ctx)
	}()
}

// Wait blocks until all dispatched jobs finish. Used on shutdown and in
// tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
