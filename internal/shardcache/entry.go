package shardcache

import (
	"context"
	"sync"
	"sync/atomic"
)

// State is a partition's load lifecycle.
type State int32

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// entry guards one partition. Readers of a loaded entry take no lock: data is
// published before state flips to loaded, and the published value is never
// mutated afterwards.
type entry[T any] struct {
	name  string
	mu    sync.Mutex
	state atomic.Int32
	data  atomic.Pointer[T]
}

func (e *entry[T]) State() State {
	return State(e.state.Load())
}

// get returns the resident value, running load at most once at a time. A
// failed load returns the entry to unloaded so a later call retries.
func (e *entry[T]) get(ctx context.Context, load func(ctx context.Context) (T, error)) (T, bool, error) {
	if State(e.state.Load()) == StateLoaded {
		return *e.data.Load(), false, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if State(e.state.Load()) == StateLoaded {
		return *e.data.Load(), false, nil
	}
	e.state.Store(int32(StateLoading))
	value, err := load(ctx)
	if err != nil {
		e.state.Store(int32(StateUnloaded))
		var zero T
		return zero, false, err
	}
	e.data.Store(&value)
	e.state.Store(int32(StateLoaded))
	return value, true, nil
}

// replace swaps in a freshly loaded value under the load lock.
func (e *entry[T]) replace(ctx context.Context, load func(ctx context.Context) (T, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	prev := State(e.state.Load())
	if prev != StateLoaded {
		e.state.Store(int32(StateLoading))
	}
	value, err := load(ctx)
	if err != nil {
		e.state.Store(int32(prev))
		return err
	}
	e.data.Store(&value)
	e.state.Store(int32(StateLoaded))
	return nil
}
