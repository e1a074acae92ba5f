// Package resource holds the observable Loading/Success/Error state that
// the coordinator publishes for each asynchronous operation.
package resource

import (
	"context"
	"sync"
)

// Status is the lifecycle stage of a Resource
type Status string

const (
	StatusLoading Status = "LOADING"
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
)

// Resource is the outcome of an asynchronous operation.
// HasData distinguishes an absent payload from a zero-valued one.
type Resource[T any] struct {
	Status  Status
	Data    T
	HasData bool
	Message string
}

// Loading creates a Loading resource, optionally carrying the previous data
func Loading[T any](data T, hasData bool) Resource[T] {
	return Resource[T]{Status: StatusLoading, Data: data, HasData: hasData}
}

// Success creates a Success resource carrying data
func Success[T any](data T) Resource[T] {
	return Resource[T]{Status: StatusSuccess, Data: data, HasData: true}
}

// Error creates an Error resource with a message
func Error[T any](data T, hasData bool, message string) Resource[T] {
	return Resource[T]{Status: StatusError, Data: data, HasData: hasData, Message: message}
}

// IsSettled reports whether the resource reached Success or Error
func (r Resource[T]) IsSettled() bool {
	return r.Status == StatusSuccess || r.Status == StatusError
}

// Observable holds the latest Resource and lets readers wait for changes.
// Set is safe for concurrent use; readers never block writers for long.
type Observable[T any] struct {
	mu      sync.RWMutex
	current Resource[T]
	set     bool
	version uint64
	changed chan struct{}
}

// NewObservable creates an Observable with no value
func NewObservable[T any]() *Observable[T] {
	return &Observable[T]{changed: make(chan struct{})}
}

// Get returns the current resource and whether one was ever set
func (o *Observable[T]) Get() (Resource[T], bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.current, o.set
}

// Version counts how many times Set has been called
func (o *Observable[T]) Version() uint64 {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.version
}

// Set publishes a new resource and wakes every waiter
func (o *Observable[T]) Set(r Resource[T]) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.current = r
	o.set = true
	o.version++
	close(o.changed)
	o.changed = make(chan struct{})
}

// Changed returns a channel closed on the next Set
func (o *Observable[T]) Changed() <-chan struct{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.changed
}

// WaitSettled blocks until the resource is Success or Error, or ctx is done.
// It returns the last observed resource together with ctx.Err() on timeout.
func (o *Observable[T]) WaitSettled(ctx context.Context) (Resource[T], error) {
	for {
		o.mu.RLock()
		current, set, changed := o.current, o.set, o.changed
		o.mu.RUnlock()

		if set && current.IsSettled() {
			return current, nil
		}

		select {
		case <-ctx.Done():
			return current, ctx.Err()
		case <-changed:
		}
	}
}

// WaitSettledAfter is WaitSettled for values published after version.
// Callers read Version before triggering work so that an older settled
// value is not mistaken for the outcome of the new operation.
func (o *Observable[T]) WaitSettledAfter(ctx context.Context, version uint64) (Resource[T], error) {
	for {
		o.mu.RLock()
		current, v, changed := o.current, o.version, o.changed
		o.mu.RUnlock()

		if v > version && current.IsSettled() {
			return current, nil
		}

		select {
		case <-ctx.Done():
			return current, ctx.Err()
		case <-changed:
		}
	}
}
