// Package xatomic provides a mutex-guarded atomic box for arbitrary types,
// used where sync/atomic's built-in types don't apply: the Position Model's
// current Position (§3, §4.2) is read far more often than written and
// benefits from a single exclusive owner rather than field-by-field atomics.
package xatomic

import "sync"

// Box holds a value of type T behind a mutex.
type Box[T any] struct {
	mtx sync.Mutex
	val T
}

// NewBox returns a new box around val.
func NewBox[T any](val T) *Box[T] {
	return &Box[T]{val: val}
}

// Set the value to val.
func (b *Box[T]) Set(val T) { b.mtx.Lock(); defer b.mtx.Unlock(); b.val = val }

// Get the current value.
func (b *Box[T]) Get() T { b.mtx.Lock(); defer b.mtx.Unlock(); return b.val }

// Swap sets the value to val and returns the previous value.
func (b *Box[T]) Swap(val T) T {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	prev := b.val
	b.val = val
	return prev
}
