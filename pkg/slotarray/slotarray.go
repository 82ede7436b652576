// Package slotarray provides a growable array of reusable slots that hands out
// stable integer handles and supports lock-free snapshot reads.
//
// Every mutation (Add, Remove, RemoveSlow, Clear, Dispose) runs under a gate,
// a [sync.Locker] supplied by the owner and shared with the owner's own state.
// Reads through AsSpan take no lock: the backing table and the high-water mark
// are published with atomic stores, and a grown table is fully built before it
// is published, so a reader sees either the old table or the new one in full.
//
// Freed slots are reused before the array grows. Handles never move: growth
// copies entries to the same indices of the larger table.
package slotarray

import (
	"errors"
	"iter"
	"sync"
	"sync/atomic"
)

const (
	// defaultCapacity is the slot count allocated on the first Add and used
	// when filling from a sequence of unknown length.
	defaultCapacity = 4

	// emptyIndex is the high-water mark of an array with no live entries.
	emptyIndex = -1

	// disposedIndex is the high-water mark of a disposed array.
	disposedIndex = -2
)

var (
	// ErrDisposed is returned by every mutating call after Dispose.
	ErrDisposed = errors.New("slotarray: use after dispose")

	// ErrHandleNotFound is returned by Remove when the slot addressed by an
	// in-range handle is already empty.
	ErrHandleNotFound = errors.New("slotarray: handle not found")

	// ErrNilItem is returned by Add for a nil item; nil marks an empty slot.
	ErrNilItem = errors.New("slotarray: nil item")
)

// backing is one published generation of slot storage. Its length never
// changes after publication; growth publishes a new one.
type backing[T any] struct {
	slots []atomic.Pointer[T]
}

func newBacking[T any](n int) *backing[T] {
	return &backing[T]{slots: make([]atomic.Pointer[T], n)}
}

// Array is a slot array of *T. The zero value is not usable; construct with
// New, FromSlice, FromSeq or FromCollection.
type Array[T any] struct {
	gate  sync.Locker
	table atomic.Pointer[backing[T]]
	last  atomic.Int64 // High-water mark, emptyIndex or disposedIndex.
	live  atomic.Int64

	// Metrics (atomic for lock-free reads).
	adds        atomic.Int64
	removes     atomic.Int64
	grows       atomic.Int64
	slowRemoves atomic.Int64
	notFound    atomic.Int64
}

// Option configures an Array.
type Option[T any] func(*Array[T])

// WithCapacity preallocates n empty slots. n <= 0 keeps allocation lazy.
func WithCapacity[T any](n int) Option[T] {
	return func(a *Array[T]) {
		if n > 0 {
			a.table.Store(newBacking[T](n))
		}
	}
}

// Collection is a source whose length is known without consuming it.
type Collection[T any] interface {
	Len() int
	All() iter.Seq[*T]
}

// New creates an empty array serialized by gate. No slots are allocated until
// the first Add unless WithCapacity is given. New panics if gate is nil.
func New[T any](gate sync.Locker, opts ...Option[T]) *Array[T] {
	if gate == nil {
		panic("slotarray: nil gate")
	}

	a := &Array[T]{gate: gate}
	a.last.Store(emptyIndex)

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// FromSlice creates an array holding items at indices 0..len(items)-1.
// nil items leave their slot empty.
func FromSlice[T any](gate sync.Locker, items []*T) *Array[T] {
	a := New(gate, WithCapacity[T](len(items)))

	a.gate.Lock()
	defer a.gate.Unlock()

	tbl := a.table.Load()

	for i, item := range items {
		if item != nil {
			a.storeLocked(tbl, i, item)
		}
	}

	return a
}

// FromSeq creates an array from a sequence of unknown length. It starts with
// the default capacity and grows while filling. nil items are skipped.
func FromSeq[T any](gate sync.Locker, seq iter.Seq[*T]) *Array[T] {
	a := New(gate, WithCapacity[T](defaultCapacity))
	a.fill(seq)

	return a
}

// FromCollection creates an array sized exactly to c.Len() and fills it from
// c.All(). nil items are skipped.
func FromCollection[T any](gate sync.Locker, c Collection[T]) *Array[T] {
	a := New(gate, WithCapacity[T](c.Len()))
	a.fill(c.All())

	return a
}

// fill adds every non-nil item of seq in order.
func (a *Array[T]) fill(seq iter.Seq[*T]) {
	a.gate.Lock()
	defer a.gate.Unlock()

	for item := range seq {
		if item != nil {
			a.addLocked(item)
		}
	}
}

// Cap returns the number of allocated slots (lock-free).
func (a *Array[T]) Cap() int {
	tbl := a.table.Load()
	if tbl == nil {
		return 0
	}

	return len(tbl.slots)
}

// LastIndex returns the high-water mark: the greatest occupied index,
// -1 when empty, -2 once disposed (lock-free).
func (a *Array[T]) LastIndex() int { return int(a.last.Load()) }

// Len returns the number of live entries (lock-free).
func (a *Array[T]) Len() int { return int(a.live.Load()) }

// Disposed reports whether Dispose has been called (lock-free).
func (a *Array[T]) Disposed() bool { return a.last.Load() == disposedIndex }
