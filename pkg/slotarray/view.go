package slotarray

import (
	"iter"
	"sync/atomic"
)

// View is a read-only window over the live range of an Array taken without
// the gate. It reflects the table that was current when AsSpan ran: entries
// added later may be missing and entries removed later may still be present
// or read as nil, but every index below Len is within the table's bounds.
type View[T any] struct {
	slots []atomic.Pointer[T]
}

// AsSpan returns a lock-free view over slots [0, LastIndex()]. It is empty
// when nothing was ever allocated or the array is disposed.
func (a *Array[T]) AsSpan() View[T] {
	last := a.last.Load()
	tbl := a.table.Load()

	if tbl == nil || last < 0 {
		return View[T]{}
	}

	n := min(int(last)+1, len(tbl.slots))

	return View[T]{slots: tbl.slots[:n:n]}
}

// Len returns the number of slots in the view, empty ones included.
func (v View[T]) Len() int { return len(v.slots) }

// At returns the entry at index i, or nil when the slot is empty.
// It panics if i is outside [0, Len()).
func (v View[T]) At(i int) *T { return v.slots[i].Load() }

// All yields the index and entry of every occupied slot in index order.
func (v View[T]) All() iter.Seq2[int, *T] {
	return func(yield func(int, *T) bool) {
		for i := range v.slots {
			item := v.slots[i].Load()
			if item == nil {
				continue
			}

			if !yield(i, item) {
				return
			}
		}
	}
}

// Values yields every occupied entry in index order.
func (v View[T]) Values() iter.Seq[*T] {
	return func(yield func(*T) bool) {
		for _, item := range v.All() {
			if !yield(item) {
				return
			}
		}
	}
}

// AppendTo appends every slot of the view to dst, nil for empty ones, so the
// entry for handle h lands at dst[len(dst)+h].
func (v View[T]) AppendTo(dst []*T) []*T {
	for i := range v.slots {
		dst = append(dst, v.slots[i].Load())
	}

	return dst
}
