package slotarray

import "fmt"

// Add stores item in the leftmost empty slot, growing the array by half its
// length when full, and returns the slot index as the handle.
func (a *Array[T]) Add(item *T) (int, error) {
	a.gate.Lock()
	defer a.gate.Unlock()

	if a.last.Load() == disposedIndex {
		return emptyIndex, ErrDisposed
	}

	if item == nil {
		return emptyIndex, ErrNilItem
	}

	return a.addLocked(item), nil
}

// addLocked performs Add under the gate on a non-disposed array.
func (a *Array[T]) addLocked(item *T) int {
	tbl := a.table.Load()
	if tbl == nil {
		tbl = newBacking[T](defaultCapacity)
		a.table.Store(tbl)
	}

	idx := firstEmpty(tbl.slots)
	if idx < 0 {
		idx = len(tbl.slots)
		tbl = a.growLocked(tbl)
	}

	a.storeLocked(tbl, idx, item)
	a.adds.Add(1)

	return idx
}

// storeLocked fills an empty slot and raises the high-water mark after the
// slot store, so a reader that observes the new mark also observes the item.
func (a *Array[T]) storeLocked(tbl *backing[T], idx int, item *T) {
	tbl.slots[idx].Store(item)
	a.live.Add(1)

	if int64(idx) > a.last.Load() {
		a.last.Store(int64(idx))
	}
}

// growLocked copies tbl into a table 1.5x its length (at least one slot
// larger) and publishes the copy.
func (a *Array[T]) growLocked(tbl *backing[T]) *backing[T] {
	n := len(tbl.slots)
	grown := newBacking[T](n + max(n/2, 1))

	for i := range tbl.slots {
		grown.slots[i].Store(tbl.slots[i].Load())
	}

	a.table.Store(grown)
	a.grows.Add(1)

	return grown
}

// Remove empties the slot addressed by handle. A handle outside the allocated
// range is ignored; an in-range handle whose slot is already empty yields
// ErrHandleNotFound.
func (a *Array[T]) Remove(handle int) error {
	a.gate.Lock()
	defer a.gate.Unlock()

	if a.last.Load() == disposedIndex {
		return ErrDisposed
	}

	tbl := a.table.Load()
	if tbl == nil || handle < 0 || handle >= len(tbl.slots) {
		return nil
	}

	return a.removeLocked(tbl, handle)
}

func (a *Array[T]) removeLocked(tbl *backing[T], handle int) error {
	if tbl.slots[handle].Load() == nil {
		a.notFound.Add(1)

		return fmt.Errorf("%w: %d", ErrHandleNotFound, handle)
	}

	tbl.slots[handle].Store(nil)
	a.live.Add(-1)
	a.removes.Add(1)

	if int64(handle) == a.last.Load() {
		a.last.Store(int64(lastOccupied(tbl.slots[:handle])))
	}

	return nil
}

// RemoveSlow finds value by identity and removes it. The search covers
// [0, LastIndex()), so the entry sitting at the high-water mark itself is not
// found by this path. It reports whether an entry was removed.
func (a *Array[T]) RemoveSlow(value *T) (bool, error) {
	a.gate.Lock()
	defer a.gate.Unlock()

	last := a.last.Load()
	if last == disposedIndex {
		return false, ErrDisposed
	}

	a.slowRemoves.Add(1)

	tbl := a.table.Load()
	if tbl == nil || value == nil {
		return false, nil
	}

	bound := min(int(last), len(tbl.slots))

	for i := range bound {
		if tbl.slots[i].Load() == value {
			return true, a.removeLocked(tbl, i)
		}
	}

	return false, nil
}

// Clear empties every slot up to the high-water mark and resets the mark to -1.
// With removeArray the backing storage is dropped as well and the next Add
// allocates from scratch; otherwise its capacity is kept.
func (a *Array[T]) Clear(removeArray bool) error {
	a.gate.Lock()
	defer a.gate.Unlock()

	last := a.last.Load()
	if last == disposedIndex {
		return ErrDisposed
	}

	a.last.Store(emptyIndex)

	tbl := a.table.Load()
	if tbl != nil {
		for i := range min(int(last)+1, len(tbl.slots)) {
			tbl.slots[i].Store(nil)
		}
	}

	if removeArray {
		a.table.Store(nil)
	}

	a.live.Store(0)

	return nil
}

// Dispose releases the backing storage and permanently forbids mutation.
// Calling it again has no effect.
func (a *Array[T]) Dispose() {
	a.gate.Lock()
	defer a.gate.Unlock()

	if a.last.Load() == disposedIndex {
		return
	}

	a.table.Store(nil)
	a.last.Store(disposedIndex)
	a.live.Store(0)
}
