package slotarray

// FirstEmpty exposes the word-scan free-slot search over the current table.
func FirstEmpty[T any](a *Array[T]) int {
	a.gate.Lock()
	defer a.gate.Unlock()

	tbl := a.table.Load()
	if tbl == nil {
		return emptyIndex
	}

	return firstEmpty(tbl.slots)
}

// LastOccupied exposes the word-scan high-water search over the current table.
func LastOccupied[T any](a *Array[T]) int {
	a.gate.Lock()
	defer a.gate.Unlock()

	tbl := a.table.Load()
	if tbl == nil {
		return emptyIndex
	}

	return lastOccupied(tbl.slots)
}
