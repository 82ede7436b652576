package slotarray

// Stats holds slot array counters and a snapshot of its shape.
type Stats struct {
	Adds        int64
	Removes     int64
	Grows       int64
	SlowRemoves int64 // RemoveSlow calls, successful or not.
	NotFound    int64 // Remove calls that hit an already-empty slot.
	Live        int
	Capacity    int
	LastIndex   int
}

// Occupancy returns the fraction of allocated slots holding a live entry.
func (s Stats) Occupancy() float64 {
	if s.Capacity == 0 {
		return 0
	}

	return float64(s.Live) / float64(s.Capacity)
}

// Stats returns current counters. Counters are read lock-free, so values
// taken during concurrent mutation may be mutually inconsistent.
func (a *Array[T]) Stats() Stats {
	return Stats{
		Adds:        a.adds.Load(),
		Removes:     a.removes.Load(),
		Grows:       a.grows.Load(),
		SlowRemoves: a.slowRemoves.Load(),
		NotFound:    a.notFound.Load(),
		Live:        a.Len(),
		Capacity:    a.Cap(),
		LastIndex:   a.LastIndex(),
	}
}
