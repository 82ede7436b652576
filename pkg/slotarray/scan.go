package slotarray

import (
	"sync/atomic"
	"unsafe"

	"github.com/Sumatoshi-tech/slotarray/pkg/slotarray/internal/wordscan"
)

func init() {
	if unsafe.Sizeof(atomic.Pointer[byte]{}) != unsafe.Sizeof(uintptr(0)) {
		panic("slotarray: atomic.Pointer is not a single machine word")
	}
}

// slotWords views slots as raw machine words, zero for an empty slot.
// Callers must hold the gate: the words are read without atomics, which is
// only race-free while no other goroutine can store into the slots.
func slotWords[T any](slots []atomic.Pointer[T]) []uintptr {
	if len(slots) == 0 {
		return nil
	}

	return unsafe.Slice((*uintptr)(unsafe.Pointer(unsafe.SliceData(slots))), len(slots))
}

// firstEmpty returns the index of the leftmost empty slot, or -1.
func firstEmpty[T any](slots []atomic.Pointer[T]) int {
	return wordscan.IndexZero(slotWords(slots))
}

// lastOccupied returns the index of the rightmost occupied slot, or -1.
func lastOccupied[T any](slots []atomic.Pointer[T]) int {
	return wordscan.LastIndexNonZero(slotWords(slots))
}
