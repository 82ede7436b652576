package slotarray_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/slotarray/pkg/slotarray"
)

const (
	// testWriters is the number of goroutines adding and removing entries.
	testWriters = 16

	// testReaders is the number of goroutines iterating snapshots.
	testReaders = 4

	// testOpsPerWriter is the number of add/remove rounds per writer.
	testOpsPerWriter = 500

	// testHeldPerWriter is how many handles a writer keeps before releasing.
	testHeldPerWriter = 8
)

// owned is a test entry tagged with the writer that inserted it.
type owned struct {
	writer int
	seq    int
}

func TestConcurrent_AddRemoveWithReaders(t *testing.T) {
	t.Parallel()

	var gate sync.Mutex

	arr := slotarray.New[owned](&gate)

	var (
		stop    atomic.Bool
		readers sync.WaitGroup
		writers sync.WaitGroup
	)

	for range testReaders {
		readers.Add(1)

		go func() {
			defer readers.Done()

			for !stop.Load() {
				view := arr.AsSpan()
				for idx, item := range view.All() {
					if idx >= view.Len() || item == nil {
						t.Errorf("view yielded index %d outside [0,%d) or nil entry", idx, view.Len())

						return
					}
				}
			}
		}()
	}

	for w := range testWriters {
		writers.Add(1)

		go func() {
			defer writers.Done()

			held := make(map[int]*owned, testHeldPerWriter)

			for seq := range testOpsPerWriter {
				item := &owned{writer: w, seq: seq}

				h, err := arr.Add(item)
				if !assert.NoError(t, err) {
					return
				}

				// Only this writer can release h, so the slot must still hold item.
				view := arr.AsSpan()
				if assert.Greater(t, view.Len(), h) {
					assert.Same(t, item, view.At(h), "handle %d shared between live entries", h)
				}

				_, dup := held[h]
				assert.False(t, dup, "handle %d handed out while still held", h)

				held[h] = item

				if len(held) >= testHeldPerWriter {
					for hh := range held {
						assert.NoError(t, arr.Remove(hh))
						delete(held, hh)

						break
					}
				}
			}

			for hh := range held {
				assert.NoError(t, arr.Remove(hh))
			}
		}()
	}

	writers.Wait()
	stop.Store(true)
	readers.Wait()

	assert.Equal(t, 0, arr.Len())
	assert.Equal(t, -1, arr.LastIndex())

	stats := arr.Stats()
	require.Equal(t, int64(testWriters*testOpsPerWriter), stats.Adds)
	assert.Equal(t, stats.Adds, stats.Removes)
	assert.LessOrEqual(t, stats.Capacity, testWriters*testHeldPerWriter*2)
}

func TestConcurrent_DisposeDuringReads(t *testing.T) {
	t.Parallel()

	arr := slotarray.New[owned](&sync.Mutex{})

	for i := range 64 {
		_, err := arr.Add(&owned{seq: i})
		require.NoError(t, err)
	}

	var wg sync.WaitGroup

	for range testReaders {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 1000 {
				view := arr.AsSpan()
				for i := range view.Len() {
					_ = view.At(i)
				}
			}
		}()
	}

	arr.Dispose()
	wg.Wait()

	assert.Equal(t, 0, arr.AsSpan().Len())
}
