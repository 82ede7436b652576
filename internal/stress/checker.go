package stress

import (
	"context"
	"time"
)

// check samples the registry every SampleInterval until ctx is done.
func (r *run) check(ctx context.Context, start time.Time) []Sample {
	ticker := time.NewTicker(r.opts.SampleInterval)
	defer ticker.Stop()

	samples := []Sample{r.sample(start)}

	for {
		select {
		case <-ctx.Done():
			return append(samples, r.sample(start))
		case <-ticker.C:
			samples = append(samples, r.sample(start))
		}
	}
}

// sample takes one lock-free observation and checks what must hold even
// while writers run: view handles are strictly ascending and the view never
// outgrows the table. Capacity only grows during a run, so reading it after
// the view bounds the view from above.
func (r *run) sample(start time.Time) Sample {
	handles := r.reg.Handles()
	stats := r.reg.Stats()

	for i := 1; i < len(handles); i++ {
		if handles[i] <= handles[i-1] {
			r.violate("view yielded handle %d after %d", handles[i], handles[i-1])
		}
	}

	viewLen := 0
	if len(handles) > 0 {
		viewLen = handles[len(handles)-1] + 1
	}

	if viewLen > stats.Capacity {
		r.violate("view reaches index %d beyond capacity %d", viewLen-1, stats.Capacity)
	}

	return Sample{
		Elapsed:   time.Since(start),
		Capacity:  stats.Capacity,
		Live:      stats.Live,
		HighWater: stats.LastIndex,
		ViewLen:   viewLen,
	}
}

// verifyDrained checks the quiescent state after every worker released its
// subscriptions.
func (r *run) verifyDrained() {
	if n := r.reg.Len(); n != 0 {
		r.violate("%d subscribers left after drain", n)
	}

	if handles := r.reg.Handles(); len(handles) != 0 {
		r.violate("view still yields handles %v after drain", handles)
	}

	if last := r.reg.Stats().LastIndex; last != -1 {
		r.violate("high-water mark %d after drain, want -1", last)
	}

	r.owners.Range(func(handle, worker any) bool {
		r.violate("handle %v still owned by worker %v after drain", handle, worker)

		return true
	})
}
