package stress

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"

	"github.com/Sumatoshi-tech/slotarray/pkg/registry"
)

// held is one subscription owned by a worker.
type held struct {
	sub *registry.Subscription

	// lastSeq is the publish sequence this subscriber saw last.
	lastSeq atomic.Uint64
}

// work runs one worker's share of the operations. Subscriptions still held
// at the end are released so the registry drains.
func (r *run) work(ctx context.Context, worker int) {
	rng := rand.New(rand.NewPCG(r.opts.Seed, uint64(worker)))
	owned := make([]*held, 0, ownedHint(r.opts))

	defer func() {
		for _, h := range owned {
			if r.release(worker, h) {
				r.drained.Add(1)
			}
		}
	}()

	for range r.opts.Ops {
		if ctx.Err() != nil {
			return
		}

		roll := rng.Float64()

		switch {
		case roll < r.opts.SubscribeRatio:
			if h := r.subscribe(worker); h != nil {
				owned = append(owned, h)
			}
		case roll < r.opts.SubscribeRatio+r.opts.PublishRatio:
			r.publish(ctx)
		default:
			if len(owned) == 0 {
				continue
			}

			idx := rng.IntN(len(owned))
			if r.release(worker, owned[idx]) {
				r.unsubscribes.Add(1)
			}

			owned[idx] = owned[len(owned)-1]
			owned = owned[:len(owned)-1]
		}
	}
}

// ownedHint sizes a worker's subscription list. A worker never holds more
// than MaxLive subscriptions.
func ownedHint(opts Options) int {
	return min(opts.Ops, opts.MaxLive)
}

func (r *run) subscribe(worker int) *held {
	if r.reg.Len() >= r.opts.MaxLive {
		r.skipped.Add(1)

		return nil
	}

	h := &held{}

	sub, err := r.reg.Subscribe(func(_ context.Context, seq uint64) {
		r.deliveries.Add(1)

		if h.lastSeq.Swap(seq) == seq {
			r.violate("publish %d delivered twice to one subscriber", seq)
		}
	})
	if err != nil {
		r.violate("worker %d: subscribe: %v", worker, err)

		return nil
	}

	h.sub = sub
	r.subscribes.Add(1)

	if prev, loaded := r.owners.LoadOrStore(sub.Handle(), worker); loaded {
		r.violate("handle %d handed to worker %d while held by worker %v", sub.Handle(), worker, prev)
	}

	return h
}

// release forgets the handle before giving it back so a reuse by another
// worker is never reported as a duplicate. It reports whether the
// subscription was given back.
func (r *run) release(worker int, h *held) bool {
	r.owners.Delete(h.sub.Handle())

	if err := h.sub.Unsubscribe(); err != nil {
		r.violate("worker %d: unsubscribe %d: %v", worker, h.sub.Handle(), err)

		return false
	}

	return true
}

func (r *run) publish(ctx context.Context) {
	// Sequence numbers start at 1 so a fresh subscriber's zero never matches.
	seq := r.seq.Add(1)

	_, err := r.reg.Publish(ctx, seq)
	if err != nil {
		r.opts.Logger.DebugContext(ctx, "publish interrupted", slog.Any("error", err))

		return
	}

	r.publishes.Add(1)
}
