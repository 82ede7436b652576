// Package registry implements an observer registry on top of a slot array.
// Subscribing and unsubscribing take the registry mutex; Publish walks the
// live subscribers through a lock-free view and never contends with them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/slotarray/pkg/observability"
	"github.com/Sumatoshi-tech/slotarray/pkg/slotarray"
)

const (
	opSubscribe   = "subscribe"
	opUnsubscribe = "unsubscribe"
	opPublish     = "publish"

	attrName      = "registry.name"
	attrDelivered = "registry.delivered"
)

var (
	// ErrClosed is returned by Subscribe after Close. It wraps
	// slotarray.ErrDisposed.
	ErrClosed = errors.New("registry: closed")

	// ErrNilHandler is returned by Subscribe for a nil handler.
	ErrNilHandler = errors.New("registry: nil handler")
)

// Handler receives published values.
type Handler[V any] func(ctx context.Context, v V)

type subscriber[V any] struct {
	fn Handler[V]
}

// Registry fans published values out to its subscribers.
type Registry[V any] struct {
	name string

	// mu is the gate of subs and also guards gauges. It is not reentrant:
	// the registry never calls into subs while holding it.
	mu     sync.Mutex
	subs   *slotarray.Array[subscriber[V]]
	gauges metric.Registration

	// closing is set by the first Close call.
	closing atomic.Bool

	logger  *slog.Logger
	metrics *observability.SlotMetrics
	tracer  trace.Tracer
}

// New creates a registry called name. The name labels logs, metrics and spans.
func New[V any](name string, opts ...Option) (*Registry[V], error) {
	s := settings{logger: slog.Default()}

	for _, opt := range opts {
		opt(&s)
	}

	r := &Registry[V]{
		name:    name,
		logger:  s.logger.With(slog.String(attrName, name)),
		metrics: s.metrics,
		tracer:  s.tracer,
	}

	r.subs = slotarray.New(&r.mu, slotarray.WithCapacity[subscriber[V]](s.capacity))

	gauges, err := r.metrics.ObserveSlots(name, r.subs)
	if err != nil {
		return nil, fmt.Errorf("registry %s: %w", name, err)
	}

	r.gauges = gauges

	return r, nil
}

// Name returns the registry name.
func (r *Registry[V]) Name() string { return r.name }

// Len returns the number of live subscriptions.
func (r *Registry[V]) Len() int { return r.subs.Len() }

// Closed reports whether Close has been called.
func (r *Registry[V]) Closed() bool { return r.subs.Disposed() }

// Stats returns the underlying slot array statistics.
func (r *Registry[V]) Stats() slotarray.Stats { return r.subs.Stats() }

// Handles returns the handles of the live subscribers in ascending order,
// read through a lock-free view.
func (r *Registry[V]) Handles() []int {
	var handles []int

	for handle := range r.subs.AsSpan().All() {
		handles = append(handles, handle)
	}

	return handles
}

// Subscribe registers fn and returns the subscription that releases it.
func (r *Registry[V]) Subscribe(fn Handler[V]) (*Subscription, error) {
	ctx := context.Background()

	if fn == nil {
		r.metrics.RecordError(ctx, r.name, opSubscribe)

		return nil, ErrNilHandler
	}

	handle, err := r.subs.Add(&subscriber[V]{fn: fn})
	if err != nil {
		r.metrics.RecordError(ctx, r.name, opSubscribe)

		if errors.Is(err, slotarray.ErrDisposed) {
			return nil, fmt.Errorf("%w: %w", ErrClosed, err)
		}

		return nil, fmt.Errorf("subscribe to %s: %w", r.name, err)
	}

	r.metrics.RecordSubscribe(ctx, r.name)
	r.logger.Debug("subscribed", slog.Int("handle", handle))

	return &Subscription{handle: handle, release: r.unsubscribe}, nil
}

func (r *Registry[V]) unsubscribe(handle int) error {
	ctx := context.Background()

	err := r.subs.Remove(handle)

	switch {
	case err == nil:
		r.metrics.RecordUnsubscribe(ctx, r.name)
		r.logger.Debug("unsubscribed", slog.Int("handle", handle))

		return nil
	case errors.Is(err, slotarray.ErrDisposed):
		// Close already released every subscriber.
		return nil
	default:
		r.metrics.RecordError(ctx, r.name, opUnsubscribe)
		r.logger.Warn("unsubscribe failed", slog.Int("handle", handle), slog.Any("error", err))

		return fmt.Errorf("unsubscribe from %s: %w", r.name, err)
	}
}

// Publish delivers v to every live subscriber in handle order and returns how
// many were reached. Subscriptions taken or released during the call may or
// may not observe v. When ctx is cancelled Publish stops between deliveries
// and returns the count so far with ctx's error.
func (r *Registry[V]) Publish(ctx context.Context, v V) (int, error) {
	var span trace.Span

	if r.tracer != nil {
		ctx, span = r.tracer.Start(ctx, "registry.publish",
			trace.WithAttributes(attribute.String(attrName, r.name)))
		defer span.End()
	}

	start := time.Now()
	delivered := 0

	var err error

	for _, sub := range r.subs.AsSpan().All() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("publish to %s: %w", r.name, ctxErr)

			break
		}

		sub.fn(ctx, v)
		delivered++
	}

	r.metrics.RecordPublish(ctx, r.name, delivered, time.Since(start))

	if err != nil {
		r.metrics.RecordError(ctx, r.name, opPublish)
	}

	if span != nil {
		span.SetAttributes(attribute.Int(attrDelivered, delivered))

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "publish interrupted")
		}
	}

	return delivered, err
}

// Close releases every subscriber and stops metric reporting. Later
// Subscribe calls fail with ErrClosed; outstanding subscriptions become
// no-ops. Close is idempotent.
func (r *Registry[V]) Close() error {
	r.mu.Lock()
	gauges := r.gauges
	r.gauges = nil
	r.mu.Unlock()

	var err error

	if gauges != nil {
		err = gauges.Unregister()
	}

	first := r.closing.CompareAndSwap(false, true)

	r.subs.Dispose()

	if first {
		r.logger.Info("registry closed")
	}

	if err != nil {
		return fmt.Errorf("close %s: %w", r.name, err)
	}

	return nil
}

// Subscription is the caller's claim on one registered handler.
type Subscription struct {
	handle   int
	release  func(handle int) error
	released atomic.Bool
}

// Handle returns the slot handle backing the subscription.
func (s *Subscription) Handle() int { return s.handle }

// Unsubscribe releases the handler. Calls after the first return nil.
func (s *Subscription) Unsubscribe() error {
	if s.released.Swap(true) {
		return nil
	}

	return s.release(s.handle)
}
