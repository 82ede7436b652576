package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/slotarray/pkg/safeconv"
	"github.com/Sumatoshi-tech/slotarray/pkg/slotarray"
)

const (
	metricSubscribesTotal   = "slotarray.registry.subscribes.total"
	metricUnsubscribesTotal = "slotarray.registry.unsubscribes.total"
	metricPublishesTotal    = "slotarray.registry.publishes.total"
	metricDeliveriesTotal   = "slotarray.registry.deliveries.total"
	metricDispatchDuration  = "slotarray.registry.dispatch.duration.seconds"
	metricErrorsTotal       = "slotarray.registry.errors.total"

	metricSlotsCapacity  = "slotarray.slots.capacity"
	metricSlotsLive      = "slotarray.slots.live"
	metricSlotsHighWater = "slotarray.slots.high_water"
	metricSlotsGrows     = "slotarray.slots.grows"

	attrRegistry = "registry"
	attrOp       = "op"
)

// dispatchBucketBoundaries covers 1µs to 1s: a dispatch is one lock-free
// pass over the live range plus the subscriber callbacks.
var dispatchBucketBoundaries = []float64{
	0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1,
}

// SlotMetrics holds the OTel instruments for registry traffic.
type SlotMetrics struct {
	subscribes       metric.Int64Counter
	unsubscribes     metric.Int64Counter
	publishes        metric.Int64Counter
	deliveries       metric.Int64Counter
	dispatchDuration metric.Float64Histogram
	errors           metric.Int64Counter

	meter metric.Meter
}

// NewSlotMetrics creates registry instruments from the given meter.
func NewSlotMetrics(mt metric.Meter) (*SlotMetrics, error) {
	subscribes, err := mt.Int64Counter(metricSubscribesTotal,
		metric.WithDescription("Subscriptions taken"),
		metric.WithUnit("{subscription}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricSubscribesTotal, err)
	}

	unsubscribes, err := mt.Int64Counter(metricUnsubscribesTotal,
		metric.WithDescription("Subscriptions released"),
		metric.WithUnit("{subscription}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricUnsubscribesTotal, err)
	}

	publishes, err := mt.Int64Counter(metricPublishesTotal,
		metric.WithDescription("Values published"),
		metric.WithUnit("{publish}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPublishesTotal, err)
	}

	deliveries, err := mt.Int64Counter(metricDeliveriesTotal,
		metric.WithDescription("Values delivered to subscribers"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricDeliveriesTotal, err)
	}

	dispatch, err := mt.Float64Histogram(metricDispatchDuration,
		metric.WithDescription("Time to dispatch one value to every live subscriber"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(dispatchBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricDispatchDuration, err)
	}

	errs, err := mt.Int64Counter(metricErrorsTotal,
		metric.WithDescription("Failed registry operations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricErrorsTotal, err)
	}

	return &SlotMetrics{
		subscribes:       subscribes,
		unsubscribes:     unsubscribes,
		publishes:        publishes,
		deliveries:       deliveries,
		dispatchDuration: dispatch,
		errors:           errs,
		meter:            mt,
	}, nil
}

// RecordSubscribe counts one subscription on registry.
// Safe to call on a nil receiver (no-op).
func (sm *SlotMetrics) RecordSubscribe(ctx context.Context, registry string) {
	if sm == nil {
		return
	}

	sm.subscribes.Add(ctx, 1, metric.WithAttributes(attribute.String(attrRegistry, registry)))
}

// RecordUnsubscribe counts one released subscription on registry.
// Safe to call on a nil receiver (no-op).
func (sm *SlotMetrics) RecordUnsubscribe(ctx context.Context, registry string) {
	if sm == nil {
		return
	}

	sm.unsubscribes.Add(ctx, 1, metric.WithAttributes(attribute.String(attrRegistry, registry)))
}

// RecordPublish records one dispatch that reached delivered subscribers.
// Safe to call on a nil receiver (no-op).
func (sm *SlotMetrics) RecordPublish(ctx context.Context, registry string, delivered int, duration time.Duration) {
	if sm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrRegistry, registry))

	sm.publishes.Add(ctx, 1, attrs)
	sm.deliveries.Add(ctx, safeconv.IntToInt64(delivered), attrs)
	sm.dispatchDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordError counts a failed op ("subscribe", "unsubscribe", "publish").
// Safe to call on a nil receiver (no-op).
func (sm *SlotMetrics) RecordError(ctx context.Context, registry, op string) {
	if sm == nil {
		return
	}

	sm.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrRegistry, registry),
		attribute.String(attrOp, op),
	))
}

// SlotStatsProvider exposes slot array statistics for OTel export.
type SlotStatsProvider interface {
	Stats() slotarray.Stats
}

// ObserveSlots registers observable gauges reporting capacity, live count,
// high-water mark and growth count of src under the registry attribute name.
// The returned registration stops reporting when unregistered.
// Safe to call on a nil receiver (returns nil, nil).
func (sm *SlotMetrics) ObserveSlots(name string, src SlotStatsProvider) (metric.Registration, error) {
	if sm == nil {
		return nil, nil //nolint:nilnil // nil metrics means nothing to register.
	}

	capacity, err := sm.meter.Int64ObservableGauge(metricSlotsCapacity,
		metric.WithDescription("Allocated slots"),
		metric.WithUnit("{slot}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricSlotsCapacity, err)
	}

	live, err := sm.meter.Int64ObservableGauge(metricSlotsLive,
		metric.WithDescription("Slots holding a live entry"),
		metric.WithUnit("{slot}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricSlotsLive, err)
	}

	highWater, err := sm.meter.Int64ObservableGauge(metricSlotsHighWater,
		metric.WithDescription("Greatest occupied slot index, -1 when empty"),
		metric.WithUnit("{index}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricSlotsHighWater, err)
	}

	grows, err := sm.meter.Int64ObservableCounter(metricSlotsGrows,
		metric.WithDescription("Backing array reallocations"),
		metric.WithUnit("{grow}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricSlotsGrows, err)
	}

	attrs := metric.WithAttributes(attribute.String(attrRegistry, name))

	reg, err := sm.meter.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		stats := src.Stats()

		obs.ObserveInt64(capacity, safeconv.IntToInt64(stats.Capacity), attrs)
		obs.ObserveInt64(live, safeconv.IntToInt64(stats.Live), attrs)
		obs.ObserveInt64(highWater, safeconv.IntToInt64(stats.LastIndex), attrs)
		obs.ObserveInt64(grows, stats.Grows, attrs)

		return nil
	}, capacity, live, highWater, grows)
	if err != nil {
		return nil, fmt.Errorf("register slot gauges for %s: %w", name, err)
	}

	return reg, nil
}
