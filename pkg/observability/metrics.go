package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/ecodash/pkg/alg/lru"
)

const (
	metricRequestsTotal    = "ecodash.requests.total"
	metricRequestDuration  = "ecodash.request.duration.seconds"
	metricErrorsTotal      = "ecodash.errors.total"
	metricInflightRequests = "ecodash.inflight.requests"

	metricCacheHits      = "ecodash.cache.hits.total"
	metricCacheMisses    = "ecodash.cache.misses.total"
	metricCacheEvictions = "ecodash.cache.evictions.total"
	metricCacheEntries   = "ecodash.cache.entries"

	attrOp     = "op"
	attrStatus = "status"
	attrCache  = "cache"

	// StatusOK and StatusError are the status attribute values.
	StatusOK    = "ok"
	StatusError = "error"
)

// durationBucketBoundaries spans a memo hit (milliseconds) up to a cold
// clone and full history walk of a large repository (minutes).
var durationBucketBoundaries = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// REDMetrics holds the Rate, Error, Duration instruments.
type REDMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	inflightRequests metric.Int64UpDownCounter
}

// NewREDMetrics creates RED metric instruments from the given meter.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	reqTotal, err := mt.Int64Counter(metricRequestsTotal,
		metric.WithDescription("Total number of requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestsTotal, err)
	}

	reqDuration, err := mt.Float64Histogram(metricRequestDuration,
		metric.WithDescription("Request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestDuration, err)
	}

	errTotal, err := mt.Int64Counter(metricErrorsTotal,
		metric.WithDescription("Total number of errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricErrorsTotal, err)
	}

	inflight, err := mt.Int64UpDownCounter(metricInflightRequests,
		metric.WithDescription("Number of in-flight requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricInflightRequests, err)
	}

	return &REDMetrics{
		requestsTotal:    reqTotal,
		requestDuration:  reqDuration,
		errorsTotal:      errTotal,
		inflightRequests: inflight,
	}, nil
}

// RecordRequest records a completed request.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOp, op)))
	}
}

// TrackInflight increments the in-flight gauge and returns its decrement.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightRequests.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRequests.Add(ctx, -1, attrs)
	}
}

// Observe runs fn as operation op, recording duration, status and in-flight count.
func (rm *REDMetrics) Observe(ctx context.Context, op string, fn func(context.Context) error) error {
	done := rm.TrackInflight(ctx, op)
	defer done()

	start := time.Now()
	err := fn(ctx)

	status := StatusOK
	if err != nil {
		status = StatusError
	}

	rm.RecordRequest(ctx, op, status, time.Since(start))

	return err
}

// RegisterCacheMetrics exports the counters of named LRU caches as
// observable instruments read at collection time.
func RegisterCacheMetrics(mt metric.Meter, caches map[string]func() lru.Stats) error {
	hits, err := mt.Int64ObservableCounter(metricCacheHits,
		metric.WithDescription("Memo cache hits"), metric.WithUnit("{hit}"))
	if err != nil {
		return fmt.Errorf("create %s: %w", metricCacheHits, err)
	}

	misses, err := mt.Int64ObservableCounter(metricCacheMisses,
		metric.WithDescription("Memo cache misses"), metric.WithUnit("{miss}"))
	if err != nil {
		return fmt.Errorf("create %s: %w", metricCacheMisses, err)
	}

	evictions, err := mt.Int64ObservableCounter(metricCacheEvictions,
		metric.WithDescription("Memo cache evictions"), metric.WithUnit("{eviction}"))
	if err != nil {
		return fmt.Errorf("create %s: %w", metricCacheEvictions, err)
	}

	entries, err := mt.Int64ObservableGauge(metricCacheEntries,
		metric.WithDescription("Memo cache entries"), metric.WithUnit("{entry}"))
	if err != nil {
		return fmt.Errorf("create %s: %w", metricCacheEntries, err)
	}

	_, err = mt.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		for name, statsFn := range caches {
			st := statsFn()
			attrs := metric.WithAttributes(attribute.String(attrCache, name))

			obs.ObserveInt64(hits, st.Hits, attrs)
			obs.ObserveInt64(misses, st.Misses, attrs)
			obs.ObserveInt64(evictions, st.Evictions, attrs)
			obs.ObserveInt64(entries, int64(st.Entries), attrs)
		}

		return nil
	}, hits, misses, evictions, entries)
	if err != nil {
		return fmt.Errorf("register cache callback: %w", err)
	}

	return nil
}
