package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/ecodash/pkg/alg/lru"
	"github.com/Sumatoshi-tech/ecodash/pkg/observability"
)

func setupTestMeter(t *testing.T) (*observability.REDMetrics, *sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	return red, reader, mp
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func sumValue(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()

	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}

	return total
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()

	assert.Equal(t, "ecodash", cfg.ServiceName)
	assert.Equal(t, observability.ModeCLI, cfg.Mode)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 5, cfg.ShutdownTimeoutSec)
	assert.Empty(t, cfg.OTLPEndpoint)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	level, err := observability.ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = observability.ParseLevel(" WARN ")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = observability.ParseLevel("chatty")
	require.Error(t, err)
}

func TestParseOTLPHeaders(t *testing.T) {
	t.Parallel()

	assert.Nil(t, observability.ParseOTLPHeaders(""))
	assert.Nil(t, observability.ParseOTLPHeaders("garbage"))
	assert.Equal(t,
		map[string]string{"api-key": "secret", "tenant": "eco"},
		observability.ParseOTLPHeaders("api-key=secret, tenant = eco"),
	)
}

func TestInitNoopWhenNoEndpoint(t *testing.T) {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = "1.2.3"
	cfg.Environment = "test"
	cfg.Mode = observability.ModeMCP

	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	assert.Same(t, providers.Logger, slog.Default())

	_, span := providers.Tracer.Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	red, err := observability.NewREDMetrics(providers.Meter)
	require.NoError(t, err)
	red.RecordRequest(context.Background(), "noop", observability.StatusOK, time.Millisecond)

	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestTracingHandlerInjectsTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogJSON = true
	cfg.Environment = "ci"
	logger := observability.NewLogger(&buf, cfg)

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)

	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.WithGroup("extract").InfoContext(ctx, "walked", "commits", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", record["extract"].(map[string]any)["trace_id"])
	assert.Equal(t, "ecodash", record["service"])
	assert.Equal(t, "cli", record["mode"])
	assert.Equal(t, "ci", record["env"])
}

func TestTracingHandlerWithoutSpan(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogJSON = true
	cfg.LogLevel = slog.LevelWarn
	logger := observability.NewLogger(&buf, cfg)

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.NotContains(t, record, "trace_id")
	assert.NotContains(t, record, "env")
}

func TestREDMetricsObserve(t *testing.T) {
	t.Parallel()

	red, reader, _ := setupTestMeter(t)
	ctx := context.Background()

	require.NoError(t, red.Observe(ctx, "resolve", func(context.Context) error { return nil }))

	boom := errors.New("boom")
	err := red.Observe(ctx, "resolve", func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(2), sumValue(t, findMetric(rm, "ecodash.requests.total")))
	assert.Equal(t, int64(1), sumValue(t, findMetric(rm, "ecodash.errors.total")))
	assert.Equal(t, int64(0), sumValue(t, findMetric(rm, "ecodash.inflight.requests")))
	assert.NotNil(t, findMetric(rm, "ecodash.request.duration.seconds"))
}

func TestREDMetricsTrackInflight(t *testing.T) {
	t.Parallel()

	red, reader, _ := setupTestMeter(t)
	ctx := context.Background()

	done := red.TrackInflight(ctx, "stats")
	assert.Equal(t, int64(1), sumValue(t, findMetric(collectMetrics(t, reader), "ecodash.inflight.requests")))

	done()
	assert.Equal(t, int64(0), sumValue(t, findMetric(collectMetrics(t, reader), "ecodash.inflight.requests")))
}

func TestRegisterCacheMetrics(t *testing.T) {
	t.Parallel()

	_, reader, mp := setupTestMeter(t)

	cache := lru.New[string, int](lru.WithMaxEntries[string, int](1))
	cache.Put("a", 1)
	cache.Get("a")
	cache.Get("b")
	cache.Put("b", 2)

	err := observability.RegisterCacheMetrics(mp.Meter("cache"), map[string]func() lru.Stats{
		"summary": cache.Stats,
	})
	require.NoError(t, err)

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(1), sumValue(t, findMetric(rm, "ecodash.cache.hits.total")))
	assert.Equal(t, int64(1), sumValue(t, findMetric(rm, "ecodash.cache.misses.total")))
	assert.Equal(t, int64(1), sumValue(t, findMetric(rm, "ecodash.cache.evictions.total")))
	assert.NotNil(t, findMetric(rm, "ecodash.cache.entries"))
}

func TestHTTPMiddleware(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	red, reader, _ := setupTestMeter(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(rw http.ResponseWriter, _ *http.Request) {
		_, _ = rw.Write([]byte("fine"))
	})
	mux.HandleFunc("/fail", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("GET /items/{id}", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusNotFound)
	})

	handler := observability.HTTPMiddleware(tp.Tracer("test"), red, mux)

	for _, path := range []string{"/ok", "/fail", "/items/7"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	}

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)
	assert.Equal(t, "GET /ok", spans[0].Name)
	assert.Equal(t, "GET /fail", spans[1].Name)
	assert.Equal(t, "Error", spans[1].Status.Code.String())
	assert.Equal(t, "GET /items/{id}", spans[2].Name)
	assert.Equal(t, http.StatusNotFound, statusAttr(spans[2]))

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(3), sumValue(t, findMetric(rm, "ecodash.requests.total")))
	assert.Equal(t, int64(1), sumValue(t, findMetric(rm, "ecodash.errors.total")))
}

func TestHTTPMiddlewareDefaultStatus(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	var seen trace.SpanContext

	inner := http.HandlerFunc(func(_ http.ResponseWriter, hr *http.Request) {
		seen = trace.SpanContextFromContext(hr.Context())
	})

	handler := observability.HTTPMiddleware(tp.Tracer("test"), nil, inner)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	require.True(t, seen.IsValid())

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, seen.SpanID(), spans[0].SpanContext.SpanID())
	assert.Equal(t, http.StatusOK, statusAttr(spans[0]))
}

func statusAttr(span tracetest.SpanStub) int {
	for _, kv := range span.Attributes {
		if kv.Key == "http.response.status_code" {
			return int(kv.Value.AsInt64())
		}
	}

	return 0
}

func TestPrometheusServesRegisteredMetrics(t *testing.T) {
	t.Parallel()

	prom, err := observability.NewPrometheus()
	require.NoError(t, err)

	red, err := observability.NewREDMetrics(prom.Meter())
	require.NoError(t, err)
	red.RecordRequest(context.Background(), "render", observability.StatusOK, time.Second)

	rec := httptest.NewRecorder()
	prom.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ecodash_requests_total")
	assert.Contains(t, rec.Body.String(), "target_info")
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	observability.HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	failing := func(context.Context) error { return errors.New("exchange file missing") }

	rec = httptest.NewRecorder()
	observability.HealthHandler(failing).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable","reason":"exchange file missing"}`, rec.Body.String())
}
