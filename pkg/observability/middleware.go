package observability

import (
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// recorder remembers the first status written through it.
type recorder struct {
	http.ResponseWriter

	status int
}

func (r *recorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}

	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(buf []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}

	return r.ResponseWriter.Write(buf)
}

func (r *recorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}

	return r.status
}

// HTTPMiddleware starts a server span per request and continues any W3C
// trace context found in the headers. Spans are named "METHOD route" where
// route is the ServeMux pattern that matched, or the raw path when next is
// not a mux. When red is non-nil the request is also counted under op
// "http <route>". Responses with a 5xx status are errors.
func HTTPMiddleware(tracer trace.Tracer, red *REDMetrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		start := time.Now()

		ctx := otel.GetTextMapPropagator().Extract(hr.Context(), propagation.HeaderCarrier(hr.Header))
		ctx, span := tracer.Start(ctx, hr.Method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(semconv.HTTPRequestMethodKey.String(hr.Method), semconv.URLPath(hr.URL.Path)),
		)
		defer span.End()

		rec := &recorder{ResponseWriter: rw}
		req := hr.WithContext(ctx)

		if red != nil {
			defer red.TrackInflight(ctx, "http")()
		}

		next.ServeHTTP(rec, req)

		route := routeOf(req)
		span.SetName(hr.Method + " " + route)
		span.SetAttributes(semconv.HTTPRoute(route), semconv.HTTPResponseStatusCode(rec.code()))

		status := StatusOK
		if rec.code() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.code()))

			status = StatusError
		}

		if red != nil {
			red.RecordRequest(ctx, "http "+route, status, time.Since(start))
		}
	})
}

// routeOf strips the method from the matched mux pattern.
func routeOf(req *http.Request) string {
	if req.Pattern == "" {
		return req.URL.Path
	}

	if _, route, ok := strings.Cut(req.Pattern, " "); ok {
		return route
	}

	return req.Pattern
}
