package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Prometheus couples a scrape handler with the meter provider feeding it.
type Prometheus struct {
	Handler  http.Handler
	Provider *sdkmetric.MeterProvider
}

// NewPrometheus creates an OTel meter provider read by a Prometheus
// exporter on a private registry, so repeated calls never collide.
func NewPrometheus() (*Prometheus, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return &Prometheus{
		Handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)),
	}, nil
}

// Meter returns the ecodash meter backed by the scrape registry.
func (p *Prometheus) Meter() metric.Meter {
	return p.Provider.Meter(instrumentationName)
}
