// internal/telemetry/metrics.go
package telemetry

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Metrics serves one Prometheus registry holding the HTTP request
// collectors, the Go runtime collectors and every OpenTelemetry instrument
// created from MeterProvider.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	gatherer prometheus.Gatherer
	provider *sdkmetric.MeterProvider
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reader := sdkmetric.NewManualReader()
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swimclub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "swimclub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		gatherer: reg,
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
	reg.MustRegister(
		m.requests,
		m.duration,
		&otelCollector{reader: reader},
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// MeterProvider returns the provider whose instruments are scraped at /metrics.
func (m *Metrics) MeterProvider() metric.MeterProvider {
	return m.provider
}

// Shutdown stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// Middleware records every request once the router has matched it.
// Unmatched requests are labelled "unmatched" to keep cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

var collectErrorDesc = prometheus.NewDesc("swimclub_otel_collect_error", "OpenTelemetry metrics could not be collected", nil, nil)

// otelCollector pulls the cumulative OpenTelemetry sums on every scrape. It
// is an unchecked collector: instruments appear as they are created.
type otelCollector struct {
	reader *sdkmetric.ManualReader
}

func (c *otelCollector) Describe(chan<- *prometheus.Desc) {}

func (c *otelCollector) Collect(ch chan<- prometheus.Metric) {
	var rm metricdata.ResourceMetrics
	if err := c.reader.Collect(context.Background(), &rm); err != nil {
		ch <- prometheus.NewInvalidMetric(collectErrorDesc, err)
		return
	}

	for _, scope := range rm.ScopeMetrics {
		for _, md := range scope.Metrics {
			switch data := md.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					emitSum(ch, md, data.IsMonotonic, float64(dp.Value), dp.Attributes.ToSlice())
				}
			case metricdata.Sum[float64]:
				for _, dp := range data.DataPoints {
					emitSum(ch, md, data.IsMonotonic, dp.Value, dp.Attributes.ToSlice())
				}
			}
		}
	}
}

func emitSum(ch chan<- prometheus.Metric, md metricdata.Metrics, monotonic bool, value float64, attrs []attribute.KeyValue) {
	name := promName(md.Name)
	valueType := prometheus.GaugeValue
	if monotonic {
		name += "_total"
		valueType = prometheus.CounterValue
	}

	keys := make([]string, len(attrs))
	values := make([]string, len(attrs))
	for i, kv := range attrs {
		keys[i] = promName(string(kv.Key))
		values[i] = kv.Value.Emit()
	}

	desc := prometheus.NewDesc(name, md.Description, keys, nil)
	pm, err := prometheus.NewConstMetric(desc, valueType, value, values...)
	if err != nil {
		ch <- prometheus.NewInvalidMetric(desc, err)
		return
	}
	ch <- pm
}

// promName maps a dotted instrument or attribute name onto the Prometheus
// name charset.
func promName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == ':':
			return r
		}
		return '_'
	}, s)
}
