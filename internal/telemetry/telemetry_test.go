package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger("warn", &buf)
	require.NoError(t, err)

	log.Info("dropped")
	log.WithField("bill_id", 7).Warn("kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "warning", entry["level"])
	assert.EqualValues(t, 7, entry["bill_id"])

	_, err = NewLogger("loud", nil)
	assert.Error(t, err)
}

func TestSetupTracingDisabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "", "swimclub")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewTracerProvider(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp, err := NewTracerProvider(context.Background(), "swimclub-test", sdktrace.WithSpanProcessor(recorder))
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Resource().Attributes(), attribute.String("service.name", "swimclub-test"))
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestHTTPMetrics(t *testing.T) {
	m := NewMetrics()
	defer m.Shutdown(context.Background())
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/bills/{billID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	for _, target := range []string{"/bills/1", "/bills/2", "/health"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}

	body := scrape(t, m)
	assert.Contains(t, body, `swimclub_http_requests_total{method="GET",route="/bills/{billID}",status="404"} 2`)
	assert.Contains(t, body, `swimclub_http_requests_total{method="GET",route="/health",status="200"} 1`)
	assert.Contains(t, body, "swimclub_http_request_duration_seconds_bucket")
	assert.Contains(t, body, "go_goroutines")
}

func TestOTelInstrumentsAreScraped(t *testing.T) {
	m := NewMetrics()
	defer m.Shutdown(context.Background())

	meter := m.MeterProvider().Meter("test")
	payments, err := meter.Int64Counter("swimclub.ledger.payments")
	require.NoError(t, err)
	open, err := meter.Int64UpDownCounter("swimclub.ledger.open_bills")
	require.NoError(t, err)

	ctx := context.Background()
	payments.Add(ctx, 2, metric.WithAttributes(attribute.String("status", "PAID")))
	payments.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "PARTIALLY_PAID")))
	open.Add(ctx, 3)

	body := scrape(t, m)
	assert.Contains(t, body, `swimclub_ledger_payments_total{status="PAID"} 2`)
	assert.Contains(t, body, `swimclub_ledger_payments_total{status="PARTIALLY_PAID"} 1`)
	assert.Contains(t, body, "swimclub_ledger_open_bills 3")
	assert.NotContains(t, body, "swimclub_otel_collect_error")
}

func TestPromName(t *testing.T) {
	assert.Equal(t, "swimclub_ledger_bills", promName("swimclub.ledger.bills"))
	assert.Equal(t, "member_id", promName("member.id"))
	assert.Equal(t, "a_b", promName("a-b"))
}
