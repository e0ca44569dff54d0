package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// httpMetrics counts requests and their latency per route pattern, so that
// /members/{id} is one series rather than one per member.
func httpMetrics() func(http.Handler) http.Handler {
	meter := otel.Meter("atlasgym/server")
	requests, err := meter.Int64Counter("atlasgym.http.requests", metric.WithDescription("HTTP requests served"))
	if err != nil {
		slog.Warn("http request counter unavailable", "error", err)
	}
	latency, err := meter.Float64Histogram("atlasgym.http.duration", metric.WithUnit("s"))
	if err != nil {
		slog.Warn("http latency histogram unavailable", "error", err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)

			route := "unknown"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			attrs := metric.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.Int("http.status_code", rec.status),
			)
			if requests != nil {
				requests.Add(r.Context(), 1, attrs)
			}
			if latency != nil {
				latency.Record(r.Context(), time.Since(start).Seconds(), attrs)
			}
		})
	}
}
