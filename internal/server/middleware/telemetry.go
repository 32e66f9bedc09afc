package middleware

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"identity-plane/internal/telemetry"
	"identity-plane/internal/telemetry/domain"
)

// httpRequestMetadata is the JSON shape stored in Event.Metadata for
// http_request events.
type httpRequestMetadata struct {
	Method     string `json:"method"`
	Route      string `json:"route"`
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
}

// Telemetry returns middleware that records a per-route request counter and
// duration histogram on meter and emits an http_request event after each
// request. Emission is fire-and-forget; skip holds route patterns to leave
// out (health checks).
func Telemetry(meter metric.Meter, emitter telemetry.EventEmitter, skip map[string]bool) func(http.Handler) http.Handler {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("")
	}
	requests, err := meter.Int64Counter("http.server.requests",
		metric.WithDescription("Completed HTTP requests."))
	if err != nil {
		log.Printf("telemetry: counter: %v", err)
	}
	duration, err := meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request duration."), metric.WithUnit("ms"))
	if err != nil {
		log.Printf("telemetry: histogram: %v", err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if skip[route] {
				return
			}
			elapsed := time.Since(start)
			attrs := metric.WithAttributes(
				attribute.String("http.route", route),
				attribute.String("http.method", r.Method),
				attribute.Int("http.status_code", ww.Status()),
			)
			if requests != nil {
				requests.Add(r.Context(), 1, attrs)
			}
			if duration != nil {
				duration.Record(r.Context(), float64(elapsed.Microseconds())/1000, attrs)
			}

			if emitter == nil {
				return
			}
			meta, _ := json.Marshal(httpRequestMetadata{
				Method:     r.Method,
				Route:      route,
				Status:     strconv.Itoa(ww.Status()),
				DurationMs: elapsed.Milliseconds(),
				ClientIP:   ClientIP(r),
			})
			tenantID, _ := GetTenantID(r.Context())
			userID, _ := GetUserID(r.Context())
			sessionID, _ := GetSessionID(r.Context())
			telemetry.EmitAsync(emitter, &domain.Event{
				TenantID:  tenantID,
				UserID:    userID,
				SessionID: sessionID,
				EventType: "http_request",
				Source:    "http_middleware",
				Metadata:  meta,
				CreatedAt: time.Now().UTC(),
			})
		})
	}
}
