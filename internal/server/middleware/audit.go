package middleware

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"identity-plane/internal/audit"
	"identity-plane/internal/audit/domain"
	auditrepo "identity-plane/internal/audit/repository"
)

// requestMetadata is the JSON stored in Event.Metadata for request audits.
type requestMetadata struct {
	Method     string `json:"method"`
	Route      string `json:"route"`
	Status     int    `json:"status"`
	DurationMs int64  `json:"duration_ms"`
}

// Audit returns middleware that records one audit event per mutating request
// made in an authenticated tenant context. skip holds route patterns to never
// audit. Writes are best-effort: failures are logged and the response is not
// affected.
func Audit(repo auditrepo.Repository, skip map[string]bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if repo == nil || r.Method == http.MethodGet {
				return
			}
			route := chi.RouteContext(r.Context()).RoutePattern()
			if skip[route] {
				return
			}
			tenantID, _ := GetTenantID(r.Context())
			if tenantID == "" {
				return
			}
			actorID, _ := GetUserID(r.Context())

			ar := audit.ParseRoute(r.Method, route)
			result := domain.ResultOK
			if ww.Status() >= http.StatusBadRequest {
				result = domain.ResultError
			}
			meta, _ := json.Marshal(requestMetadata{
				Method:     r.Method,
				Route:      route,
				Status:     ww.Status(),
				DurationMs: time.Since(start).Milliseconds(),
			})
			e := &domain.Event{
				TenantID:  tenantID,
				ActorID:   actorID,
				Action:    ar.Action,
				Resource:  ar.Resource,
				Result:    result,
				IP:        ClientIP(r),
				Metadata:  meta,
				CreatedAt: time.Now().UTC(),
			}
			if err := repo.Create(r.Context(), e); err != nil {
				log.Printf("audit: failed to record %s %s: %v", r.Method, route, err)
			}
		})
	}
}
