package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/gridops/netops-engine/internal/database"
	"github.com/gridops/netops-engine/internal/metrics"
	"github.com/gridops/netops-engine/internal/reqctx"
)

const (
	headerRequestID = "X-Request-ID"
	headerActorID   = "X-Actor-ID"
	headerActorRole = "X-Actor-Role"
)

// RequestIDMiddleware tags every request with an ID for log and audit
// correlation, honoring an inbound X-Request-ID when present.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(headerRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(reqctx.WithRequestID(r.Context(), requestID)))
	})
}

// ActorMiddleware reads the actor identity the upstream gateway injects.
// Requests without an actor run as system (actor 0).
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if raw := r.Header.Get(headerActorID); raw != "" {
			if actorID, err := strconv.ParseInt(raw, 10, 64); err == nil && actorID > 0 {
				role := database.Role(r.Header.Get(headerActorRole))
				ctx = reqctx.WithActor(ctx, actorID, role)
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// MetricsMiddleware records request counts and latencies, labeled by the mux
// route template so path cardinality stays bounded.
func MetricsMiddleware(collector *metrics.Collector) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, r)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if template, err := route.GetPathTemplate(); err == nil {
					path = template
				}
			}

			collector.HTTPRequests.WithLabelValues(
				r.Method, path, strconv.Itoa(recorder.status)).Inc()
			collector.HTTPRequestDuration.WithLabelValues(
				r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}
