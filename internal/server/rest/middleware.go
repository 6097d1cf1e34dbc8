package rest

import (
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/dmitrijs2005/sigauth/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	correlationHeader = "X-Correlation-ID"
	requestIDHeader   = "X-Request-ID"
)

var correlationIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// correlationID takes the caller's correlation id when it is well formed
// and mints one otherwise. The id is echoed in the response and attached
// to every log line of the request.
func (h *handler) correlationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(correlationHeader)
		if id == "" {
			id = r.Header.Get(requestIDHeader)
		}
		if !correlationIDPattern.MatchString(id) {
			id = uuid.NewString()
		}
		w.Header().Set(correlationHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithCorrelationID(r.Context(), id)))
	})
}

// instrument logs and counts every request by its route pattern.
func (h *handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		d := time.Since(start)
		h.metrics.ObserveRequest(r.Method, route, status, d)
		h.logger.Info(r.Context(), "request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration_ms", d.Milliseconds(),
			"remote", r.RemoteAddr,
		)
	})
}

// recoverer turns a panic into the generic 500 response.
func (h *handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			h.logger.Error(r.Context(), "panic in handler", "panic", rec)
			writeJSON(r.Context(), h.logger, w, http.StatusInternalServerError, internalErrorBody)
		}()
		next.ServeHTTP(w, r)
	})
}

// originGuard rejects requests whose Origin is not allowed and adds CORS
// headers, including preflight answers, for those that are. Requests
// without an Origin header and the paths in anyOriginAllowed pass through.
func (h *handler) originGuard(next http.Handler) http.Handler {
	withCORS := h.cors.Handler(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := anyOriginAllowed[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}
		origin, present := r.Header["Origin"]
		if !present {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := h.originSet[origin[0]]; !ok {
			h.logger.Warn(r.Context(), "origin rejected", "origin", origin[0])
			writeJSON(r.Context(), h.logger, w, http.StatusForbidden, forbiddenOriginBody{
				Code:           http.StatusForbidden,
				Reason:         "Origin is not allowed.",
				Origin:         origin[0],
				AllowedOrigins: h.allowedOrigins,
			})
			return
		}
		withCORS.ServeHTTP(w, r)
	})
}

// rateLimit applies the per client IP budget.
func (h *handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.allow(clientIP(r), h.now()) {
			writeJSON(r.Context(), h.logger, w, http.StatusTooManyRequests, statusBody{
				Code:   http.StatusTooManyRequests,
				Reason: "too many requests",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
