package router

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/claim"
	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/identity"
	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/operator"
	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/profile"
)

type Config struct {
	Addr            string
	AllowedOrigins  []string
	PublicRateLimit int // requests per minute per IP on public claim routes
}

// ConfigFromEnv reads HTTP settings from environment variables.
func ConfigFromEnv() Config {
	cfg := Config{Addr: "0.0.0.0:8431", PublicRateLimit: 30}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("PUBLIC_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PublicRateLimit = n
		}
	}
	for _, o := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}
	return cfg
}

// Deps are the handlers and verifiers mounted by New.
type Deps struct {
	Logger   *zap.SugaredLogger
	Users    *identity.Verifier
	Ops      *identity.Verifier
	Profiles *profile.Handler
	Claims   *claim.Handler
	Operator *operator.Handler
	// Health reports storage liveness; nil means always healthy.
	Health func(ctx context.Context) error
}

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned by RequestIDMiddleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestIDMiddleware keeps an inbound X-Request-ID or assigns a new one.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		})
	}
}

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

func (lrw *loggingResponseWriter) statusCode() int {
	if lrw.status == 0 {
		return http.StatusOK
	}
	return lrw.status
}

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			logger.Debugw("http request",
				"request_id", RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", lrw.statusCode(),
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// MetricsMiddleware records request counts and latency. Paths are left out
// of the labels since they embed profile ids.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(lrw.statusCode())).Inc()
			metrics.HTTPRequestDurationSeconds.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			// claim URLs carry the secret in the query string
			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			w.Header().Set("Cache-Control", "no-store")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func chain(h http.HandlerFunc, mws ...func(http.Handler) http.Handler) http.Handler {
	var out http.Handler = h
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// New mounts HTTP handlers using the standard library's http.ServeMux.
func New(cfg Config, d Deps) http.Handler {
	metrics.MustRegister()
	mux := http.NewServeMux()

	user := identity.Authenticate(d.Users, d.Logger)
	signedIn := identity.RequireRole("")
	op := identity.Authenticate(d.Ops, d.Logger)
	opOnly := identity.RequireRole(identity.RoleOperator)
	limited := httprate.LimitByIP(cfg.PublicRateLimit, time.Minute)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if d.Health != nil {
			if err := d.Health(r.Context()); err != nil {
				d.Logger.Warnw("health check failed", "err", err)
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// operators
	mux.Handle("POST /admin/login", chain(d.Operator.Login, limited))
	mux.Handle("POST /admin/profiles", chain(d.Profiles.Create, op, opOnly))
	mux.Handle("POST /admin/profiles/{id}/claim-link", chain(d.Claims.IssueLink, op, opOnly))
	mux.Handle("GET /admin/claim-requests", chain(d.Claims.ListRequests, op, opOnly))
	mux.Handle("POST /admin/claim-requests/{id}/approve", chain(d.Claims.ApproveRequest, op, opOnly))
	mux.Handle("POST /admin/claim-requests/{id}/reject", chain(d.Claims.RejectRequest, op, opOnly))

	// public reads
	mux.Handle("GET /profiles/{id}", chain(d.Profiles.Get, user))
	mux.Handle("GET /u/{username}", chain(d.Profiles.GetByUsername, user))

	// end users
	mux.Handle("GET /me/profiles", chain(d.Profiles.ListMine, user, signedIn))
	mux.Handle("POST /claims/redeem", chain(d.Claims.Redeem, limited, user))
	mux.Handle("POST /profiles/{id}/claim-requests", chain(d.Claims.SubmitRequest, limited, user))

	corsMW := cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	})

	return chain(mux.ServeHTTP,
		RequestIDMiddleware(),
		LoggingMiddleware(d.Logger),
		MetricsMiddleware(),
		SecurityHeadersMiddleware(),
		corsMW,
	)
}
