// internal/api/middleware.go
package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tfrey42/pitchside/internal/api/authz"
	"github.com/tfrey42/pitchside/internal/cleanup"
	"github.com/tfrey42/pitchside/internal/session"
	"github.com/tfrey42/pitchside/internal/store"
)

type Middleware func(http.Handler) http.Handler

func ChainMiddleware(h http.Handler, middleware ...Middleware) http.Handler {
	for _, m := range middleware {
		h = m(h)
	}
	return h
}

func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create response wrapper to capture status code
		wrapped := wrapResponseWriter(w)

		next.ServeHTTP(wrapped, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.status).
			Dur("duration", time.Since(start)).
			Str("request_id", r.Context().Value("request_id").(string)).
			Msg("Request completed")
	})
}

func WithRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger := log.Ctx(r.Context())
				stack := debug.Stack()
				logger.Error().
					Interface("error", err).
					Str("stack", string(stack)).
					Msg("Panic recovered")

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()

		// Create a logger with the request ID
		logger := log.With().Str("request_id", requestID).Logger()

		ctx := context.WithValue(r.Context(), "request_id", requestID)
		ctx = logger.WithContext(ctx)

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithAuth resolves the session cookie to a team and stores it in context.
// Unauthenticated requests pass through; route handlers decide what needs a
// login.
func WithAuth(sessions *session.Store, queries *store.Queries) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessions.FromRequest(r)
			if err != nil {
				log.Ctx(r.Context()).Warn().Err(err).Msg("Failed to load session")
				next.ServeHTTP(w, r)
				return
			}
			if sess == nil {
				next.ServeHTTP(w, r)
				return
			}

			team, err := queries.GetTeam(r.Context(), sess.TeamID)
			if err != nil || !team.Active {
				if err != nil && !errors.Is(err, sql.ErrNoRows) {
					log.Ctx(r.Context()).Error().Err(err).Msg("Failed to load session team")
				}
				sessions.Clear(w, r)
				next.ServeHTTP(w, r)
				return
			}

			ctx := authz.ContextWithUser(r.Context(), &team)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithCleanup piggybacks the weekly archival sweep on request traffic, in
// case the scheduler is down. The check itself is gated inside the runner;
// this only rate-limits how often we bother asking.
func WithCleanup(runner *cleanup.Runner, checkInterval time.Duration) Middleware {
	var mu sync.Mutex
	var lastCheck time.Time
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			due := time.Since(lastCheck) >= checkInterval
			if due {
				lastCheck = time.Now()
			}
			mu.Unlock()

			if due {
				go func() {
					ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
					defer cancel()
					if _, _, err := runner.Run(ctx, time.Now()); err != nil {
						log.Error().Err(err).Msg("Background cleanup failed")
					}
				}()
			}
			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter wrapper to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
