package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/gigo/sales-engine/sales"
)

// Identity headers. There is no authentication: whoever fronts this service
// is trusted to set them.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorName = "X-Actor-Name"
	HeaderActorRole = "X-Actor-Role"
)

// RequestLogger attaches a request-scoped logger to the context and logs
// each request once it completes.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			reqLogger := logger.With().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("remote_ip", req.RemoteAddr).
				Str("request_id", middleware.GetReqID(req.Context())).
				Logger()

			ctx := reqLogger.WithContext(req.Context())
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)

			next.ServeHTTP(ww, req.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ev := reqLogger.Info()
			if status >= http.StatusInternalServerError {
				ev = reqLogger.Error()
			}
			ev.Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

type actorKey struct{}

// Identity reads the actor headers into the request context. Requests
// without headers carry an anonymous actor that fails every role check.
// An unknown role is rejected outright.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := sales.Actor{
			ID:   r.Header.Get(HeaderActorID),
			Name: r.Header.Get(HeaderActorName),
			Role: sales.Role(r.Header.Get(HeaderActorRole)),
		}
		switch actor.Role {
		case "", sales.RoleDirector, sales.RoleAgent:
		default:
			writeError(w, http.StatusBadRequest, "Unknown actor role", nil)
			return
		}
		if actor.Role != "" && actor.ID == "" {
			writeError(w, http.StatusBadRequest, "Missing "+HeaderActorID+" header", nil)
			return
		}
		if actor.Name == "" {
			actor.Name = actor.ID
		}

		ctx := context.WithValue(r.Context(), actorKey{}, actor)
		if actor.ID != "" {
			l := zerolog.Ctx(ctx).With().Str("actor", actor.ID).Logger()
			ctx = l.WithContext(ctx)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DirectorOnly rejects every actor but the director with 403. It guards the
// admin routes that act as the system actor or wipe data.
func DirectorOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := ActorFrom(r.Context())
		if actor.Role != sales.RoleDirector {
			zerolog.Ctx(r.Context()).Warn().Str("role", string(actor.Role)).Str("path", r.URL.Path).Msg("admin route denied")
			writeError(w, http.StatusForbidden, "Director role required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ActorFrom returns the actor set by Identity.
func ActorFrom(ctx context.Context) sales.Actor {
	a, _ := ctx.Value(actorKey{}).(sales.Actor)
	return a
}
