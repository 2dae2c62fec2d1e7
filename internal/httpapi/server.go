package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"agritrace/internal/bootstrap/logging"
	"agritrace/internal/errs"
	"agritrace/internal/ports"
	"agritrace/internal/usecase/lots"
)

const (
	maxJSONBody        = 64 << 10
	maxCertificateBody = 10 << 20
	defaultStreamPoll  = time.Second
)

type Deps struct {
	Lots     *lots.Service
	Sessions ports.SessionIssuer
	Metrics  ports.MetricsRecorder
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	// Health reports whether the record store answers.
	Health     func(ctx context.Context) error
	StreamPoll time.Duration
}

type server struct {
	lots       *lots.Service
	sessions   ports.SessionIssuer
	metrics    ports.MetricsRecorder
	health     func(ctx context.Context) error
	streamPoll time.Duration
}

// NewHandler builds the HTTP surface: the signed-in /api routes and the
// public /trace routes.
func NewHandler(deps Deps) (http.Handler, error) {
	if deps.Lots == nil {
		return nil, errors.New("lot service is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("session issuer is required")
	}
	s := &server{
		lots:       deps.Lots,
		sessions:   deps.Sessions,
		metrics:    deps.Metrics,
		health:     deps.Health,
		streamPoll: deps.StreamPoll,
	}
	if s.metrics == nil {
		s.metrics = ports.NopMetrics{}
	}
	if s.streamPoll <= 0 {
		s.streamPoll = defaultStreamPoll
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/session", s.handleCreateSession)

		r.Group(func(r chi.Router) {
			r.Use(s.requireActor)

			r.Get("/me", s.handleMe)
			r.Get("/dashboard", s.handleDashboard)
			r.Post("/contracts/generate", s.handleGenerateContract)

			r.Route("/lots", func(r chi.Router) {
				r.Get("/", s.handleListLots)
				r.Post("/", s.handleRegisterLot)
				r.Get("/{lotID}", s.handleGetLot)
				r.Get("/{lotID}/status", s.handleLotStatus)
				r.Post("/{lotID}/advance", s.handleAdvanceLot)
				r.Post("/{lotID}/certificates", s.handleAttachCertificate)
			})
		})
	})

	r.Route("/trace/{lotID}", func(r chi.Router) {
		r.Get("/", s.handleTrace)
		r.Post("/feedback", s.handleSubmitFeedback)
		r.Get("/certificates/{name}", s.handleCertificate)
		r.Get("/ws", s.handleTraceStream)
	})

	return r, nil
}

// observe records request latency per route pattern, so /api/lots/{lotID}
// is one series no matter how many lots exist.
func (s *server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ctx := logging.WithRequest(r.Context(), middleware.GetReqID(r.Context()), "")

		next.ServeHTTP(ww, r.WithContext(ctx))

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
		s.metrics.ObserveHTTP(route, r.Method, status, time.Since(started))
	})
}

func (s *server) requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(raw, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeMessage(w, http.StatusUnauthorized, "sign in required")
			return
		}
		actor, err := s.sessions.Resolve(r.Context(), token)
		if err != nil {
			writeErrorStatus(w, r, http.StatusUnauthorized, err)
			return
		}

		ctx := ports.WithActor(r.Context(), actor)
		ctx = logging.WithRequest(ctx, "", actor.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFrom(r *http.Request) ports.Actor {
	actor, _ := ports.ActorFromContext(r.Context())
	return actor
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			logging.Warn(
				logging.WithAttrs(r.Context(), slog.String("component", "httpapi")),
				"health check failed",
				slog.Any("err", errs.Loggable(err)),
			)
			writeMessage(w, http.StatusServiceUnavailable, "record store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
