package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/neo-risk-service/internal/domain"
	"github.com/couchcryptid/neo-risk-service/internal/pipeline"
)

// AsteroidLister serves the on-demand listing.
type AsteroidLister interface {
	ListAsteroids(ctx context.Context) pipeline.Listing
}

// AlertStore is the persistence the alert and user routes need.
type AlertStore interface {
	UpsertUser(ctx context.Context, email, name string) (domain.User, error)
	UserByEmail(ctx context.Context, email string) (domain.User, error)
	CreateAlert(ctx context.Context, a domain.Alert) (domain.Alert, error)
	ListAlerts(ctx context.Context, userID int64) ([]domain.Alert, error)
	SetAlertEnabled(ctx context.Context, id int64, enabled bool) (domain.Alert, error)
	DeleteAlert(ctx context.Context, id int64) error
}

// MessageHistory returns recent chat messages.
type MessageHistory interface {
	Recent(ctx context.Context) ([]domain.ChatMessage, error)
}

// Deps are the collaborators behind the HTTP routes.
type Deps struct {
	Lister      AsteroidLister
	Alerts      AlertStore
	Messages    MessageHistory
	WebSocket   http.Handler
	Ready       sharedobs.ReadinessChecker
	CORSOrigins []string
}

// Server exposes the REST API, the WebSocket endpoint, and health, readiness,
// and metrics routes.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server listening on addr.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	api := &api{
		lister:   deps.Lister,
		alerts:   deps.Alerts,
		messages: deps.Messages,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{sourceHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(deps.Ready))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/asteroids", api.listAsteroids)
	r.Post("/users", api.upsertUser)
	r.Route("/alerts", func(r chi.Router) {
		r.Get("/", api.listAlerts)
		r.Post("/", api.createAlert)
		r.Patch("/{id}", api.setAlertEnabled)
		r.Delete("/{id}", api.deleteAlert)
	})
	r.Get("/messages", api.recentMessages)
	if deps.WebSocket != nil {
		r.Method(http.MethodGet, "/ws", deps.WebSocket)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 20 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
// Hijacked WebSocket connections are not tracked; close them separately.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Debug("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
