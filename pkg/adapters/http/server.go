package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/bridge"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Studio is the part of the lattice facade served over HTTP.
type Studio interface {
	Open(ctx context.Context, projectID string, surface ports.Surface) (*bridge.Session, error)
	Release(ctx context.Context, sess *bridge.Session) error
	Session(projectID string) *bridge.Session
	Project(ctx context.Context, projectID string) (*domain.Project, error)
	Projects(ctx context.Context) ([]string, error)
	Put(ctx context.Context, projectID, name string, tree *domain.Tree) error
	Delete(ctx context.Context, projectID string) error
	Palette() ports.PaletteLoader
}

var _ Studio = (*lattice.Studio)(nil)

// Server exposes a Studio as a REST, SSE and WebSocket bridge.
type Server struct {
	Studio   Studio
	Streams  *StreamManager
	spec     *openapi3.T
	upgrader *websocket.Upgrader
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithUpgrader sets a custom WebSocket upgrader.
func WithUpgrader(u *websocket.Upgrader) Option {
	return func(s *Server) {
		if u != nil {
			s.upgrader = u
		}
	}
}

// NewHandler creates the HTTP handler for studio. It fails when the embedded
// API description does not validate.
func NewHandler(studio Studio, opts ...Option) (http.Handler, error) {
	s := &Server{
		Studio:   studio,
		gatherer: prometheus.DefaultGatherer,
		logger:   logging.NewNop(),
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)

	spec, err := LoadSpec(context.Background())
	if err != nil {
		return nil, err
	}
	s.spec = spec
	validate, err := requestValidator(spec, s.logger)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(validate)
		r.Get("/health", s.GetHealth)
		r.Get("/info", s.GetInfo)
		r.Get("/palette", s.ListPalette)
		r.Get("/projects", s.ListProjects)
		r.Route("/projects/{id}", func(r chi.Router) {
			r.Get("/", s.GetProject)
			r.Put("/", s.PutProject)
			r.Delete("/", s.DeleteProject)
			r.Get("/status", s.GetStatus)
			r.Get("/export", s.ExportProject)
			r.Post("/import", s.ImportProject)
			r.Post("/messages", s.PostMessage)
			r.Get("/events", s.SubscribeEvents)
			r.Get("/ws", s.ConnectWebSocket)
		})
	})
	return r, nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Lattice API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.spec.Info != nil {
		apiVersion = s.spec.Info.Version
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "lattice-http",
		"version":     strings.TrimSpace(lattice.Version),
		"api_version": apiVersion,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, bridge.NewResult("", err))
}

// statusOf maps a result code onto an HTTP status.
func statusOf(code string) int {
	switch code {
	case "":
		return http.StatusOK
	case bridge.CodeNotFound:
		return http.StatusNotFound
	case bridge.CodeInvalidPosition, bridge.CodeInvalidRequest:
		return http.StatusConflict
	case bridge.CodeMalformed, bridge.CodeInvalidInput:
		return http.StatusBadRequest
	case bridge.CodeClosed:
		return http.StatusGone
	case bridge.CodeTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
