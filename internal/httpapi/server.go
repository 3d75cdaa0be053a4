// Package httpapi is the thin HTTP gateway around the call core: persona
// browsing, profile access, and call control for a UI client. All domain
// behaviour lives in the packages it drives.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starlinehq/starline/internal/call"
	"github.com/starlinehq/starline/internal/health"
	"github.com/starlinehq/starline/internal/observe"
	"github.com/starlinehq/starline/internal/persona"
	"github.com/starlinehq/starline/internal/profile"
	"github.com/starlinehq/starline/internal/tier"
)

// defaultUserID identifies the caller when the client sends no
// X-User-ID header. Starline is a single-user app by default; the
// header exists so a shared deployment can scope profiles.
const defaultUserID = "local"

// CallManager is the slice of the call core the gateway drives.
type CallManager interface {
	Connect(ctx context.Context, personas []persona.Persona, t tier.Tier) error
	Disconnect()
	ToggleMute() bool
	Snapshot() call.Snapshot
}

// Config holds the dependencies for a [Server].
type Config struct {
	Catalog  *persona.Catalog
	Profiles profile.Store
	Calls    CallManager
	Health   *health.Handler
	Metrics  *observe.Metrics

	// Studio persists studio-created personas across restarts.
	// Optional; without it creations live only in the catalog.
	Studio persona.Store
}

// Server is the HTTP gateway.
type Server struct {
	catalog  *persona.Catalog
	profiles profile.Store
	calls    CallManager
	health   *health.Handler
	metrics  *observe.Metrics
	studio   persona.Store

	active activeCall
}

// New creates a Server with the given dependencies.
func New(cfg Config) *Server {
	h := cfg.Health
	if h == nil {
		h = health.New()
	}
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Server{
		catalog:  cfg.Catalog,
		profiles: cfg.Profiles,
		calls:    cfg.Calls,
		health:   h,
		metrics:  m,
		studio:   cfg.Studio,
	}
}

// Router builds the chi router with all gateway routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(observe.Middleware(s.metrics))

	r.Get("/healthz", s.health.Healthz)
	r.Get("/readyz", s.health.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api/personas", s.handleListPersonas)
	r.Post("/api/personas", s.handleCreatePersona)
	r.Get("/api/personas/random", s.handleRandomPersona)
	r.Get("/api/personas/{id}", s.handleGetPersona)
	r.Delete("/api/personas/{id}", s.handleDeletePersona)

	r.Get("/api/profile", s.handleGetProfile)
	r.Put("/api/profile", s.handlePutProfile)
	r.Get("/api/profile/history", s.handleHistory)

	r.Post("/api/call", s.handleStartCall)
	r.Delete("/api/call", s.handleEndCall)
	r.Post("/api/call/mute", s.handleToggleMute)
	r.Get("/api/call/state", s.handleCallState)

	return r
}

// userID scopes a request to a profile.
func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return defaultUserID
}
