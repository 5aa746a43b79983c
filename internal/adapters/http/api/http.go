// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	repository "github.com/okian/ssr3bridge/internal/adapters/repository"
	"github.com/okian/ssr3bridge/internal/domain/derive"
	"github.com/okian/ssr3bridge/internal/domain/protocol"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Read operations expose the reconciled state.
	Snapshot() *repository.Snapshot
	Derived(ctx context.Context) derive.View

	// Send forwards a command. Returns false when no connection is live.
	Send(ctx context.Context, cmd protocol.Command) bool

	// Reset drops all held values and returns the revision it published.
	Reset(ctx context.Context) uint64
}

// Server wires HTTP routes for the read API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	stateHandler    *StateHandler
	commandsHandler *CommandsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		stateHandler:    NewStateHandler(deps),
		commandsHandler: NewCommandsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/state", MetricsMiddleware(s.stateHandler.HandleState, "state"))
	mux.HandleFunc("/values/", MetricsMiddleware(s.stateHandler.HandleValue, "values"))
	mux.HandleFunc("/derived", MetricsMiddleware(s.stateHandler.HandleDerived, "derived"))
	mux.HandleFunc("/commands", MetricsMiddleware(s.commandsHandler.HandlePostCommand, "commands"))
	mux.HandleFunc("/reset", MetricsMiddleware(s.commandsHandler.HandleReset, "reset"))
}
