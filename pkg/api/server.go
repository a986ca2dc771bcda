// Package api wires the EventSub ingestion pipeline (webhook ingress, state
// snapshot, SSE subscriptions, admin mutations, and debug tap/replay) onto an
// echo v5 HTTP server, generalizing the teacher's Server/NewServer/Set*
// wiring discipline from tarsy's agent-session surface to this domain's
// tenant-scoped event pipeline.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/broadcastqueue/eventsubd/pkg/auth"
	"github.com/broadcastqueue/eventsubd/pkg/clock"
	"github.com/broadcastqueue/eventsubd/pkg/config"
	"github.com/broadcastqueue/eventsubd/pkg/eventstore"
	"github.com/broadcastqueue/eventsubd/pkg/executor"
	"github.com/broadcastqueue/eventsubd/pkg/idgen"
	"github.com/broadcastqueue/eventsubd/pkg/sse"
	"github.com/broadcastqueue/eventsubd/pkg/statestore"
	"github.com/broadcastqueue/eventsubd/pkg/tap"
	"github.com/broadcastqueue/eventsubd/pkg/version"
)

// Server is the HTTP API server for the ingestion/state/SSE/admin surfaces.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	cfg           config.Config
	events        *eventstore.Store
	states        *statestore.Store
	exec          *executor.Executor
	hub           *sse.Hub
	listener      *sse.PgListener
	tap           *tap.Tap
	clock         clock.Clock
	ids           idgen.Generator
	webhookKey    []byte
	sseSigningKey []byte
}

// NewServer wires the Server and registers every route. The webhook shared
// secret and SSE token signing key come from cfg (already validated non-empty
// in production by config.Config.Validate). listener may be nil in tests that
// never need cross-process NOTIFY fan-out.
func NewServer(
	cfg config.Config,
	events *eventstore.Store,
	states *statestore.Store,
	exec *executor.Executor,
	hub *sse.Hub,
	listener *sse.PgListener,
	tp *tap.Tap,
	clk clock.Clock,
	ids idgen.Generator,
) *Server {
	e := echo.New()

	s := &Server{
		echo:          e,
		cfg:           cfg,
		events:        events,
		states:        states,
		exec:          exec,
		hub:           hub,
		listener:      listener,
		tap:           tp,
		clock:         clk,
		ids:           ids,
		webhookKey:    []byte(cfg.WebhookSharedSecret),
		sseSigningKey: []byte(cfg.SSETokenSigningKey),
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers every route this service exposes.
func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))
	s.echo.Use(securityHeaders())

	s.echo.GET("/health", s.healthHandler)

	s.echo.POST("/eventsub/webhook", s.webhookHandler)

	s.echo.GET("/api/state", s.getStateHandler)

	s.echo.GET("/overlay/sse", s.overlaySSEHandler)
	s.echo.GET("/admin/sse", s.adminSSEHandler)

	admin := s.echo.Group("/api", s.requireAudience(auth.AudienceAdmin))
	admin.POST("/queue/dequeue", s.dequeueHandler)
	admin.POST("/settings/update", s.settingsUpdateHandler)

	if s.cfg.Environment != config.EnvProduction {
		s.echo.GET("/debug/tap", s.debugTapHandler)
		s.echo.POST("/debug/replay", s.debugReplayHandler)
	} else {
		debug := s.echo.Group("/debug", s.requireAudience(auth.AudienceAdmin))
		debug.GET("/tap", s.debugTapHandler)
		debug.POST("/replay", s.debugReplayHandler)
	}
}

// Start starts the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.echo,
	}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener. Used by
// test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /health. It reports only this process's own
// liveness (no downstream Twitch/DB checks), so an orchestrator never
// restarts this service over an external dependency's outage.
func (s *Server) healthHandler(c *echo.Context) error {
	_, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	return c.JSON(http.StatusOK, map[string]any{
		"status":      "healthy",
		"environment": s.cfg.Environment,
		"version":     version.Full(),
		"time":        s.clock.Now().Format(time.RFC3339),
	})
}
