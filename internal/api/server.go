package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hearthview/hearthview-core/internal/auth"
	"github.com/hearthview/hearthview-core/internal/dashboard"
	"github.com/hearthview/hearthview-core/internal/history"
	"github.com/hearthview/hearthview-core/internal/infrastructure/config"
	"github.com/hearthview/hearthview-core/internal/infrastructure/logging"
	"github.com/hearthview/hearthview-core/internal/mcp"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Controller is the command-and-status surface of the MCP client consumed
// by the API. It exists so handler tests can substitute a fake without a
// live SSE stream.
type Controller interface {
	IsConnected() bool
	ConnectionStatus() mcp.Status
	TurnOn(ctx context.Context, name string) mcp.CommandOutcome
	TurnOff(ctx context.Context, name string) mcp.CommandOutcome
	SetBrightness(ctx context.Context, name string, percent int) mcp.CommandOutcome
	SetTemperature(ctx context.Context, name string, degrees float64) mcp.CommandOutcome
	SetFanSpeed(ctx context.Context, name string, percent int) mcp.CommandOutcome
	SetVolume(ctx context.Context, name string, percent int) mcp.CommandOutcome
	MediaPause(ctx context.Context, name string) mcp.CommandOutcome
	MediaPlay(ctx context.Context, name string) mcp.CommandOutcome
	MediaNext(ctx context.Context, name string) mcp.CommandOutcome
	MediaPrevious(ctx context.Context, name string) mcp.CommandOutcome
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Security   config.SecurityConfig
	Cameras    []config.CameraConfig
	Logger     *logging.Logger
	Controller Controller
	Cache      *dashboard.Cache
	History    *history.Recorder // optional; history endpoints 404 without it
	Version    string
}

// Server is the HTTP API server for Hearthview.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	cameras    []config.CameraConfig
	logger     *logging.Logger
	controller Controller
	cache      *dashboard.Cache
	history    *history.Recorder
	auth       *auth.Authenticator
	version    string
	server     *http.Server
	hub        *Hub
	tickets    *ticketStore
	cancel     context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, controller, cache)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Controller == nil {
		return nil, fmt.Errorf("controller is required")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("device cache is required")
	}
	// History is optional; its endpoints return 404 when absent.

	return &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		cameras:    deps.Cameras,
		logger:     deps.Logger,
		controller: deps.Controller,
		cache:      deps.Cache,
		history:    deps.History,
		auth:       auth.NewAuthenticator(deps.Security),
		version:    deps.Version,
		tickets:    newTicketStore(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, registers the cache
// change listener for real-time WebSocket broadcast, and launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	// Ticket cleanup prevents unbounded growth of abandoned tickets.
	go s.tickets.cleanLoop(srvCtx)

	// Relay cache change events to WebSocket subscribers. The listener must
	// be registered before the cache's poll loop starts delivering changes.
	s.cache.OnChange(func(ch dashboard.Change) {
		s.hub.Broadcast(ChannelStateChanged, ch)
	})

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub, ticket cleanup)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
