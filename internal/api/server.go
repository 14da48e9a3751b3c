package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-hcpbridge/internal/audit"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/bridges/hcp"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/history"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/hoermann"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// DoorController runs commands against the door. *hcp.Bridge satisfies it.
type DoorController interface {
	DoorID() string
	Snapshot() hoermann.Snapshot
	Execute(action string, p hoermann.ActionParams, source string) (hoermann.RequestResult, error)
}

// HistoryReader lists recorded door events. *history.SQLiteRepository satisfies it.
type HistoryReader interface {
	List(ctx context.Context, doorID string, limit int) ([]history.Entry, error)
}

// CommandLogReader lists audited door commands. *audit.SQLiteRepository satisfies it.
type CommandLogReader interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// Checker is a dependency checked by GET /health. *database.DB,
// *mqtt.Client and *influxdb.Client satisfy it.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// HealthSource reports bridge health. *hcp.HealthReporter satisfies it.
type HealthSource interface {
	Status() hcp.HealthMessage
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Door    DoorController
	History HistoryReader      // optional
	Audit   CommandLogReader   // optional
	Health  HealthSource       // optional
	Checks  map[string]Checker // optional, keyed by dependency name
	Hub     *Hub               // optional; created on Start when nil
	Version string
}

// Server is the HTTP API server.
type Server struct {
	cfg     config.APIConfig
	wsCfg   config.WebSocketConfig
	logger  *logging.Logger
	door    DoorController
	history HistoryReader
	audit   CommandLogReader
	health  HealthSource
	checks  map[string]Checker
	version string
	server  *http.Server
	hub     *Hub
	cancel  context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If the logger or door is missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Door == nil {
		return nil, fmt.Errorf("door controller is required")
	}

	return &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		logger:  deps.Logger,
		door:    deps.Door,
		history: deps.History,
		audit:   deps.Audit,
		health:  deps.Health,
		checks:  deps.Checks,
		version: deps.Version,
		hub:     deps.Hub,
	}, nil
}

// Hub returns the WebSocket hub, or nil before Start when none was injected.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start builds the router and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
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
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

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

// HealthCheck verifies the API server is running.
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
