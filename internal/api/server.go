package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/trainlink-org/shared-lib/internal/infrastructure/config"
	"github.com/trainlink-org/shared-lib/internal/infrastructure/logging"
	"github.com/trainlink-org/shared-lib/internal/infrastructure/metrics"
	"github.com/trainlink-org/shared-lib/internal/infrastructure/mqtt"
	"github.com/trainlink-org/shared-lib/internal/loco"
	"github.com/trainlink-org/shared-lib/internal/throttle"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// persistTimeout bounds a best-effort repository write after a mutation.
const persistTimeout = 5 * time.Second

// DBStatser reports connection pool statistics.
type DBStatser interface {
	Stats() sql.DBStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Logger     *logging.Logger
	Registry   *loco.Registry
	Throttles  *throttle.Hub
	Repository loco.Repository  // optional: registry changes are persisted when set
	Metrics    *metrics.Metrics // optional: serves /metrics and counts requests
	MQTT       *mqtt.Client     // optional: reported in status
	DB         DBStatser        // optional: reported in status
	Version    string
}

// Server is the HTTP API server for TrainLink.
//
// It manages the HTTP listener, routes, middleware and the WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	registry   *loco.Registry
	throttles  *throttle.Hub
	repository loco.Repository
	metrics    *metrics.Metrics
	mqtt       *mqtt.Client
	db         DBStatser
	version    string
	startTime  time.Time

	hub *Hub

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The WebSocket hub is attached to the registry immediately so connected
// clients see registry changes. The listener is not opened until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Registry == nil {
		return nil, errors.New("loco registry is required")
	}
	if deps.Throttles == nil {
		return nil, errors.New("throttle hub is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger,
		registry:   deps.Registry,
		throttles:  deps.Throttles,
		repository: deps.Repository,
		metrics:    deps.Metrics,
		mqtt:       deps.MQTT,
		db:         deps.DB,
		version:    deps.Version,
		startTime:  time.Now(),
	}
	s.hub = NewHub(s.wsCfg, s.logger)
	s.registry.AddObserver(s.hub)

	return s, nil
}

// Start opens the listener and serves HTTP in a background goroutine.
// It returns once the listener is bound, so Addr is valid afterwards.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("starting API listener: %w", err)
	}

	srvCtx, cancel := context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	srv := &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.mu.Lock()
	s.server, s.listener, s.cancel = srv, ln, cancel
	s.mu.Unlock()

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv, cancel := s.server, s.cancel
	s.server, s.listener, s.cancel = nil, nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	cancel()

	ctx, done := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer done()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server is started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return errors.New("api server not started")
	}
	return nil
}

// persist writes the registry snapshot through the repository. Failures
// are logged; the in-memory registry stays authoritative.
func (s *Server) persist(ctx context.Context) {
	if s.repository == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := s.repository.ReplaceAll(ctx, s.registry.Records()); err != nil {
		s.logger.Warn("persisting loco registry failed", "error", err)
	}
}
