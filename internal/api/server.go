package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/incoming-webhook/internal/auth"
	"github.com/nerrad567/incoming-webhook/internal/infrastructure/config"
	"github.com/nerrad567/incoming-webhook/internal/infrastructure/logging"
	"github.com/nerrad567/incoming-webhook/internal/switches"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ServiceName is reported by GET /.
const ServiceName = "Incoming Webhook"

// TokenValidator verifies a bearer token. auth.Validator satisfies it.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.ServerConfig
	WS         config.WebSocketConfig
	Logger     *logging.Logger
	Validator  TokenValidator
	Store      *switches.Store
	Dispatcher *switches.Dispatcher
	// Hub is required when WS.Enabled is set. It is also registered as a
	// notification sink, so it is created by the caller.
	Hub     *Hub
	Version string
}

// Server is the HTTP server for the webhook.
//
// It is created with New() and started with Start().
type Server struct {
	cfg        config.ServerConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	validator  TokenValidator
	store      *switches.Store
	dispatcher *switches.Dispatcher
	hub        *Hub
	version    string

	handlerOnce sync.Once
	handler     http.Handler

	server   *http.Server
	listener net.Listener
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Validator == nil {
		return nil, fmt.Errorf("token validator is required")
	}
	if deps.Store == nil || deps.Dispatcher == nil {
		return nil, fmt.Errorf("switch store and dispatcher are required")
	}
	if deps.WS.Enabled && deps.Hub == nil {
		return nil, fmt.Errorf("websocket hub is required when websocket is enabled")
	}

	return &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger,
		validator:  deps.Validator,
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		hub:        deps.Hub,
		version:    deps.Version,
	}, nil
}

// Handler returns the router. It is built once.
func (s *Server) Handler() http.Handler {
	s.handlerOnce.Do(func() {
		s.handler = s.buildRouter()
	})
	return s.handler
}

// Start binds the listener and serves in a background goroutine.
// Binding happens before Start returns, so a port in use is reported here.
//
// Returns:
//   - error: If the listener cannot be bound
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Address(), err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.ReadTimeout(),
		WriteTimeout:      s.cfg.WriteTimeout(),
		IdleTimeout:       s.cfg.IdleTimeout(),
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("webhook server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("webhook server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("webhook server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("webhook server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down webhook server: %w", err)
	}
	return nil
}

// HealthCheck verifies the server has been started.
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
