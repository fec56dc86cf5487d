package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ishandutta2007/taskt/internal/auth"
	"github.com/ishandutta2007/taskt/internal/automation"
	"github.com/ishandutta2007/taskt/internal/infrastructure/config"
	"github.com/ishandutta2007/taskt/internal/infrastructure/logging"
	"github.com/ishandutta2007/taskt/internal/script"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// defaultMaxBodyBytes applies when the configuration leaves the limit unset.
const defaultMaxBodyBytes = 1 << 20

// Deps holds the dependencies required by the listener.
type Deps struct {
	Config        config.ListenerConfig
	Logger        *logging.Logger
	Manager       *automation.Manager
	Loader        *script.Loader
	ScriptsFolder string
	Repository    automation.Repository // optional; enables history routes
	Hub           *Hub                  // optional; shared with the Manager's options
	Version       string
}

// Server is the control listener: an HTTP API plus WebSocket event stream
// in front of a run Manager.
type Server struct {
	cfg        config.ListenerConfig
	logger     *logging.Logger
	manager    *automation.Manager
	loader     *script.Loader
	repo       automation.Repository
	scripts    string
	controller *Controller
	authn      *auth.Authenticator
	whitelist  *auth.Whitelist
	version    string

	hub         *Hub
	externalHub bool
	server      *http.Server
	addr        net.Addr
	cancel      context.CancelFunc
}

// New creates a listener. It is not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Manager == nil {
		return nil, fmt.Errorf("run manager is required")
	}
	if deps.Loader == nil {
		return nil, fmt.Errorf("script loader is required")
	}
	if deps.Config.RequireAuthentication && deps.Config.AuthKey == "" {
		return nil, fmt.Errorf("authentication is required but no auth key is configured")
	}

	whitelist, err := auth.NewWhitelist(deps.Config.EnableWhitelist, deps.Config.Whitelist)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        deps.Config,
		logger:     deps.Logger,
		manager:    deps.Manager,
		loader:     deps.Loader,
		repo:       deps.Repository,
		scripts:    deps.ScriptsFolder,
		controller: NewController(deps.Manager, deps.Loader, deps.ScriptsFolder, deps.Logger),
		authn:      auth.NewAuthenticator(deps.Config.AuthKey, deps.Config.RequireAuthentication),
		whitelist:  whitelist,
		version:    deps.Version,
	}
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.Logger)
	}
	return s, nil
}

// Controller returns the envelope controller shared with other transports.
func (s *Server) Controller() *Controller { return s.controller }

// Authenticator returns the credential checker shared with other transports.
func (s *Server) Authenticator() *auth.Authenticator { return s.authn }

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listen address and serves in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port)),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("binding listener %s: %w", s.server.Addr, err)
	}
	s.addr = ln.Addr()

	s.logger.Info("control listener started",
		"address", s.addr.String(),
		"auth_required", s.cfg.RequireAuthentication,
		"whitelist", s.cfg.EnableWhitelist,
	)

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control listener error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr { return s.addr }

// Close gracefully shuts the listener down. Runs are left to the Manager.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("control listener shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down control listener: %w", err)
	}
	return nil
}

// HealthCheck verifies the listener has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("listener health check: %w", ctx.Err())
	default:
	}
	if s.server == nil {
		return fmt.Errorf("listener not started")
	}
	return nil
}
