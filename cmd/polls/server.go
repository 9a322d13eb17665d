package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/artpar/polls/internal/shell/api"
	"github.com/artpar/polls/internal/shell/api/middleware"
	"github.com/artpar/polls/internal/shell/metrics"
	"github.com/artpar/polls/internal/shell/store"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitHTTPServerError = 3
	ExitFixtureError    = 4
)

// =============================================================================
// Server
// =============================================================================

// Server represents the polls application server.
type Server struct {
	config     *Config
	httpServer *http.Server
	store      *store.SQLiteStore
	logger     *slog.Logger
}

// NewServer opens the database, applies migrations and builds the router.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	// Connect to database
	s, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	auth, err := middleware.NewAdminAuth(middleware.AdminAuthConfig{
		TokenHash: cfg.Auth.AdminTokenHash,
		Logger:    logger,
	})
	if err != nil {
		s.Close()
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      errors.New("auth.admin_token_hash is not a bcrypt hash"),
			ExitCode: ExitConfigError,
		}
	}
	if !auth.Enabled() {
		logger.Warn("admin API is unauthenticated; set auth.admin_token_hash to protect it")
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	} else {
		logger.Info("metrics disabled")
	}

	handler, err := api.SetupAPI(api.APIConfig{
		Store:     s,
		Logger:    logger,
		Metrics:   m,
		AdminAuth: auth,
		IndexSize: cfg.Polls.IndexSize,
		Version:   Version,
	})
	if err != nil {
		s.Close()
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitConfigError,
		}
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		store:      s,
		logger:     logger,
	}, nil
}

// Start listens on the configured address and serves until ctx is
// cancelled or SIGINT/SIGTERM arrives.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.closeStore()
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	}
	return s.Serve(ctx, ln)
}

// Serve serves HTTP on ln. The store is closed when Serve returns.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("starting HTTP server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return &ServerError{
				Op:       "Start",
				Err:      err,
				ExitCode: ExitHTTPServerError,
			}
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	err := g.Wait()
	s.closeStore()
	if err == nil {
		s.logger.Info("shutdown complete")
	}
	return err
}

func (s *Server) shutdown() error {
	s.logger.Info("initiating graceful shutdown")

	// The serving context is already done; give in-flight requests a fresh
	// deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return &ServerError{
			Op:       "Shutdown",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	}
	return nil
}

func (s *Server) closeStore() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("database close error", "error", err)
	}
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}

// exitCode maps an error returned by a command to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var sErr *ServerError
	if errors.As(err, &sErr) {
		return sErr.ExitCode
	}
	return ExitConfigError
}
