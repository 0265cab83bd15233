package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/muurk/mdnshelper/internal/config"
	"github.com/muurk/mdnshelper/internal/discovery"
	"github.com/muurk/mdnshelper/internal/logging"
	"github.com/muurk/mdnshelper/internal/service"
	"github.com/muurk/mdnshelper/internal/shortcut"
)

// Orchestrator is the discovery surface exposed over HTTP.
type Orchestrator interface {
	StartDiscovery(ctx context.Context)
	StopDiscovery()
	ResolveService(ctx context.Context, id service.Identity)
	Subscribe(fn func(discovery.Event)) func()
	Services() []service.Resolved
	State() discovery.State
	Session() string
	Resolving() bool
	QueueLen() int
}

// Config holds the server configuration
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration // Zero means 10 seconds
	TLS             *tls.Config   // Serve HTTPS and WSS when set
}

// Option configures a Server.
type Option func(*Server)

// WithStore exposes bookmarks and preferences from store.
func WithStore(store *config.Store) Option {
	return func(s *Server) { s.store = store }
}

// WithLauncher enables the shortcut endpoints.
func WithLauncher(l *shortcut.Launcher) Option {
	return func(s *Server) { s.launcher = l }
}

// Server exposes an Orchestrator over HTTP and streams its events to
// WebSocket clients.
type Server struct {
	config   *Config
	orch     Orchestrator
	store    *config.Store
	launcher *shortcut.Launcher

	httpServer *http.Server
	listener   net.Listener

	// baseCtx outlives individual requests so sessions started over HTTP
	// keep running after the response is written
	baseCtx context.Context
	cancel  context.CancelFunc

	wg          sync.WaitGroup
	mu          sync.Mutex
	clients     map[string]*client
	unsubscribe func()
	newClientID func() string
	shutdown    sync.Once
}

// New creates a new Server instance
func New(cfg *Config, orch Orchestrator, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config is required")
	}
	if orch == nil {
		return nil, errors.New("orchestrator is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:      cfg,
		orch:        orch,
		baseCtx:     ctx,
		cancel:      cancel,
		clients:     make(map[string]*client),
		newClientID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.unsubscribe = orch.Subscribe(s.broadcastEvent)
	return s, nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, fmt.Sprintf("%d", s.config.Port))
}

// Start starts the server and blocks until shutdown
func (s *Server) Start() error {
	addr := s.Addr()
	logging.Info("Starting mdnshelper event server", zap.String("addr", addr))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if s.config.TLS != nil {
		listener = tls.NewListener(listener, s.config.TLS)
		logging.Info("TLS enabled", zap.String("addr", addr))
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Serve(listener)
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Serve accepts connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	logging.Info("Server listening for connections", zap.String("addr", l.Addr().String()))

	err := s.httpServer.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server. WebSocket clients are closed,
// the event subscription is removed and in-flight requests get until ctx
// ends or the shutdown timeout passes.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdown.Do(func() {
		logging.Info("Shutting down server...")

		timeout := s.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		s.cancel()
		if s.unsubscribe != nil {
			s.unsubscribe()
		}

		err = multierr.Append(err, s.httpServer.Shutdown(ctx))

		// Hijacked connections are not tracked by http.Server
		s.mu.Lock()
		for id, c := range s.clients {
			logging.Info("Closing active connection",
				zap.String("client_id", id),
				zap.String("remote_addr", c.remoteAddr))
			c.close()
		}
		s.mu.Unlock()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			logging.Info("All connections closed gracefully")
		case <-ctx.Done():
			logging.Warn("Shutdown timeout, forcing close")
			err = multierr.Append(err, ctx.Err())
		}
	})
	return err
}

// GetActiveConnections returns the number of connected WebSocket clients
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
