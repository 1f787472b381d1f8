package statusapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"monad/internal/logging"
)

// StatusPath is the only route the service answers.
const StatusPath = "/status"

// StatusBody is the fixed liveness payload.
const StatusBody = "monad active"

// DefaultBind is the loopback address used when none is configured.
const DefaultBind = "127.0.0.1:3030"

// BindError reports a failure to acquire the listening socket.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind status api on %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// RequestObserver is notified of every response status code.
type RequestObserver interface {
	ObserveRequest(code int)
}

// Options tunes a Server.
type Options struct {
	// ShutdownTimeout bounds the drain; zero waits for every in-flight request.
	ShutdownTimeout time.Duration
	Observer        RequestObserver
}

// Server is the status service. The listener it binds is owned exclusively by
// the serving goroutine once Serve starts.
type Server struct {
	bind            string
	logger          *slog.Logger
	shutdownTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// New builds a status server for bind.
func New(bind string, logger *slog.Logger, opts Options) *Server {
	s := newServer(bind, logger, opts, nil)
	s.server.Handler = withRequestLog(s.logger, opts.Observer, routes())
	return s
}

func newServer(bind string, logger *slog.Logger, opts Options, handler http.Handler) *Server {
	if bind == "" {
		bind = DefaultBind
	}
	return &Server{
		bind:            bind,
		logger:          logging.NewComponentLogger(logger, "status-api"),
		shutdownTimeout: opts.ShutdownTimeout,
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

func routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+StatusPath, handleStatus)
	return mux
}

func handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(StatusBody))
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Listen binds the configured address. Failure is a fatal startup error and
// leaves no listener open.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return errors.New("status api already listening")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return &BindError{Addr: s.bind, Err: err}
	}
	s.listener = listener
	return nil
}

// Addr returns the bound address, or nil before Listen and after Serve returns.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve answers requests until ctx is done, then stops accepting and drains
// in-flight requests. A serving failure not caused by shutdown is logged and
// returned.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return errors.New("status api: Serve called before Listen")
	}
	defer s.releaseListener()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(listener)
	}()

	s.logger.Info("monad HTTP listening",
		logging.String("address", "http://"+listener.Addr().String()+StatusPath),
		logging.String(logging.FieldEventType, "status_api_listening"),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logging.ErrorWithContext(s.logger, "status api server error", "status_api_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the bind address and local firewall rules"),
		)
		return fmt.Errorf("serve status api: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down; draining in-flight requests",
		logging.String(logging.FieldEventType, "status_api_draining"),
	)
	shutdownCtx := context.Background()
	if s.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, s.shutdownTimeout)
		defer cancel()
	}
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		logging.ErrorWithContext(s.logger, "status api drain incomplete", "status_api_drain_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "raise server.shutdown_timeout_seconds or set it to 0"),
		)
		return fmt.Errorf("drain status api: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve status api: %w", err)
	}
	s.logger.Info("status api stopped", logging.String(logging.FieldEventType, "status_api_stopped"))
	return nil
}

// Run binds and serves. It is the whole lifecycle of the http run mode.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		logging.ErrorWithContext(s.logger, "status api bind failed", "status_api_bind_failed",
			logging.Error(err),
			logging.String("address", s.bind),
			logging.String(logging.FieldErrorHint, "another process may already own this port; change server.bind"),
		)
		return err
	}
	return s.Serve(ctx)
}

func (s *Server) releaseListener() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}
