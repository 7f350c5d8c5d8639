package server

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"grab-relay/internal/alert"
	"grab-relay/internal/config"
	"grab-relay/internal/core"
	"grab-relay/internal/store"
	"grab-relay/internal/upstream"
	"grab-relay/internal/wstoken"
)

// Grabber forwards a signed order-grab request to the upstream endpoint.
type Grabber interface {
	GrabOrder(ctx context.Context, creds core.ClientConfig, orderID core.OrderID) (upstream.Response, error)
}

// Deps is the process-scoped state shared by all request handlers.
type Deps struct {
	Store   *store.Store
	Token   *wstoken.Holder
	Grabber Grabber
	Alerts  alert.Alerter
}

type Server struct {
	cfg     config.ServerConfig
	store   *store.Store
	token   *wstoken.Holder
	grabber Grabber
	alerts  alert.Alerter

	handler  http.Handler
	upgrader websocket.Upgrader
	closing  chan struct{}
	streamMu sync.Mutex
	stopped  bool
	streams  sync.WaitGroup

	pingInterval time.Duration
}

func New(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{
		cfg:     cfg,
		store:   deps.Store,
		token:   deps.Token,
		grabber: deps.Grabber,
		alerts:  deps.Alerts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		closing:      make(chan struct{}),
		pingInterval: 30 * time.Second,
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)
	s.handler = Chain(mux,
		recoverPanic,
		collapseSlashes,
		newCORSPolicy(cfg.CORS.AllowOrigins).Middleware,
	)
	return s
}

func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/config", s.handleSetConfig)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("POST /api/grab-order", s.handleGrabOrder)
	mux.HandleFunc("GET /api/get-ws-token", s.handleGetWSToken)
	mux.HandleFunc("POST /api/save-ws-token", s.handleSaveWSToken)
	mux.HandleFunc("GET /api/ws-token/stream", s.handleWSTokenStream)
	mux.HandleFunc("GET /api/health", s.handleHealth)
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve accepts connections on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	log.Printf("level=INFO event=server_started addr=%q", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.stopStreams()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("level=INFO event=server_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout())
	defer cancel()
	s.stopStreams()
	err := httpServer.Shutdown(shutdownCtx)
	s.streams.Wait()
	if err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) stopStreams() {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	if !s.stopped {
		s.stopped = true
		close(s.closing)
	}
}

// trackStream registers a stream with the shutdown wait group. It reports
// false once shutdown has begun.
func (s *Server) trackStream() bool {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	if s.stopped {
		return false
	}
	s.streams.Add(1)
	return true
}
