// Package server hosts the dashboard over HTTP. Every page load gets its own
// websocket session with a private dashboard, so viewers never share
// selections; static routes render settled snapshots on demand.
package server

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/vanderheijden86/mxmh/pkg/dashboard"
	"github.com/vanderheijden86/mxmh/pkg/model"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = "127.0.0.1:8080"

// Options configures the server.
type Options struct {
	Addr          string
	FrameInterval time.Duration
	Dashboard     dashboard.Options
	Title         string
}

// Server serves the dashboard page, snapshot routes and live sessions.
type Server struct {
	opts     Options
	hub      *Hub
	router   *mux.Router
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	table  *model.Table
	hash   string
	source string

	baseCtx context.Context
	stop    context.CancelFunc
}

// New returns a server for t. hash and source describe the data for the
// summary route.
func New(t *model.Table, hash, source string, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = time.Second / 30
	}
	if opts.Dashboard.Clock == nil {
		opts.Dashboard.Clock = time.Now
	}
	s := &Server{
		opts:   opts,
		hub:    NewHub(),
		table:  t,
		hash:   hash,
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1 << 16,
		},
	}
	s.baseCtx, s.stop = context.WithCancel(context.Background())
	s.router = mux.NewRouter()
	s.registerRoutes(s.router)
	go s.hub.Run()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the session hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// data returns the current table and its provenance.
func (s *Server) data() (*model.Table, string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table, s.hash, s.source
}

// SetTable swaps in a reloaded table. Live pages are asked to reload, which
// starts them a new session on the new data.
func (s *Server) SetTable(t *model.Table, hash, source string) {
	s.mu.Lock()
	s.table, s.hash, s.source = t, hash, source
	s.mu.Unlock()
	for _, sess := range s.hub.Sessions() {
		sess.Notify(ServerMessage{Type: MessageReload})
	}
	log.Printf("Reloaded data: %d records from %s", t.Len(), source)
}

// Close ends every live session.
func (s *Server) Close() {
	s.stop()
	s.hub.Stop()
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server started at http://%s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Close()
	err := srv.Shutdown(shutdownCtx)
	if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	return err
}
