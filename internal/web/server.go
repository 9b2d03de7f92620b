// pattern: Imperative Shell

// Package web serves the daemon's HTTP API: cached worktree snapshots,
// registered folders and a live event stream over SSE or websocket.
package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"wtsync/internal/cache"
	"wtsync/internal/events"
	"wtsync/internal/folders"
	"wtsync/internal/logging"
)

// Snapshots is the cache surface the API reads and refreshes.
type Snapshots interface {
	Get(scope cache.Scope) []cache.Item
	Refresh(ctx context.Context, scope cache.Scope) error
	SetWorkspaceFolders(ctx context.Context, folders []string) error
	MainFolders() []string
}

// FolderLister is the folder registry surface the API reads.
type FolderLister interface {
	List() ([]folders.GitFolder, error)
	Favorites() ([]folders.Item, error)
	Recents() ([]folders.Item, error)
}

// Deps are the services behind the API. Bus and Logs are optional; without
// them the event stream only carries the initial "connected" message.
type Deps struct {
	Cache   Snapshots
	Folders FolderLister
	Bus     *events.Bus
	Logs    <-chan logging.LogEntry
}

// Server is the web server that serves the API.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *logging.ScopedLogger
	addr       string
	listener   net.Listener
	events     *eventBroker

	stop context.CancelFunc
	done chan struct{}
}

// Config holds web server configuration.
type Config struct {
	Bind string
	Port int
}

// New creates a web server. logProvider must implement
// logging.LoggerProvider (both *logging.Manager and *logging.TestLogManager
// satisfy it).
func New(cfg Config, deps Deps, logProvider logging.LoggerProvider) *Server {
	logger := logProvider.For("web")
	addr := net.JoinHostPort(cfg.Bind, fmt.Sprint(cfg.Port))

	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		deps:   deps,
		logger: logger,
		addr:   addr,
		events: newEventBroker(),
		done:   make(chan struct{}),
	}

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/ws", s.handleWebsocket)
	mux.HandleFunc("GET /api/worktrees", s.handleWorktrees)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/folders", s.handleFolders)
	mux.HandleFunc("GET /api/favorites", s.handleFavorites)
	mux.HandleFunc("GET /api/recents", s.handleRecents)
	mux.HandleFunc("GET /api/workspace", s.handleGetWorkspace)
	mux.HandleFunc("PUT /api/workspace", s.handleSetWorkspace)

	var sub *events.Subscription
	if deps.Bus != nil {
		sub = deps.Bus.Subscribe(events.DefaultBufSize)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	go s.pump(ctx, sub)

	return s
}

// Listen binds the server to its configured address and returns the listener.
// Call Serve() after Listen() to start accepting connections.
// This two-step approach allows callers to obtain the actual bound address
// (useful for ephemeral port 0 in tests) before the server blocks on Serve().
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("web server listen: %w", err)
	}
	s.listener = ln
	s.deps.Bus.Publish(events.Listening{URL: "http://" + ln.Addr().String()})
	return ln, nil
}

// Serve accepts connections on the listener. Blocks until the server stops.
// Must call Listen() first.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("web server started", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Start is a convenience that calls Listen() then Serve(). Blocks until the server stops.
func (s *Server) Start() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Addr returns the address the server is listening on.
// Only valid after Listen() or Start() has been called.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown gracefully stops the server and the event pump.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("web server shutting down")
	s.stop()
	s.events.CloseAll()
	err := s.httpServer.Shutdown(ctx)
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
