// Package server exposes the bucket store over HTTP: a read-only JSON API
// for bucket, item and subspace inspection, and a WebSocket event stream
// carrying store events (placements, judgments, absorptions, warnings) as
// they happen.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spindleworks/novem/config"
	"github.com/spindleworks/novem/flow"
	"github.com/spindleworks/novem/store"
)

// MaxClients bounds concurrent WebSocket connections
const MaxClients = 64

// Server streams store events to WebSocket clients and answers read-only
// API queries against committed bucket snapshots.
type Server struct {
	store *store.Store
	pool  *flow.Pool // nil when traversal is not running

	// origins holds the allowed WebSocket/CORS origins; swapped on config reload
	origins atomic.Pointer[[]string]

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	httpServer *http.Server

	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	eventDrops atomic.Int64 // Dropped event deliveries, for monitoring

	logger *zap.SugaredLogger
}

// New creates a server over the given store. The flow pool is optional and
// only feeds the status endpoint.
func New(ctx context.Context, s *store.Store, p *flow.Pool, cfg config.ServerConfig, logger *zap.SugaredLogger) *Server {
	serverCtx, cancel := context.WithCancel(ctx)

	srv := &Server{
		store:      s,
		pool:       p,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        serverCtx,
		cancel:     cancel,
		logger:     logger.Named("server"),
	}
	origins := cfg.AllowedOrigins
	srv.origins.Store(&origins)
	return srv
}

// SetAllowedOrigins swaps the origin allowlist, typically from a config
// reload callback. Existing connections are unaffected.
func (s *Server) SetAllowedOrigins(origins []string) {
	s.origins.Store(&origins)
}

// Start binds the listener and begins serving. It returns once the listener
// is bound; serving continues in the background until Shutdown.
func (s *Server) Start(port int) error {
	mux := http.NewServeMux()
	s.setupHTTPRoutes(mux)

	port, err := findAvailablePort(port)
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run()
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pumpStoreEvents()
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorw("HTTP server exited", "error", err)
		}
	}()

	s.logger.Infow("Server listening", "port", port)
	return nil
}

// Port returns the bound address, empty before Start
func (s *Server) Port() string {
	if s.httpServer == nil {
		return ""
	}
	return s.httpServer.Addr
}

// Shutdown drains clients and stops the HTTP listener
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Infow("Server shut down cleanly")
	case <-ctx.Done():
		s.logger.Warnw("Server shutdown timed out")
	}
	return err
}

// run is the hub loop: it owns the client set and serializes register and
// unregister traffic.
func (s *Server) run() {
	for {
		select {
		case <-s.ctx.Done():
			s.closeAllClients()
			return
		case client := <-s.register:
			s.handleClientRegister(client)
		case client := <-s.unregister:
			s.handleClientUnregister(client)
		}
	}
}

// pumpStoreEvents subscribes to the store and fans events out to clients
func (s *Server) pumpStoreEvents() {
	events, unsubscribe := s.store.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.broadcastEvent(ev)
		}
	}
}

// broadcastEvent delivers one event to every connected client. Slow clients
// drop events rather than stalling the pump.
func (s *Server) broadcastEvent(ev store.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- ev:
		default:
			s.eventDrops.Add(1)
		}
	}
}

func (s *Server) handleClientRegister(client *Client) {
	s.mu.Lock()

	if len(s.clients) >= MaxClients {
		s.mu.Unlock()
		s.logger.Warnw("Max clients reached, rejecting connection",
			"client_id", client.id,
			"max_clients", MaxClients,
		)
		client.close()
		return
	}

	s.clients[client] = true
	totalClients := len(s.clients)
	s.mu.Unlock()

	s.logger.Infow("Client connected",
		"client_id", client.id,
		"total_clients", totalClients,
	)
}

func (s *Server) handleClientUnregister(client *Client) {
	s.mu.Lock()
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		totalClients := len(s.clients)
		s.mu.Unlock()

		client.close()

		s.logger.Infow("Client disconnected",
			"client_id", client.id,
			"total_clients", totalClients,
		)
	} else {
		s.mu.Unlock()
	}
}

func (s *Server) closeAllClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		client.close()
		delete(s.clients, client)
	}
}
