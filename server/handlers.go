package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/spindleworks/novem/digit"
	"github.com/spindleworks/novem/flow"
	"github.com/spindleworks/novem/item"
	"github.com/spindleworks/novem/store"
	"github.com/spindleworks/novem/subspace"
	"github.com/spindleworks/novem/version"
)

// setupHTTPRoutes configures all HTTP handlers
func (s *Server) setupHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.corsMiddleware(s.HandleWebSocket)) // Store event stream
	mux.HandleFunc("/health", s.corsMiddleware(s.HandleHealth))
	mux.HandleFunc("/api/status", s.corsMiddleware(s.HandleStatus))      // Store-wide overview (GET)
	mux.HandleFunc("/api/buckets", s.corsMiddleware(s.HandleBuckets))    // Resident counts per bucket (GET)
	mux.HandleFunc("/api/buckets/", s.corsMiddleware(s.HandleBucket))    // Bucket snapshot + stats (GET /api/buckets/{addr})
	mux.HandleFunc("/api/items", s.corsMiddleware(s.HandleItems))        // All resident items (GET)
	mux.HandleFunc("/api/subspace/", s.corsMiddleware(s.HandleSubspace)) // Monitor snapshot (GET /api/subspace/{addr})
}

// corsMiddleware adds CORS headers using the configured allowed origins.
// Uses the same origin validation as WebSocket connections.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// HandleWebSocket upgrades the connection and attaches the client to the
// event stream.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := s.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("WebSocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		server: s,
		conn:   conn,
		send:   make(chan store.Event, sendBuffer),
		id:     uuid.New().String(),
	}

	select {
	case s.register <- client:
	case <-s.ctx.Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// HandleHealth reports liveness
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": version.Get(),
	})
}

// StatusResponse is the store-wide overview returned by /api/status
type StatusResponse struct {
	Version    version.Info                  `json:"version"`
	Time       time.Time                     `json:"time"`
	Buckets    map[string]int                `json:"buckets"`
	TotalItems int                           `json:"total_items"`
	Anchors    map[string]*subspace.Snapshot `json:"anchors"`
	Flow       *flow.SystemMetrics           `json:"flow,omitempty"`
	Clients    int                           `json:"clients"`
	EventDrops int64                         `json:"event_drops"`
}

// HandleStatus returns resident counts, anchor subspace state and traversal
// metrics in one payload.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	buckets := make(map[string]int, 10)
	total := 0
	for addr := digit.Address(0); addr <= 9; addr++ {
		n := s.store.Len(addr)
		buckets[strconv.Itoa(int(addr))] = n
		total += n
	}

	anchors := make(map[string]*subspace.Snapshot, 3)
	for _, a := range digit.Anchors {
		anchors[strconv.Itoa(int(a))] = s.store.Subspace(a)
	}

	resp := StatusResponse{
		Version:    version.Get(),
		Time:       time.Now(),
		Buckets:    buckets,
		TotalItems: total,
		Anchors:    anchors,
		EventDrops: s.eventDrops.Load(),
	}

	if s.pool != nil {
		metrics := s.pool.GetSystemMetrics()
		resp.Flow = &metrics
	}

	s.mu.RLock()
	resp.Clients = len(s.clients)
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, resp)
}

// HandleBuckets returns the resident count of every bucket
func (s *Server) HandleBuckets(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	counts := make(map[string]int, 10)
	for addr := digit.Address(0); addr <= 9; addr++ {
		counts[strconv.Itoa(int(addr))] = s.store.Len(addr)
	}
	writeJSON(w, http.StatusOK, counts)
}

// BucketResponse is the per-bucket view returned by /api/buckets/{addr}
type BucketResponse struct {
	Address  digit.Address      `json:"address"`
	IsAnchor bool               `json:"is_anchor"`
	IsCycle  bool               `json:"is_cycle"`
	Stats    store.ChannelStats `json:"stats"`
	Means    [3]float64         `json:"means"`
	Items    []item.Export      `json:"items"`
}

// HandleBucket returns a committed snapshot of one bucket with its channel
// aggregate.
func (s *Server) HandleBucket(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	addr, ok := s.parseAddress(w, r.URL.Path, "/api/buckets/")
	if !ok {
		return
	}

	items, err := s.store.SnapshotRead(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []item.Export{}
	}

	stats := s.store.Stats(addr)
	writeJSON(w, http.StatusOK, BucketResponse{
		Address:  addr,
		IsAnchor: addr.IsAnchor(),
		IsCycle:  addr.IsCycle(),
		Stats:    stats,
		Means:    stats.Means(),
		Items:    items,
	})
}

// HandleItems returns every resident item across all buckets
func (s *Server) HandleItems(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	items := s.store.IterAll()
	if items == nil {
		items = []item.Export{}
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleSubspace returns the monitor's current snapshot for one bucket.
// Buckets that have seen no observations yet return 404.
func (s *Server) HandleSubspace(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	addr, ok := s.parseAddress(w, r.URL.Path, "/api/subspace/")
	if !ok {
		return
	}

	snap := s.store.Subspace(addr)
	if snap == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no subspace state for bucket %d", addr))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// parseAddress extracts and validates a bucket address path segment
func (s *Server) parseAddress(w http.ResponseWriter, urlPath, prefix string) (digit.Address, bool) {
	parts := extractPathParts(urlPath, prefix)
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "missing bucket address")
		return 0, false
	}

	n, err := strconv.Atoi(parts[0])
	if err != nil || n < 0 || n > 9 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid bucket address %q", parts[0]))
		return 0, false
	}
	return digit.Address(n), true
}
