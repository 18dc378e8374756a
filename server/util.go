package server

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// getUpgrader creates a WebSocket upgrader with origin checking from config
func (s *Server) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  2048,
		WriteBufferSize: 2048,
		CheckOrigin:     s.checkOrigin,
	}
}

// checkOrigin validates a request origin against the configured allowlist.
// An empty allowlist falls back to localhost only.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Allow requests with no origin header (direct clients, testing)
	if origin == "" {
		return true
	}

	allowed := *s.origins.Load()
	if len(allowed) == 0 {
		return strings.HasPrefix(origin, "http://localhost") ||
			strings.HasPrefix(origin, "https://localhost")
	}

	// Prefix matching allows any port number
	for _, allowedOrigin := range allowed {
		if strings.HasPrefix(origin, allowedOrigin) {
			return true
		}
	}

	return false
}

// isPortAvailable checks if a port is available for binding
func isPortAvailable(port int) bool {
	addr := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	_ = listener.Close()
	return true
}

// findAvailablePort tries the requested port first, then a small high-range
// fallback window so a second instance on the same host still comes up.
func findAvailablePort(requestedPort int) (int, error) {
	if isPortAvailable(requestedPort) {
		return requestedPort, nil
	}

	fallbackStart := 56787
	for i := 0; i < 10; i++ {
		port := fallbackStart + i
		if isPortAvailable(port) {
			return port, nil
		}
	}

	return 0, fmt.Errorf("no available ports found (tried %d and range %d-%d)",
		requestedPort, fallbackStart, fallbackStart+9)
}
