package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spindleworks/novem/archive"
	"github.com/spindleworks/novem/config"
	"github.com/spindleworks/novem/item"
	"github.com/spindleworks/novem/judge"
	"github.com/spindleworks/novem/store"
	"github.com/spindleworks/novem/subspace"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	j := judge.New(judge.DefaultConfig())
	m := subspace.NewMonitor(subspace.DefaultParams())
	s := store.New(j, m, archive.NewMemorySink(16), store.Options{HighValueThreshold: 0.99})
	t.Cleanup(s.Close)

	srv := New(context.Background(), s, nil, config.ServerConfig{}, zaptest.NewLogger(t).Sugar())
	return srv, s
}

func ingestOne(t *testing.T, s *store.Store, counter uint64) item.Export {
	t.Helper()
	var dist [9]float64
	for i := range dist {
		dist[i] = 1
	}
	ex, err := s.Ingest(dist, item.Channels{Character: 3, Logic: 3, Affect: 3}, 0.5, counter)
	require.NoError(t, err)
	return ex
}

func TestHandleStatus(t *testing.T) {
	srv, s := newTestServer(t)
	ingestOne(t, s, 2)
	ingestOne(t, s, 3)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.HandleStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.TotalItems)
	require.Equal(t, 1, resp.Buckets["2"])
	require.Equal(t, 1, resp.Buckets["3"])
	require.Len(t, resp.Anchors, 3)
	require.Nil(t, resp.Flow, "no traversal pool attached")
}

func TestHandleBucket(t *testing.T) {
	srv, s := newTestServer(t)
	ex := ingestOne(t, s, 4)

	req := httptest.NewRequest(http.MethodGet, "/api/buckets/4", nil)
	rec := httptest.NewRecorder()
	srv.HandleBucket(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp BucketResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	require.Equal(t, ex.ID, resp.Items[0].ID)
	require.True(t, resp.IsCycle)
	require.False(t, resp.IsAnchor)
	require.Equal(t, uint64(1), resp.Stats.Count)
	require.InDelta(t, 3.0, resp.Means[0], 1e-9)
}

func TestHandleBucketRejectsBadAddress(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/api/buckets/10", "/api/buckets/x", "/api/buckets/"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.HandleBucket(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, "path %s", path)
	}
}

func TestHandleItemsEmptyStoreIsJSONArray(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	rec := httptest.NewRecorder()
	srv.HandleItems(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestHandleSubspaceBeforeObservations(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/subspace/3", nil)
	rec := httptest.NewRecorder()
	srv.HandleSubspace(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSubspaceAfterArrival(t *testing.T) {
	srv, s := newTestServer(t)
	ingestOne(t, s, 3) // counter 3 keys directly onto anchor 3

	req := httptest.NewRequest(http.MethodGet, "/api/subspace/3", nil)
	rec := httptest.NewRecorder()
	srv.HandleSubspace(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var snap subspace.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Equal(t, 1, snap.WindowLen)
}

func TestStatusRejectsPost(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.HandleStatus(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCheckOrigin(t *testing.T) {
	srv, _ := newTestServer(t)

	mkReq := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	// Empty allowlist: localhost only
	require.True(t, srv.checkOrigin(mkReq("")))
	require.True(t, srv.checkOrigin(mkReq("http://localhost:3000")))
	require.False(t, srv.checkOrigin(mkReq("https://evil.example")))

	srv.SetAllowedOrigins([]string{"https://dash.example"})
	require.True(t, srv.checkOrigin(mkReq("https://dash.example")))
	require.False(t, srv.checkOrigin(mkReq("http://localhost:3000")))
}

func TestWebSocketReceivesStoreEvents(t *testing.T) {
	srv, s := newTestServer(t)

	mux := http.NewServeMux()
	srv.setupHTTPRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	// The hub and event pump normally start in Start(); run them directly
	// against the test listener.
	go srv.run()
	go srv.pumpStoreEvents()
	defer srv.cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := gws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Wait for registration before producing events
	require.Eventually(t, func() bool {
		srv.mu.RLock()
		defer srv.mu.RUnlock()
		return len(srv.clients) == 1
	}, 2*time.Second, 10*time.Millisecond)

	ingestOne(t, s, 2)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev store.Event
	require.NoError(t, conn.ReadJSON(&ev))
	require.Equal(t, store.EventUpsert, ev.Kind)
}
