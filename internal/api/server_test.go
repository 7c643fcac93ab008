package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shikenmatrix/reporter/internal/event"
)

func TestHealth(t *testing.T) {
	s := NewServer()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCurrentWindow(t *testing.T) {
	s := NewServer()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/window/current", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s.PublishWindow(&event.WindowInfo{Title: "editor", ProcessName: "code", PID: 12})

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/window/current", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var info event.WindowInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "editor", info.Title)
	assert.Equal(t, uint32(12), info.PID)
}

func TestStatusEndpoint(t *testing.T) {
	s := NewServer()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var st map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, false, st["is_running"])
}

func TestEventStream(t *testing.T) {
	s := NewServer()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Subscription registration races the publish; retry briefly.
	require.Eventually(t, func() bool {
		s.PublishWindow(&event.WindowInfo{Title: "streamed", ProcessName: "p", PID: 1})
		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		var env struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&env); err != nil {
			return false
		}
		return env.Type == "window"
	}, 5*time.Second, 50*time.Millisecond)
}
