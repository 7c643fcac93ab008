// Package api serves the local diagnostics endpoint used in daemon mode:
// reporter status, the last observed window, and a live event stream.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/shikenmatrix/reporter/internal/event"
	"github.com/shikenmatrix/reporter/internal/logger"
	"github.com/shikenmatrix/reporter/internal/reporter"
)

// envelope is the frame shape sent to event-stream subscribers.
type envelope struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"ts"`
	Data      any    `json:"data"`
}

// Server is the diagnostics HTTP server. It is fed through the Publish
// methods, which the daemon wires to the reporter callbacks.
type Server struct {
	router   *mux.Router
	upgrader websocket.Upgrader

	mu         sync.RWMutex
	lastWindow *event.WindowInfo
	lastMedia  *event.MediaInfo
	clients    map[chan envelope]struct{}
}

// NewServer creates a diagnostics server.
func NewServer() *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Loopback-only server; origin checks add nothing here.
				return true
			},
		},
		clients: make(map[chan envelope]struct{}),
	}
	s.router = mux.NewRouter()
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/window/current", s.handleCurrentWindow).Methods("GET")
	api.HandleFunc("/media/current", s.handleCurrentMedia).Methods("GET")
	api.HandleFunc("/events/stream", s.handleEventStream)
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start serves on the loopback interface. Blocks until the listener fails.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	logger.WithComponent("api").Info().Str("addr", addr).Msg("Diagnostics server listening")
	return http.ListenAndServe(addr, s.router)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// PublishWindow records and broadcasts a window event.
func (s *Server) PublishWindow(info *event.WindowInfo) {
	s.mu.Lock()
	s.lastWindow = info
	s.mu.Unlock()
	s.broadcast(envelope{Type: "window", Timestamp: time.Now().UnixMilli(), Data: info})
}

// PublishMedia records and broadcasts a media event.
func (s *Server) PublishMedia(info *event.MediaInfo) {
	s.mu.Lock()
	s.lastMedia = info
	s.mu.Unlock()
	s.broadcast(envelope{Type: "media", Timestamp: time.Now().UnixMilli(), Data: info})
}

// PublishLog broadcasts a log event.
func (s *Server) PublishLog(level event.LogLevel, message string) {
	s.broadcast(envelope{
		Type:      "log",
		Timestamp: time.Now().UnixMilli(),
		Data:      map[string]string{"level": level.String(), "message": message},
	})
}

func (s *Server) broadcast(env envelope) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.clients {
		select {
		case ch <- env:
		default:
			// Slow subscriber: drop rather than stall the capture path.
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := reporter.Status()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"is_running":   st.IsRunning,
		"is_connected": st.IsConnected,
		"last_error":   st.LastError,
	})
}

func (s *Server) handleCurrentWindow(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	current := s.lastWindow
	s.mu.RUnlock()

	if current == nil {
		http.Error(w, "No window observed", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(current)
}

func (s *Server) handleCurrentMedia(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	current := s.lastMedia
	s.mu.RUnlock()

	if current == nil {
		http.Error(w, "No media observed", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(current)
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithComponent("api").Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := make(chan envelope, 16)
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, ch)
		s.mu.Unlock()
	}()

	// Detect client departure.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case env := <-ch:
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}
