// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"heatdoors/internal/events"
	"heatdoors/internal/safety"
	"heatdoors/internal/tunables"
	"heatdoors/pkg/eventbus"
	"heatdoors/pkg/logger"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

//go:embed www
var assets embed.FS

// Supervisor is the operator side of the safety supervisor.
type Supervisor interface {
	RequestReset()
	Shutdown(reason string)
	Current() safety.State
}

// Tunables is the update boundary for runtime parameters.
type Tunables interface {
	Load() tunables.Params
	Update(tunables.Params) error
	Version() uint64
}

// Status is served on /status and pushed on /ws.
type Status struct {
	State       safety.State            `json:"state"`
	Diagnostics *events.TickDiagnostics `json:"diagnostics,omitempty"`
	Door        *events.DoorUpdate      `json:"door,omitempty"`
	Loop        any                     `json:"loop,omitempty"`
	ParamsV     uint64                  `json:"params_version"`
}

type Server struct {
	bus      *eventbus.Bus
	sup      Supervisor
	store    Tunables
	history  http.Handler
	stats    func() any
	interval time.Duration

	clients *clientSync
	mux     http.Handler
	once    sync.Once
	log     *logger.Logger
}

type Option func(*Server)

// WithHistory mounts h on /history.
func WithHistory(h http.Handler) Option { return func(s *Server) { s.history = h } }

// WithStats adds loop statistics to the status document.
func WithStats(fn func() any) Option { return func(s *Server) { s.stats = fn } }

// WithPushInterval bounds the websocket push rate.
func WithPushInterval(d time.Duration) Option { return func(s *Server) { s.interval = d } }

func New(bus *eventbus.Bus, sup Supervisor, store Tunables, opts ...Option) *Server {
	s := &Server{
		bus:      bus,
		sup:      sup,
		store:    store,
		interval: 250 * time.Millisecond,
		clients:  newClientSync(),
		log:      logger.New("Web"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Server) buildHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveRoot)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/ws", s.serveWebSockets())
	mux.HandleFunc("/reset", s.handleReset)
	mux.HandleFunc("/shutdown", s.handleShutdown)
	mux.HandleFunc("/tunables", s.handleTunables)
	if s.history != nil {
		mux.Handle("/history", s.history)
	}
	return mux
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.once.Do(func() { s.mux = s.buildHTTPHandler() })
	s.mux.ServeHTTP(w, r)
}

// Status assembles the current status from the bus.
func (s *Server) Status() Status {
	st := Status{State: s.sup.Current(), ParamsV: s.store.Version()}
	if ev, ok := s.bus.GetLast(events.TopicDiagnostics); ok {
		if d, ok := ev.(events.TickDiagnostics); ok {
			st.Diagnostics = &d
		}
	}
	if ev, ok := s.bus.GetLast(events.TopicDoor); ok {
		if d, ok := ev.(events.DoorUpdate); ok {
			st.Door = &d
		}
	}
	if s.stats != nil {
		st.Loop = s.stats()
	}
	return st
}

func (s *Server) serveRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFileFS(w, r, assets, "www/index.html")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Status(), s.log)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.sup.Current() == safety.Shutdown {
		http.Error(w, "shutdown is terminal", http.StatusConflict)
		return
	}
	s.sup.RequestReset()
	s.log.Info("fault reset requested from %s", r.RemoteAddr)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	reason := strings.TrimSpace(r.URL.Query().Get("reason"))
	if reason == "" {
		reason = "operator shutdown"
	}
	s.sup.Shutdown(reason)
	s.log.Warn("shutdown requested from %s: %s", r.RemoteAddr, reason)
	w.WriteHeader(http.StatusAccepted)
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// handleTunables serves the active block on GET. PUT merges the body
// onto the active block and submits it through the update boundary.
func (s *Server) handleTunables(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.Load(), s.log)
	case http.MethodPut, http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read request body"}, s.log)
			return
		}
		p := s.store.Load()
		if err := json.Unmarshal(body, &p); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request: " + err.Error()}, s.log)
			return
		}
		if err := s.store.Update(p); err != nil {
			var cfgErr *tunables.ConfigurationError
			if errors.As(err, &cfgErr) {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: cfgErr.Error(), Field: cfgErr.Field}, s.log)
				return
			}
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()}, s.log)
			return
		}
		writeJSON(w, http.StatusOK, s.store.Load(), s.log)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) serveWebSockets() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			s.log.Debug("checking origin: %s", origin)
			if origin == "" {
				return false
			}
			if strings.Contains(origin, "localhost") {
				return true
			}
			return strings.Contains(origin, r.Host)
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Error("failed to upgrade websocket: %v", err)
			return
		}
		s.clients.add(ws)
		defer func() {
			s.clients.remove(ws)
			ws.Close()
		}()

		if pm, err := s.prepare(s.Status()); err == nil {
			if err := s.clients.send(ws, pm); err != nil {
				return
			}
		}

		// the feed is one-way; reads only detect the close
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.log.Debug("ws read: %v", err)
				}
				return
			}
		}
	}
}

func (s *Server) prepare(v any) (*websocket.PreparedMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("failed to marshal broadcast: %v", err)
		return nil, err
	}
	pm, err := websocket.NewPreparedMessage(websocket.TextMessage, data)
	if err != nil {
		s.log.Error("failed to prepare message: %v", err)
		return nil, err
	}
	return pm, nil
}

// Run pushes the status to websocket clients at most once per push
// interval and immediately on safety changes.
func (s *Server) Run(ctx context.Context) {
	s.log.Info("Running... (push every %v)", s.interval)
	defer func() {
		s.clients.closeAll()
		s.log.Info("Stopped")
	}()

	diag, unsubDiag := s.bus.Subscribe(ctx, events.TopicDiagnostics, false)
	defer unsubDiag()
	changes, unsubSafety := s.bus.Subscribe(ctx, events.TopicSafety, false)
	defer unsubSafety()

	var last time.Time
	push := func() {
		if s.clients.count() == 0 {
			return
		}
		if pm, err := s.prepare(s.Status()); err == nil {
			s.clients.broadcast(pm, s.log)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-diag:
			if !ok {
				return
			}
			if now := time.Now(); now.Sub(last) >= s.interval {
				last = now
				push()
			}
		case _, ok := <-changes:
			if !ok {
				return
			}
			push()
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any, log *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response: %v", err)
	}
}
