/*
 * This file is part of Weya (https://github.com/weyalighteagle/weya).
 * Copyright (C) 2025 Weya
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/api"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/config"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/logging"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/messaging"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/services"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/storage"
)

// Dependencies are the shared backend services the server wires into
// every session controller. Store and NATS may be nil; turn logging is
// then skipped for the missing sink.
type Dependencies struct {
	Assistant   services.Assistant
	Transcriber services.Transcriber
	Synthesizer services.Synthesizer
	Scripts     services.ScriptProvider
	Store       *storage.TurnEventsStore
	NATS        *messaging.NATSService
}

// Server is the Weya hub: session lifecycle over REST, device I/O over
// WebSocket, and the queryable turn event log.
type Server struct {
	cfg    *config.Config
	deps   Dependencies
	mux    *http.ServeMux
	server *http.Server

	recorder *turnRecorder

	mu       sync.Mutex
	sessions map[string]*sessionEntry

	// Server context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new server
func New(cfg *config.Config, deps Dependencies) *Server {
	mux := http.NewServeMux()

	// Create server context
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:      cfg,
		deps:     deps,
		mux:      mux,
		recorder: newTurnRecorder(deps.Store, deps.NATS),
		sessions: make(map[string]*sessionEntry),
		ctx:      ctx,
		cancel:   cancel,
	}

	// Set up HTTP server
	s.server = &http.Server{
		Addr:         s.cfg.Server.Host + ":" + strconv.Itoa(s.cfg.Server.Port),
		Handler:      s.mux,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Set up routes
	s.routes()

	return s
}

// routes sets up HTTP routing
func (s *Server) routes() {
	// Health check
	s.mux.HandleFunc("/health", s.handleHealth)

	// Device WebSocket attach point
	s.mux.HandleFunc("/ws", s.handleDeviceSocket)

	// Session lifecycle
	s.mux.HandleFunc("/api/sessions", s.handleSessions)
	s.mux.HandleFunc("/api/sessions/", s.handleSessionByID)

	// Turn event log queries
	if s.deps.Store != nil {
		eventsHandler := api.NewTurnEventsHandler(s.deps.Store)
		s.mux.HandleFunc("/api/turn-events", eventsHandler.HandleTurnEvents)
		s.mux.HandleFunc("/api/turn-events/", eventsHandler.HandleTurnEventByID)
	}

	logging.Sugar.Infow("🌐 HTTP routes configured",
		"websocket_endpoint", "/ws",
		"sessions_endpoint", "/api/sessions",
		"turn_events_endpoint", "/api/turn-events")
}

// Start starts the server. Blocks until Stop is called or the listener
// fails.
func (s *Server) Start() error {
	logging.Sugar.Infow("🚀 Weya Hub starting",
		"http_addr", s.server.Addr,
		"stt_backend", s.cfg.STT.Backend)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop gracefully shuts down the server, tearing down all live sessions
func (s *Server) Stop() error {
	logging.Sugar.Infow("🛑 Shutting down Weya Hub")

	// Cancel context to stop background services
	s.cancel()

	// Tear down every live session so devices hear a clean close.
	s.mu.Lock()
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for _, entry := range s.sessions {
		entries = append(entries, entry)
	}
	s.sessions = make(map[string]*sessionEntry)
	s.mu.Unlock()

	for _, entry := range entries {
		entry.teardown()
	}

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logging.Sugar.Infow("✅ Weya Hub shut down successfully")
	return nil
}

// Handler returns the HTTP handler, used by tests
func (s *Server) Handler() http.Handler {
	return s.mux
}

// handleHealth provides system health information
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	liveSessions := len(s.sessions)
	s.mu.Unlock()

	health := map[string]interface{}{
		"status":        "ok",
		"timestamp":     time.Now(),
		"live_sessions": liveSessions,
		"stt_backend":   s.cfg.STT.Backend,
	}

	if s.deps.NATS != nil {
		health["nats_connected"] = s.deps.NATS.IsConnected()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := writeJSON(w, health); err != nil {
		logging.Sugar.Errorw("Failed to write health response", "error", err)
	}
}

// Helper functions

func writeJSON(w http.ResponseWriter, data interface{}) error {
	return json.NewEncoder(w).Encode(data)
}

func readJSON(r *http.Request, data interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	defer func() { _ = r.Body.Close() }()

	return json.Unmarshal(body, data)
}
