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
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/capture"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/controller"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/logging"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/playback"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/reconcile"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/security"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/session"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/transport"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The hub fronts its own web client; origin enforcement happens at
	// the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// sessionEntry tracks one created session and, once a device WebSocket
// attaches, its controller
type sessionEntry struct {
	sess *session.Session

	mu     sync.Mutex
	ctrl   *controller.Controller
	device *transport.DeviceSession
}

// teardown stops the controller and closes the device socket, if any
func (e *sessionEntry) teardown() {
	e.mu.Lock()
	ctrl := e.ctrl
	device := e.device
	e.ctrl = nil
	e.device = nil
	e.mu.Unlock()

	if ctrl != nil {
		ctrl.StopEverything()
	}
	if device != nil {
		device.CloseConnection()
	}
}

// CreateSessionRequest represents the request for creating a session
type CreateSessionRequest struct {
	PersonaID string `json:"persona_id"`
	Profile   struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
	} `json:"profile"`
}

// SessionResponse represents a session snapshot
type SessionResponse struct {
	ID        string         `json:"id"`
	PersonaID string         `json:"persona_id"`
	Status    string         `json:"status"`
	Turns     []session.Turn `json:"turns"`
	Questions int            `json:"questions"`
	Cursor    int            `json:"cursor"`
}

// handleSessions handles POST /api/sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CreateSessionRequest
	if err := readJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.PersonaID == "" {
		http.Error(w, "persona_id is required", http.StatusBadRequest)
		return
	}
	if err := security.ValidateID(req.PersonaID); err != nil {
		http.Error(w, "Invalid persona_id", http.StatusBadRequest)
		return
	}

	sess := session.New(req.PersonaID, session.Profile{
		FirstName: req.Profile.FirstName,
		LastName:  req.Profile.LastName,
		Email:     req.Profile.Email,
	})

	s.mu.Lock()
	s.sessions[sess.ID] = &sessionEntry{sess: sess}
	s.mu.Unlock()

	logging.Sugar.Infow("Session created",
		"session_id", sess.ID,
		"persona_id", security.SanitizeLogInput(req.PersonaID))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = writeJSON(w, SessionResponse{
		ID:        sess.ID,
		PersonaID: sess.PersonaID,
		Status:    session.StatusIdle.String(),
	})
}

// handleSessionByID handles GET/DELETE /api/sessions/{id} and
// POST /api/sessions/{id}/messages
func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Session ID is required", http.StatusBadRequest)
		return
	}

	sessionID := parts[0]
	if err := security.ValidateID(sessionID); err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}

	entry := s.lookup(sessionID)
	if entry == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	if len(parts) > 1 && parts[1] == "messages" {
		s.handleSessionMessage(w, r, entry)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleSessionSnapshot(w, entry)
	case http.MethodDelete:
		s.handleSessionDelete(w, sessionID, entry)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSessionSnapshot handles GET /api/sessions/{id}
func (s *Server) handleSessionSnapshot(w http.ResponseWriter, entry *sessionEntry) {
	status := session.StatusIdle
	questions, cursor := 0, 0

	entry.mu.Lock()
	ctrl := entry.ctrl
	entry.mu.Unlock()

	if ctrl != nil {
		status = ctrl.Status()
		questions, cursor = ctrl.ScriptCursor()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = writeJSON(w, SessionResponse{
		ID:        entry.sess.ID,
		PersonaID: entry.sess.PersonaID,
		Status:    status.String(),
		Turns:     entry.sess.Turns(),
		Questions: questions,
		Cursor:    cursor,
	})
}

// handleSessionDelete handles DELETE /api/sessions/{id}
func (s *Server) handleSessionDelete(w http.ResponseWriter, sessionID string, entry *sessionEntry) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	entry.teardown()

	logging.Sugar.Infow("Session destroyed", "session_id", sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// handleSessionMessage handles POST /api/sessions/{id}/messages, the
// typed input path. Typed input works with or without a connected
// device, but response audio needs one.
func (s *Server) handleSessionMessage(w http.ResponseWriter, r *http.Request, entry *sessionEntry) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := readJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	entry.mu.Lock()
	ctrl := entry.ctrl
	entry.mu.Unlock()

	if ctrl == nil {
		http.Error(w, "No device connected for this session", http.StatusConflict)
		return
	}

	if err := ctrl.SubmitUserTurn(req.Text, session.ModalityText); err != nil {
		if errors.Is(err, controller.ErrEmptyInput) {
			http.Error(w, "Text required", http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to submit message", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// handleDeviceSocket handles GET /ws?session_id={id}: upgrades the
// connection and binds a controller to the device.
func (s *Server) handleDeviceSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}
	if err := security.ValidateID(sessionID); err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}

	entry := s.lookup(sessionID)
	if entry == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	entry.mu.Lock()
	if entry.device != nil {
		entry.mu.Unlock()
		http.Error(w, "Device already connected", http.StatusConflict)
		return
	}
	entry.mu.Unlock()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.LogError(err, "WebSocket upgrade failed",
			zap.String("session_id", sessionID))
		return
	}

	device := transport.NewDeviceSession(sessionID, conn)
	ctrl := s.buildController(entry.sess, device)

	entry.mu.Lock()
	if entry.device != nil {
		// Lost the race to another device.
		entry.mu.Unlock()
		device.CloseConnection()
		return
	}
	entry.device = device
	entry.ctrl = ctrl
	entry.mu.Unlock()

	device.OnText = func(text string) {
		if err := ctrl.SubmitUserTurn(text, session.ModalityText); err != nil {
			logging.Sugar.Debugw("Ignoring device text frame", "error", err)
		}
	}
	device.OnStop = ctrl.StopEverything
	device.OnDisconnect = func() {
		ctrl.StopEverything()
		entry.mu.Lock()
		if entry.device == device {
			entry.device = nil
			entry.ctrl = nil
		}
		entry.mu.Unlock()
	}

	logging.Sugar.Infow("🔗 Device connected",
		"session_id", sessionID,
		"persona_id", security.SanitizeLogInput(entry.sess.PersonaID))

	go device.ReadLoop()
	go ctrl.Begin()
}

// buildController assembles the per-session voice pipeline around one
// device connection
func (s *Server) buildController(sess *session.Session, device *transport.DeviceSession) *controller.Controller {
	adapter := capture.NewAdapter(device, s.cfg.Capture.MaxPermissionRetries)
	reconciler := reconcile.NewReconciler(s.deps.Transcriber, s.cfg.Capture.MinAudioBytes)
	playbackManager := playback.NewManager(device)

	ctrl := controller.New(
		sess,
		s.deps.Assistant,
		s.deps.Synthesizer,
		s.deps.Scripts,
		adapter,
		reconciler,
		playbackManager,
		s.recorder,
		controller.Config{
			RestartDelay: s.cfg.Capture.RestartDelay,
			Voice:        s.cfg.TTS.Voice,
		},
	)

	ctrl.Subscribe(func(st session.Status) {
		device.SendStatus(st.String())
	})
	ctrl.OnInterim(device.SendCaption)
	ctrl.OnError(func(err error) {
		device.SendError(err.Error())
	})

	return ctrl
}

// lookup returns the session entry for an ID, or nil
func (s *Server) lookup(sessionID string) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[sessionID]
}
