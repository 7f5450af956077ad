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

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/events"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/logging"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/security"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/storage"
)

// TurnEventsHandler handles HTTP requests for the turn event log
type TurnEventsHandler struct {
	store *storage.TurnEventsStore
}

// NewTurnEventsHandler creates a new turn events handler
func NewTurnEventsHandler(store *storage.TurnEventsStore) *TurnEventsHandler {
	return &TurnEventsHandler{store: store}
}

// ListTurnEventsResponse represents the response for listing turn events
type ListTurnEventsResponse struct {
	Events     []*events.TurnEvent `json:"events"`
	Total      int64               `json:"total"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"page_size"`
	TotalPages int                 `json:"total_pages"`
}

// HandleTurnEvents handles GET /api/turn-events
func (h *TurnEventsHandler) HandleTurnEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.listTurnEvents(w, r)
}

// HandleTurnEventByID handles GET /api/turn-events/{id}
func (h *TurnEventsHandler) HandleTurnEventByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Extract UUID from URL path
	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/turn-events/"), "/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		http.Error(w, "Event ID is required", http.StatusBadRequest)
		return
	}

	uuid := pathParts[0]
	if err := security.ValidateID(uuid); err != nil {
		http.Error(w, "Invalid event ID", http.StatusBadRequest)
		return
	}

	h.getTurnEventByID(w, r, uuid)
}

// listTurnEvents handles GET /api/turn-events
func (h *TurnEventsHandler) listTurnEvents(w http.ResponseWriter, r *http.Request) {
	// Parse query parameters
	query := r.URL.Query()

	// Pagination
	page := parseIntParam(query.Get("page"), 1)
	pageSize := parseIntParam(query.Get("page_size"), 20)
	if pageSize > 100 {
		pageSize = 100 // Limit maximum page size
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if page < 1 {
		page = 1
	}

	// Filtering
	options := storage.ListOptions{
		SessionID: query.Get("session_id"),
		PersonaID: query.Get("persona_id"),
		Role:      query.Get("role"),
		Modality:  query.Get("modality"),
		Limit:     pageSize,
		Offset:    (page - 1) * pageSize,
		SortBy:    query.Get("sort_by"),
		SortOrder: strings.ToUpper(query.Get("sort_order")),
	}

	// Parse success filter
	if successStr := query.Get("success"); successStr != "" {
		if success, err := strconv.ParseBool(successStr); err == nil {
			options.Success = &success
		}
	}

	// Parse time filters
	if startTimeStr := query.Get("start_time"); startTimeStr != "" {
		if startTime, err := time.Parse(time.RFC3339, startTimeStr); err == nil {
			options.StartTime = &startTime
		}
	}
	if endTimeStr := query.Get("end_time"); endTimeStr != "" {
		if endTime, err := time.Parse(time.RFC3339, endTimeStr); err == nil {
			options.EndTime = &endTime
		}
	}

	// Get total count for pagination
	total, err := h.store.Count(options)
	if err != nil {
		logging.LogError(err, "Failed to count turn events")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Get events
	eventsList, err := h.store.List(options)
	if err != nil {
		logging.LogError(err, "Failed to list turn events")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Build response
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	response := ListTurnEventsResponse{
		Events:     eventsList,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}

	// Log the API request
	logging.Sugar.Infow("Turn events API request",
		"endpoint", "list",
		"page", page,
		"page_size", pageSize,
		"total_results", total,
		"filters", map[string]interface{}{
			"session_id": options.SessionID,
			"role":       options.Role,
			"success":    options.Success,
		},
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// getTurnEventByID handles GET /api/turn-events/{id}
func (h *TurnEventsHandler) getTurnEventByID(w http.ResponseWriter, r *http.Request, uuid string) {
	event, err := h.store.GetByUUID(uuid)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			http.Error(w, "Turn event not found", http.StatusNotFound)
			return
		}
		logging.LogError(err, "Failed to get turn event",
			zap.String("uuid", uuid),
		)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(event)
}

// parseIntParam parses integer parameter with default value
func parseIntParam(param string, defaultValue int) int {
	if param == "" {
		return defaultValue
	}

	if value, err := strconv.Atoi(param); err == nil {
		return value
	}

	return defaultValue
}
