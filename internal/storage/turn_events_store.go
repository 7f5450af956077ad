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

package storage

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/events"
)

// TurnEventsStore handles database operations for turn events
type TurnEventsStore struct {
	db *Database
}

// NewTurnEventsStore creates a new turn events store
func NewTurnEventsStore(db *Database) *TurnEventsStore {
	return &TurnEventsStore{db: db}
}

// Insert stores a new turn event in the database
func (s *TurnEventsStore) Insert(event *events.TurnEvent) error {
	if err := event.IsValid(); err != nil {
		return fmt.Errorf("invalid turn event: %w", err)
	}

	query := `
		INSERT INTO turn_events (
			uuid, session_id, persona_id, timestamp,
			role, content, modality,
			transcript_source, audio_bytes,
			processing_time_ms, success, error_message
		) VALUES (
			?, ?, ?, ?,
			?, ?, ?,
			?, ?,
			?, ?, ?
		)`

	_, err := s.db.DB().Exec(query,
		event.UUID, event.SessionID, event.PersonaID, event.Timestamp,
		event.Role, event.Content, event.Modality,
		event.TranscriptSource, event.AudioBytes,
		event.ProcessingTime, event.Success, event.ErrorMessage,
	)

	if err != nil {
		return fmt.Errorf("failed to insert turn event: %w", err)
	}

	log.Printf("📝 Stored turn event: %s (SessionID: %s, Role: %s)",
		event.UUID, event.SessionID, event.Role)
	return nil
}

// GetByUUID retrieves a turn event by its UUID
func (s *TurnEventsStore) GetByUUID(uuid string) (*events.TurnEvent, error) {
	query := `
		SELECT uuid, session_id, persona_id, timestamp,
			   role, content, modality,
			   transcript_source, audio_bytes,
			   processing_time_ms, success, error_message
		FROM turn_events
		WHERE uuid = ?`

	row := s.db.DB().QueryRow(query, uuid)
	return s.scanTurnEvent(row)
}

// List retrieves turn events with pagination and filtering
func (s *TurnEventsStore) List(options ListOptions) ([]*events.TurnEvent, error) {
	query, args := s.buildListQuery(options)

	rows, err := s.db.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query turn events: %w", err)
	}
	defer rows.Close()

	var eventsList []*events.TurnEvent
	for rows.Next() {
		event, err := s.scanTurnEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan turn event: %w", err)
		}
		eventsList = append(eventsList, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating turn events: %w", err)
	}

	return eventsList, nil
}

// Count returns the total number of turn events matching the filter
func (s *TurnEventsStore) Count(options ListOptions) (int64, error) {
	// Build count query using same filters
	options.Limit = 0
	options.Offset = 0
	query, args := s.buildListQuery(options)

	// Replace SELECT fields with COUNT(*)
	countQuery := "SELECT COUNT(*) FROM (" + query + ") as filtered"

	var count int64
	err := s.db.DB().QueryRow(countQuery, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count turn events: %w", err)
	}

	return count, nil
}

// GetBySession retrieves recent events for a specific session
func (s *TurnEventsStore) GetBySession(sessionID string, limit int) ([]*events.TurnEvent, error) {
	options := ListOptions{
		SessionID: sessionID,
		Limit:     limit,
	}
	return s.List(options)
}

// Delete removes a turn event by UUID
func (s *TurnEventsStore) Delete(uuid string) error {
	result, err := s.db.DB().Exec("DELETE FROM turn_events WHERE uuid = ?", uuid)
	if err != nil {
		return fmt.Errorf("failed to delete turn event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("turn event not found: %s", uuid)
	}

	log.Printf("🗑️  Deleted turn event: %s", uuid)
	return nil
}

// ListOptions defines filtering and pagination options
type ListOptions struct {
	// Filtering
	SessionID string
	PersonaID string
	Role      string
	Modality  string
	Success   *bool // nil = all, true = success only, false = errors only
	StartTime *time.Time
	EndTime   *time.Time

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy    string // "timestamp", "processing_time_ms"
	SortOrder string // "ASC", "DESC"
}

// buildListQuery constructs the SQL query based on ListOptions
func (s *TurnEventsStore) buildListQuery(options ListOptions) (string, []interface{}) {
	query := `
		SELECT uuid, session_id, persona_id, timestamp,
			   role, content, modality,
			   transcript_source, audio_bytes,
			   processing_time_ms, success, error_message
		FROM turn_events WHERE 1=1`

	var args []interface{}

	// Apply filters
	if options.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, options.SessionID)
	}

	if options.PersonaID != "" {
		query += " AND persona_id = ?"
		args = append(args, options.PersonaID)
	}

	if options.Role != "" {
		query += " AND role = ?"
		args = append(args, options.Role)
	}

	if options.Modality != "" {
		query += " AND modality = ?"
		args = append(args, options.Modality)
	}

	if options.Success != nil {
		query += " AND success = ?"
		args = append(args, *options.Success)
	}

	if options.StartTime != nil {
		query += " AND timestamp >= ?"
		args = append(args, options.StartTime)
	}

	if options.EndTime != nil {
		query += " AND timestamp <= ?"
		args = append(args, options.EndTime)
	}

	// Apply sorting
	sortBy := options.SortBy
	if sortBy == "" {
		sortBy = "timestamp"
	}

	sortOrder := options.SortOrder
	if sortOrder == "" {
		sortOrder = "DESC"
	}

	query += fmt.Sprintf(" ORDER BY %s %s", sortBy, sortOrder)

	// Apply pagination
	if options.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, options.Limit)

		if options.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, options.Offset)
		}
	}

	return query, args
}

// scanTurnEvent scans a database row into a TurnEvent struct
func (s *TurnEventsStore) scanTurnEvent(scanner interface{}) (*events.TurnEvent, error) {
	var event events.TurnEvent

	var row interface {
		Scan(dest ...interface{}) error
	}

	switch v := scanner.(type) {
	case *sql.Row:
		row = v
	case *sql.Rows:
		row = v
	default:
		return nil, fmt.Errorf("unsupported scanner type")
	}

	err := row.Scan(
		&event.UUID, &event.SessionID, &event.PersonaID, &event.Timestamp,
		&event.Role, &event.Content, &event.Modality,
		&event.TranscriptSource, &event.AudioBytes,
		&event.ProcessingTime, &event.Success, &event.ErrorMessage,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("turn event not found")
		}
		return nil, err
	}

	return &event, nil
}
