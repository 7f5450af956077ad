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

package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TurnEvent is the fire-and-forget log record emitted for every committed
// turn. Failures writing or publishing a TurnEvent must never block or
// fail the user-facing turn.
type TurnEvent struct {
	// Core identification
	UUID      string    `json:"uuid" db:"uuid"`
	SessionID string    `json:"session_id" db:"session_id"`
	PersonaID string    `json:"persona_id" db:"persona_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`

	// Turn content
	Role     string `json:"role" db:"role"`
	Content  string `json:"content" db:"content"`
	Modality string `json:"modality" db:"modality"`

	// Voice metadata (empty for typed turns)
	TranscriptSource string `json:"transcript_source,omitempty" db:"transcript_source"`
	AudioBytes       int    `json:"audio_bytes" db:"audio_bytes"`

	// Outcome
	ProcessingTime int64  `json:"processing_time_ms" db:"processing_time_ms"`
	Success        bool   `json:"success" db:"success"`
	ErrorMessage   string `json:"error_message,omitempty" db:"error_message"`
}

// NewTurnEvent creates a TurnEvent with generated UUID and current timestamp
func NewTurnEvent(sessionID, personaID string) *TurnEvent {
	return &TurnEvent{
		UUID:      uuid.NewString(),
		SessionID: sessionID,
		PersonaID: personaID,
		Timestamp: time.Now(),
		Success:   true,
	}
}

// GetUUID returns the event UUID (used by the structured logging helpers)
func (te *TurnEvent) GetUUID() string {
	return te.UUID
}

// SetTurn sets the turn content fields
func (te *TurnEvent) SetTurn(role, content, modality string) {
	te.Role = role
	te.Content = content
	te.Modality = modality
}

// SetVoiceMetadata records which transcript source won reconciliation and
// how much audio was captured
func (te *TurnEvent) SetVoiceMetadata(source string, audioBytes int) {
	te.TranscriptSource = source
	te.AudioBytes = audioBytes
}

// Finish marks processing as complete
func (te *TurnEvent) Finish() {
	te.ProcessingTime = time.Since(te.Timestamp).Milliseconds()
}

// SetError marks the event as failed with an error message
func (te *TurnEvent) SetError(err error) {
	te.Success = false
	te.ErrorMessage = err.Error()
	te.ProcessingTime = time.Since(te.Timestamp).Milliseconds()
}

// IsValid performs basic validation on the turn event
func (te *TurnEvent) IsValid() error {
	if te.UUID == "" {
		return fmt.Errorf("UUID is required")
	}

	if te.SessionID == "" {
		return fmt.Errorf("sessionID is required")
	}

	if te.Role == "" {
		return fmt.Errorf("role is required")
	}

	if te.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}

	return nil
}

// String returns a human-readable representation of the turn event
func (te *TurnEvent) String() string {
	return fmt.Sprintf("TurnEvent{UUID: %s, SessionID: %s, Role: %s, Modality: %s, Success: %t}",
		te.UUID, te.SessionID, te.Role, te.Modality, te.Success)
}
