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

package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Modality identifies how user input entered the conversation
type Modality string

const (
	ModalityVoice Modality = "voice"
	ModalityText  Modality = "text"
)

// Status describes the single conversation state at any instant
type Status int

const (
	StatusIdle Status = iota
	StatusListening
	StatusProcessing
	StatusSpeaking
)

// String returns the string representation of a Status
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusListening:
		return "listening"
	case StatusProcessing:
		return "processing"
	case StatusSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// Profile holds the interviewee details collected on the intake form
type Profile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// Turn is one immutable exchange unit in the conversation transcript
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Modality  Modality  `json:"modality"`
}

// Session is one interview/chat session with an ordered transcript.
// Turns are append-only; insertion order is conversation order and is
// the context order sent to the assistant.
type Session struct {
	ID        string    `json:"id"`
	PersonaID string    `json:"persona_id"`
	Profile   Profile   `json:"profile"`
	CreatedAt time.Time `json:"created_at"`

	mu    sync.RWMutex
	turns []Turn
}

// New creates a session with a generated identifier
func New(personaID string, profile Profile) *Session {
	return &Session{
		ID:        uuid.NewString(),
		PersonaID: personaID,
		Profile:   profile,
		CreatedAt: time.Now(),
	}
}

// Append commits a turn to the transcript and returns it
func (s *Session) Append(role Role, content string, modality Modality) Turn {
	turn := Turn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Modality:  modality,
	}

	s.mu.Lock()
	s.turns = append(s.turns, turn)
	s.mu.Unlock()

	return turn
}

// Turns returns a copy of the committed transcript in conversation order
func (s *Session) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := make([]Turn, len(s.turns))
	copy(turns, s.turns)
	return turns
}

// TurnCount returns the number of committed turns
func (s *Session) TurnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// LastTurn returns the most recent turn, if any
func (s *Session) LastTurn() (Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.turns) == 0 {
		return Turn{}, false
	}
	return s.turns[len(s.turns)-1], true
}
