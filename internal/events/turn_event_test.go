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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTurnEvent(t *testing.T) {
	ev := NewTurnEvent("session-1", "persona-1")

	assert.NotEmpty(t, ev.UUID)
	assert.Equal(t, "session-1", ev.SessionID)
	assert.Equal(t, "persona-1", ev.PersonaID)
	assert.False(t, ev.Timestamp.IsZero())
	assert.True(t, ev.Success)

	other := NewTurnEvent("session-1", "persona-1")
	assert.NotEqual(t, ev.UUID, other.UUID)
}

func TestSetTurnAndVoiceMetadata(t *testing.T) {
	ev := NewTurnEvent("session-1", "persona-1")
	ev.SetTurn("user", "hello", "voice")
	ev.SetVoiceMetadata("server", 8192)
	ev.Finish()

	assert.Equal(t, "user", ev.Role)
	assert.Equal(t, "hello", ev.Content)
	assert.Equal(t, "voice", ev.Modality)
	assert.Equal(t, "server", ev.TranscriptSource)
	assert.Equal(t, 8192, ev.AudioBytes)
	assert.GreaterOrEqual(t, ev.ProcessingTime, int64(0))
}

func TestSetError(t *testing.T) {
	ev := NewTurnEvent("session-1", "persona-1")
	ev.SetError(errors.New("assistant unavailable"))

	assert.False(t, ev.Success)
	assert.Equal(t, "assistant unavailable", ev.ErrorMessage)
}

func TestIsValid(t *testing.T) {
	ev := NewTurnEvent("session-1", "persona-1")
	ev.SetTurn("assistant", "hi", "voice")
	require.NoError(t, ev.IsValid())

	tests := []struct {
		name   string
		mutate func(*TurnEvent)
	}{
		{"missing UUID", func(e *TurnEvent) { e.UUID = "" }},
		{"missing session", func(e *TurnEvent) { e.SessionID = "" }},
		{"missing role", func(e *TurnEvent) { e.Role = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := NewTurnEvent("session-1", "persona-1")
			bad.SetTurn("user", "x", "text")
			tt.mutate(bad)
			assert.Error(t, bad.IsValid())
		})
	}
}
