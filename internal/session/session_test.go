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
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	sess := New("persona-1", Profile{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"})

	require.NotEmpty(t, sess.ID)
	assert.Equal(t, "persona-1", sess.PersonaID)
	assert.Equal(t, "Ada", sess.Profile.FirstName)
	assert.Equal(t, 0, sess.TurnCount())

	other := New("persona-1", Profile{})
	assert.NotEqual(t, sess.ID, other.ID, "session IDs must be unique")
}

func TestAppend_IsAppendOnly(t *testing.T) {
	sess := New("persona-1", Profile{})

	first := sess.Append(RoleUser, "hello", ModalityText)
	second := sess.Append(RoleAssistant, "hi there", ModalityVoice)

	require.Equal(t, 2, sess.TurnCount())
	assert.Equal(t, RoleUser, first.Role)
	assert.Equal(t, "hello", first.Content)
	assert.False(t, first.Timestamp.IsZero())
	assert.Equal(t, ModalityVoice, second.Modality)

	turns := sess.Turns()
	assert.Equal(t, first, turns[0])
	assert.Equal(t, second, turns[1])
}

func TestTurns_ReturnsCopy(t *testing.T) {
	sess := New("persona-1", Profile{})
	sess.Append(RoleUser, "original", ModalityText)

	turns := sess.Turns()
	turns[0].Content = "mutated"

	assert.Equal(t, "original", sess.Turns()[0].Content,
		"mutating the returned slice must not affect the session")
}

func TestLastTurn(t *testing.T) {
	sess := New("persona-1", Profile{})

	_, ok := sess.LastTurn()
	assert.False(t, ok)

	sess.Append(RoleUser, "one", ModalityText)
	sess.Append(RoleAssistant, "two", ModalityVoice)

	last, ok := sess.LastTurn()
	require.True(t, ok)
	assert.Equal(t, "two", last.Content)
}

func TestAppend_Concurrent(t *testing.T) {
	sess := New("persona-1", Profile{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sess.Append(RoleUser, fmt.Sprintf("turn-%d", n), ModalityText)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, sess.TurnCount())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "listening", StatusListening.String())
	assert.Equal(t, "processing", StatusProcessing.String())
	assert.Equal(t, "speaking", StatusSpeaking.String())
}
