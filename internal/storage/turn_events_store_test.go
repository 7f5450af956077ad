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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/events"
)

func newTestStore(t *testing.T) *TurnEventsStore {
	t.Helper()

	db, err := NewDatabase(DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Ping())
	return NewTurnEventsStore(db)
}

func sampleEvent(sessionID, role, content string) *events.TurnEvent {
	ev := events.NewTurnEvent(sessionID, "persona-1")
	ev.SetTurn(role, content, "voice")
	ev.Finish()
	return ev
}

func TestInsertAndGetByUUID(t *testing.T) {
	store := newTestStore(t)

	ev := sampleEvent("session-1", "user", "hello")
	ev.SetVoiceMetadata("server", 8192)
	require.NoError(t, store.Insert(ev))

	got, err := store.GetByUUID(ev.UUID)
	require.NoError(t, err)

	assert.Equal(t, ev.UUID, got.UUID)
	assert.Equal(t, "session-1", got.SessionID)
	assert.Equal(t, "user", got.Role)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, "voice", got.Modality)
	assert.Equal(t, "server", got.TranscriptSource)
	assert.Equal(t, 8192, got.AudioBytes)
	assert.True(t, got.Success)
}

func TestInsert_RejectsInvalidEvent(t *testing.T) {
	store := newTestStore(t)

	ev := sampleEvent("session-1", "user", "hello")
	ev.Role = ""
	assert.Error(t, store.Insert(ev))
}

func TestGetByUUID_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetByUUID("does-not-exist")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestList_FiltersAndPagination(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Insert(sampleEvent("session-a", "user", "a")))
	}
	require.NoError(t, store.Insert(sampleEvent("session-b", "assistant", "b")))

	failed := sampleEvent("session-b", "user", "broken")
	failed.Success = false
	failed.ErrorMessage = "assistant unavailable"
	require.NoError(t, store.Insert(failed))

	// Session filter
	got, err := store.List(ListOptions{SessionID: "session-a"})
	require.NoError(t, err)
	assert.Len(t, got, 5)

	// Role filter
	got, err = store.List(ListOptions{Role: "assistant"})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// Success filter
	success := false
	got, err = store.List(ListOptions{Success: &success})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "assistant unavailable", got[0].ErrorMessage)

	// Pagination
	got, err = store.List(ListOptions{SessionID: "session-a", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = store.List(ListOptions{SessionID: "session-a", Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCount(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Insert(sampleEvent("session-a", "user", "x")))
	}

	total, err := store.Count(ListOptions{SessionID: "session-a"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	total, err = store.Count(ListOptions{SessionID: "session-z"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestGetBySession(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Insert(sampleEvent("session-a", "user", "one")))
	require.NoError(t, store.Insert(sampleEvent("session-a", "assistant", "two")))
	require.NoError(t, store.Insert(sampleEvent("session-b", "user", "other")))

	got, err := store.GetBySession("session-a", 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)

	ev := sampleEvent("session-a", "user", "x")
	require.NoError(t, store.Insert(ev))

	require.NoError(t, store.Delete(ev.UUID))
	assert.Error(t, store.Delete(ev.UUID), "second delete must report not found")

	_, err := store.GetByUUID(ev.UUID)
	assert.Error(t, err)
}

func TestInsert_DuplicateUUIDRejected(t *testing.T) {
	store := newTestStore(t)

	ev := sampleEvent("session-a", "user", "x")
	require.NoError(t, store.Insert(ev))
	assert.Error(t, store.Insert(ev))
}
