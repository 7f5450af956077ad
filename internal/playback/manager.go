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

package playback

import (
	"context"
	"sync"

	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/logging"
	"go.uber.org/zap"
)

// Sink plays synthesized audio on the connected device. Play blocks until
// natural completion or playback error; ctx cancellation must pause
// playback immediately and release the clip.
type Sink interface {
	Play(ctx context.Context, audio []byte) error
}

// Manager plays exactly one synthesized-speech clip at a time. Starting a
// new clip (or stopping) discards any clip in flight; a superseded clip's
// completion callback never fires, guarded by a clip generation compared
// before acting.
type Manager struct {
	sink Sink

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
}

// NewManager creates a playback manager over the given sink
func NewManager(sink Sink) *Manager {
	return &Manager{sink: sink}
}

// Play begins playback of one clip, stopping any current one first.
// onFinished is called exactly once on natural completion (err == nil) or
// playback failure (err != nil), and never after the clip has been
// superseded or stopped.
func (m *Manager) Play(audio []byte, onFinished func(err error)) {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.generation++
	gen := m.generation

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.mu.Unlock()

	logging.LogPlaybackOperation("play_start",
		zap.Uint64("clip_generation", gen),
		zap.Int("audio_bytes", len(audio)))

	go func() {
		err := m.sink.Play(ctx, audio)

		m.mu.Lock()
		stale := m.generation != gen || ctx.Err() != nil
		if !stale {
			m.cancel = nil
		}
		m.mu.Unlock()

		cancel()

		if stale {
			logging.LogPlaybackOperation("completion_discarded_stale",
				zap.Uint64("clip_generation", gen))
			return
		}

		if err != nil {
			logging.LogError(err, "Playback failed",
				zap.Uint64("clip_generation", gen))
		} else {
			logging.LogPlaybackOperation("play_complete",
				zap.Uint64("clip_generation", gen))
		}

		onFinished(err)
	}()
}

// StopCurrent cancels any in-flight clip. The clip's completion callback
// will not fire. Safe to call with nothing playing.
func (m *Manager) StopCurrent() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	if cancel != nil {
		m.generation++
	}
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		logging.LogPlaybackOperation("stopped")
	}
}

// Playing reports whether a clip is currently in flight
func (m *Manager) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}
