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

package recovery

import (
	"sync"
	"time"

	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/logging"
	"go.uber.org/zap"
)

// RestartScheduler supervises capture restarts after silence or transient
// failures. Scheduling is debounced: at most one timer is pending, and a
// new schedule call replaces any previous one. Cancel must be called on
// session teardown so a stopped session never re-arms the microphone.
type RestartScheduler struct {
	mu      sync.Mutex
	timer   *time.Timer
	restart func()
}

// NewRestartScheduler creates a scheduler that invokes restart when a
// scheduled delay elapses
func NewRestartScheduler(restart func()) *RestartScheduler {
	return &RestartScheduler{restart: restart}
}

// ScheduleRestart arms the restart timer, replacing any pending one
func (rs *RestartScheduler) ScheduleRestart(delay time.Duration) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.timer != nil {
		rs.timer.Stop()
	}

	rs.timer = time.AfterFunc(delay, func() {
		rs.mu.Lock()
		rs.timer = nil
		rs.mu.Unlock()

		if logging.Sugar != nil {
			logging.Sugar.Debugw("🔄 Capture restart firing", "delay", delay)
		}
		rs.restart()
	})

	if logging.Logger != nil {
		logging.LogCaptureEvent("", "restart_scheduled", zap.Duration("delay", delay))
	}
}

// Cancel stops any pending restart timer
func (rs *RestartScheduler) Cancel() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.timer != nil {
		rs.timer.Stop()
		rs.timer = nil
	}
}

// Pending reports whether a restart timer is currently armed
func (rs *RestartScheduler) Pending() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.timer != nil
}
