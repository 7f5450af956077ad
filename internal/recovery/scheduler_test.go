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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduleRestart_Fires(t *testing.T) {
	var fired atomic.Int32
	s := NewRestartScheduler(func() { fired.Add(1) })

	s.ScheduleRestart(10 * time.Millisecond)
	assert.True(t, s.Pending())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
	assert.False(t, s.Pending())
}

func TestScheduleRestart_Debounces(t *testing.T) {
	var fired atomic.Int32
	s := NewRestartScheduler(func() { fired.Add(1) })

	// Rapid rescheduling before the delay elapses must collapse into a
	// single restart.
	for i := 0; i < 10; i++ {
		s.ScheduleRestart(30 * time.Millisecond)
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestCancel_PreventsRestart(t *testing.T) {
	var fired atomic.Int32
	s := NewRestartScheduler(func() { fired.Add(1) })

	s.ScheduleRestart(20 * time.Millisecond)
	s.Cancel()
	assert.False(t, s.Pending())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestCancel_Idempotent(t *testing.T) {
	s := NewRestartScheduler(func() {})

	// Harmless with nothing scheduled, and safe to repeat.
	s.Cancel()
	s.ScheduleRestart(10 * time.Millisecond)
	s.Cancel()
	s.Cancel()

	assert.False(t, s.Pending())
}

func TestScheduleRestart_AfterFire(t *testing.T) {
	var fired atomic.Int32
	s := NewRestartScheduler(func() { fired.Add(1) })

	s.ScheduleRestart(10 * time.Millisecond)
	time.Sleep(40 * time.Millisecond)

	s.ScheduleRestart(10 * time.Millisecond)
	time.Sleep(40 * time.Millisecond)

	assert.Equal(t, int32(2), fired.Load())
}
