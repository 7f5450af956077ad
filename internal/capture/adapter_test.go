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

package capture

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/logging"
)

func TestMain(m *testing.M) {
	if err := logging.Initialize(); err != nil {
		panic(err)
	}
	code := m.Run()
	logging.Close()
	os.Exit(code)
}

// scriptedSource replays a fixed event sequence per Open call
type scriptedSource struct {
	mu      sync.Mutex
	scripts [][]Event
	openErr error
	opens   int
	closes  atomic.Int32
}

func (s *scriptedSource) Open(ctx context.Context) (<-chan Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.openErr != nil {
		return nil, s.openErr
	}

	var script []Event
	if s.opens < len(s.scripts) {
		script = s.scripts[s.opens]
	}
	s.opens++

	ch := make(chan Event, len(script)+1)
	for _, ev := range script {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (s *scriptedSource) Close() error {
	s.closes.Add(1)
	return nil
}

// blockingSource never emits events until released
type blockingSource struct {
	release chan struct{}
	closes  atomic.Int32
}

func newBlockingSource() *blockingSource {
	return &blockingSource{release: make(chan struct{})}
}

func (s *blockingSource) Open(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event)
	go func() {
		select {
		case <-s.release:
			ch <- Event{Type: EventEnd}
			close(ch)
		case <-ctx.Done():
			close(ch)
		}
	}()
	return ch, nil
}

func (s *blockingSource) Close() error {
	s.closes.Add(1)
	return nil
}

func waitResult(t *testing.T, results chan Result) Result {
	t.Helper()
	select {
	case res := <-results:
		return res
	case <-time.After(time.Second):
		t.Fatal("no capture result delivered")
		return Result{}
	}
}

func TestStart_DeliversTranscriptAndAudio(t *testing.T) {
	source := &scriptedSource{scripts: [][]Event{{
		{Type: EventInterim, Text: "hel"},
		{Type: EventInterim, Text: "hello"},
		{Type: EventAudioChunk, Audio: []byte{0x01, 0x02}},
		{Type: EventAudioChunk, Audio: []byte{0x03}},
		{Type: EventFinal, Text: "hello there"},
		{Type: EventEnd},
	}}}
	a := NewAdapter(source, 2)

	var interims []string
	var interimMu sync.Mutex
	results := make(chan Result, 1)

	a.Start(func(text string) {
		interimMu.Lock()
		interims = append(interims, text)
		interimMu.Unlock()
	}, func(res Result) { results <- res })

	res := waitResult(t, results)
	require.NoError(t, res.Err)
	assert.Equal(t, "hello there", res.LocalTranscript)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, res.Audio)
	assert.NotEmpty(t, res.CaptureID)

	interimMu.Lock()
	assert.Equal(t, []string{"hel", "hello"}, interims)
	interimMu.Unlock()

	assert.Equal(t, int32(1), source.closes.Load(), "source must be released after capture")
	assert.False(t, a.Active())
}

func TestStart_SupersedesPreviousSession(t *testing.T) {
	source := newBlockingSource()
	a := NewAdapter(source, 2)

	var firstDelivered atomic.Bool
	a.Start(func(string) {}, func(Result) { firstDelivered.Store(true) })

	results := make(chan Result, 1)
	a.Start(func(string) {}, func(res Result) { results <- res })

	// The first session must be fully torn down, including source
	// release, before the second delivers anything.
	close(source.release)
	res := waitResult(t, results)
	require.NoError(t, res.Err)

	assert.False(t, firstDelivered.Load(), "superseded session must not deliver a result")
	assert.GreaterOrEqual(t, source.closes.Load(), int32(2))
}

func TestStop_Idempotent(t *testing.T) {
	source := newBlockingSource()
	a := NewAdapter(source, 2)

	var delivered atomic.Bool
	a.Start(func(string) {}, func(Result) { delivered.Store(true) })

	a.Stop()
	a.Stop()
	a.Stop()

	assert.False(t, a.Active())
	assert.False(t, delivered.Load(), "stopped session must not deliver a result")
}

func TestStop_WithoutStart(t *testing.T) {
	a := NewAdapter(&scriptedSource{}, 2)
	a.Stop() // must not panic or block
	assert.False(t, a.Active())
}

func TestPermissionFailure_BoundedRetries(t *testing.T) {
	permissionScript := []Event{{Type: EventError, Code: CodeNotAllowed}}
	source := &scriptedSource{scripts: [][]Event{permissionScript, permissionScript, permissionScript}}
	a := NewAdapter(source, 2)

	results := make(chan Result, 1)
	onResult := func(res Result) { results <- res }

	// First two ambiguous failures are retryable.
	a.Start(func(string) {}, onResult)
	res := waitResult(t, results)
	assert.ErrorIs(t, res.Err, ErrPermissionRetry)

	a.Start(func(string) {}, onResult)
	res = waitResult(t, results)
	assert.ErrorIs(t, res.Err, ErrPermissionRetry)

	// Third consecutive failure exceeds the bound and becomes permanent.
	a.Start(func(string) {}, onResult)
	res = waitResult(t, results)
	assert.ErrorIs(t, res.Err, ErrPermissionDenied)
}

func TestPermissionFailures_ResetOnSuccess(t *testing.T) {
	permissionScript := []Event{{Type: EventError, Code: CodeNotAllowed}}
	okScript := []Event{{Type: EventFinal, Text: "ok"}, {Type: EventEnd}}
	source := &scriptedSource{scripts: [][]Event{
		permissionScript, okScript, permissionScript,
	}}
	a := NewAdapter(source, 1)

	results := make(chan Result, 1)
	onResult := func(res Result) { results <- res }

	a.Start(func(string) {}, onResult)
	assert.ErrorIs(t, waitResult(t, results).Err, ErrPermissionRetry)

	// A successful acquisition clears the failure streak.
	a.Start(func(string) {}, onResult)
	assert.NoError(t, waitResult(t, results).Err)

	a.Start(func(string) {}, onResult)
	assert.ErrorIs(t, waitResult(t, results).Err, ErrPermissionRetry,
		"streak must restart after a successful capture")
}

func TestNoSpeech_IsBenign(t *testing.T) {
	source := &scriptedSource{scripts: [][]Event{{
		{Type: EventError, Code: CodeNoSpeech},
	}}}
	a := NewAdapter(source, 2)

	results := make(chan Result, 1)
	a.Start(func(string) {}, func(res Result) { results <- res })

	res := waitResult(t, results)
	assert.NoError(t, res.Err)
	assert.Empty(t, res.LocalTranscript)
}

func TestStopInsideResultCallback(t *testing.T) {
	source := &scriptedSource{scripts: [][]Event{{
		{Type: EventFinal, Text: "done"},
		{Type: EventEnd},
	}}}
	a := NewAdapter(source, 2)

	done := make(chan struct{})
	a.Start(func(string) {}, func(Result) {
		// The controller stops capture from inside the callback; this
		// must not deadlock.
		a.Stop()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop inside onResult deadlocked")
	}
}
