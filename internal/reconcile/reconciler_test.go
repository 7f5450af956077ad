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

package reconcile

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

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

// fakeTranscriber returns a canned transcript or error
type fakeTranscriber struct {
	text   string
	err    error
	called bool
}

func (f *fakeTranscriber) TranscribeAudio(_ context.Context, _ []byte) (string, error) {
	f.called = true
	return f.text, f.err
}

func (f *fakeTranscriber) Close() error { return nil }

const threshold = 1024

func bigAudio() []byte {
	return bytes.Repeat([]byte{0x01}, threshold*2)
}

func TestReconcile_ServerWins(t *testing.T) {
	ft := &fakeTranscriber{text: "server transcript"}
	r := NewReconciler(ft, threshold)

	d := r.Reconcile(context.Background(), "local transcript", bigAudio())

	assert.True(t, ft.called)
	assert.Equal(t, "server transcript", d.Text)
	assert.Equal(t, SourceServer, d.Source)
	assert.False(t, d.Noise)
}

func TestReconcile_ServerFailureFallsBackToLocal(t *testing.T) {
	ft := &fakeTranscriber{err: errors.New("stt unavailable")}
	r := NewReconciler(ft, threshold)

	d := r.Reconcile(context.Background(), "local transcript", bigAudio())

	assert.Equal(t, "local transcript", d.Text)
	assert.Equal(t, SourceLocal, d.Source)
	assert.False(t, d.Noise)
}

func TestReconcile_ServerEmptyFallsBackToLocal(t *testing.T) {
	ft := &fakeTranscriber{text: "   "}
	r := NewReconciler(ft, threshold)

	d := r.Reconcile(context.Background(), "local transcript", bigAudio())

	assert.Equal(t, "local transcript", d.Text)
	assert.Equal(t, SourceLocal, d.Source)
}

func TestReconcile_NothingUsableIsNoise(t *testing.T) {
	ft := &fakeTranscriber{err: errors.New("stt unavailable")}
	r := NewReconciler(ft, threshold)

	d := r.Reconcile(context.Background(), "", bigAudio())

	assert.True(t, d.Noise)
	assert.Equal(t, SourceNone, d.Source)
	assert.Empty(t, d.Text)
}

func TestReconcile_BelowThresholdSkipsServer(t *testing.T) {
	ft := &fakeTranscriber{text: "should not be used"}
	r := NewReconciler(ft, threshold)

	d := r.Reconcile(context.Background(), "quick local", []byte{0x01, 0x02})

	assert.False(t, ft.called, "short recordings must not hit the server")
	assert.Equal(t, "quick local", d.Text)
	assert.Equal(t, SourceLocal, d.Source)
}

func TestReconcile_BelowThresholdNoLocalIsNoise(t *testing.T) {
	ft := &fakeTranscriber{}
	r := NewReconciler(ft, threshold)

	d := r.Reconcile(context.Background(), "  ", []byte{0x01})

	assert.False(t, ft.called)
	assert.True(t, d.Noise)
}
