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

package transport

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/capture"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 16 * 1024 * 1024 // recorded audio chunks are large
	captureBuffer  = 64
)

// ErrDeviceGone is returned for operations on a disconnected device
var ErrDeviceGone = errors.New("device disconnected")

// DeviceSession is the hub side of one device WebSocket. It adapts the
// browser's microphone, recognizer, and speaker into the capture.Source
// and playback sink contracts the session controller consumes.
//
// The single ReadLoop goroutine owns the connection's read side and
// dispatches frames; writes are serialized through writeMu.
type DeviceSession struct {
	SessionID string

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu        sync.Mutex
	closed    bool
	micAck    chan error
	captureCh chan capture.Event
	playWait  map[string]chan error

	// Wired by the server before ReadLoop starts.
	OnText       func(text string)
	OnStop       func()
	OnDisconnect func()
}

// NewDeviceSession wraps an upgraded WebSocket connection
func NewDeviceSession(sessionID string, conn *websocket.Conn) *DeviceSession {
	conn.SetReadLimit(maxMessageSize)
	return &DeviceSession{
		SessionID: sessionID,
		conn:      conn,
		playWait:  make(map[string]chan error),
	}
}

// Open asks the device to acquire the microphone and arm recognition.
// It blocks until the device acknowledges (mic_ready / mic_error) or ctx
// is cancelled; permission-class recognizer codes are mapped onto the
// capture permission errors so the adapter's retry bound applies.
func (d *DeviceSession) Open(ctx context.Context) (<-chan capture.Event, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrDeviceGone
	}
	ack := make(chan error, 1)
	ch := make(chan capture.Event, captureBuffer)
	d.micAck = ack
	d.captureCh = ch
	d.mu.Unlock()

	if err := d.send(DeviceFrame{Type: FrameOpenMic}); err != nil {
		d.clearCapture()
		return nil, err
	}

	select {
	case <-ctx.Done():
		d.clearCapture()
		_ = d.send(DeviceFrame{Type: FrameCloseMic})
		return nil, ctx.Err()
	case err := <-ack:
		if err != nil {
			d.clearCapture()
			return nil, err
		}
		return ch, nil
	}
}

// Close releases the device microphone. Implements capture.Source and is
// safe to call multiple times; the WebSocket itself stays open.
func (d *DeviceSession) Close() error {
	d.mu.Lock()
	hadCapture := d.captureCh != nil
	d.mu.Unlock()

	d.clearCapture()

	if !hadCapture {
		return nil
	}
	return d.send(DeviceFrame{Type: FrameCloseMic})
}

// Play ships one synthesized clip to the device speaker and blocks until
// the device reports completion or ctx is cancelled. Cancellation sends
// stop_playback so audio halts immediately on barge-in.
func (d *DeviceSession) Play(ctx context.Context, audio []byte) error {
	clipID := uuid.NewString()
	done := make(chan error, 1)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDeviceGone
	}
	d.playWait[clipID] = done
	d.mu.Unlock()

	frame := DeviceFrame{
		Type:   FrameSpeak,
		ClipID: clipID,
		Audio:  base64.StdEncoding.EncodeToString(audio),
	}
	if err := d.send(frame); err != nil {
		d.dropPlayWait(clipID)
		return err
	}

	select {
	case <-ctx.Done():
		d.dropPlayWait(clipID)
		_ = d.send(DeviceFrame{Type: FrameStopPlayback, ClipID: clipID})
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// SendStatus pushes a conversation status transition to the device
func (d *DeviceSession) SendStatus(status string) {
	if err := d.send(DeviceFrame{Type: FrameStatus, Status: status}); err != nil {
		logging.LogWarn("Failed to send status frame",
			zap.String("session_id", d.SessionID),
			zap.Error(err))
	}
}

// SendCaption pushes a live interim transcript to the device
func (d *DeviceSession) SendCaption(text string) {
	_ = d.send(DeviceFrame{Type: FrameCaption, Text: text})
}

// SendError surfaces a user-visible error to the device
func (d *DeviceSession) SendError(message string) {
	_ = d.send(DeviceFrame{Type: FrameError, Message: message})
}

// ReadLoop owns the connection's read side until the device disconnects.
// Run it on its own goroutine; it invokes OnDisconnect exactly once on
// exit after failing all pending waits.
func (d *DeviceSession) ReadLoop() {
	defer d.teardown()

	for {
		var frame DeviceFrame
		if err := d.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.LogWarn("Device WebSocket closed unexpectedly",
					zap.String("session_id", d.SessionID),
					zap.Error(err))
			}
			return
		}

		d.dispatch(frame)
	}
}

// CloseConnection shuts the WebSocket down. Used on session teardown.
func (d *DeviceSession) CloseConnection() {
	d.writeMu.Lock()
	deadline := time.Now().Add(writeWait)
	_ = d.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	d.writeMu.Unlock()

	_ = d.conn.Close()
}

// dispatch routes one device frame
func (d *DeviceSession) dispatch(frame DeviceFrame) {
	switch frame.Type {
	case FrameMicReady:
		d.resolveMicAck(nil)

	case FrameMicError:
		d.handleMicError(frame.Code)

	case FrameInterim:
		d.pushCaptureEvent(capture.Event{Type: capture.EventInterim, Text: frame.Text})

	case FrameFinal:
		d.pushCaptureEvent(capture.Event{Type: capture.EventFinal, Text: frame.Text})

	case FrameAudioChunk:
		audio, err := base64.StdEncoding.DecodeString(frame.Audio)
		if err != nil {
			logging.LogWarn("Discarding undecodable audio chunk",
				zap.String("session_id", d.SessionID),
				zap.Error(err))
			return
		}
		d.pushCaptureEvent(capture.Event{Type: capture.EventAudioChunk, Audio: audio})

	case FrameCaptureEnd:
		d.pushCaptureEvent(capture.Event{Type: capture.EventEnd})
		d.clearCapture()

	case FramePlaybackDone:
		d.resolvePlayback(frame.ClipID, nil)

	case FramePlaybackError:
		d.resolvePlayback(frame.ClipID, fmt.Errorf("device playback failed: %s", frame.Message))

	case FrameText:
		if d.OnText != nil {
			d.OnText(frame.Text)
		}

	case FrameStop:
		if d.OnStop != nil {
			d.OnStop()
		}

	default:
		logging.LogWarn("Unknown device frame type",
			zap.String("session_id", d.SessionID),
			zap.String("frame_type", frame.Type))
	}
}

// handleMicError resolves a pending mic acquisition, or ends the live
// capture session, with the recognizer's error code
func (d *DeviceSession) handleMicError(code string) {
	var err error
	switch code {
	case capture.CodeNotAllowed, capture.CodeServiceNotAllowed:
		err = capture.ErrPermissionDenied
	default:
		err = fmt.Errorf("recognizer error: %s", code)
	}

	d.mu.Lock()
	ack := d.micAck
	d.micAck = nil
	d.mu.Unlock()

	if ack != nil {
		ack <- err
		return
	}

	d.pushCaptureEvent(capture.Event{Type: capture.EventError, Code: code})
	d.clearCapture()
}

func (d *DeviceSession) resolveMicAck(err error) {
	d.mu.Lock()
	ack := d.micAck
	d.micAck = nil
	d.mu.Unlock()

	if ack != nil {
		ack <- err
	}
}

// pushCaptureEvent delivers one event to the live capture session, if
// any. Drops the event rather than blocking the read loop when the
// consumer has fallen behind.
func (d *DeviceSession) pushCaptureEvent(ev capture.Event) {
	d.mu.Lock()
	ch := d.captureCh
	d.mu.Unlock()

	if ch == nil {
		return
	}

	select {
	case ch <- ev:
	default:
		logging.LogWarn("Capture event buffer full, dropping event",
			zap.String("session_id", d.SessionID))
	}
}

// clearCapture ends the current capture stream, if any
func (d *DeviceSession) clearCapture() {
	d.mu.Lock()
	ch := d.captureCh
	d.captureCh = nil
	d.micAck = nil
	d.mu.Unlock()

	if ch != nil {
		close(ch)
	}
}

func (d *DeviceSession) resolvePlayback(clipID string, err error) {
	d.mu.Lock()
	done := d.playWait[clipID]
	delete(d.playWait, clipID)
	d.mu.Unlock()

	if done != nil {
		done <- err
	}
}

func (d *DeviceSession) dropPlayWait(clipID string) {
	d.mu.Lock()
	delete(d.playWait, clipID)
	d.mu.Unlock()
}

// teardown fails every pending wait and marks the session closed
func (d *DeviceSession) teardown() {
	d.mu.Lock()
	d.closed = true
	ack := d.micAck
	d.micAck = nil
	ch := d.captureCh
	d.captureCh = nil
	waits := d.playWait
	d.playWait = make(map[string]chan error)
	onDisconnect := d.OnDisconnect
	d.mu.Unlock()

	if ack != nil {
		ack <- ErrDeviceGone
	}
	if ch != nil {
		close(ch)
	}
	for _, done := range waits {
		done <- ErrDeviceGone
	}

	logging.Sugar.Infow("🔌 Device disconnected", "session_id", d.SessionID)

	if onDisconnect != nil {
		onDisconnect()
	}
}

// send serializes one frame onto the connection
func (d *DeviceSession) send(frame DeviceFrame) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDeviceGone
	}
	d.mu.Unlock()

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	_ = d.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return d.conn.WriteJSON(frame)
}
