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
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/logging"
	"go.uber.org/zap"
)

// Recognizer error codes reported by device recognizers
const (
	CodeNotAllowed        = "not-allowed"
	CodeServiceNotAllowed = "service-not-allowed"
	CodeNoSpeech          = "no-speech"
	CodeAborted           = "aborted"
)

var (
	// ErrPermissionDenied means the microphone cannot be acquired and
	// retrying will not help; the user has to resolve it.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrPermissionRetry means an ambiguous permission race occurred and a
	// bounded retry is still allowed.
	ErrPermissionRetry = errors.New("transient microphone permission failure")
)

// EventType identifies a recognizer/recorder event from the device
type EventType int

const (
	EventInterim EventType = iota // partial transcript update
	EventFinal                    // the single end-of-speech transcript
	EventAudioChunk               // ~1s of recorded raw audio
	EventError                    // recognizer error, Code is set
	EventEnd                      // recognition ended
)

// Event is one recognizer or recorder event within a capture session
type Event struct {
	Type  EventType
	Text  string
	Audio []byte
	Code  string
}

// Source is the device-side microphone/recognizer pair. Open acquires the
// microphone asynchronously (honoring ctx cancellation while acquisition
// is pending) and arms single-utterance recognition; the returned channel
// carries events until recognition ends or the source is closed. Close
// releases all underlying tracks and must be safe to call multiple times.
type Source interface {
	Open(ctx context.Context) (<-chan Event, error)
	Close() error
}

// Result is the outcome of one finished capture session
type Result struct {
	CaptureID       string
	LocalTranscript string
	Audio           []byte
	Err             error
}

// sessionState is the accumulated state of one capture session. It is
// owned by the session's event loop and mutated only through reduce, so
// no transcript variable is ever shared across sessions.
type sessionState struct {
	interim   string
	finalText string
	audio     bytes.Buffer
	errCode   string
	ended     bool
}

// reduce applies one device event to the session state
func reduce(st *sessionState, ev Event) {
	switch ev.Type {
	case EventInterim:
		st.interim = ev.Text
	case EventFinal:
		st.finalText = ev.Text
	case EventAudioChunk:
		st.audio.Write(ev.Audio)
	case EventError:
		st.errCode = ev.Code
		st.ended = true
	case EventEnd:
		st.ended = true
	}
}

type captureSession struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

// Adapter produces a best-effort transcript of one spoken utterance. At
// most one capture session is live at a time; starting a new one first
// fully tears down the previous one, including underlying track release.
type Adapter struct {
	source               Source
	maxPermissionRetries int

	mu                 sync.Mutex
	active             *captureSession
	permissionFailures int
}

// NewAdapter creates a capture adapter over the given source
func NewAdapter(source Source, maxPermissionRetries int) *Adapter {
	return &Adapter{
		source:               source,
		maxPermissionRetries: maxPermissionRetries,
	}
}

// Start begins a new capture session. Interim transcripts are delivered
// through onInterim; exactly one Result is delivered through onResult
// unless the session is stopped or superseded first.
func (a *Adapter) Start(onInterim func(text string), onResult func(Result)) {
	a.mu.Lock()
	prev := a.active

	ctx, cancel := context.WithCancel(context.Background())
	sess := &captureSession{
		id:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	a.active = sess
	a.mu.Unlock()

	// Full teardown of any previous session before the new one may touch
	// the microphone.
	if prev != nil {
		prev.cancel()
		<-prev.done
	}

	logging.LogCaptureEvent(sess.id, "start")

	go a.run(ctx, sess, onInterim, onResult)
}

// Stop tears down the active capture session, releasing all source
// tracks. Safe to call multiple times and with no session active.
func (a *Adapter) Stop() {
	a.mu.Lock()
	sess := a.active
	a.active = nil
	a.mu.Unlock()

	if sess == nil {
		return
	}

	sess.cancel()
	<-sess.done
	logging.LogCaptureEvent(sess.id, "stopped")
}

// Active reports whether a capture session is currently live
func (a *Adapter) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active != nil
}

// run owns one capture session from acquisition to result delivery
func (a *Adapter) run(ctx context.Context, sess *captureSession, onInterim func(string), onResult func(Result)) {
	defer close(sess.done)

	eventsCh, err := a.source.Open(ctx)
	if err != nil {
		a.releaseSource(sess.id)
		if ctx.Err() != nil {
			// Cancelled while acquisition was pending; never start recording.
			return
		}
		a.deliver(sess, onResult, Result{CaptureID: sess.id, Err: a.classifyOpenError(err)})
		return
	}

	if ctx.Err() != nil {
		a.releaseSource(sess.id)
		return
	}

	st := &sessionState{}
	for !st.ended {
		select {
		case <-ctx.Done():
			a.releaseSource(sess.id)
			return
		case ev, ok := <-eventsCh:
			if !ok {
				st.ended = true
				break
			}
			reduce(st, ev)
			if ev.Type == EventInterim && a.isActive(sess) {
				onInterim(st.interim)
			}
		}
	}

	a.releaseSource(sess.id)

	result := Result{
		CaptureID:       sess.id,
		LocalTranscript: st.finalText,
		Audio:           st.audio.Bytes(),
	}

	switch st.errCode {
	case "":
		// Recognition ended naturally.
		a.resetPermissionFailures()
	case CodeNoSpeech:
		// Benign: reconciliation will treat the empty result as noise.
		logging.LogCaptureEvent(sess.id, "no_speech")
	case CodeNotAllowed, CodeServiceNotAllowed:
		result.Err = a.recordPermissionFailure()
	case CodeAborted:
		// Aborted by our own teardown path; nothing to report.
	default:
		logging.LogWarn("Recognizer reported transient error",
			zap.String("capture_id", sess.id),
			zap.String("code", st.errCode))
	}

	a.deliver(sess, onResult, result)
}

// deliver hands the result to the controller only if this session is
// still the active one; results from superseded sessions are discarded.
func (a *Adapter) deliver(sess *captureSession, onResult func(Result), result Result) {
	a.mu.Lock()
	if a.active != sess {
		a.mu.Unlock()
		logging.LogCaptureEvent(sess.id, "result_discarded_stale")
		return
	}
	a.active = nil
	a.mu.Unlock()

	logging.LogCaptureEvent(sess.id, "result",
		zap.Int("audio_bytes", len(result.Audio)),
		zap.Int("local_transcript_len", len(result.LocalTranscript)),
		zap.Bool("errored", result.Err != nil))

	onResult(result)
}

func (a *Adapter) isActive(sess *captureSession) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active == sess
}

func (a *Adapter) releaseSource(captureID string) {
	if err := a.source.Close(); err != nil {
		logging.LogError(err, "Failed to release capture source",
			zap.String("capture_id", captureID))
	}
}

// classifyOpenError maps acquisition failures onto the permission taxonomy
func (a *Adapter) classifyOpenError(err error) error {
	if errors.Is(err, ErrPermissionDenied) {
		return a.recordPermissionFailure()
	}
	return err
}

// resetPermissionFailures clears the consecutive-failure streak after a
// capture that acquired the microphone cleanly
func (a *Adapter) resetPermissionFailures() {
	a.mu.Lock()
	a.permissionFailures = 0
	a.mu.Unlock()
}

// recordPermissionFailure applies bounded retries to ambiguous permission
// failures; once the bound is exceeded the failure is surfaced as
// permanent.
func (a *Adapter) recordPermissionFailure() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.permissionFailures++
	if a.permissionFailures > a.maxPermissionRetries {
		return ErrPermissionDenied
	}
	return ErrPermissionRetry
}
