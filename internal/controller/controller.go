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

package controller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/capture"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/events"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/logging"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/playback"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/reconcile"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/recovery"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/services"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/session"
	"go.uber.org/zap"
)

// DefaultGreeting is spoken when the persona script service is
// unavailable or returns nothing
const DefaultGreeting = "Hi, thanks for joining me today. What would you like to talk about?"

// Interrupt reasons recorded when in-flight work is cancelled
const (
	InterruptReasonSuperseded = "superseded"
	InterruptReasonUserStop   = "user_stop"
)

// ErrEmptyInput is returned for a blank typed submission
var ErrEmptyInput = errors.New("empty input")

// StatusListener observes conversation status transitions
type StatusListener func(session.Status)

// EventRecorder is the fire-and-forget turn log sink. Record must never
// block the caller; failures are the recorder's problem.
type EventRecorder interface {
	Record(event *events.TurnEvent)
}

// Config holds per-session controller tuning
type Config struct {
	// RestartDelay is how long to wait before re-arming capture after a
	// noise utterance or transient capture failure.
	RestartDelay time.Duration

	// Voice is the persona's TTS voice ID (empty for the service default).
	Voice string
}

// Controller owns one session's turn-taking state machine: it sequences
// listen → transcribe → assistant → synthesize → play → listen, handles
// barge-in, and exposes a single status signal.
//
// Every asynchronous operation captures the generation counter when it
// starts; completions compare their generation against the current one
// and are discarded when stale. This replaces ambient "keep listening"
// flags with an explicit session epoch.
type Controller struct {
	sess       *session.Session
	assistant  services.Assistant
	synth      services.Synthesizer
	scripts    services.ScriptProvider
	capture    *capture.Adapter
	reconciler *reconcile.Reconciler
	playback   *playback.Manager
	restart    *recovery.RestartScheduler
	recorder   EventRecorder
	cfg        Config

	mu             sync.Mutex
	status         session.Status
	generation     uint64
	restartGen     uint64 // generation stamped on the pending restart
	inflightCancel context.CancelFunc
	questions      []string
	cursor         int
	listeners      []StatusListener
	onInterim      func(string)
	onError        func(error)
}

// New creates a controller for one session. recorder and scripts may be
// nil; everything else is required.
func New(
	sess *session.Session,
	assistant services.Assistant,
	synth services.Synthesizer,
	scripts services.ScriptProvider,
	captureAdapter *capture.Adapter,
	reconciler *reconcile.Reconciler,
	playbackManager *playback.Manager,
	recorder EventRecorder,
	cfg Config,
) *Controller {
	c := &Controller{
		sess:       sess,
		assistant:  assistant,
		synth:      synth,
		scripts:    scripts,
		capture:    captureAdapter,
		reconciler: reconciler,
		playback:   playbackManager,
		recorder:   recorder,
		cfg:        cfg,
		status:     session.StatusIdle,
	}
	c.restart = recovery.NewRestartScheduler(c.restartListening)
	return c
}

// Status returns the current conversation status
func (c *Controller) Status() session.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Session returns the controller's session
func (c *Controller) Session() *session.Session {
	return c.sess
}

// ScriptCursor returns the scripted-question progress (count, cursor)
func (c *Controller) ScriptCursor() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.questions), c.cursor
}

// Subscribe registers a status listener. Listeners are invoked outside
// the controller lock and must not call back into mutating operations.
func (c *Controller) Subscribe(fn StatusListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// OnInterim registers the live-caption callback for interim transcripts
func (c *Controller) OnInterim(fn func(string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onInterim = fn
}

// OnError registers the callback for errors the user must see
// (permanently denied microphone permission)
func (c *Controller) OnError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// Begin starts the conversation: fetches the persona script (falling back
// to the default greeting), speaks the greeting, then starts listening.
func (c *Controller) Begin() {
	greeting := DefaultGreeting
	var questions []string

	if c.scripts != nil {
		script, err := c.scripts.FetchScript(context.Background(), c.sess.PersonaID)
		switch {
		case err != nil:
			logging.LogWarn("Script fetch failed, using default greeting",
				zap.String("persona_id", c.sess.PersonaID),
				zap.Error(err))
		case script != nil:
			if strings.TrimSpace(script.Greeting) != "" {
				greeting = script.Greeting
			}
			questions = script.Questions
		}
	}

	c.mu.Lock()
	c.questions = questions
	c.cursor = 0
	c.cancelInflightLocked(InterruptReasonSuperseded)
	c.generation++
	gen := c.generation
	ctx, cancel := context.WithCancel(context.Background())
	c.inflightCancel = cancel
	ls := c.setStatusLocked(session.StatusProcessing)
	c.mu.Unlock()
	notify(ls, session.StatusProcessing)

	turn := c.sess.Append(session.RoleAssistant, greeting, session.ModalityVoice)
	c.recordTurn(turn, "", 0)

	go c.speak(ctx, gen, greeting)
}

// SubmitUserTurn commits a typed user message. Any in-flight assistant
// request or playback is cancelled first (barge-in).
func (c *Controller) SubmitUserTurn(text string, modality session.Modality) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}
	c.submit(text, modality, "", 0)
	return nil
}

// StartListening arms capture. Used for the first listen, for restarts
// scheduled after noise, and after assistant speech ends. A no-op while
// the controller is processing or speaking.
func (c *Controller) StartListening() {
	c.mu.Lock()
	if c.status == session.StatusProcessing || c.status == session.StatusSpeaking {
		c.mu.Unlock()
		return
	}
	gen := c.generation
	ls := c.setStatusLocked(session.StatusListening)
	c.mu.Unlock()
	notify(ls, session.StatusListening)

	c.capture.Start(c.handleInterim, c.handleCaptureResult)

	// A teardown racing with the re-arm may have stopped capture before
	// Start re-opened it; a stopped session must never hold the microphone.
	c.mu.Lock()
	stale := gen != c.generation && c.status == session.StatusIdle
	c.mu.Unlock()
	if stale {
		c.capture.Stop()
	}
}

// StopEverything tears the session down: cancels any in-flight request,
// playback, capture, and pending restart, and returns to idle. Idempotent
// and safe to call multiple times.
func (c *Controller) StopEverything() {
	c.mu.Lock()
	c.cancelInflightLocked(InterruptReasonUserStop)
	c.generation++
	ls := c.setStatusLocked(session.StatusIdle)
	c.mu.Unlock()
	notify(ls, session.StatusIdle)

	c.restart.Cancel()
	c.playback.StopCurrent()
	c.capture.Stop()
}

// RestartPending reports whether a capture restart is scheduled
func (c *Controller) RestartPending() bool {
	return c.restart.Pending()
}

// scheduleRestart stamps the pending restart with the current generation
// so a firing that outlives Cancel (the timer callback already started)
// cannot act on a stopped or superseded session
func (c *Controller) scheduleRestart() {
	c.mu.Lock()
	c.restartGen = c.generation
	c.mu.Unlock()
	c.restart.ScheduleRestart(c.cfg.RestartDelay)
}

// restartListening is the restart scheduler's target: re-arm capture only
// if nothing changed the session epoch since the restart was scheduled
func (c *Controller) restartListening() {
	c.mu.Lock()
	stale := c.restartGen != c.generation
	c.mu.Unlock()

	if stale {
		logging.Sugar.Debugw("Discarding stale capture restart",
			"session_id", c.sess.ID)
		return
	}
	c.StartListening()
}

// handleInterim forwards interim transcripts for live captioning
func (c *Controller) handleInterim(text string) {
	c.mu.Lock()
	fn := c.onInterim
	c.mu.Unlock()

	if fn != nil {
		fn(text)
	}
}

// handleCaptureResult reconciles a finished capture session and either
// submits the utterance, schedules a restart, or surfaces a permission
// failure.
func (c *Controller) handleCaptureResult(res capture.Result) {
	c.mu.Lock()
	idle := c.status == session.StatusIdle
	errFn := c.onError
	c.mu.Unlock()

	if idle {
		// Session was stopped while the capture was finishing.
		return
	}

	switch {
	case errors.Is(res.Err, capture.ErrPermissionDenied):
		logging.LogError(res.Err, "Microphone permission permanently denied",
			zap.String("capture_id", res.CaptureID))
		c.StopEverything()
		if errFn != nil {
			errFn(res.Err)
		}
		return
	case errors.Is(res.Err, capture.ErrPermissionRetry):
		logging.LogWarn("Transient permission failure, retrying capture",
			zap.String("capture_id", res.CaptureID))
		c.scheduleRestart()
		return
	case res.Err != nil:
		logging.LogWarn("Capture failed, scheduling restart",
			zap.String("capture_id", res.CaptureID),
			zap.Error(res.Err))
		c.scheduleRestart()
		return
	}

	decision := c.reconciler.Reconcile(context.Background(), res.LocalTranscript, res.Audio)
	if decision.Noise {
		logging.LogCaptureEvent(res.CaptureID, "noise_discarded",
			zap.Int("audio_bytes", len(res.Audio)))
		c.scheduleRestart()
		return
	}

	c.submit(decision.Text, session.ModalityVoice, decision.Source, len(res.Audio))
}

// submit is the single entry point for finalized user input, voice or
// typed. It enforces the at-most-one-outstanding-request invariant.
func (c *Controller) submit(text string, modality session.Modality, source string, audioBytes int) {
	c.mu.Lock()
	c.cancelInflightLocked(InterruptReasonSuperseded)
	c.generation++
	gen := c.generation
	ctx, cancel := context.WithCancel(context.Background())
	c.inflightCancel = cancel

	userTurn := c.sess.Append(session.RoleUser, text, modality)
	ls := c.setStatusLocked(session.StatusProcessing)
	c.mu.Unlock()
	notify(ls, session.StatusProcessing)

	// Interruption semantics: nothing from the previous turn survives.
	c.restart.Cancel()
	c.playback.StopCurrent()
	c.capture.Stop()

	c.recordTurn(userTurn, source, audioBytes)

	go c.runAssistantTurn(ctx, gen)
}

// runAssistantTurn performs one assistant round trip and the follow-on
// synthesis/playback, all guarded by the submission's generation.
func (c *Controller) runAssistantTurn(ctx context.Context, gen uint64) {
	c.mu.Lock()
	req := &services.AssistantRequest{
		SessionID: c.sess.ID,
		PersonaID: c.sess.PersonaID,
		Profile:   c.sess.Profile,
		Turns:     nil, // filled below, outside the lock
		Questions: c.questions,
		Cursor:    c.cursor,
	}
	c.mu.Unlock()
	req.Turns = c.sess.Turns()

	reply, err := c.assistant.Complete(ctx, req)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			// Superseded or stopped; abandon silently.
			logging.Sugar.Debugw("Assistant call abandoned",
				"session_id", c.sess.ID,
				"generation", gen)
			return
		}

		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return
		}
		c.inflightCancel = nil
		ls := c.setStatusLocked(session.StatusIdle)
		c.mu.Unlock()
		notify(ls, session.StatusIdle)

		// No automatic retry: a failing assistant backend should not be
		// hammered. The user re-initiates.
		logging.LogError(err, "Assistant request failed, returning to idle",
			zap.String("session_id", c.sess.ID))
		c.capture.Stop()
		return
	}

	// The gen check and the append are one atomic step: a barge-in landing
	// between them would otherwise commit this superseded reply after the
	// newer user turn.
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		logging.Sugar.Debugw("Assistant response discarded as stale",
			"session_id", c.sess.ID,
			"generation", gen)
		return
	}
	if len(c.questions) > 0 && c.cursor < len(c.questions) {
		c.cursor++
	}
	assistantTurn := c.sess.Append(session.RoleAssistant, reply, session.ModalityVoice)
	c.mu.Unlock()

	c.recordTurn(assistantTurn, "", 0)

	if reply == "" {
		// Degenerate response: nothing to speak.
		c.resumeListening(gen)
		return
	}

	c.speak(ctx, gen, reply)
}

// speak synthesizes and plays one assistant reply, then resumes
// listening. Synthesis or playback failure also resumes listening so a
// voice-output problem never wedges the conversation.
func (c *Controller) speak(ctx context.Context, gen uint64, text string) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	ls := c.setStatusLocked(session.StatusSpeaking)
	c.mu.Unlock()
	notify(ls, session.StatusSpeaking)

	audio, err := c.synth.Synthesize(ctx, text, c.cfg.Voice)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.LogError(err, "Speech synthesis failed, resuming listening",
			zap.String("session_id", c.sess.ID))
		c.resumeListening(gen)
		return
	}

	// The turn may have been superseded or stopped while synthesis was in
	// flight; stale audio must never reach the sink (and must never stop a
	// newer turn's clip).
	c.mu.Lock()
	if gen != c.generation || ctx.Err() != nil {
		c.mu.Unlock()
		logging.Sugar.Debugw("Synthesized audio discarded as stale",
			"session_id", c.sess.ID,
			"generation", gen)
		return
	}
	c.mu.Unlock()

	c.playback.Play(audio, func(playErr error) {
		// Natural completion and playback error both re-arm capture; a
		// cancelled clip never reaches here.
		c.resumeListening(gen)
	})
}

// resumeListening re-arms capture after assistant speech (or a skipped
// speech), if this submission is still current
func (c *Controller) resumeListening(gen uint64) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.inflightCancel = nil
	ls := c.setStatusLocked(session.StatusListening)
	c.mu.Unlock()
	notify(ls, session.StatusListening)

	c.capture.Start(c.handleInterim, c.handleCaptureResult)
}

// cancelInflightLocked cancels the outstanding assistant submission, if
// any, recording why. Callers hold c.mu.
func (c *Controller) cancelInflightLocked(reason string) {
	if c.inflightCancel == nil {
		return
	}
	logging.Sugar.Debugw("🛑 Cancelling in-flight turn",
		"session_id", c.sess.ID,
		"reason", reason)
	c.inflightCancel()
	c.inflightCancel = nil
}

// setStatusLocked updates the status and returns the listeners to
// notify, or nil when the status is unchanged. Callers hold c.mu and
// invoke notify after unlocking.
func (c *Controller) setStatusLocked(st session.Status) []StatusListener {
	if c.status == st {
		return nil
	}
	logging.Sugar.Debugw("Status transition",
		"session_id", c.sess.ID,
		"from", c.status.String(),
		"to", st.String())
	c.status = st

	ls := make([]StatusListener, len(c.listeners))
	copy(ls, c.listeners)
	return ls
}

func notify(listeners []StatusListener, st session.Status) {
	for _, fn := range listeners {
		fn(st)
	}
}

// recordTurn emits a TurnEvent to the log sink; never blocks the turn
func (c *Controller) recordTurn(turn session.Turn, source string, audioBytes int) {
	if c.recorder == nil {
		return
	}

	ev := events.NewTurnEvent(c.sess.ID, c.sess.PersonaID)
	ev.SetTurn(string(turn.Role), turn.Content, string(turn.Modality))
	if source != "" {
		ev.SetVoiceMetadata(source, audioBytes)
	}
	ev.Finish()

	c.recorder.Record(ev)
}
