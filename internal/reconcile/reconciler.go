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
	"context"
	"strings"

	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/logging"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/services"
	"go.uber.org/zap"
)

// Transcript sources, in trust order
const (
	SourceServer = "server"
	SourceLocal  = "local"
	SourceNone   = "none"
)

// Decision is the reconciler's verdict for one finished utterance
type Decision struct {
	Text   string
	Source string
	Noise  bool
}

// Reconciler chooses the authoritative transcript for an utterance given
// two imperfect sources: the device recognizer's final text (fast, lower
// quality) and a server-side transcription of the recorded audio (higher
// quality, higher latency, may fail or come back empty).
type Reconciler struct {
	transcriber   services.Transcriber
	minAudioBytes int
}

// NewReconciler creates a reconciler. minAudioBytes is the smallest
// recording worth a server round trip; it is tuning, not contract.
func NewReconciler(transcriber services.Transcriber, minAudioBytes int) *Reconciler {
	return &Reconciler{
		transcriber:   transcriber,
		minAudioBytes: minAudioBytes,
	}
}

// Reconcile picks the transcript to trust. Priority: server transcription
// of a big-enough recording, then the local final transcript, then noise.
// Recordings under the size threshold skip the server entirely when a
// local transcript exists.
func (r *Reconciler) Reconcile(ctx context.Context, localTranscript string, audio []byte) Decision {
	localTranscript = strings.TrimSpace(localTranscript)

	if len(audio) < r.minAudioBytes {
		if localTranscript != "" {
			logging.Sugar.Debugw("Recording below threshold, using local transcript",
				"audio_bytes", len(audio), "threshold", r.minAudioBytes)
			return Decision{Text: localTranscript, Source: SourceLocal}
		}
		return Decision{Source: SourceNone, Noise: true}
	}

	text, err := r.transcriber.TranscribeAudio(ctx, audio)
	if err != nil {
		logging.LogWarn("Server transcription failed, falling back to local transcript",
			zap.Error(err),
			zap.Int("audio_bytes", len(audio)))
	}

	text = strings.TrimSpace(text)
	if err == nil && text != "" {
		return Decision{Text: text, Source: SourceServer}
	}

	if localTranscript != "" {
		return Decision{Text: localTranscript, Source: SourceLocal}
	}

	return Decision{Source: SourceNone, Noise: true}
}
