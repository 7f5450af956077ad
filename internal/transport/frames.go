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

// Device frame types, client to hub
const (
	FrameMicReady      = "mic_ready"
	FrameMicError      = "mic_error"
	FrameInterim       = "interim"
	FrameFinal         = "final"
	FrameAudioChunk    = "audio_chunk"
	FrameCaptureEnd    = "capture_end"
	FramePlaybackDone  = "playback_done"
	FramePlaybackError = "playback_error"
	FrameText          = "text"
	FrameStop          = "stop"
)

// Device frame types, hub to client
const (
	FrameOpenMic      = "open_mic"
	FrameCloseMic     = "close_mic"
	FrameSpeak        = "speak"
	FrameStopPlayback = "stop_playback"
	FrameStatus       = "status"
	FrameCaption      = "caption"
	FrameError        = "error"
)

// DeviceFrame is one JSON message on the device WebSocket. Only the
// fields relevant to the frame type are populated.
type DeviceFrame struct {
	Type string `json:"type"`

	// Recognizer transcripts (interim, final) and typed input (text)
	Text string `json:"text,omitempty"`

	// Recorded audio, base64-encoded (audio_chunk); synthesized audio on
	// the way out (speak)
	Audio string `json:"audio,omitempty"`

	// Recognizer error code (mic_error)
	Code string `json:"code,omitempty"`

	// Playback clip correlation (speak, stop_playback, playback_done,
	// playback_error)
	ClipID string `json:"clip_id,omitempty"`

	// Conversation status (status)
	Status string `json:"status,omitempty"`

	// Human-readable error detail (error, playback_error)
	Message string `json:"message,omitempty"`
}
