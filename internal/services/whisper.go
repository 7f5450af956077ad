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

//go:build whisper

package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/logging"
)

// WhisperTranscriber implements Transcriber with a local whisper.cpp
// model instead of the hosted STT service
type WhisperTranscriber struct {
	model     whisper.Model
	modelPath string
}

// NewWhisperTranscriber creates a new local Whisper transcriber
func NewWhisperTranscriber(modelPath string) (*WhisperTranscriber, error) {
	// Check if model file exists
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("whisper model not found at %s", modelPath)
	}

	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load whisper model: %w", err)
	}

	logging.Sugar.Infow("✅ Whisper model loaded", "model_path", modelPath)
	return &WhisperTranscriber{
		model:     model,
		modelPath: modelPath,
	}, nil
}

// TranscribeAudio decodes the recorded WAV bytes and runs them through
// the local model. Recordings must be mono float32 PCM (the gateway's
// recorder format).
func (wt *WhisperTranscriber) TranscribeAudio(ctx context.Context, audio []byte) (string, error) {
	if wt.model == nil {
		return "", fmt.Errorf("whisper model not initialized")
	}

	samples, _, err := DecodeWAVFloat32(audio)
	if err != nil {
		return "", fmt.Errorf("failed to decode recording: %w", err)
	}

	wctx, err := wt.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("failed to create whisper context: %w", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("failed to process audio: %w", err)
	}

	var transcript strings.Builder
	for {
		segment, err := wctx.NextSegment()
		if err != nil {
			break
		}
		transcript.WriteString(segment.Text)
	}

	result := strings.TrimSpace(transcript.String())
	logging.Sugar.Infow("🧠 Whisper transcription", "text_length", len(result))
	return result, nil
}

// Close cleans up the Whisper model
func (wt *WhisperTranscriber) Close() error {
	if wt.model != nil {
		wt.model.Close()
		logging.Sugar.Infow("🧠 Whisper model closed")
	}
	return nil
}
