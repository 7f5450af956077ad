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

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/config"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/logging"
	"go.uber.org/zap"
)

// TTSRequest represents a request to the speech synthesis API
type TTSRequest struct {
	Model  string  `json:"model"`
	Input  string  `json:"input"`
	Voice  string  `json:"voice"`
	Format string  `json:"response_format"`
	Speed  float32 `json:"speed,omitempty"`
}

// TTSClient implements the Synthesizer interface for any OpenAI-compatible
// text-to-speech service
type TTSClient struct {
	baseURL   string
	client    *http.Client
	config    config.TTSConfig
	semaphore chan struct{} // Limits concurrent requests
}

// NewTTSClient creates a new TTS client
func NewTTSClient(cfg config.TTSConfig) (*TTSClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("TTS URL cannot be empty")
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
	}

	ttsClient := &TTSClient{
		baseURL:   strings.TrimSuffix(cfg.URL, "/"),
		client:    client,
		config:    cfg,
		semaphore: make(chan struct{}, cfg.MaxConcurrent),
	}

	if logging.Sugar != nil {
		logging.Sugar.Infow("🔊 TTS client initialized",
			"url", cfg.URL,
			"voice", cfg.Voice,
			"max_concurrent", cfg.MaxConcurrent,
		)
	}

	return ttsClient, nil
}

// Synthesize converts text to speech audio bytes. voice overrides the
// configured default when non-empty (personas carry their own voice IDs).
func (t *TTSClient) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	// Acquire semaphore slot for concurrency control
	select {
	case t.semaphore <- struct{}{}:
		defer func() { <-t.semaphore }()
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("TTS synthesis queue full, request timed out")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	startTime := time.Now()

	if voice == "" {
		voice = t.config.Voice
	}

	request := TTSRequest{
		Model:  "tts-1",
		Input:  text,
		Voice:  voice,
		Format: t.config.ResponseFormat,
		Speed:  t.config.Speed,
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TTS request: %w", err)
	}

	if logging.Logger != nil {
		logging.LogTTSOperation("synthesis_start",
			zap.String("voice", voice),
			zap.Int("text_length", len(text)),
			zap.String("format", t.config.ResponseFormat),
		)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.baseURL+"/audio/speech", bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/*")

	resp, err := t.client.Do(req)
	if err != nil {
		if logging.Logger != nil {
			logging.LogError(err, "TTS HTTP request failed",
				zap.String("voice", voice),
				zap.Int("text_length", len(text)),
			)
		}
		return nil, fmt.Errorf("TTS HTTP request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Sugar.Warnw("Failed to close TTS response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if logging.Logger != nil {
			logging.LogWarn("TTS request failed",
				zap.Int("status_code", resp.StatusCode),
				zap.String("response_body", string(body)),
			)
		}
		return nil, fmt.Errorf("TTS request failed with status %d: %s", resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read TTS audio: %w", err)
	}

	if logging.Logger != nil {
		logging.LogTTSOperation("synthesis_complete",
			zap.String("voice", voice),
			zap.Int("text_length", len(text)),
			zap.Duration("processing_time", time.Since(startTime)),
			zap.Int("audio_bytes", len(audio)),
		)
	}

	return audio, nil
}

// Close cleans up resources
func (t *TTSClient) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
