/*
Copyright (c) 2025 Weya

Licensed under the AGPLv3 License.
This file is part of the weya-hub.
*/

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/config"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/logging"
)

// STTClient implements the Transcriber interface using REST API calls
// to any OpenAI-compatible Speech-to-Text service
type STTClient struct {
	baseURL     string
	language    string
	temperature float32
	httpClient  *http.Client
}

// OpenAI-compatible response struct
type transcriptionResponse struct {
	Text string `json:"text"`
}

// NewSTTClient creates a new OpenAI-compatible STT client
func NewSTTClient(cfg config.STTConfig) (*STTClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("STT URL cannot be empty")
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
	}

	s := &STTClient{
		baseURL:     cfg.URL,
		language:    cfg.Language,
		temperature: cfg.Temperature,
		httpClient:  client,
	}

	// Test connection with health check
	if err := s.healthCheck(); err != nil {
		return nil, fmt.Errorf("STT service health check failed: %w", err)
	}

	logging.Sugar.Infow("Connected to STT REST service", "base_url", cfg.URL)

	return s, nil
}

// healthCheck verifies the service is running
func (s *STTClient) healthCheck() error {
	resp, err := s.httpClient.Get(s.baseURL + "/health")
	if err != nil {
		return fmt.Errorf("failed to connect to STT service at %s: %w", s.baseURL, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Sugar.Warnw("Failed to close STT response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("STT service health check failed with status: %d", resp.StatusCode)
	}

	return nil
}

// TranscribeAudio implements the Transcriber interface over recorded
// audio bytes. An empty transcript is not an error; the reconciler
// decides what to do with it.
func (s *STTClient) TranscribeAudio(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("empty audio data")
	}

	startTime := time.Now()
	requestID := fmt.Sprintf("req_%d", startTime.UnixNano())

	logging.Sugar.Infow("Sending transcription request",
		"request_id", requestID,
		"audio_bytes", len(audio),
	)

	// Create multipart form data
	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)

	audioWriter, err := writer.CreateFormFile("file", "recording.webm")
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := audioWriter.Write(audio); err != nil {
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}

	// Add optional parameters
	_ = writer.WriteField("model", "whisper-1")
	_ = writer.WriteField("language", s.language)
	_ = writer.WriteField("temperature", strconv.FormatFloat(float64(s.temperature), 'f', -1, 32))
	_ = writer.WriteField("response_format", "json")

	contentType := writer.FormDataContentType()
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/v1/audio/transcriptions", &requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription HTTP request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Sugar.Warnw("Failed to close STT response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("transcription failed with status %d: %s", resp.StatusCode, string(body))
	}

	var transcriptionResp transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&transcriptionResp); err != nil {
		return "", fmt.Errorf("failed to parse transcription response: %w", err)
	}

	logging.Sugar.Infow("Transcription completed",
		"request_id", requestID,
		"processing_time_ms", time.Since(startTime).Milliseconds(),
		"text_length", len(transcriptionResp.Text),
	)

	return transcriptionResp.Text, nil
}

// Close cleans up resources
func (s *STTClient) Close() error {
	logging.Sugar.Infow("Closing STT client", "base_url", s.baseURL)
	s.httpClient.CloseIdleConnections()
	return nil
}
