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
)

// AssistantClient talks to any OpenAI-compatible chat completions service
type AssistantClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// chatMessage is one message in the chat completions payload
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the chat completions request body
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// chatResponse is the chat completions response body
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewAssistantClient creates a new assistant client
func NewAssistantClient(cfg config.AssistantConfig) *AssistantClient {
	return &AssistantClient{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		model:   cfg.Model,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Complete generates the next assistant turn from the committed history.
// Errors are not retried here; a failed turn returns the session to idle.
func (ac *AssistantClient) Complete(ctx context.Context, req *AssistantRequest) (string, error) {
	startTime := time.Now()

	payload := chatRequest{
		Model:    ac.model,
		Messages: ac.buildMessages(req),
		Stream:   false,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshaling assistant request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", ac.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("error creating assistant request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := ac.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("assistant request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Sugar.Warnw("Failed to close assistant response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("assistant returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("error decoding assistant response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("assistant returned no choices")
	}

	content := strings.TrimSpace(chatResp.Choices[0].Message.Content)

	logging.Sugar.Infow("🧠 Assistant turn generated",
		"session_id", req.SessionID,
		"persona_id", req.PersonaID,
		"history_turns", len(req.Turns),
		"response_len", len(content),
		"processing_time_ms", time.Since(startTime).Milliseconds(),
	)

	return content, nil
}

// buildMessages converts the session transcript into chat messages with a
// persona system prompt and, in scripted mode, the interview instructions
func (ac *AssistantClient) buildMessages(req *AssistantRequest) []chatMessage {
	messages := make([]chatMessage, 0, len(req.Turns)+1)
	messages = append(messages, chatMessage{
		Role:    "system",
		Content: ac.buildSystemPrompt(req),
	})

	for _, turn := range req.Turns {
		messages = append(messages, chatMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}

	return messages
}

// buildSystemPrompt renders the persona, interviewee profile, and
// scripted-question state into the system message
func (ac *AssistantClient) buildSystemPrompt(req *AssistantRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are persona %q conducting a spoken interview.\n", req.PersonaID)
	fmt.Fprintf(&b, "You are speaking with %s %s (%s).\n",
		req.Profile.FirstName, req.Profile.LastName, req.Profile.Email)
	b.WriteString("Keep answers short and conversational; they will be read aloud.\n")

	if len(req.Questions) == 0 {
		return b.String()
	}

	if req.Cursor >= len(req.Questions) {
		b.WriteString("All required questions have been asked. " +
			"Do not ask further questions; thank the interviewee and conclude the interview.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "This is a structured interview with %d required questions.\n", len(req.Questions))
	fmt.Fprintf(&b, "The next required question to work toward is: %q\n", req.Questions[req.Cursor])

	return b.String()
}
