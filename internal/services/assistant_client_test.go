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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/config"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/logging"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/session"
)

func TestMain(m *testing.M) {
	if err := logging.Initialize(); err != nil {
		panic(err)
	}
	code := m.Run()
	logging.Close()
	os.Exit(code)
}

func assistantRequest() *AssistantRequest {
	return &AssistantRequest{
		SessionID: "session-1",
		PersonaID: "persona-1",
		Profile:   session.Profile{FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com"},
		Turns: []session.Turn{
			{Role: session.RoleAssistant, Content: "Hello!", Modality: session.ModalityVoice},
			{Role: session.RoleUser, Content: "Hi.", Modality: session.ModalityVoice},
		},
	}
}

func TestComplete(t *testing.T) {
	var captured chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "  How are you today?  "}},
			},
		})
	}))
	defer srv.Close()

	client := NewAssistantClient(config.AssistantConfig{
		URL: srv.URL, Model: "test-model", Timeout: 5 * time.Second,
	})

	reply, err := client.Complete(context.Background(), assistantRequest())
	require.NoError(t, err)
	assert.Equal(t, "How are you today?", reply, "reply must be trimmed")

	assert.Equal(t, "test-model", captured.Model)
	require.Len(t, captured.Messages, 3)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "assistant", captured.Messages[1].Role)
	assert.Equal(t, "user", captured.Messages[2].Role)
	assert.Equal(t, "Hi.", captured.Messages[2].Content)
}

func TestComplete_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewAssistantClient(config.AssistantConfig{URL: srv.URL, Model: "m", Timeout: 5 * time.Second})

	_, err := client.Complete(context.Background(), assistantRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer srv.Close()

	client := NewAssistantClient(config.AssistantConfig{URL: srv.URL, Model: "m", Timeout: 5 * time.Second})

	_, err := client.Complete(context.Background(), assistantRequest())
	assert.Error(t, err)
}

func TestComplete_ContextCancelled(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewAssistantClient(config.AssistantConfig{URL: srv.URL, Model: "m", Timeout: 30 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := client.Complete(ctx, assistantRequest())
		errCh <- err
	}()

	<-started
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled request never returned")
	}
}

func TestBuildSystemPrompt_FreeForm(t *testing.T) {
	client := NewAssistantClient(config.AssistantConfig{URL: "http://unused", Model: "m"})

	prompt := client.buildSystemPrompt(assistantRequest())
	assert.Contains(t, prompt, "persona-1")
	assert.Contains(t, prompt, "Grace Hopper")
	assert.NotContains(t, prompt, "required questions")
}

func TestBuildSystemPrompt_ScriptedMode(t *testing.T) {
	client := NewAssistantClient(config.AssistantConfig{URL: "http://unused", Model: "m"})

	req := assistantRequest()
	req.Questions = []string{"What drew you here?", "What comes next?"}
	req.Cursor = 1

	prompt := client.buildSystemPrompt(req)
	assert.Contains(t, prompt, "2 required questions")
	assert.Contains(t, prompt, "What comes next?")
	assert.NotContains(t, prompt, "conclude the interview")
}

func TestBuildSystemPrompt_ScriptExhausted(t *testing.T) {
	client := NewAssistantClient(config.AssistantConfig{URL: "http://unused", Model: "m"})

	req := assistantRequest()
	req.Questions = []string{"Q1"}
	req.Cursor = 1

	prompt := client.buildSystemPrompt(req)
	assert.Contains(t, prompt, "conclude the interview")
	assert.NotContains(t, prompt, "next required question")
}
