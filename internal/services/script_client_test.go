/*
Copyright (c) 2025 Weya

Licensed under the AGPLv3 License.
This file is part of the weya-hub.
*/

package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/config"
)

func TestFetchScript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/personas/persona-9/script", r.URL.Path)
		_ = json.NewEncoder(w).Encode(Script{
			Greeting:  "Welcome to the interview.",
			Questions: []string{"Q1", "Q2"},
		})
	}))
	defer srv.Close()

	client := NewScriptClient(config.ScriptConfig{URL: srv.URL, Timeout: 5 * time.Second})

	script, err := client.FetchScript(context.Background(), "persona-9")
	require.NoError(t, err)
	assert.Equal(t, "Welcome to the interview.", script.Greeting)
	assert.Equal(t, []string{"Q1", "Q2"}, script.Questions)
}

func TestFetchScript_Unconfigured(t *testing.T) {
	client := NewScriptClient(config.ScriptConfig{URL: "", Timeout: 5 * time.Second})

	_, err := client.FetchScript(context.Background(), "persona-9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestFetchScript_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewScriptClient(config.ScriptConfig{URL: srv.URL, Timeout: 5 * time.Second})

	_, err := client.FetchScript(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
