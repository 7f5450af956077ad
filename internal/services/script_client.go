/*
Copyright (c) 2025 Weya

Licensed under the AGPLv3 License.
This file is part of the weya-hub.
*/

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/config"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/logging"
)

// ScriptClient fetches a persona's greeting and required questions from
// the introduction/script service. Callers fall back to a static default
// greeting when the script is unavailable.
type ScriptClient struct {
	baseURL string
	client  *http.Client
}

// NewScriptClient creates a new script client
func NewScriptClient(cfg config.ScriptConfig) *ScriptClient {
	return &ScriptClient{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// FetchScript retrieves the introduction script for a persona
func (sc *ScriptClient) FetchScript(ctx context.Context, personaID string) (*Script, error) {
	if sc.baseURL == "" {
		return nil, fmt.Errorf("script service not configured")
	}

	endpoint := sc.baseURL + "/personas/" + url.PathEscape(personaID) + "/script"

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create script request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("script request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Sugar.Warnw("Failed to close script response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("script request failed with status %d", resp.StatusCode)
	}

	var script Script
	if err := json.NewDecoder(resp.Body).Decode(&script); err != nil {
		return nil, fmt.Errorf("failed to decode script response: %w", err)
	}

	logging.Sugar.Infow("📋 Persona script fetched",
		"persona_id", personaID,
		"questions", len(script.Questions),
	)

	return &script, nil
}
