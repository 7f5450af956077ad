/*
Copyright (c) 2025 Weya

Licensed under the AGPLv3 License.
This file is part of the weya-hub.
*/

package services

import (
	"context"

	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/session"
)

// AssistantRequest carries everything the assistant needs for one turn
type AssistantRequest struct {
	SessionID string
	PersonaID string
	Profile   session.Profile

	// Turns is the full committed transcript in conversation order; it
	// must never contain partial or in-flight turns.
	Turns []session.Turn

	// Scripted interview state. Questions is nil outside scripted mode;
	// Cursor indexes the next required question, and a cursor past the
	// end instructs the assistant to conclude.
	Questions []string
	Cursor    int
}

// Assistant generates the next assistant turn for an interview session
type Assistant interface {
	Complete(ctx context.Context, req *AssistantRequest) (string, error)
}

// Transcriber converts recorded audio bytes to text
type Transcriber interface {
	TranscribeAudio(ctx context.Context, audio []byte) (string, error)

	// Close cleans up resources
	Close() error
}

// Synthesizer converts text to speech audio bytes
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)

	// Close cleans up resources
	Close() error
}

// Script is a persona's greeting and ordered required questions
type Script struct {
	Greeting  string   `json:"greeting"`
	Questions []string `json:"questions"`
}

// ScriptProvider fetches the introduction script for a persona
type ScriptProvider interface {
	FetchScript(ctx context.Context, personaID string) (*Script, error)
}
