//go:build !whisper

package services

import (
	"context"
	"fmt"
)

// WhisperTranscriber stub implementation when whisper is disabled
type WhisperTranscriber struct {
	modelPath string
}

// NewWhisperTranscriber creates a stub transcriber when whisper is disabled
func NewWhisperTranscriber(modelPath string) (*WhisperTranscriber, error) {
	return &WhisperTranscriber{
		modelPath: modelPath,
	}, nil
}

// TranscribeAudio stub implementation returns empty transcription
func (wt *WhisperTranscriber) TranscribeAudio(ctx context.Context, audio []byte) (string, error) {
	return "", fmt.Errorf("whisper transcription disabled (build with -tags whisper to enable)")
}

// Close stub implementation
func (wt *WhisperTranscriber) Close() error {
	// Nothing to clean up in stub
	return nil
}
