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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the Weya hub
type Config struct {
	Server    ServerConfig
	Assistant AssistantConfig
	STT       STTConfig
	TTS       TTSConfig
	Capture   CaptureConfig
	Script    ScriptConfig
	Logging   LoggingConfig
	NATS      NATSConfig
	Database  DatabaseConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AssistantConfig holds the interview assistant (chat completion) configuration
type AssistantConfig struct {
	URL     string // OpenAI-compatible chat completions endpoint
	Model   string
	Timeout time.Duration
}

// STTConfig holds Speech-to-Text service configuration
type STTConfig struct {
	URL              string // REST API URL for OpenAI-compatible STT service
	Language         string
	Temperature      float32
	Backend          string // "hosted" or "whisper" (local, requires -tags whisper)
	WhisperModelPath string
	Timeout          time.Duration
}

// TTSConfig holds Text-to-Speech service configuration
type TTSConfig struct {
	URL            string        // REST API URL for OpenAI-compatible TTS service
	Voice          string        // Default voice when a persona has none
	Speed          float32       // Speech speed (1.0 = normal)
	ResponseFormat string        // Audio format (mp3, wav, opus, flac)
	MaxConcurrent  int           // Maximum concurrent TTS requests
	Timeout        time.Duration // Request timeout
}

// CaptureConfig holds voice capture and reconciliation tuning
type CaptureConfig struct {
	// MinAudioBytes is the smallest recording worth sending for server-side
	// transcription; below it the local transcript is used directly.
	MinAudioBytes        int
	RestartDelay         time.Duration // delay before re-arming capture after noise
	MaxPermissionRetries int           // bounded retries for ambiguous permission races
}

// ScriptConfig holds the persona introduction/script service configuration
type ScriptConfig struct {
	URL     string
	Timeout time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// NATSConfig holds NATS messaging configuration
type NATSConfig struct {
	URL           string
	Subject       string
	MaxReconnect  int
	ReconnectWait time.Duration
}

// DatabaseConfig holds turn-event database configuration
type DatabaseConfig struct {
	Path string
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnvString("WEYA_HOST", "0.0.0.0"),
			Port:         getEnvInt("WEYA_PORT", 8080),
			ReadTimeout:  getEnvDuration("WEYA_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("WEYA_WRITE_TIMEOUT", 30*time.Second),
		},
		Assistant: AssistantConfig{
			URL:     getEnvString("ASSISTANT_URL", "http://localhost:11434/v1"),
			Model:   getEnvString("ASSISTANT_MODEL", "gpt-4o-mini"),
			Timeout: getEnvDuration("ASSISTANT_TIMEOUT", 60*time.Second),
		},
		STT: STTConfig{
			URL:              getEnvString("STT_URL", "http://stt:8000"),
			Language:         getEnvString("STT_LANGUAGE", "en"),
			Temperature:      getEnvFloat32("STT_TEMPERATURE", 0.0),
			Backend:          getEnvString("STT_BACKEND", "hosted"),
			WhisperModelPath: getEnvString("WHISPER_MODEL_PATH", "./models/ggml-tiny.bin"),
			Timeout:          getEnvDuration("STT_TIMEOUT", 30*time.Second),
		},
		TTS: TTSConfig{
			URL:            getEnvString("TTS_URL", "http://localhost:8880/v1"),
			Voice:          getEnvString("TTS_VOICE", "af_bella"),
			Speed:          getEnvFloat32("TTS_SPEED", 1.0),
			ResponseFormat: getEnvString("TTS_FORMAT", "mp3"),
			MaxConcurrent:  getEnvInt("TTS_MAX_CONCURRENT", 10),
			Timeout:        getEnvDuration("TTS_TIMEOUT", 10*time.Second),
		},
		Capture: CaptureConfig{
			MinAudioBytes:        getEnvInt("CAPTURE_MIN_AUDIO_BYTES", 4096),
			RestartDelay:         getEnvDuration("CAPTURE_RESTART_DELAY", 400*time.Millisecond),
			MaxPermissionRetries: getEnvInt("CAPTURE_MAX_PERMISSION_RETRIES", 2),
		},
		Script: ScriptConfig{
			URL:     getEnvString("SCRIPT_URL", ""),
			Timeout: getEnvDuration("SCRIPT_TIMEOUT", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		NATS: NATSConfig{
			URL:           getEnvString("NATS_URL", "nats://localhost:4222"),
			Subject:       getEnvString("NATS_SUBJECT", "weya.turns.events"),
			MaxReconnect:  getEnvInt("NATS_MAX_RECONNECT", 10),
			ReconnectWait: getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		},
		Database: DatabaseConfig{
			Path: getEnvString("DB_PATH", "./data/weya-hub.db"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Assistant.URL == "" {
		return fmt.Errorf("assistant URL must be provided")
	}

	if c.STT.URL == "" && c.STT.Backend == "hosted" {
		return fmt.Errorf("STT URL must be provided for the hosted backend")
	}

	if c.STT.Backend != "hosted" && c.STT.Backend != "whisper" {
		return fmt.Errorf("unknown STT backend: %q", c.STT.Backend)
	}

	if c.TTS.URL == "" {
		return fmt.Errorf("TTS URL must be provided")
	}

	if c.TTS.MaxConcurrent <= 0 {
		return fmt.Errorf("TTS max concurrent must be positive: %d", c.TTS.MaxConcurrent)
	}

	if c.TTS.Speed <= 0 {
		return fmt.Errorf("TTS speed must be positive: %f", c.TTS.Speed)
	}

	if c.Capture.MinAudioBytes < 0 {
		return fmt.Errorf("capture min audio bytes must not be negative: %d", c.Capture.MinAudioBytes)
	}

	if c.Capture.RestartDelay <= 0 {
		return fmt.Errorf("capture restart delay must be positive: %s", c.Capture.RestartDelay)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatValue)
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
