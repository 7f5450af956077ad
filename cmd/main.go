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

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/config"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/logging"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/messaging"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/server"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/services"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/storage"
)

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	// Initialize structured logging
	if err := logging.Initialize(); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Close()

	cfg, err := config.Load()
	if err != nil {
		logging.LogError(err, "Invalid configuration")
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Backend services
	assistant := services.NewAssistantClient(cfg.Assistant)

	transcriber, err := newTranscriber(cfg)
	if err != nil {
		logging.LogError(err, "Failed to initialize transcriber")
		log.Fatalf("Failed to initialize transcriber: %v", err)
	}
	defer func() { _ = transcriber.Close() }()

	synthesizer, err := services.NewTTSClient(cfg.TTS)
	if err != nil {
		logging.LogError(err, "Failed to initialize TTS client")
		log.Fatalf("Failed to initialize TTS client: %v", err)
	}
	defer func() { _ = synthesizer.Close() }()

	var scripts services.ScriptProvider
	if cfg.Script.URL != "" {
		scripts = services.NewScriptClient(cfg.Script)
	}

	// Turn event log. The hub runs without it, but every committed turn
	// is then lost to history.
	var store *storage.TurnEventsStore
	db, err := storage.NewDatabase(storage.DatabaseConfig{Path: cfg.Database.Path})
	if err != nil {
		logging.LogError(err, "Failed to open turn event database, continuing without persistence")
	} else {
		defer func() { _ = db.Close() }()
		store = storage.NewTurnEventsStore(db)
	}

	// NATS is optional: a hub without a broker still converses.
	var nats *messaging.NATSService
	if ns, err := messaging.NewNATSService(); err == nil {
		if err := ns.Connect(); err != nil {
			logging.LogError(err, "Failed to connect to NATS, continuing without event publishing")
		} else {
			nats = ns
			defer nats.Close()
		}
	}

	srv := server.New(cfg, server.Dependencies{
		Assistant:   assistant,
		Transcriber: transcriber,
		Synthesizer: synthesizer,
		Scripts:     scripts,
		Store:       store,
		NATS:        nats,
	})

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Sugar.Infow("Received shutdown signal", "signal", sig.String())
		if err := srv.Stop(); err != nil {
			logging.LogError(err, "Shutdown failed")
		}
	}()

	if err := srv.Start(); err != nil {
		logging.LogError(err, "Failed to start server")
		log.Fatalf("Failed to start server: %v", err)
	}
}

// newTranscriber selects the server-side transcription backend
func newTranscriber(cfg *config.Config) (services.Transcriber, error) {
	if cfg.STT.Backend == "whisper" {
		return services.NewWhisperTranscriber(cfg.STT.WhisperModelPath)
	}
	return services.NewSTTClient(cfg.STT)
}
