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

package server

import (
	"go.uber.org/zap"

	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/events"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/logging"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/messaging"
	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/storage"
)

// turnRecorder fans committed turns out to the database and NATS. Both
// sinks are best-effort: a logging failure never blocks or fails the
// conversation turn that produced it.
type turnRecorder struct {
	store *storage.TurnEventsStore
	nats  *messaging.NATSService
}

func newTurnRecorder(store *storage.TurnEventsStore, nats *messaging.NATSService) *turnRecorder {
	return &turnRecorder{store: store, nats: nats}
}

// Record implements controller.EventRecorder
func (r *turnRecorder) Record(event *events.TurnEvent) {
	go func() {
		if r.store != nil {
			if err := r.store.Insert(event); err != nil {
				logging.LogError(err, "Failed to store turn event",
					zap.String("event_uuid", event.UUID),
					zap.String("session_id", event.SessionID))
			}
		}

		if r.nats != nil && r.nats.IsConnected() {
			if err := r.nats.PublishTurnEvent(event); err != nil {
				logging.LogError(err, "Failed to publish turn event",
					zap.String("event_uuid", event.UUID),
					zap.String("session_id", event.SessionID))
			}
		}
	}()
}
