package messaging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/weyalighteagle/weya-lighteagle.org-sub000/internal/events"
)

// NATSService handles NATS messaging for the Weya hub
type NATSService struct {
	conn *nats.Conn
	url  string
}

// SessionStatusEvent announces a conversation status transition
type SessionStatusEvent struct {
	SessionID string `json:"session_id"`
	PersonaID string `json:"persona_id"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// NATS subjects for different event types
const (
	SubjectTurnEvents    = "weya.turns.events"
	SubjectSessionStatus = "weya.sessions.status"
	SubjectSystemEvents  = "weya.system.events"
)

// NewNATSService creates a new NATS service instance
func NewNATSService() (*NATSService, error) {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	return &NATSService{
		url: natsURL,
	}, nil
}

// Connect establishes connection to NATS server
func (ns *NATSService) Connect() error {
	log.Printf("🔌 Connecting to NATS at %s", ns.url)

	// Connection options with retry logic
	opts := []nats.Option{
		nats.Name("weya-hub"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1), // Retry indefinitely
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("⚠️  NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("🔄 NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Println("🔌 NATS connection closed")
		}),
	}

	conn, err := nats.Connect(ns.url, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	ns.conn = conn
	log.Printf("✅ Connected to NATS server at %s", conn.ConnectedUrl())
	return nil
}

// PublishTurnEvent publishes a committed turn to the event stream
func (ns *NATSService) PublishTurnEvent(event *events.TurnEvent) error {
	if ns.conn == nil {
		return fmt.Errorf("NATS connection not established")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal turn event: %w", err)
	}

	if err := ns.conn.Publish(SubjectTurnEvents, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", SubjectTurnEvents, err)
	}

	log.Printf("📤 Published turn event to NATS - Role: %s, SessionID: %s",
		event.Role, event.SessionID)
	return nil
}

// PublishSessionStatus publishes a session status transition
func (ns *NATSService) PublishSessionStatus(event *SessionStatusEvent) error {
	if ns.conn == nil {
		return fmt.Errorf("NATS connection not established")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal session status event: %w", err)
	}

	if err := ns.conn.Publish(SubjectSessionStatus, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", SubjectSessionStatus, err)
	}

	return nil
}

// SubscribeToTurnEvents subscribes to the turn event stream
func (ns *NATSService) SubscribeToTurnEvents(handler func(*events.TurnEvent)) (*nats.Subscription, error) {
	if ns.conn == nil {
		return nil, fmt.Errorf("NATS connection not established")
	}

	return ns.conn.Subscribe(SubjectTurnEvents, func(msg *nats.Msg) {
		var event events.TurnEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Printf("❌ Error unmarshaling turn event: %v", err)
			return
		}

		log.Printf("📥 Received turn event from NATS - Role: %s, SessionID: %s",
			event.Role, event.SessionID)
		handler(&event)
	})
}

// Close closes the NATS connection
func (ns *NATSService) Close() {
	if ns.conn != nil {
		ns.conn.Close()
		log.Println("🔌 NATS connection closed")
	}
}

// IsConnected returns true if connected to NATS
func (ns *NATSService) IsConnected() bool {
	return ns.conn != nil && ns.conn.IsConnected()
}

// GetStats returns connection statistics
func (ns *NATSService) GetStats() nats.Statistics {
	if ns.conn != nil {
		return ns.conn.Stats()
	}
	return nats.Statistics{}
}
