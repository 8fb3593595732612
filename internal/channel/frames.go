// Package channel is the realtime patient chat surface: a WebSocket
// endpoint and an HTTP fallback in front of the intake orchestrator.
package channel

import (
	"context"

	"github.com/wolfman30/cardio-intake/internal/patients"
)

// Inbound frame types.
const (
	EventChatMessage   = "chat_message"
	EventAttachPatient = "attach_patient"
	EventTyping        = "typing"
	EventPing          = "ping"
)

// Outbound frame types.
const (
	EventBotMessage = "bot_message"
	EventBotTyping  = "typing"
	EventUserTyping = "user_typing"
	EventSession    = "session"
	EventError      = "error"
	EventPong       = "pong"
)

// InboundFrame is what the chat client sends.
type InboundFrame struct {
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	Email     string `json:"email,omitempty"`
	FullName  string `json:"fullName,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// OutboundFrame is what we send to the chat client.
type OutboundFrame struct {
	Type        string `json:"type"`
	Message     string `json:"message,omitempty"`
	MessageType string `json:"messageType,omitempty"` // "text" or "error"
	SessionID   string `json:"session_id,omitempty"`
	UserID      string `json:"userId,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// Conversation is the orchestrator API the channel drives.
type Conversation interface {
	OnSessionStart(ctx context.Context, channelID string) (string, error)
	OnMessage(ctx context.Context, channelID, text string) (string, bool)
	OnSessionEnd(ctx context.Context, channelID string)
	AttachPatient(ctx context.Context, channelID string, details patients.Details) (*patients.Patient, error)
}
