package websockets

import "github.com/chris/escrow-settlement/pkg/notify"

// MessageType defines the type of a WebSocket message.
type MessageType string

const (
	// MessageTypeNotification carries a user notification.
	MessageTypeNotification MessageType = "notification"
	// MessageTypeBalanceUpdate is sent when a notification also changed the user's balance.
	MessageTypeBalanceUpdate MessageType = "balanceUpdate"
)

// Message represents a generic WebSocket message.
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// NewMessage wraps a notification for the wire.
func NewMessage(n notify.Notification) Message {
	msgType := MessageTypeNotification
	if n.Balance != nil {
		msgType = MessageTypeBalanceUpdate
	}
	return Message{Type: msgType, Payload: n}
}
