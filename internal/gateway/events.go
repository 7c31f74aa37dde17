// ABOUTME: Wire format for websocket events
// ABOUTME: Client events joinConversation/sendDirectMessage, server events message/exception

package gateway

import (
	"encoding/json"
	"time"

	"github.com/parleyhq/parley/internal/store"
)

// Client-to-server event names
const (
	EventJoinConversation  = "joinConversation"
	EventSendDirectMessage = "sendDirectMessage"
)

// Server-to-client event names
const (
	EventMessage   = "message"
	EventException = "exception"
)

// ClientEvent is the envelope for everything a client sends
type ClientEvent struct {
	Event          string `json:"event"`
	ConversationID string `json:"conversationId"`
	Content        string `json:"content,omitempty"`
}

// MessagePayload is the delivered-message body of a "message" event
type MessagePayload struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	ReceiverID     string    `json:"receiverId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

type serverEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// encodeMessageEvent marshals a persisted message into a "message" event frame.
func encodeMessageEvent(msg *store.DirectMessage) []byte {
	frame, _ := json.Marshal(serverEvent{
		Event: EventMessage,
		Data: MessagePayload{
			ID:             msg.ID,
			ConversationID: msg.ConversationID,
			SenderID:       msg.SenderID,
			ReceiverID:     msg.ReceiverID,
			Content:        msg.Content,
			CreatedAt:      msg.CreatedAt,
		},
	})
	return frame
}

// encodeExceptionEvent marshals a human-readable error into an "exception" event frame.
func encodeExceptionEvent(reason string) []byte {
	frame, _ := json.Marshal(serverEvent{
		Event: EventException,
		Data:  reason,
	})
	return frame
}
