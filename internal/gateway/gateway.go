// ABOUTME: Websocket gateway: handshake authentication and event dispatch
// ABOUTME: joinConversation and sendDirectMessage flow through the conversation service

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/conversation"
	"github.com/parleyhq/parley/internal/store"
)

// handshakeTimeout bounds the credential check and store calls made while
// handling a single connection event. A check that exceeds the bound is
// treated as a failure for that operation.
const handshakeTimeout = 10 * time.Second

// Conversations defines what the gateway needs from the conversation layer
type Conversations interface {
	GetForParticipant(ctx context.Context, userID, conversationID string) (*store.Conversation, error)
	AppendMessage(ctx context.Context, conversationID, senderID, content string) (*store.DirectMessage, error)
}

// Gateway upgrades HTTP requests to authenticated websocket connections
// and relays persisted messages to conversation rooms.
type Gateway struct {
	hub           *Hub
	conversations Conversations
	verifier      auth.TokenVerifier
	upgrader      websocket.Upgrader
	logger        *slog.Logger
}

// New creates a gateway. Pass nil logger for default.
func New(hub *Hub, conversations Conversations, verifier auth.TokenVerifier, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		hub:           hub,
		conversations: conversations,
		verifier:      verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin checks are the reverse proxy's job in this deployment
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With("component", "gateway"),
	}
}

// tokenFromRequest pulls the bearer token from the Authorization header,
// falling back to a "token" query parameter for browser clients that
// cannot set headers on websocket upgrades.
func tokenFromRequest(r *http.Request) string {
	if token, errMsg := auth.ExtractBearerToken(r.Header.Get("Authorization")); errMsg == "" {
		return token
	}
	return r.URL.Query().Get("token")
}

// ServeHTTP authenticates the handshake and, on success, upgrades the
// connection and starts its pumps. A missing or invalid token rejects the
// handshake outright; the connection never reaches the authenticated state.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := tokenFromRequest(r)
	if token == "" {
		http.Error(w, `{"error":"missing token","kind":"unauthenticated"}`, http.StatusUnauthorized)
		return
	}

	userID, err := g.verifier.Verify(token)
	if err != nil {
		g.logger.Debug("handshake rejected", "error", err)
		http.Error(w, `{"error":"invalid token","kind":"unauthenticated"}`, http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		return
	}

	id := uuid.New().String()
	client := &Client{
		id:     id,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		rooms:  make(map[string]struct{}),
		logger: g.logger.With("connection_id", id, "user_id", userID),
	}

	g.logger.Info("connection authenticated", "connection_id", client.id, "user_id", userID)

	go client.writePump()
	go client.readPump(g)
}

// dispatch routes one inbound frame to its handler. Failures are scoped
// to the sending connection: an exception event goes back on that
// connection only and the connection stays up.
func (g *Gateway) dispatch(c *Client, raw []byte) {
	var event ClientEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		c.enqueue(encodeExceptionEvent("malformed event"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	defer cancel()

	switch event.Event {
	case EventJoinConversation:
		g.handleJoin(ctx, c, event.ConversationID)
	case EventSendDirectMessage:
		g.handleSend(ctx, c, event.ConversationID, event.Content)
	default:
		c.enqueue(encodeExceptionEvent("unknown event: " + event.Event))
	}
}

// handleJoin adds the connection to a conversation room after verifying
// the connection's user is a participant. A rejected join leaves the
// connection alive and outside the room.
func (g *Gateway) handleJoin(ctx context.Context, c *Client, conversationID string) {
	if conversationID == "" {
		c.enqueue(encodeExceptionEvent("conversationId is required"))
		return
	}

	if _, err := g.conversations.GetForParticipant(ctx, c.userID, conversationID); err != nil {
		c.enqueue(encodeExceptionEvent(joinRejectionReason(err)))
		return
	}

	g.hub.Join(conversationID, c)
}

// handleSend persists a message and relays it to the room. The
// participant check is always made against the conversation layer, not
// the connection's join state: room membership is connection-local and
// never the authorization source.
func (g *Gateway) handleSend(ctx context.Context, c *Client, conversationID, content string) {
	msg, err := g.conversations.AppendMessage(ctx, conversationID, c.userID, content)
	if err != nil {
		c.enqueue(encodeExceptionEvent(sendRejectionReason(err)))
		return
	}

	g.hub.Relay(conversationID, encodeMessageEvent(msg))
}

func (g *Gateway) disconnect(c *Client) {
	g.hub.RemoveClient(c)
	close(c.done)
	c.conn.Close()
	g.logger.Info("connection closed", "connection_id", c.id, "user_id", c.userID)
}

func joinRejectionReason(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "conversation not found"
	case errors.Is(err, conversation.ErrNotParticipant):
		return "not a participant in this conversation"
	case errors.Is(err, context.DeadlineExceeded):
		return "conversation lookup timed out"
	default:
		return "join failed"
	}
}

func sendRejectionReason(err error) string {
	switch {
	case errors.Is(err, conversation.ErrEmptyContent):
		return "message content must not be empty"
	case errors.Is(err, store.ErrNotFound):
		return "conversation not found"
	case errors.Is(err, conversation.ErrNotParticipant):
		return "not a participant in this conversation"
	case errors.Is(err, context.DeadlineExceeded):
		return "send timed out"
	default:
		return "send failed"
	}
}
