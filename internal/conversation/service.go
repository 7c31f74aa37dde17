// ABOUTME: Service for canonical conversation resolution and message appends
// ABOUTME: Create-or-get with conflict absorption, participant authorization, last-message pointer

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/store"
)

// Operation errors
var (
	ErrSelfConversation = errors.New("cannot start a conversation with yourself")
	ErrEmptyContent     = errors.New("message content must not be empty")
	ErrNotParticipant   = errors.New("not a participant in this conversation")
)

// Store defines what the service needs from storage
type Store interface {
	CreateConversation(ctx context.Context, conv *store.Conversation) error
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	GetConversationByPair(ctx context.Context, userIDLow, userIDHigh string) (*store.Conversation, error)
	SetLastMessage(ctx context.Context, conversationID, messageID string) error
	ListConversationSummaries(ctx context.Context, userID string) ([]*store.ConversationSummary, error)

	InsertMessage(ctx context.Context, msg *store.DirectMessage) error
	ListMessagesBefore(ctx context.Context, conversationID string, before *store.MessageCursor, limit int) ([]*store.DirectMessage, error)
}

// Service resolves conversations and persists messages.
type Service struct {
	store  Store
	logger *slog.Logger
}

// New creates a conversation service. Pass nil logger for default.
func New(st Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		logger: logger.With("component", "conversation"),
	}
}

// canonicalPair returns the two user IDs in fixed (low, high) order so an
// unordered pair always maps to the same storage key.
func canonicalPair(userA, userB string) (low, high string) {
	if userA < userB {
		return userA, userB
	}
	return userB, userA
}

// Resolve returns the conversation for the unordered pair {userA, userB},
// creating it on first contact. Concurrent first-contact calls from both
// sides resolve to the same row: the store's uniqueness constraint makes
// the first insert win and the loser re-fetches.
func (s *Service) Resolve(ctx context.Context, userA, userB string) (*store.Conversation, error) {
	if userA == userB {
		return nil, ErrSelfConversation
	}

	low, high := canonicalPair(userA, userB)

	conv, err := s.store.GetConversationByPair(ctx, low, high)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("looking up conversation: %w", err)
	}

	conv = &store.Conversation{
		ID:         uuid.New().String(),
		UserIDLow:  low,
		UserIDHigh: high,
		CreatedAt:  time.Now().UTC(),
	}

	err = s.store.CreateConversation(ctx, conv)
	if errors.Is(err, store.ErrDuplicatePair) {
		// Someone else created it first; theirs is the canonical row
		return s.store.GetConversationByPair(ctx, low, high)
	}
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Info("conversation created",
		"conversation_id", conv.ID,
		"user_low", low,
		"user_high", high)
	return conv, nil
}

// GetForParticipant returns the conversation only if userID is one of its
// two participants. Returns store.ErrNotFound if the conversation does
// not exist and ErrNotParticipant if the user is not part of it.
func (s *Service) GetForParticipant(ctx context.Context, userID, conversationID string) (*store.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return conv, nil
}

// AppendMessage persists a message from senderID into the conversation.
// Participation is re-validated on every call; the receiver is the other
// participant. The conversation's last-message pointer is updated after
// the insert, best-effort: a pointer failure never rolls back the
// message, and staleness heals on the next successful append.
func (s *Service) AppendMessage(ctx context.Context, conversationID, senderID, content string) (*store.DirectMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	conv, err := s.GetForParticipant(ctx, senderID, conversationID)
	if err != nil {
		return nil, err
	}

	msg := &store.DirectMessage{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		ReceiverID:     conv.OtherParticipant(senderID),
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("persisting message: %w", err)
	}

	if err := s.store.SetLastMessage(ctx, conv.ID, msg.ID); err != nil {
		// The message is durable; only the denormalized pointer is stale
		s.logger.Warn("last message pointer update failed",
			"conversation_id", conv.ID,
			"message_id", msg.ID,
			"error", err)
	}

	s.logger.Debug("message appended",
		"conversation_id", conv.ID,
		"message_id", msg.ID,
		"sender_id", senderID)
	return msg, nil
}

// ListForUser returns every conversation the user participates in,
// annotated with the other participant and the last message, ordered by
// last-message recency descending.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*store.ConversationSummary, error) {
	return s.store.ListConversationSummaries(ctx, userID)
}
