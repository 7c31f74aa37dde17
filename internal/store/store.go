// ABOUTME: Store interface and data types for parley persistence
// ABOUTME: Defines User, Conversation, DirectMessage and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicatePair is returned when a conversation for the same user pair
// already exists. Callers are expected to re-fetch rather than fail.
var ErrDuplicatePair = errors.New("conversation already exists for pair")

// ErrDuplicateUser is returned when a username or email is already taken
var ErrDuplicateUser = errors.New("username or email already taken")

// User is an account that can authenticate and exchange messages
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Conversation is the canonical record for a two-party messaging
// relationship. The participant pair is stored in fixed order
// (lexicographically smaller id first) so the unordered pair {A,B}
// always maps to one row.
type Conversation struct {
	ID            string
	UserIDLow     string
	UserIDHigh    string
	LastMessageID *string
	CreatedAt     time.Time
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	return userID == c.UserIDLow || userID == c.UserIDHigh
}

// OtherParticipant returns the participant that is not userID.
// The caller must have verified participation first.
func (c *Conversation) OtherParticipant(userID string) string {
	if userID == c.UserIDLow {
		return c.UserIDHigh
	}
	return c.UserIDLow
}

// DirectMessage is a single immutable message within a conversation
type DirectMessage struct {
	ID             string
	ConversationID string
	SenderID       string
	ReceiverID     string
	Content        string
	CreatedAt      time.Time
}

// MessageCursor identifies a position in a conversation's message
// sequence. Messages sort by (CreatedAt desc, ID desc); a cursor selects
// rows strictly older than this position.
type MessageCursor struct {
	CreatedAt time.Time
	ID        string
}

// ConversationSummary is a conversation annotated with the other
// participant and the denormalized last message, as listed for one user.
type ConversationSummary struct {
	Conversation *Conversation
	Other        *User
	LastMessage  *DirectMessage // nil when no message has been sent yet
}

// Store defines the interface for user, conversation and message persistence
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsernames(ctx context.Context) ([]string, error)

	// Conversations
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	GetConversationByPair(ctx context.Context, userIDLow, userIDHigh string) (*Conversation, error)
	SetLastMessage(ctx context.Context, conversationID, messageID string) error
	ListConversationSummaries(ctx context.Context, userID string) ([]*ConversationSummary, error)

	// Messages
	InsertMessage(ctx context.Context, msg *DirectMessage) error
	ListMessagesBefore(ctx context.Context, conversationID string, before *MessageCursor, limit int) ([]*DirectMessage, error)

	Close() error
}
