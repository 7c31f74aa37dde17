// ABOUTME: Tests for the SQLite store implementation
// ABOUTME: Covers user/conversation/message persistence, uniqueness and ordering

package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func makeUser(username string) *User {
	return &User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func createConversation(t *testing.T, s *SQLiteStore, low, high string) *Conversation {
	t.Helper()
	conv := &Conversation{
		ID:         uuid.New().String(),
		UserIDLow:  low,
		UserIDHigh: high,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.CreateConversation(context.Background(), conv))
	return conv
}

func TestStore_CreateUser(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	user := makeUser("alice")
	require.NoError(t, store.CreateUser(ctx, user))

	byID, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	byName, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	byEmail, err := store.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
}

func TestStore_CreateUser_DuplicateUsername(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, makeUser("alice")))

	dup := makeUser("alice")
	dup.Email = "other@example.com"
	err := store.CreateUser(ctx, dup)
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestStore_GetUser_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetUserByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListUsernames(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, makeUser("alice")))
	require.NoError(t, store.CreateUser(ctx, makeUser("bob")))

	usernames, err := store.ListUsernames(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, usernames)
}

func TestStore_CreateConversation_DuplicatePair(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createConversation(t, store, "user-a", "user-b")

	dup := &Conversation{
		ID:         uuid.New().String(),
		UserIDLow:  "user-a",
		UserIDHigh: "user-b",
		CreatedAt:  time.Now().UTC(),
	}
	err := store.CreateConversation(ctx, dup)
	assert.ErrorIs(t, err, ErrDuplicatePair)

	// The original row is still fetchable by pair
	found, err := store.GetConversationByPair(ctx, "user-a", "user-b")
	require.NoError(t, err)
	assert.NotEqual(t, dup.ID, found.ID)
}

func TestStore_GetConversationByPair_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetConversationByPair(context.Background(), "a", "b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SetLastMessage(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	conv := createConversation(t, store, "user-a", "user-b")

	msg := &DirectMessage{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       "user-a",
		ReceiverID:     "user-b",
		Content:        "hi",
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, store.InsertMessage(ctx, msg))
	require.NoError(t, store.SetLastMessage(ctx, conv.ID, msg.ID))

	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessageID)
	assert.Equal(t, msg.ID, *got.LastMessageID)
}

func TestStore_SetLastMessage_MissingConversation(t *testing.T) {
	store := setupTestStore(t)

	err := store.SetLastMessage(context.Background(), "missing", "msg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListMessagesBefore_OrderAndCursor(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	conv := createConversation(t, store, "user-a", "user-b")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var inserted []*DirectMessage
	for i := 0; i < 5; i++ {
		msg := &DirectMessage{
			ID:             fmt.Sprintf("msg-%d", i),
			ConversationID: conv.ID,
			SenderID:       "user-a",
			ReceiverID:     "user-b",
			Content:        fmt.Sprintf("message %d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.InsertMessage(ctx, msg))
		inserted = append(inserted, msg)
	}

	// Newest first without a cursor
	page, err := store.ListMessagesBefore(ctx, conv.ID, nil, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "msg-4", page[0].ID)
	assert.Equal(t, "msg-3", page[1].ID)
	assert.Equal(t, "msg-2", page[2].ID)

	// Strictly older than the last row of the first page
	cursor := &MessageCursor{CreatedAt: page[2].CreatedAt, ID: page[2].ID}
	rest, err := store.ListMessagesBefore(ctx, conv.ID, cursor, 10)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, "msg-1", rest[0].ID)
	assert.Equal(t, "msg-0", rest[1].ID)

	_ = inserted
}

func TestStore_ListMessagesBefore_TimestampTieBreaksByID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	conv := createConversation(t, store, "user-a", "user-b")

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"msg-a", "msg-c", "msg-b"} {
		require.NoError(t, store.InsertMessage(ctx, &DirectMessage{
			ID:             id,
			ConversationID: conv.ID,
			SenderID:       "user-a",
			ReceiverID:     "user-b",
			Content:        "same instant",
			CreatedAt:      ts,
		}))
	}

	page, err := store.ListMessagesBefore(ctx, conv.ID, nil, 10)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "msg-c", page[0].ID)
	assert.Equal(t, "msg-b", page[1].ID)
	assert.Equal(t, "msg-a", page[2].ID)

	// Cursor on the middle row skips equal-timestamp rows with higher ids
	cursor := &MessageCursor{CreatedAt: ts, ID: "msg-b"}
	rest, err := store.ListMessagesBefore(ctx, conv.ID, cursor, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "msg-a", rest[0].ID)
}

func TestStore_ListConversationSummaries(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	alice := makeUser("alice")
	bob := makeUser("bob")
	carol := makeUser("carol")
	for _, u := range []*User{alice, bob, carol} {
		require.NoError(t, store.CreateUser(ctx, u))
	}

	low, high := alice.ID, bob.ID
	if high < low {
		low, high = high, low
	}
	withBob := createConversation(t, store, low, high)

	low, high = alice.ID, carol.ID
	if high < low {
		low, high = high, low
	}
	withCarol := createConversation(t, store, low, high)

	// Only the bob conversation has a message
	msg := &DirectMessage{
		ID:             uuid.New().String(),
		ConversationID: withBob.ID,
		SenderID:       bob.ID,
		ReceiverID:     alice.ID,
		Content:        "hey",
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, store.InsertMessage(ctx, msg))
	require.NoError(t, store.SetLastMessage(ctx, withBob.ID, msg.ID))

	summaries, err := store.ListConversationSummaries(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	// Conversation with a message sorts first
	assert.Equal(t, withBob.ID, summaries[0].Conversation.ID)
	assert.Equal(t, "bob", summaries[0].Other.Username)
	require.NotNil(t, summaries[0].LastMessage)
	assert.Equal(t, "hey", summaries[0].LastMessage.Content)

	// Message-less conversation sorts last with a nil last message
	assert.Equal(t, withCarol.ID, summaries[1].Conversation.ID)
	assert.Equal(t, "carol", summaries[1].Other.Username)
	assert.Nil(t, summaries[1].LastMessage)

	// A non-participant sees nothing
	summaries, err = store.ListConversationSummaries(ctx, "stranger")
	require.NoError(t, err)
	assert.Empty(t, summaries)
}
