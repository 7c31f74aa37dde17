// ABOUTME: Tests for cursor-based message pagination
// ABOUTME: Covers full walks, cursor stability under inserts and malformed cursors

package conversation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/store"
)

func seedUser(t *testing.T, st *store.SQLiteStore, username string) string {
	t.Helper()
	user := &store.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, st.CreateUser(context.Background(), user))
	return user.ID
}

func TestCursor_RoundTrip(t *testing.T) {
	msg := &store.DirectMessage{
		ID:        "msg-1",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC),
	}

	cursor, err := DecodeCursor(EncodeCursor(msg))
	require.NoError(t, err)
	assert.Equal(t, "msg-1", cursor.ID)
	assert.True(t, cursor.CreatedAt.Equal(msg.CreatedAt))
}

func TestDecodeCursor_Malformed(t *testing.T) {
	for _, token := range []string{"%%%", "bm9jb2xvbg", ""} {
		_, err := DecodeCursor(token)
		assert.ErrorIs(t, err, ErrBadCursor, "token %q", token)
	}
}

func TestPageMessages_FullWalk(t *testing.T) {
	st := createTestStore(t)
	svc := New(st, nil)
	ctx := context.Background()

	conv, err := svc.Resolve(ctx, "user-a", "user-b")
	require.NoError(t, err)

	const total = 45
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < total; i++ {
		require.NoError(t, st.InsertMessage(ctx, &store.DirectMessage{
			ID:             fmt.Sprintf("msg-%03d", i),
			ConversationID: conv.ID,
			SenderID:       "user-a",
			ReceiverID:     "user-b",
			Content:        fmt.Sprintf("message %d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Millisecond),
		}))
	}

	seen := make(map[string]bool)
	var prev *store.DirectMessage
	cursor := ""
	pages := 0

	for {
		page, err := svc.PageMessages(ctx, "user-a", conv.ID, cursor, DefaultPageLimit)
		require.NoError(t, err)
		pages++

		for _, msg := range page.Messages {
			assert.False(t, seen[msg.ID], "message %s delivered twice", msg.ID)
			seen[msg.ID] = true

			if prev != nil {
				// Strictly descending (createdAt, id) across page boundaries
				older := msg.CreatedAt.Before(prev.CreatedAt) ||
					(msg.CreatedAt.Equal(prev.CreatedAt) && msg.ID < prev.ID)
				assert.True(t, older, "message %s out of order after %s", msg.ID, prev.ID)
			}
			prev = msg
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	assert.Len(t, seen, total)
	assert.Equal(t, 3, pages)
}

func TestPageMessages_NewerInsertsDoNotShiftWalk(t *testing.T) {
	st := createTestStore(t)
	svc := New(st, nil)
	ctx := context.Background()

	conv, err := svc.Resolve(ctx, "user-a", "user-b")
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	insert := func(id string, offset time.Duration) {
		require.NoError(t, st.InsertMessage(ctx, &store.DirectMessage{
			ID:             id,
			ConversationID: conv.ID,
			SenderID:       "user-a",
			ReceiverID:     "user-b",
			Content:        id,
			CreatedAt:      base.Add(offset),
		}))
	}
	for i := 0; i < 4; i++ {
		insert(fmt.Sprintf("msg-%d", i), time.Duration(i)*time.Second)
	}

	first, err := svc.PageMessages(ctx, "user-a", conv.ID, "", 2)
	require.NoError(t, err)
	require.Len(t, first.Messages, 2)
	assert.Equal(t, "msg-3", first.Messages[0].ID)
	require.NotEmpty(t, first.NextCursor)

	// A newer message lands mid-walk
	insert("msg-new", time.Hour)

	second, err := svc.PageMessages(ctx, "user-a", conv.ID, first.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, second.Messages, 2)
	assert.Equal(t, "msg-1", second.Messages[0].ID)
	assert.Equal(t, "msg-0", second.Messages[1].ID)
	assert.Empty(t, second.NextCursor)
}

func TestPageMessages_ExactMultipleHasNoTrailingCursor(t *testing.T) {
	st := createTestStore(t)
	svc := New(st, nil)
	ctx := context.Background()

	conv, err := svc.Resolve(ctx, "user-a", "user-b")
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		require.NoError(t, st.InsertMessage(ctx, &store.DirectMessage{
			ID:             fmt.Sprintf("msg-%d", i),
			ConversationID: conv.ID,
			SenderID:       "user-a",
			ReceiverID:     "user-b",
			Content:        "x",
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}))
	}

	first, err := svc.PageMessages(ctx, "user-a", conv.ID, "", 2)
	require.NoError(t, err)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.PageMessages(ctx, "user-a", conv.ID, first.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, second.Messages, 2)
	assert.Empty(t, second.NextCursor)
}

func TestPageMessages_Authorization(t *testing.T) {
	svc := New(createTestStore(t), nil)
	ctx := context.Background()

	conv, err := svc.Resolve(ctx, "user-a", "user-b")
	require.NoError(t, err)

	_, err = svc.PageMessages(ctx, "user-c", conv.ID, "", 10)
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = svc.PageMessages(ctx, "user-a", "missing", "", 10)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.PageMessages(ctx, "user-a", conv.ID, "!!!", 10)
	assert.ErrorIs(t, err, ErrBadCursor)
}

// Scenario from the product acceptance checklist: two users, two
// messages, limit-1 pagination walks them newest first.
func TestScenario_TwoUserExchange(t *testing.T) {
	st := createTestStore(t)
	svc := New(st, nil)
	ctx := context.Background()

	u1 := seedUser(t, st, "a")
	u2 := seedUser(t, st, "b")

	conv, err := svc.Resolve(ctx, u1, u2)
	require.NoError(t, err)
	low, high := u1, u2
	if high < low {
		low, high = high, low
	}
	assert.Equal(t, low, conv.UserIDLow)
	assert.Equal(t, high, conv.UserIDHigh)

	m1, err := svc.AppendMessage(ctx, conv.ID, u1, "hi")
	require.NoError(t, err)
	assert.Equal(t, u2, m1.ReceiverID)

	got, err := svc.GetForParticipant(ctx, u1, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, m1.ID, *got.LastMessageID)

	m2, err := svc.AppendMessage(ctx, conv.ID, u2, "hello")
	require.NoError(t, err)

	got, err = svc.GetForParticipant(ctx, u2, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, m2.ID, *got.LastMessageID)

	page, err := svc.PageMessages(ctx, u1, conv.ID, "", 1)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, m2.ID, page.Messages[0].ID)
	require.NotEmpty(t, page.NextCursor)

	page, err = svc.PageMessages(ctx, u1, conv.ID, page.NextCursor, 1)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, m1.ID, page.Messages[0].ID)
	assert.Empty(t, page.NextCursor)
}
