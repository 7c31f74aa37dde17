// ABOUTME: Cursor-based message history pagination
// ABOUTME: Opaque cursors encode the (createdAt, id) sort key of the last returned row

package conversation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/parleyhq/parley/internal/store"
)

// DefaultPageLimit is the page size used when the caller does not specify one
const DefaultPageLimit = 20

// ErrBadCursor is returned when a cursor token cannot be decoded
var ErrBadCursor = errors.New("malformed pagination cursor")

// Page is one page of a conversation's message history, newest first.
// NextCursor is non-empty iff older messages exist beyond this page.
type Page struct {
	Messages   []*store.DirectMessage
	NextCursor string
}

// EncodeCursor produces the opaque cursor token for a message's position
// in the (createdAt desc, id desc) order.
func EncodeCursor(msg *store.DirectMessage) string {
	raw := fmt.Sprintf("%d:%s", msg.CreatedAt.UTC().UnixNano(), msg.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses an opaque cursor token back into a message cursor.
func DecodeCursor(token string) (*store.MessageCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCursor, err)
	}

	nanosStr, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return nil, ErrBadCursor
	}

	nanos, err := strconv.ParseInt(nanosStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCursor, err)
	}

	return &store.MessageCursor{
		CreatedAt: time.Unix(0, nanos).UTC(),
		ID:        id,
	}, nil
}

// PageMessages returns up to limit messages of the conversation, newest
// first, strictly older than the cursor position when a cursor is given.
// The caller must be a participant. Pagination is anchored to the sort
// key of the oldest returned row, so concurrent inserts of newer
// messages never shift an in-progress walk.
func (s *Service) PageMessages(ctx context.Context, userID, conversationID, cursor string, limit int) (*Page, error) {
	if _, err := s.GetForParticipant(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultPageLimit
	}

	var before *store.MessageCursor
	if cursor != "" {
		var err error
		before, err = DecodeCursor(cursor)
		if err != nil {
			return nil, err
		}
	}

	// Fetch one extra row to learn whether an older page exists
	messages, err := s.store.ListMessagesBefore(ctx, conversationID, before, limit+1)
	if err != nil {
		return nil, fmt.Errorf("querying message page: %w", err)
	}

	page := &Page{Messages: messages}
	if len(messages) > limit {
		page.Messages = messages[:limit]
		page.NextCursor = EncodeCursor(page.Messages[limit-1])
	}
	return page, nil
}
