// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides user/conversation/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Wait out writer contention instead of failing with SQLITE_BUSY
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist.
// Message created_at is stored as integer unix nanoseconds: pagination
// orders by (created_at, id) and text timestamps lose sub-second
// precision.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_id_low TEXT NOT NULL,
			user_id_high TEXT NOT NULL,
			last_message_id TEXT,
			created_at TEXT NOT NULL,

			CHECK (user_id_low < user_id_high)
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_pair
			ON conversations(user_id_low, user_id_high);

		CREATE INDEX IF NOT EXISTS idx_conversations_low ON conversations(user_id_low);
		CREATE INDEX IF NOT EXISTS idx_conversations_high ON conversations(user_id_high);

		CREATE TABLE IF NOT EXISTS direct_messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			receiver_id TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL,

			FOREIGN KEY (conversation_id) REFERENCES conversations(id)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation_order
			ON direct_messages(conversation_id, created_at, id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// CreateUser inserts a new user.
// Returns ErrDuplicateUser if the username or email is already taken.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Debug("created user", "id", user.ID, "username", user.Username)
	return nil
}

func (s *SQLiteStore) getUser(ctx context.Context, where, arg string) (*User, error) {
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE ` + where + ` = ?
	`

	var user User
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&createdAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	user.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing user created_at: %w", err)
	}

	return &user, nil
}

// GetUserByID retrieves a user by ID. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	return s.getUser(ctx, "id", id)
}

// GetUserByUsername retrieves a user by username. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.getUser(ctx, "username", username)
}

// GetUserByEmail retrieves a user by email. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, "email", email)
}

// ListUsernames returns every registered username. Used to seed the
// availability filter at startup.
func (s *SQLiteStore) ListUsernames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username FROM users`)
	if err != nil {
		return nil, fmt.Errorf("querying usernames: %w", err)
	}
	defer rows.Close()

	var usernames []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("scanning username: %w", err)
		}
		usernames = append(usernames, username)
	}
	return usernames, rows.Err()
}

// CreateConversation inserts a new conversation row.
// Returns ErrDuplicatePair if a conversation for the same (low, high)
// pair already exists; the caller re-fetches in that case.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	query := `
		INSERT INTO conversations (id, user_id_low, user_id_high, last_message_id, created_at)
		VALUES (?, ?, ?, NULL, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		conv.ID,
		conv.UserIDLow,
		conv.UserIDHigh,
		conv.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicatePair
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", conv.ID,
		"user_low", conv.UserIDLow, "user_high", conv.UserIDHigh)
	return nil
}

func scanConversation(row *sql.Row) (*Conversation, error) {
	var conv Conversation
	var lastMessageID sql.NullString
	var createdAtStr string

	err := row.Scan(
		&conv.ID,
		&conv.UserIDLow,
		&conv.UserIDHigh,
		&lastMessageID,
		&createdAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}

	if lastMessageID.Valid {
		conv.LastMessageID = &lastMessageID.String
	}
	conv.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing conversation created_at: %w", err)
	}

	return &conv, nil
}

// GetConversation retrieves a conversation by ID.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	query := `
		SELECT id, user_id_low, user_id_high, last_message_id, created_at
		FROM conversations
		WHERE id = ?
	`
	return scanConversation(s.db.QueryRowContext(ctx, query, id))
}

// GetConversationByPair retrieves the conversation for a canonical pair.
// Returns ErrNotFound if no conversation exists for the pair.
func (s *SQLiteStore) GetConversationByPair(ctx context.Context, userIDLow, userIDHigh string) (*Conversation, error) {
	query := `
		SELECT id, user_id_low, user_id_high, last_message_id, created_at
		FROM conversations
		WHERE user_id_low = ? AND user_id_high = ?
	`
	return scanConversation(s.db.QueryRowContext(ctx, query, userIDLow, userIDHigh))
}

// SetLastMessage points the conversation's denormalized last-message
// reference at the given message. Last writer wins.
func (s *SQLiteStore) SetLastMessage(ctx context.Context, conversationID, messageID string) error {
	query := `UPDATE conversations SET last_message_id = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, messageID, conversationID)
	if err != nil {
		return fmt.Errorf("updating last message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertMessage inserts a direct message.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *DirectMessage) error {
	query := `
		INSERT INTO direct_messages (id, conversation_id, sender_id, receiver_id, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.ConversationID,
		msg.SenderID,
		msg.ReceiverID,
		msg.Content,
		msg.CreatedAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	s.logger.Debug("inserted message", "id", msg.ID, "conversation_id", msg.ConversationID)
	return nil
}

// ListMessagesBefore returns up to limit messages of a conversation
// ordered newest-first by (created_at, id). When before is non-nil only
// messages strictly older than that position are returned.
func (s *SQLiteStore) ListMessagesBefore(ctx context.Context, conversationID string, before *MessageCursor, limit int) ([]*DirectMessage, error) {
	query := `
		SELECT id, conversation_id, sender_id, receiver_id, content, created_at
		FROM direct_messages
		WHERE conversation_id = ?
	`
	args := []any{conversationID}

	if before != nil {
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		nanos := before.CreatedAt.UTC().UnixNano()
		args = append(args, nanos, nanos, before.ID)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*DirectMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*DirectMessage, error) {
	var msg DirectMessage
	var nanos int64

	err := row.Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.SenderID,
		&msg.ReceiverID,
		&msg.Content,
		&nanos,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning message: %w", err)
	}

	msg.CreatedAt = time.Unix(0, nanos).UTC()
	return &msg, nil
}

// ListConversationSummaries returns every conversation the user
// participates in, each joined with the other participant and the
// denormalized last message. Ordered by last-message recency descending;
// conversations with no messages yet sort last, by creation time.
func (s *SQLiteStore) ListConversationSummaries(ctx context.Context, userID string) ([]*ConversationSummary, error) {
	query := `
		SELECT
			c.id, c.user_id_low, c.user_id_high, c.last_message_id, c.created_at,
			u.id, u.username, u.email, u.password_hash, u.created_at,
			m.id, m.conversation_id, m.sender_id, m.receiver_id, m.content, m.created_at
		FROM conversations c
		JOIN users u ON u.id = CASE WHEN c.user_id_low = ? THEN c.user_id_high ELSE c.user_id_low END
		LEFT JOIN direct_messages m ON m.id = c.last_message_id
		WHERE c.user_id_low = ? OR c.user_id_high = ?
		ORDER BY
			CASE WHEN m.id IS NULL THEN 1 ELSE 0 END,
			m.created_at DESC,
			c.created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("querying conversation summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*ConversationSummary
	for rows.Next() {
		var (
			conv            Conversation
			other           User
			lastMessageID   sql.NullString
			convCreatedStr  string
			otherCreatedStr string

			msgID, msgConvID, msgSender, msgReceiver, msgContent sql.NullString
			msgNanos                                             sql.NullInt64
		)

		err := rows.Scan(
			&conv.ID, &conv.UserIDLow, &conv.UserIDHigh, &lastMessageID, &convCreatedStr,
			&other.ID, &other.Username, &other.Email, &other.PasswordHash, &otherCreatedStr,
			&msgID, &msgConvID, &msgSender, &msgReceiver, &msgContent, &msgNanos,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation summary: %w", err)
		}

		if lastMessageID.Valid {
			conv.LastMessageID = &lastMessageID.String
		}
		if conv.CreatedAt, err = time.Parse(time.RFC3339, convCreatedStr); err != nil {
			return nil, fmt.Errorf("parsing conversation created_at: %w", err)
		}
		if other.CreatedAt, err = time.Parse(time.RFC3339, otherCreatedStr); err != nil {
			return nil, fmt.Errorf("parsing user created_at: %w", err)
		}

		summary := &ConversationSummary{Conversation: &conv, Other: &other}
		if msgID.Valid {
			summary.LastMessage = &DirectMessage{
				ID:             msgID.String,
				ConversationID: msgConvID.String,
				SenderID:       msgSender.String,
				ReceiverID:     msgReceiver.String,
				Content:        msgContent.String,
				CreatedAt:      time.Unix(0, msgNanos.Int64).UTC(),
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}
