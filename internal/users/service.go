// ABOUTME: User registration and lookup service
// ABOUTME: Hashes passwords, enforces unique usernames/emails, feeds the availability filter

package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/store"
)

// ErrBadCredentials is returned when an email/password pair does not match
var ErrBadCredentials = errors.New("invalid email or password")

// Store defines what the service needs from storage
type Store interface {
	CreateUser(ctx context.Context, user *store.User) error
	GetUserByID(ctx context.Context, id string) (*store.User, error)
	GetUserByUsername(ctx context.Context, username string) (*store.User, error)
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
	ListUsernames(ctx context.Context) ([]string, error)
}

// Service manages user accounts.
type Service struct {
	store  Store
	filter *UsernameFilter
	logger *slog.Logger
}

// New creates a user service, seeding the username availability filter
// from the store. Pass nil logger for default.
func New(ctx context.Context, st Store, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	usernames, err := st.ListUsernames(ctx)
	if err != nil {
		return nil, fmt.Errorf("seeding username filter: %w", err)
	}

	logger = logger.With("component", "users")
	logger.Info("username filter seeded", "count", len(usernames))

	return &Service{
		store:  st,
		filter: NewUsernameFilter(usernames),
		logger: logger,
	}, nil
}

// Register creates a new account with a hashed password.
// Returns store.ErrDuplicateUser when the username or email is taken.
func (s *Service) Register(ctx context.Context, username, email, password string) (*store.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &store.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.filter.Add(username)
	s.logger.Info("user registered", "user_id", user.ID, "username", username)
	return user, nil
}

// Authenticate checks an email/password pair and returns the account.
// A missing account and a wrong password are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*store.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}

	if !auth.ComparePassword(password, user.PasswordHash) {
		return nil, ErrBadCredentials
	}
	return user, nil
}

// ByID returns the user with the given id.
func (s *Service) ByID(ctx context.Context, id string) (*store.User, error) {
	return s.store.GetUserByID(ctx, id)
}

// ByUsername returns the user with the given username.
func (s *Service) ByUsername(ctx context.Context, username string) (*store.User, error) {
	return s.store.GetUserByUsername(ctx, username)
}

// ByEmail returns the user with the given email.
func (s *Service) ByEmail(ctx context.Context, email string) (*store.User, error) {
	return s.store.GetUserByEmail(ctx, email)
}

// UsernameAvailable reports whether a username is (probably) free.
// A false answer may be a filter false positive; the store's uniqueness
// constraint remains the source of truth at signup.
func (s *Service) UsernameAvailable(username string) bool {
	return !s.filter.MaybeTaken(username)
}
