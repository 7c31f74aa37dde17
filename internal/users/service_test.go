// ABOUTME: Tests for the user service and username filter
// ABOUTME: Covers registration, authentication and availability answers

package users

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/store"
)

func setupService(t *testing.T) (*Service, *store.SQLiteStore) {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc, err := New(context.Background(), st, nil)
	require.NoError(t, err)
	return svc, st
}

func TestService_RegisterAndLookup(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "alice@example.com", "hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", user.PasswordHash)

	byID, err := svc.ByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	byName, err := svc.ByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	byEmail, err := svc.ByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
}

func TestService_RegisterDuplicate(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "alice@example.com", "hunter22")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "other@example.com", "hunter22")
	assert.ErrorIs(t, err, store.ErrDuplicateUser)

	_, err = svc.Register(ctx, "alice2", "alice@example.com", "hunter22")
	assert.ErrorIs(t, err, store.ErrDuplicateUser)
}

func TestService_Authenticate(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "alice", "alice@example.com", "hunter22")
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "alice@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	_, err = svc.Authenticate(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)

	// Unknown account looks the same as a wrong password
	_, err = svc.Authenticate(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestService_UsernameAvailability(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	assert.True(t, svc.UsernameAvailable("alice"))

	_, err := svc.Register(ctx, "alice", "alice@example.com", "hunter22")
	require.NoError(t, err)

	assert.False(t, svc.UsernameAvailable("alice"))
	assert.True(t, svc.UsernameAvailable("definitely-unregistered"))
}

func TestService_FilterSeededFromStore(t *testing.T) {
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	first, err := New(context.Background(), st, nil)
	require.NoError(t, err)
	_, err = first.Register(context.Background(), "alice", "alice@example.com", "hunter22")
	require.NoError(t, err)

	// A fresh service over the same store knows the name is taken
	second, err := New(context.Background(), st, nil)
	require.NoError(t, err)
	assert.False(t, second.UsernameAvailable("alice"))
}

func TestUsernameFilter_NoFalseNegatives(t *testing.T) {
	var names []string
	for i := 0; i < 500; i++ {
		names = append(names, fmt.Sprintf("user-%d", i))
	}

	f := NewUsernameFilter(names)
	for _, name := range names {
		assert.True(t, f.MaybeTaken(name), "seeded name %q reported free", name)
	}
}
