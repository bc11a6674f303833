package directory

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightspire/dungeonpulse/internal/apperrors"
)

func newTestDirectory(t *testing.T) (*Directory, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return New(client), mr
}

func TestDirectory_Create(t *testing.T) {
	t.Parallel()

	dir, _ := newTestDirectory(t)
	ctx := context.Background()

	record, err := dir.Create(ctx, "alice", "secret")
	require.NoError(t, err)

	assert.Equal(t, int64(1), record.ID)
	assert.Equal(t, "alice", record.Username)
	assert.NotEmpty(t, record.PlayerID)
	assert.NotEqual(t, "secret", record.PasswordHash)
	assert.Equal(t, -1, record.RoomID)
	assert.Equal(t, 100, record.CurrentHP)
	assert.Equal(t, 100, record.MaxHP)

	// IDs are sequential
	second, err := dir.Create(ctx, "bob", "secret")
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.ID)
	assert.NotEqual(t, record.PlayerID, second.PlayerID)
}

func TestDirectory_Create_DuplicateUsername(t *testing.T) {
	t.Parallel()

	dir, _ := newTestDirectory(t)
	ctx := context.Background()

	_, err := dir.Create(ctx, "alice", "secret")
	require.NoError(t, err)

	_, err = dir.Create(ctx, "alice", "another")
	assert.ErrorIs(t, err, apperrors.ErrDuplicateUsername)
}

func TestDirectory_Create_WeakPassword(t *testing.T) {
	t.Parallel()

	dir, _ := newTestDirectory(t)
	_, err := dir.Create(context.Background(), "alice", "abc")
	assert.ErrorIs(t, err, apperrors.ErrWeakPassword)
}

func TestDirectory_Authenticate(t *testing.T) {
	t.Parallel()

	dir, _ := newTestDirectory(t)
	ctx := context.Background()

	created, err := dir.Create(ctx, "alice", "secret")
	require.NoError(t, err)

	// Correct credentials
	record, err := dir.Authenticate(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, created.PlayerID, record.PlayerID)

	// Wrong password
	_, err = dir.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	// Unknown user gets the same error
	_, err = dir.Authenticate(ctx, "nobody", "secret")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestDirectory_Lookup(t *testing.T) {
	t.Parallel()

	dir, _ := newTestDirectory(t)
	ctx := context.Background()

	created, err := dir.Create(ctx, "alice", "secret")
	require.NoError(t, err)

	byName, err := dir.Lookup(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, created.PlayerID, byName.PlayerID)

	byPlayer, err := dir.LookupByPlayerID(ctx, created.PlayerID)
	require.NoError(t, err)
	require.NotNil(t, byPlayer)
	assert.Equal(t, "alice", byPlayer.Username)

	// Missing records come back nil, not as errors
	missing, err := dir.Lookup(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	missing, err = dir.LookupByPlayerID(ctx, "no-such-player")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDirectory_UpdatePlayerState(t *testing.T) {
	t.Parallel()

	dir, _ := newTestDirectory(t)
	ctx := context.Background()

	created, err := dir.Create(ctx, "alice", "secret")
	require.NoError(t, err)

	err = dir.UpdatePlayerState(ctx, created.PlayerID, 7, 320.5, 1280.0, 80, 100)
	require.NoError(t, err)

	record, err := dir.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 7, record.RoomID)
	assert.Equal(t, 320.5, record.X)
	assert.Equal(t, 1280.0, record.Y)
	assert.Equal(t, 80, record.CurrentHP)

	// Saving for an unknown player is a silent no-op
	err = dir.UpdatePlayerState(ctx, "no-such-player", 1, 0, 0, 50, 100)
	assert.NoError(t, err)
}

func TestDirectory_Tokens(t *testing.T) {
	t.Parallel()

	dir, mr := newTestDirectory(t)
	ctx := context.Background()

	created, err := dir.Create(ctx, "alice", "secret")
	require.NoError(t, err)

	token, err := dir.IssueToken(ctx, created)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	record, err := dir.ResolveToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, created.PlayerID, record.PlayerID)

	// Unknown token
	_, err = dir.ResolveToken(ctx, "bogus")
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)

	// Expired token
	mr.FastForward(25 * time.Hour)
	_, err = dir.ResolveToken(ctx, token)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestDirectory_RevokeToken(t *testing.T) {
	t.Parallel()

	dir, _ := newTestDirectory(t)
	ctx := context.Background()

	created, err := dir.Create(ctx, "alice", "secret")
	require.NoError(t, err)

	token, err := dir.IssueToken(ctx, created)
	require.NoError(t, err)

	require.NoError(t, dir.RevokeToken(ctx, token))
	_, err = dir.ResolveToken(ctx, token)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}
