package kvcache

import (
	"context"
	"testing"

	"github.com/minical/minical/internal/test_utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepositoryTest(t *testing.T) (*RepositoryImpl, context.Context, int64) {
	db := test_utils.SetupTestDB(t)
	return NewRepository(db), context.Background(), int64(1)
}

func TestRepositoryImpl_PutOverwrites(t *testing.T) {
	repository, ctx, userId := setupRepositoryTest(t)

	require.NoError(t, repository.Put(ctx, userId, "last_sync", "2024-01-05T10:00:00Z"))
	require.NoError(t, repository.Put(ctx, userId, "last_sync", "2024-01-06T10:00:00Z"))

	value, found, err := repository.Get(ctx, userId, "last_sync")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "2024-01-06T10:00:00Z", value)
}

func TestRepositoryImpl_GetMissingKey(t *testing.T) {
	repository, ctx, userId := setupRepositoryTest(t)

	_, found, err := repository.Get(ctx, userId, "absent")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRepositoryImpl_DeleteAndClear(t *testing.T) {
	repository, ctx, userId := setupRepositoryTest(t)
	otherUserId := int64(2)

	require.NoError(t, repository.Put(ctx, userId, "a", "1"))
	require.NoError(t, repository.Put(ctx, userId, "b", "2"))
	require.NoError(t, repository.Put(ctx, otherUserId, "a", "3"))

	require.NoError(t, repository.Delete(ctx, userId, "a"))
	_, found, err := repository.Get(ctx, userId, "a")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repository.Clear(ctx, userId))
	_, found, err = repository.Get(ctx, userId, "b")
	require.NoError(t, err)
	assert.False(t, found)

	// Other user's entries survive
	value, found, err := repository.Get(ctx, otherUserId, "a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "3", value)
}
