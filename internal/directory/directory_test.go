package directory

import (
	"context"
	"testing"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMemoryDirectoryFollowGraph(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDirectory()
	require.NoError(t, d.CreateUser(ctx, "u1", "ana"))
	require.NoError(t, d.CreateUser(ctx, "u2", "ben"))
	require.NoError(t, d.CreateUser(ctx, "u1", "renamed"))

	ok, err := d.UserExists(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = d.UserExists(ctx, "ghost")
	assert.False(t, ok)

	require.NoError(t, d.Follow(ctx, "u1", "u2"))
	mutual, _ := d.IsMutualFollow(ctx, "u1", "u2")
	assert.False(t, mutual, "one-way follow is not mutual")

	require.NoError(t, d.Follow(ctx, "u2", "u1"))
	require.NoError(t, d.Follow(ctx, "u2", "u1"))
	mutual, _ = d.IsMutualFollow(ctx, "u2", "u1")
	assert.True(t, mutual)

	require.NoError(t, d.Unfollow(ctx, "u1", "u2"))
	mutual, _ = d.IsMutualFollow(ctx, "u1", "u2")
	assert.False(t, mutual)
}

func TestMemoryDirectoryFollowErrors(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDirectory()
	require.NoError(t, d.CreateUser(ctx, "u1", "ana"))

	assert.ErrorIs(t, d.Follow(ctx, "u1", "u1"), domain.ErrInvalidParticipants)
	assert.ErrorIs(t, d.Follow(ctx, "u1", "ghost"), domain.ErrUserNotFound)
	assert.ErrorIs(t, d.Follow(ctx, "ghost", "u1"), domain.ErrUserNotFound)
	assert.ErrorIs(t, d.Unfollow(ctx, "ghost", "u1"), domain.ErrUserNotFound)
}

func TestMongoDirectory(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	count := func(mt *mtest.T, n int) bson.D {
		return mtest.CreateCursorResponse(0, mt.DB.Name()+".users", mtest.FirstBatch, bson.D{{Key: "n", Value: n}})
	}

	mt.Run("mutual follow needs both documents", func(mt *mtest.T) {
		d := NewMongoDirectory(mt.DB, "")
		mt.AddMockResponses(count(mt, 2))
		ok, err := d.IsMutualFollow(context.Background(), "u1", "u2")
		require.NoError(mt, err)
		assert.True(mt, ok)

		mt.AddMockResponses(count(mt, 1))
		ok, err = d.IsMutualFollow(context.Background(), "u1", "u2")
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("user exists", func(mt *mtest.T) {
		d := NewMongoDirectory(mt.DB, "users")
		mt.AddMockResponses(count(mt, 1))
		ok, err := d.UserExists(context.Background(), "u1")
		require.NoError(mt, err)
		assert.True(mt, ok)
	})

	mt.Run("follow unknown follower", func(mt *mtest.T) {
		d := NewMongoDirectory(mt.DB, "users")
		mt.AddMockResponses(
			count(mt, 1),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
		)
		err := d.Follow(context.Background(), "ghost", "u1")
		assert.ErrorIs(mt, err, domain.ErrUserNotFound)
	})

	mt.Run("follow unknown followee", func(mt *mtest.T) {
		d := NewMongoDirectory(mt.DB, "users")
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+".users", mtest.FirstBatch))
		err := d.Follow(context.Background(), "u1", "ghost")
		assert.ErrorIs(mt, err, domain.ErrUserNotFound)
	})
}
