package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestUserRepository_FindByClerkID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch,
			userDoc(primitive.NewObjectID(), "user_1", "a@example.com", true)))

		got, err := repo.FindByClerkID(context.Background(), "user_1")
		require.NoError(mt, err)
		require.NotNil(mt, got)
		assert.Equal(mt, "a@example.com", got.Email)
	})

	mt.Run("absent", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch))

		got, err := repo.FindByEmail(context.Background(), "nobody@example.com")
		assert.NoError(mt, err)
		assert.Nil(mt, got)
	})
}

func TestUserRepository_FindByRole(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("matches array membership", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testNS, mtest.FirstBatch,
			userDoc(primitive.NewObjectID(), "user_1", "a@example.com", true)))

		got, err := repo.FindByRole(context.Background(), "user")
		require.NoError(mt, err)
		assert.Len(mt, got, 1)

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		filter := started.Command.Lookup("filter").Document()
		assert.Equal(mt, "user", filter.Lookup("roles").StringValue())
	})
}

func TestUserRepository_ActivationFlags(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("deactivate sets isActive false", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB).(*userRepository)
		fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		repo.now = func() time.Time { return fixed }

		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "value", Value: userDoc(primitive.NewObjectID(), "user_1", "a@example.com", false)},
		))

		got, err := repo.DeactivateUser(context.Background(), "user_1")
		require.NoError(mt, err)
		require.NotNil(mt, got)
		assert.False(mt, got.IsActive)

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		set := started.Command.Lookup("update", "$set").Document()
		assert.False(mt, set.Lookup("isActive").Boolean())
	})

	mt.Run("activate on missing user is absent", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		got, err := repo.ActivateUser(context.Background(), "ghost")
		assert.NoError(mt, err)
		assert.Nil(mt, got)
	})

	mt.Run("last login stamps the clock", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB).(*userRepository)
		fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		repo.now = func() time.Time { return fixed }

		doc := append(userDoc(primitive.NewObjectID(), "user_1", "a@example.com", true),
			bson.E{Key: "lastLoginAt", Value: fixed})
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: doc}))

		got, err := repo.UpdateLastLogin(context.Background(), "user_1")
		require.NoError(mt, err)
		require.NotNil(mt, got.LastLoginAt)
		assert.True(mt, fixed.Equal(*got.LastLoginAt))
	})
}
