package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap"
)

func TestUserIndexes(t *testing.T) {
	idx := UserIndexes()
	assert.Len(t, idx, 3)

	unique := map[string]bool{}
	for _, m := range idx {
		keys := m.Keys.(bson.D)
		u := m.Options.Unique != nil && *m.Options.Unique
		unique[keys[0].Key] = u
	}
	assert.Equal(t, map[string]bool{"clerkId": true, "email": true, "roles": false}, unique)
}

func TestIsDuplicateKeyErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"write exception", mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}, true},
		{"command error", mongo.CommandError{Code: 11000}, true},
		{"message only", errors.New("E11000 duplicate key error collection: users"), true},
		{"other", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDuplicateKeyErr(tt.err))
		})
	}
}

func TestIsOptionsConflictErr(t *testing.T) {
	assert.True(t, isOptionsConflictErr(mongo.CommandError{Code: 85}))
	assert.True(t, isOptionsConflictErr(errors.New("IndexOptionsConflict: exists")))
	assert.False(t, isOptionsConflictErr(errors.New("timeout")))
}

func TestEnsureIndexes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	conflict := mtest.CreateCommandErrorResponse(mtest.CommandError{
		Code: 85, Name: "IndexOptionsConflict", Message: "index already exists with a different name",
	})

	mt.Run("conflict on one index still creates the rest", func(mt *mtest.T) {
		mt.AddMockResponses(conflict, mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse())

		require.NoError(mt, EnsureIndexes(context.Background(), mt.DB, zap.NewNop()))
		assert.Len(mt, mt.GetAllStartedEvents(), 3)
	})

	mt.Run("other failures stop startup", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 13, Name: "Unauthorized", Message: "not authorized"}),
		)

		err := EnsureIndexes(context.Background(), mt.DB, zap.NewNop())
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "uniq_email")
	})
}
