package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"usersvc/internal/model"
)

// UserIndexes are the indexes the users collection relies on.
func UserIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "clerkId", Value: 1}},
			Options: options.Index().SetName("uniq_clerkId").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("uniq_email").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "roles", Value: 1}},
			Options: options.Index().SetName("idx_roles"),
		},
	}
}

// EnsureIndexes creates the service's indexes one at a time. It is
// idempotent: an index that already exists with the same keys under another
// name is tolerated without skipping the remaining ones.
func EnsureIndexes(ctx context.Context, database *mongo.Database, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	coll := database.Collection(model.UsersCollection)
	names := make([]string, 0, len(UserIndexes()))
	for _, idx := range UserIndexes() {
		name, err := coll.Indexes().CreateOne(ctx, idx)
		if err != nil {
			if isOptionsConflictErr(err) {
				log.Warn("users index already present with different options",
					zap.String("index", *idx.Options.Name), zap.Error(err))
				continue
			}
			return fmt.Errorf("create index %s: %w", *idx.Options.Name, err)
		}
		names = append(names, name)
	}
	log.Info("indexes ensured", zap.String("collection", model.UsersCollection), zap.Strings("indexes", names))
	return nil
}

// IsDuplicateKeyErr reports whether err is a unique index violation (E11000).
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	return strings.Contains(err.Error(), "E11000")
}

// Mongo returns IndexOptionsConflict / IndexKeySpecsConflict when an index
// with the same keys already exists under a different name or options.
func isOptionsConflictErr(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 85 || ce.Code == 86) {
		return true
	}
	return strings.Contains(err.Error(), "IndexOptionsConflict") ||
		strings.Contains(err.Error(), "IndexKeySpecsConflict")
}
