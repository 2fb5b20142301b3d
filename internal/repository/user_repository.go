package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"usersvc/internal/model"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Repository[model.User]
	FindByClerkID(ctx context.Context, clerkID string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByRole(ctx context.Context, role string) ([]model.User, error)
	UpdateLastLogin(ctx context.Context, clerkID string) (*model.User, error)
	DeactivateUser(ctx context.Context, clerkID string) (*model.User, error)
	ActivateUser(ctx context.Context, clerkID string) (*model.User, error)
}

type userRepository struct {
	*BaseRepository[model.User]
	now func() time.Time
}

// NewUserRepository builds a Mongo-backed user repository.
func NewUserRepository(db *mongo.Database) UserRepository {
	return &userRepository{
		BaseRepository: NewBaseRepository[model.User](db.Collection(model.UsersCollection)),
		now:            time.Now,
	}
}

func (r *userRepository) FindByClerkID(ctx context.Context, clerkID string) (*model.User, error) {
	return r.FindOne(ctx, bson.M{"clerkId": clerkID})
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.FindOne(ctx, bson.M{"email": email})
}

// FindByRole matches users whose roles array contains role.
func (r *userRepository) FindByRole(ctx context.Context, role string) ([]model.User, error) {
	return r.Find(ctx, bson.M{"roles": role}, nil)
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, clerkID string) (*model.User, error) {
	now := r.now().UTC()
	return r.setByClerkID(ctx, clerkID, bson.M{"lastLoginAt": now, "updatedAt": now})
}

func (r *userRepository) DeactivateUser(ctx context.Context, clerkID string) (*model.User, error) {
	return r.setByClerkID(ctx, clerkID, bson.M{"isActive": false, "updatedAt": r.now().UTC()})
}

func (r *userRepository) ActivateUser(ctx context.Context, clerkID string) (*model.User, error) {
	return r.setByClerkID(ctx, clerkID, bson.M{"isActive": true, "updatedAt": r.now().UTC()})
}

func (r *userRepository) setByClerkID(ctx context.Context, clerkID string, set bson.M) (*model.User, error) {
	return r.UpdateOne(ctx, bson.M{"clerkId": clerkID}, bson.M{"$set": set})
}
