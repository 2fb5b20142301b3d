package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"usersvc/internal/auth"
	"usersvc/internal/db"
	"usersvc/internal/errors"
	"usersvc/internal/model"
	"usersvc/internal/payment"
	"usersvc/internal/repository"
	"usersvc/internal/storage"
)

const (
	avatarFolder = "avatars"
	// MaxAvatarSize is the largest accepted avatar upload.
	MaxAvatarSize = 5 << 20
	// AvatarURLTTL is the lifetime of presigned avatar links.
	AvatarURLTTL = time.Hour
)

var avatarTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// CustomerCreator provisions payment customers.
type CustomerCreator interface {
	CreateCustomer(ctx context.Context, in payment.CreateCustomerInput) (*model.Customer, error)
}

// AvatarFile is an uploaded avatar image.
type AvatarFile struct {
	Body        []byte
	Filename    string
	ContentType string
}

// UserService exposes user account operations.
type UserService interface {
	Create(ctx context.Context, req model.CreateUserRequest) (*model.User, error)
	FindAll(ctx context.Context) ([]model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByClerkID(ctx context.Context, clerkID string) (*model.User, error)
	Update(ctx context.Context, id string, req model.UpdateUserRequest) (*model.User, error)
	Remove(ctx context.Context, id string) error
	UpdateLastLogin(ctx context.Context, user *auth.ClerkUser) (*model.User, error)
	DeactivateUser(ctx context.Context, clerkID string) (*model.User, error)
	ActivateUser(ctx context.Context, clerkID string) (*model.User, error)
	GetUserProfile(ctx context.Context, user *auth.ClerkUser) (*model.User, error)
	UpdateUserProfile(ctx context.Context, user *auth.ClerkUser, req model.ProfileUpdateRequest) (*model.User, error)
	UploadAvatar(ctx context.Context, user *auth.ClerkUser, file AvatarFile) (*model.User, error)
	AvatarURL(ctx context.Context, user *auth.ClerkUser) (string, error)
}

type userService struct {
	repo      repository.UserRepository
	customers CustomerCreator
	files     storage.Storage
	log       *zap.Logger
	now       func() time.Time
}

// NewUserService builds a UserService. files may be nil when avatar storage is unavailable.
func NewUserService(repo repository.UserRepository, customers CustomerCreator, files storage.Storage, log *zap.Logger) UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &userService{
		repo:      repo,
		customers: customers,
		files:     files,
		log:       log.Named("user_service"),
		now:       time.Now,
	}
}

func (s *userService) Create(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	existing, err := s.repo.FindByClerkID(ctx, req.ClerkID)
	if err != nil {
		return nil, fmt.Errorf("find user by clerk id: %w", err)
	}
	if existing != nil {
		return nil, errors.ErrUserAlreadyExists
	}

	roles := req.Roles
	if len(roles) == 0 {
		roles = []string{model.DefaultRole}
	}
	now := s.now().UTC()
	user := &model.User{
		ClerkID:          req.ClerkID,
		Email:            req.Email,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Roles:            roles,
		Metadata:         req.Metadata,
		StripeCustomerID: req.StripeCustomerID,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if user.StripeCustomerID == "" {
		user.StripeCustomerID = s.provisionCustomer(ctx, user)
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, errors.ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user created",
		zap.String("operation", "createUser"),
		zap.String("user_id", created.ID.Hex()),
		zap.String("clerk_id", created.ClerkID),
	)
	return created, nil
}

// provisionCustomer creates a payment customer. Failures are logged and the
// user is created without one.
func (s *userService) provisionCustomer(ctx context.Context, user *model.User) string {
	if s.customers == nil {
		return ""
	}
	customer, err := s.customers.CreateCustomer(ctx, payment.CreateCustomerInput{
		Email:    user.Email,
		Name:     user.DisplayName(),
		Metadata: map[string]string{"clerkId": user.ClerkID},
	})
	if err != nil {
		s.log.Warn("failed to create payment customer",
			zap.String("operation", "createUser"),
			zap.String("clerk_id", user.ClerkID),
			zap.String("email", user.Email),
			zap.Error(err),
		)
		return ""
	}
	return customer.ID
}

func (s *userService) FindAll(ctx context.Context) ([]model.User, error) {
	users, err := s.repo.Find(ctx, bson.M{}, nil)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *userService) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, errors.ErrUserNotFound
	}
	return user, nil
}

func (s *userService) FindByClerkID(ctx context.Context, clerkID string) (*model.User, error) {
	user, err := s.repo.FindByClerkID(ctx, clerkID)
	if err != nil {
		return nil, fmt.Errorf("find user by clerk id: %w", err)
	}
	if user == nil {
		return nil, errors.ErrUserNotFound
	}
	return user, nil
}

func (s *userService) Update(ctx context.Context, id string, req model.UpdateUserRequest) (*model.User, error) {
	set := req.SetFields()
	set["updatedAt"] = s.now().UTC()

	user, err := s.repo.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, errors.ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	if user == nil {
		return nil, errors.ErrUserNotFound
	}

	s.log.Info("user updated",
		zap.String("operation", "updateUser"),
		zap.String("user_id", id),
	)
	return user, nil
}

func (s *userService) Remove(ctx context.Context, id string) error {
	deleted, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if !deleted {
		return errors.ErrUserNotFound
	}

	s.log.Info("user deleted",
		zap.String("operation", "deleteUser"),
		zap.String("user_id", id),
	)
	return nil
}

func (s *userService) UpdateLastLogin(ctx context.Context, identity *auth.ClerkUser) (*model.User, error) {
	user, err := s.repo.UpdateLastLogin(ctx, identity.ID)
	if err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	if user == nil {
		return nil, errors.ErrUserNotFound
	}
	return user, nil
}

func (s *userService) DeactivateUser(ctx context.Context, clerkID string) (*model.User, error) {
	user, err := s.repo.DeactivateUser(ctx, clerkID)
	if err != nil {
		return nil, fmt.Errorf("deactivate user: %w", err)
	}
	if user == nil {
		return nil, errors.ErrUserNotFound
	}

	s.log.Info("user deactivated",
		zap.String("operation", "deactivateUser"),
		zap.String("clerk_id", clerkID),
	)
	return user, nil
}

func (s *userService) ActivateUser(ctx context.Context, clerkID string) (*model.User, error) {
	user, err := s.repo.ActivateUser(ctx, clerkID)
	if err != nil {
		return nil, fmt.Errorf("activate user: %w", err)
	}
	if user == nil {
		return nil, errors.ErrUserNotFound
	}

	s.log.Info("user activated",
		zap.String("operation", "activateUser"),
		zap.String("clerk_id", clerkID),
	)
	return user, nil
}

func (s *userService) GetUserProfile(ctx context.Context, identity *auth.ClerkUser) (*model.User, error) {
	return s.FindByClerkID(ctx, identity.ID)
}

func (s *userService) UpdateUserProfile(ctx context.Context, identity *auth.ClerkUser, req model.ProfileUpdateRequest) (*model.User, error) {
	user, err := s.FindByClerkID(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	return s.Update(ctx, user.ID.Hex(), req.UserUpdate())
}

// UploadAvatar stores a new avatar for the caller and points avatarUrl at it.
// The previous object is removed best-effort.
func (s *userService) UploadAvatar(ctx context.Context, identity *auth.ClerkUser, file AvatarFile) (*model.User, error) {
	if err := validateAvatar(file); err != nil {
		return nil, err
	}
	if s.files == nil {
		return nil, fmt.Errorf("avatar storage not configured")
	}

	user, err := s.FindByClerkID(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	previous := user.AvatarURL

	obj, err := s.files.Upload(ctx, storage.UploadInput{
		Body:        file.Body,
		Filename:    file.Filename,
		ContentType: file.ContentType,
		Folder:      avatarFolder,
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateByID(ctx, user.ID.Hex(), bson.M{"$set": bson.M{
		"avatarUrl": obj.URL,
		"updatedAt": s.now().UTC(),
	}})
	if err == nil && updated == nil {
		err = errors.ErrUserNotFound
	}
	if err != nil {
		s.removeObject(ctx, obj.Key)
		return nil, fmt.Errorf("set avatar: %w", err)
	}

	if previous != "" {
		if key, ok := s.files.KeyFromURL(previous); ok {
			s.removeObject(ctx, key)
		}
	}

	s.log.Info("avatar updated",
		zap.String("operation", "uploadAvatar"),
		zap.String("user_id", updated.ID.Hex()),
		zap.String("clerk_id", updated.ClerkID),
		zap.String("key", obj.Key),
	)
	return updated, nil
}

// AvatarURL returns a presigned link to the caller's avatar. Avatars that live
// outside the bucket are returned as stored.
func (s *userService) AvatarURL(ctx context.Context, identity *auth.ClerkUser) (string, error) {
	user, err := s.FindByClerkID(ctx, identity.ID)
	if err != nil {
		return "", err
	}
	if user.AvatarURL == "" {
		return "", errors.ErrAvatarNotFound
	}
	if s.files == nil {
		return user.AvatarURL, nil
	}
	key, ok := s.files.KeyFromURL(user.AvatarURL)
	if !ok {
		return user.AvatarURL, nil
	}
	return s.files.SignedURL(ctx, key, AvatarURLTTL)
}

func (s *userService) removeObject(ctx context.Context, key string) {
	if err := s.files.Delete(ctx, key); err != nil {
		s.log.Warn("failed to remove avatar object",
			zap.String("operation", "uploadAvatar"),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

func validateAvatar(file AvatarFile) error {
	if len(file.Body) == 0 {
		return fmt.Errorf("%w: empty file", errors.ErrInvalidFile)
	}
	if len(file.Body) > MaxAvatarSize {
		return fmt.Errorf("%w: file exceeds %d bytes", errors.ErrInvalidFile, MaxAvatarSize)
	}
	if !avatarTypes[strings.ToLower(file.ContentType)] {
		return fmt.Errorf("%w: unsupported content type %q", errors.ErrInvalidFile, file.ContentType)
	}
	return nil
}
