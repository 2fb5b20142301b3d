package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"usersvc/internal/auth"
	apperrors "usersvc/internal/errors"
	"usersvc/internal/model"
	"usersvc/internal/payment"
	"usersvc/internal/repository"
	"usersvc/internal/storage"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newUserService(repo *MockUserRepository, customers CustomerCreator, files storage.Storage) *userService {
	svc := NewUserService(repo, customers, files, zap.NewNop()).(*userService)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func testUser() *model.User {
	return &model.User{
		ID:       primitive.NewObjectID(),
		ClerkID:  "user_1",
		Email:    "ada@example.com",
		Roles:    []string{"user"},
		IsActive: true,
	}
}

func TestUserService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("provisions a payment customer", func(t *testing.T) {
		repo := new(MockUserRepository)
		customers := new(MockPaymentProvider)
		svc := newUserService(repo, customers, nil)

		repo.On("FindByClerkID", ctx, "user_1").Return(nil, nil)
		customers.On("CreateCustomer", ctx, payment.CreateCustomerInput{
			Email:    "ada@example.com",
			Name:     "Ada Lovelace",
			Metadata: map[string]string{"clerkId": "user_1"},
		}).Return(&model.Customer{ID: "cus_1"}, nil)
		repo.On("Create", ctx, mock.MatchedBy(func(u *model.User) bool {
			return u.StripeCustomerID == "cus_1" &&
				u.IsActive &&
				assert.ObjectsAreEqual([]string{"user"}, u.Roles) &&
				u.CreatedAt.Equal(fixedNow)
		})).Return(&model.User{ClerkID: "user_1", StripeCustomerID: "cus_1"}, nil)

		got, err := svc.Create(ctx, model.CreateUserRequest{
			ClerkID: "user_1", Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace",
		})
		require.NoError(t, err)
		assert.Equal(t, "cus_1", got.StripeCustomerID)
		repo.AssertExpectations(t)
		customers.AssertExpectations(t)
	})

	t.Run("continues when the payment provider fails", func(t *testing.T) {
		repo := new(MockUserRepository)
		customers := new(MockPaymentProvider)
		core, logs := observer.New(zap.WarnLevel)
		svc := NewUserService(repo, customers, nil, zap.New(core))

		repo.On("FindByClerkID", ctx, "u1").Return(nil, nil)
		customers.On("CreateCustomer", ctx, mock.Anything).
			Return(nil, apperrors.Upstream("stripe", "createCustomer", errors.New("down")))
		repo.On("Create", ctx, mock.MatchedBy(func(u *model.User) bool {
			return u.StripeCustomerID == ""
		})).Return(&model.User{ClerkID: "u1", Email: "a@example.com"}, nil)

		got, err := svc.Create(ctx, model.CreateUserRequest{ClerkID: "u1", Email: "a@example.com"})
		require.NoError(t, err)
		assert.Empty(t, got.StripeCustomerID)

		warnings := logs.FilterLevelExact(zap.WarnLevel).All()
		require.Len(t, warnings, 1)
		fields := warnings[0].ContextMap()
		assert.Equal(t, "createUser", fields["operation"])
		assert.Equal(t, "u1", fields["clerk_id"])
	})

	t.Run("keeps a supplied customer id", func(t *testing.T) {
		repo := new(MockUserRepository)
		customers := new(MockPaymentProvider)
		svc := newUserService(repo, customers, nil)

		repo.On("FindByClerkID", ctx, "u1").Return(nil, nil)
		repo.On("Create", ctx, mock.MatchedBy(func(u *model.User) bool {
			return u.StripeCustomerID == "cus_given" && assert.ObjectsAreEqual([]string{"admin"}, u.Roles)
		})).Return(&model.User{StripeCustomerID: "cus_given"}, nil)

		_, err := svc.Create(ctx, model.CreateUserRequest{
			ClerkID: "u1", Email: "a@example.com", StripeCustomerID: "cus_given", Roles: []string{"admin"},
		})
		require.NoError(t, err)
		customers.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
	})

	t.Run("conflict when clerk id exists", func(t *testing.T) {
		repo := new(MockUserRepository)
		customers := new(MockPaymentProvider)
		svc := newUserService(repo, customers, nil)

		repo.On("FindByClerkID", ctx, "user_1").Return(testUser(), nil)

		got, err := svc.Create(ctx, model.CreateUserRequest{ClerkID: "user_1", Email: "ada@example.com"})
		assert.Nil(t, got)
		assert.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		customers.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
	})

	t.Run("duplicate key on insert is a conflict", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc := newUserService(repo, nil, nil)

		repo.On("FindByClerkID", ctx, "u1").Return(nil, nil)
		repo.On("Create", ctx, mock.Anything).Return(nil, mongo.WriteException{
			WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}},
		})

		_, err := svc.Create(ctx, model.CreateUserRequest{ClerkID: "u1", Email: "dup@example.com"})
		assert.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
	})
}

func TestUserService_FindAll(t *testing.T) {
	ctx := context.Background()
	repo := new(MockUserRepository)
	svc := newUserService(repo, nil, nil)

	repo.On("Find", ctx, bson.M{}, (*repository.FindOptions)(nil)).Return([]model.User{*testUser()}, nil)

	got, err := svc.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestUserService_Lookups(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func(repo *MockUserRepository)
		call    func(svc UserService) (*model.User, error)
		wantErr error
	}{
		{
			name:  "find by id",
			setup: func(repo *MockUserRepository) { repo.On("FindByID", ctx, "abc").Return(testUser(), nil) },
			call:  func(svc UserService) (*model.User, error) { return svc.FindByID(ctx, "abc") },
		},
		{
			name:    "find by id missing",
			setup:   func(repo *MockUserRepository) { repo.On("FindByID", ctx, "abc").Return(nil, nil) },
			call:    func(svc UserService) (*model.User, error) { return svc.FindByID(ctx, "abc") },
			wantErr: apperrors.ErrUserNotFound,
		},
		{
			name:    "find by clerk id missing",
			setup:   func(repo *MockUserRepository) { repo.On("FindByClerkID", ctx, "ghost").Return(nil, nil) },
			call:    func(svc UserService) (*model.User, error) { return svc.FindByClerkID(ctx, "ghost") },
			wantErr: apperrors.ErrUserNotFound,
		},
		{
			name:  "profile",
			setup: func(repo *MockUserRepository) { repo.On("FindByClerkID", ctx, "user_1").Return(testUser(), nil) },
			call: func(svc UserService) (*model.User, error) {
				return svc.GetUserProfile(ctx, &auth.ClerkUser{ID: "user_1"})
			},
		},
		{
			name:  "last login",
			setup: func(repo *MockUserRepository) { repo.On("UpdateLastLogin", ctx, "user_1").Return(testUser(), nil) },
			call: func(svc UserService) (*model.User, error) {
				return svc.UpdateLastLogin(ctx, &auth.ClerkUser{ID: "user_1"})
			},
		},
		{
			name:  "last login missing",
			setup: func(repo *MockUserRepository) { repo.On("UpdateLastLogin", ctx, "ghost").Return(nil, nil) },
			call: func(svc UserService) (*model.User, error) {
				return svc.UpdateLastLogin(ctx, &auth.ClerkUser{ID: "ghost"})
			},
			wantErr: apperrors.ErrUserNotFound,
		},
		{
			name:  "deactivate",
			setup: func(repo *MockUserRepository) { repo.On("DeactivateUser", ctx, "user_1").Return(testUser(), nil) },
			call:  func(svc UserService) (*model.User, error) { return svc.DeactivateUser(ctx, "user_1") },
		},
		{
			name:    "activate missing",
			setup:   func(repo *MockUserRepository) { repo.On("ActivateUser", ctx, "ghost").Return(nil, nil) },
			call:    func(svc UserService) (*model.User, error) { return svc.ActivateUser(ctx, "ghost") },
			wantErr: apperrors.ErrUserNotFound,
		},
		{
			name: "store failure propagates",
			setup: func(repo *MockUserRepository) {
				repo.On("FindByID", ctx, "abc").Return(nil, errors.New("connection reset"))
			},
			call: func(svc UserService) (*model.User, error) { return svc.FindByID(ctx, "abc") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockUserRepository)
			tt.setup(repo)
			svc := newUserService(repo, nil, nil)

			got, err := tt.call(svc)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			case tt.name == "store failure propagates":
				assert.Error(t, err)
				assert.NotErrorIs(t, err, apperrors.ErrUserNotFound)
			default:
				require.NoError(t, err)
				assert.NotNil(t, got)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestUserService_DeactivateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := new(MockUserRepository)
	svc := newUserService(repo, nil, nil)

	inactive := testUser()
	inactive.IsActive = false
	repo.On("DeactivateUser", ctx, "user_1").Return(inactive, nil).Twice()

	for i := 0; i < 2; i++ {
		got, err := svc.DeactivateUser(ctx, "user_1")
		require.NoError(t, err)
		assert.False(t, got.IsActive)
	}
	repo.AssertExpectations(t)
}

func TestUserService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("sets only provided fields", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc := newUserService(repo, nil, nil)
		name := "Grace"

		repo.On("UpdateByID", ctx, "abc", bson.M{"$set": bson.M{
			"firstName": "Grace",
			"updatedAt": fixedNow,
		}}).Return(testUser(), nil)

		_, err := svc.Update(ctx, "abc", model.UpdateUserRequest{FirstName: &name})
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("missing user", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc := newUserService(repo, nil, nil)
		repo.On("UpdateByID", ctx, "abc", mock.Anything).Return(nil, nil)

		_, err := svc.Update(ctx, "abc", model.UpdateUserRequest{})
		assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	})
}

func TestUserService_UpdateUserProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("updates the caller's record", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc := newUserService(repo, nil, nil)
		user := testUser()
		last := "Hopper"

		repo.On("FindByClerkID", ctx, "user_1").Return(user, nil)
		repo.On("UpdateByID", ctx, user.ID.Hex(), mock.Anything).Return(user, nil)

		_, err := svc.UpdateUserProfile(ctx, &auth.ClerkUser{ID: "user_1"}, model.ProfileUpdateRequest{LastName: &last})
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("admin-only fields never reach the write", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc := newUserService(repo, nil, nil)
		user := testUser()
		user.IsActive = false

		var req model.ProfileUpdateRequest
		require.NoError(t, json.Unmarshal([]byte(`{
			"firstName": "Grace",
			"isActive": true,
			"stripeCustomerId": "cus_other",
			"clerkId": "user_2",
			"roles": ["admin"],
			"lastLoginAt": "2024-01-01T00:00:00Z",
			"avatarUrl": "https://elsewhere/x.png"
		}`), &req))

		var set bson.M
		repo.On("FindByClerkID", ctx, "user_1").Return(user, nil)
		repo.On("UpdateByID", ctx, user.ID.Hex(), mock.MatchedBy(func(update bson.M) bool {
			set, _ = update["$set"].(bson.M)
			return set != nil
		})).Return(user, nil)

		_, err := svc.UpdateUserProfile(ctx, &auth.ClerkUser{ID: "user_1"}, req)
		require.NoError(t, err)
		assert.Equal(t, "Grace", set["firstName"])
		for _, field := range []string{"isActive", "stripeCustomerId", "clerkId", "roles", "lastLoginAt", "avatarUrl"} {
			assert.NotContains(t, set, field)
		}
	})

	t.Run("no record means no write", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc := newUserService(repo, nil, nil)
		repo.On("FindByClerkID", ctx, "ghost").Return(nil, nil)

		_, err := svc.UpdateUserProfile(ctx, &auth.ClerkUser{ID: "ghost"}, model.ProfileUpdateRequest{})
		assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		repo.AssertNotCalled(t, "UpdateByID", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestUserService_Remove(t *testing.T) {
	ctx := context.Background()
	repo := new(MockUserRepository)
	svc := newUserService(repo, nil, nil)

	repo.On("DeleteByID", ctx, "abc").Return(true, nil).Once()
	repo.On("DeleteByID", ctx, "abc").Return(false, nil).Once()

	assert.NoError(t, svc.Remove(ctx, "abc"))
	assert.ErrorIs(t, svc.Remove(ctx, "abc"), apperrors.ErrUserNotFound)
}

func TestUserService_UploadAvatar(t *testing.T) {
	ctx := context.Background()
	identity := &auth.ClerkUser{ID: "user_1"}
	file := AvatarFile{Body: []byte("png"), Filename: "me.png", ContentType: "image/png"}

	t.Run("replaces the previous avatar", func(t *testing.T) {
		repo := new(MockUserRepository)
		files := new(MockStorage)
		svc := newUserService(repo, nil, files)

		user := testUser()
		user.AvatarURL = "https://bucket/avatars/old.png"
		updated := *user
		updated.AvatarURL = "https://bucket/avatars/new.png"

		repo.On("FindByClerkID", ctx, "user_1").Return(user, nil)
		files.On("Upload", ctx, storage.UploadInput{
			Body: file.Body, Filename: "me.png", ContentType: "image/png", Folder: "avatars",
		}).Return(&storage.Object{Key: "avatars/new.png", URL: updated.AvatarURL}, nil)
		repo.On("UpdateByID", ctx, user.ID.Hex(), bson.M{"$set": bson.M{
			"avatarUrl": updated.AvatarURL,
			"updatedAt": fixedNow,
		}}).Return(&updated, nil)
		files.On("KeyFromURL", "https://bucket/avatars/old.png").Return("avatars/old.png", true)
		files.On("Delete", ctx, "avatars/old.png").Return(errors.New("gone already"))

		got, err := svc.UploadAvatar(ctx, identity, file)
		require.NoError(t, err)
		assert.Equal(t, updated.AvatarURL, got.AvatarURL)
		repo.AssertExpectations(t)
		files.AssertExpectations(t)
	})

	t.Run("rejects unsupported content", func(t *testing.T) {
		svc := newUserService(new(MockUserRepository), nil, new(MockStorage))

		_, err := svc.UploadAvatar(ctx, identity, AvatarFile{Body: []byte("x"), ContentType: "application/pdf"})
		assert.ErrorIs(t, err, apperrors.ErrInvalidFile)

		_, err = svc.UploadAvatar(ctx, identity, AvatarFile{ContentType: "image/png"})
		assert.ErrorIs(t, err, apperrors.ErrInvalidFile)
	})

	t.Run("storage failure propagates", func(t *testing.T) {
		repo := new(MockUserRepository)
		files := new(MockStorage)
		svc := newUserService(repo, nil, files)

		repo.On("FindByClerkID", ctx, "user_1").Return(testUser(), nil)
		files.On("Upload", ctx, mock.Anything).Return(nil, apperrors.Upstream("s3", "uploadFile", errors.New("denied")))

		_, err := svc.UploadAvatar(ctx, identity, file)
		var upstream *apperrors.UpstreamError
		assert.ErrorAs(t, err, &upstream)
		repo.AssertNotCalled(t, "UpdateByID", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestUserService_AvatarURL(t *testing.T) {
	ctx := context.Background()
	identity := &auth.ClerkUser{ID: "user_1"}

	t.Run("presigns stored avatars", func(t *testing.T) {
		repo := new(MockUserRepository)
		files := new(MockStorage)
		svc := newUserService(repo, nil, files)

		user := testUser()
		user.AvatarURL = "https://bucket/avatars/a.png"
		repo.On("FindByClerkID", ctx, "user_1").Return(user, nil)
		files.On("KeyFromURL", user.AvatarURL).Return("avatars/a.png", true)
		files.On("SignedURL", ctx, "avatars/a.png", AvatarURLTTL).Return("https://signed", nil)

		got, err := svc.AvatarURL(ctx, identity)
		require.NoError(t, err)
		assert.Equal(t, "https://signed", got)
	})

	t.Run("external avatar returned as stored", func(t *testing.T) {
		repo := new(MockUserRepository)
		files := new(MockStorage)
		svc := newUserService(repo, nil, files)

		user := testUser()
		user.AvatarURL = "https://gravatar.example.com/a.png"
		repo.On("FindByClerkID", ctx, "user_1").Return(user, nil)
		files.On("KeyFromURL", user.AvatarURL).Return("", false)

		got, err := svc.AvatarURL(ctx, identity)
		require.NoError(t, err)
		assert.Equal(t, user.AvatarURL, got)
	})

	t.Run("no avatar", func(t *testing.T) {
		repo := new(MockUserRepository)
		svc := newUserService(repo, nil, new(MockStorage))
		repo.On("FindByClerkID", ctx, "user_1").Return(testUser(), nil)

		_, err := svc.AvatarURL(ctx, identity)
		assert.ErrorIs(t, err, apperrors.ErrAvatarNotFound)
	})
}
