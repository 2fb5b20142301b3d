package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"usersvc/internal/model"
	"usersvc/internal/payment"
	"usersvc/internal/repository"
	"usersvc/internal/storage"
)

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

var _ repository.UserRepository = (*MockUserRepository)(nil)

func (m *MockUserRepository) user(args mock.Arguments) (*model.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, doc *model.User) (*model.User, error) {
	return m.user(m.Called(ctx, doc))
}

func (m *MockUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.user(m.Called(ctx, id))
}

func (m *MockUserRepository) FindOne(ctx context.Context, filter any) (*model.User, error) {
	return m.user(m.Called(ctx, filter))
}

func (m *MockUserRepository) Find(ctx context.Context, filter any, opts *repository.FindOptions) ([]model.User, error) {
	args := m.Called(ctx, filter, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *MockUserRepository) UpdateByID(ctx context.Context, id string, update any) (*model.User, error) {
	return m.user(m.Called(ctx, id, update))
}

func (m *MockUserRepository) UpdateOne(ctx context.Context, filter, update any) (*model.User, error) {
	return m.user(m.Called(ctx, filter, update))
}

func (m *MockUserRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) DeleteOne(ctx context.Context, filter any) (bool, error) {
	args := m.Called(ctx, filter)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) Count(ctx context.Context, filter any) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) Exists(ctx context.Context, filter any) (bool, error) {
	args := m.Called(ctx, filter)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) FindByClerkID(ctx context.Context, clerkID string) (*model.User, error) {
	return m.user(m.Called(ctx, clerkID))
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return m.user(m.Called(ctx, email))
}

func (m *MockUserRepository) FindByRole(ctx context.Context, role string) ([]model.User, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *MockUserRepository) UpdateLastLogin(ctx context.Context, clerkID string) (*model.User, error) {
	return m.user(m.Called(ctx, clerkID))
}

func (m *MockUserRepository) DeactivateUser(ctx context.Context, clerkID string) (*model.User, error) {
	return m.user(m.Called(ctx, clerkID))
}

func (m *MockUserRepository) ActivateUser(ctx context.Context, clerkID string) (*model.User, error) {
	return m.user(m.Called(ctx, clerkID))
}

// MockPaymentProvider is a mock implementation of payment.Provider.
type MockPaymentProvider struct {
	mock.Mock
}

var _ payment.Provider = (*MockPaymentProvider)(nil)

func (m *MockPaymentProvider) CreateCustomer(ctx context.Context, in payment.CreateCustomerInput) (*model.Customer, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Customer), args.Error(1)
}

func (m *MockPaymentProvider) CreatePaymentIntent(ctx context.Context, in payment.CreatePaymentIntentInput) (*model.PaymentIntent, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentIntent), args.Error(1)
}

func (m *MockPaymentProvider) RetrievePaymentIntent(ctx context.Context, id string) (*model.PaymentIntent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentIntent), args.Error(1)
}

func (m *MockPaymentProvider) ConstructEvent(payload []byte, signature string) (*model.WebhookEvent, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WebhookEvent), args.Error(1)
}

// MockStorage is a mock implementation of storage.Storage.
type MockStorage struct {
	mock.Mock
}

var _ storage.Storage = (*MockStorage)(nil)

func (m *MockStorage) Upload(ctx context.Context, in storage.UploadInput) (*storage.Object, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Object), args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockStorage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) KeyFromURL(url string) (string, bool) {
	args := m.Called(url)
	return args.String(0), args.Bool(1)
}
