package auth

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/FACorreiaa/go-blogr-api/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func aliceUser() *types.User {
	return &types.User{
		ID:        "d290f1ee-6c54-4b01-90e6-d701748f0851",
		Email:     "alice@example.com",
		Username:  "alice",
		FirstName: "Alice",
		LastName:  "Liddell",
		Topics:    []string{},
		Followers: []string{},
		Following: []string{},
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// MockAuthRepo is a mock implementation of AuthRepo.
type MockAuthRepo struct {
	mock.Mock
}

func (m *MockAuthRepo) FindByEmailAndUsername(ctx context.Context, email, username string) (*types.User, error) {
	args := m.Called(ctx, email, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockAuthRepo) FindByEmail(ctx context.Context, email string) (*types.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockAuthRepo) Create(ctx context.Context, params types.CreateUserParams, passwordHash string) (*types.User, error) {
	args := m.Called(ctx, params, passwordHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockAuthRepo) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return m.Called(ctx, userID, passwordHash).Error(0)
}

// MockOTPService is a mock implementation of otp.Service.
type MockOTPService struct {
	mock.Mock
}

func (m *MockOTPService) Issue(ctx context.Context, user *types.User) string {
	return m.Called(ctx, user).String(0)
}

func (m *MockOTPService) Verify(ctx context.Context, user *types.User, code string) bool {
	return m.Called(ctx, user, code).Bool(0)
}

// MockSender is a mock implementation of mailer.Sender.
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, subject, body, from, to string) error {
	return m.Called(ctx, subject, body, from, to).Error(0)
}

// MockAuthService is a mock implementation of AuthService.
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, params types.CreateUserParams) (*types.User, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*types.LoginResponse, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.LoginResponse), args.Error(1)
}

func (m *MockAuthService) ForgotPassword(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockAuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	return m.Called(ctx, email, code, newPassword).Error(0)
}
