package services_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

const testJWTSecret = "test_jwt_secret"

func TestAuthService_RegisterUser(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret)
	in := services.RegisterInput{Username: "astrid", Email: "Astrid@Example.com", Password: "password123", ConfirmPassword: "password123"}

	mockRepo.On("GetByUsername", ctx, "astrid").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("GetByEmail", ctx, "astrid@example.com").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(nil).Once()

	user, err := authService.RegisterUser(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "astrid@example.com", user.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("password123")))
	mockRepo.AssertExpectations(t)

	mockRepo.On("GetByUsername", ctx, "astrid").Return(&models.User{ID: "1"}, nil).Once()
	_, err = authService.RegisterUser(ctx, in)
	assert.ErrorIs(t, err, services.ErrUsernameTaken)

	mockRepo.On("GetByUsername", ctx, "astrid").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("GetByEmail", ctx, "astrid@example.com").Return(&models.User{ID: "1"}, nil).Once()
	_, err = authService.RegisterUser(ctx, in)
	assert.ErrorIs(t, err, services.ErrEmailTaken)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_RegisterUser_PasswordMismatch(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret)

	_, err := authService.RegisterUser(context.Background(), services.RegisterInput{
		Username: "bo", Email: "bo@example.com", Password: "password123", ConfirmPassword: "password124",
	})
	assert.ErrorIs(t, err, services.ErrPasswordMismatch)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuthService_LoginUser(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret)

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	user := &models.User{ID: "user-123", Username: "testuser", Email: "test@example.com", Password: string(hashedPassword)}

	mockRepo.On("GetByUsername", ctx, "testuser").Return(user, nil).Once()
	token, got, err := authService.LoginUser(ctx, "testuser", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "user-123", got.ID)

	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	assert.True(t, ok)
	assert.Equal(t, user.ID, claims["user_id"])
	assert.Equal(t, user.Username, claims["username"])

	mockRepo.On("GetByUsername", ctx, "testuser").Return(user, nil).Once()
	_, _, err = authService.LoginUser(ctx, "testuser", "wrongpassword")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	mockRepo.On("GetByUsername", ctx, "ghost").Return(nil, repositories.ErrNotFound).Once()
	_, _, err = authService.LoginUser(ctx, "ghost", "password123")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_ValidateToken(t *testing.T) {
	authService := services.NewAuthService(new(MockUserRepository), testJWTSecret)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  "user-123",
		"username": "testuser",
		"exp":      jwt.TimeFunc().Add(time.Hour).Unix(),
	})
	validTokenString, _ := token.SignedString([]byte(testJWTSecret))

	id, err := authService.Identify(validTokenString)
	require.NoError(t, err)
	assert.Equal(t, "user-123", id.UserID)
	assert.Equal(t, "testuser", id.Username)

	_, err = authService.ValidateToken("invalid.token.string")
	assert.ErrorContains(t, err, "invalid token")

	expiredToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user-123",
		"exp":     jwt.TimeFunc().Add(-time.Hour).Unix(),
	})
	expiredTokenString, _ := expiredToken.SignedString([]byte(testJWTSecret))
	_, err = authService.ValidateToken(expiredTokenString)
	assert.ErrorContains(t, err, "invalid token")

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "user-123"})
	foreignString, _ := foreign.SignedString([]byte("someone_else"))
	_, err = authService.Identify(foreignString)
	assert.Error(t, err)
}
