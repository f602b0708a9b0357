package services

import (
	"direct-chat/auth"
	"direct-chat/errors"
	"direct-chat/mocks"
	"direct-chat/repositories"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuthService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenManager("test-secret", 24*time.Hour)
	svc := NewAuthService(mockRepo, tokens)

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		username := "alice"
		password := "ComplexPass123!"

		// Expect CreateUser to be called with a hashed password (not the plain one)
		mockRepo.EXPECT().
			CreateUser(username, gomock.Not(password)).
			Return(repositories.User{ID: "user-uuid", Username: username}, nil).
			Times(1)

		session, err := svc.Register(username, password)

		req.NoError(err)
		req.Equal("user-uuid", session.Identity.UserID)
		claims, err := tokens.ValidateToken(session.Token)
		req.NoError(err)
		req.Equal("alice", claims.Username)
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)

		// Repository should NEVER be called
		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Times(0)

		session, err := svc.Register("alice", "simple")

		req.ErrorIs(err, errors.ErrInvalidPassword)
		req.Empty(session.Token)
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			CreateUser("bob", gomock.Any()).
			Return(repositories.User{}, errors.ErrUserAlreadyExists).
			Times(1)

		_, err := svc.Register("bob", "ComplexPass123!")

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenManager("test-secret", 24*time.Hour)
	svc := NewAuthService(mockRepo, tokens)

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)
		password := "Secret123456!"

		hashedPassword, err := auth.HashPassword(password)
		req.NoError(err)
		storedUser := repositories.User{ID: "uuid-123", Username: "alice", PasswordHash: hashedPassword}

		mockRepo.EXPECT().
			GetUserByUsername("alice").
			Return(storedUser, nil).
			Times(1)

		session, err := svc.Login("alice", password)
		req.NoError(err)

		claims, err := tokens.ValidateToken(session.Token)
		req.NoError(err)
		req.Equal(storedUser.ID, claims.UserID)
		req.Equal("alice", session.Identity.Username)
	})

	t.Run("should return invalid credentials when password matches nothing", func(t *testing.T) {
		req := require.New(t)

		hashedPassword, err := auth.HashPassword("CorrectPassword123!")
		req.NoError(err)

		mockRepo.EXPECT().
			GetUserByUsername("alice").
			Return(repositories.User{Username: "alice", PasswordHash: hashedPassword}, nil).
			Times(1)

		_, err = svc.Login("alice", "WrongPassword123!")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should return invalid credentials when user is not found", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetUserByUsername("ghost").
			Return(repositories.User{}, errors.ErrUserNotFound).
			Times(1)

		_, err := svc.Login("ghost", "anyPassword")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should not hit the repository with empty fields", func(t *testing.T) {
		req := require.New(t)

		_, err := svc.Login("", "")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}
