package services

import (
	"direct-chat/auth"
	"direct-chat/domain"
	"direct-chat/errors"
	"direct-chat/repositories"
	"fmt"
)

type IAuthService interface {
	Login(username, password string) (Session, error)
	Register(username, password string) (Session, error)
}

// Session is what a successful login or registration hands back to the client.
type Session struct {
	Token    string
	Identity domain.Identity
}

type AuthService struct {
	userRepository repositories.IUserRepository
	tokens         *auth.TokenManager
}

func NewAuthService(repo repositories.IUserRepository, tokens *auth.TokenManager) IAuthService {
	return &AuthService{userRepository: repo, tokens: tokens}
}

func (s *AuthService) Register(username, password string) (Session, error) {
	// 1. Validate business rules before any expensive cryptographic operation
	if err := auth.ValidateRegister(auth.RegisterRequest{Username: username, Password: password}); err != nil {
		if errors.Is(err, errors.ErrInvalidPassword) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// 2. Hash here so the repository never sees a plain password
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return Session{}, fmt.Errorf("hashing failed: %w", err)
	}

	// 3. ErrUserAlreadyExists propagates when the username is taken
	user, err := s.userRepository.CreateUser(username, hashedPassword)
	if err != nil {
		return Session{}, err
	}

	return s.issue(user)
}

func (s *AuthService) Login(username, password string) (Session, error) {
	if err := auth.ValidateLogin(auth.LoginRequest{Username: username, Password: password}); err != nil {
		return Session{}, errors.ErrInvalidCredentials
	}

	user, err := s.userRepository.GetUserByUsername(username)
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return Session{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return Session{}, errors.ErrInvalidCredentials
	}

	return s.issue(user)
}

func (s *AuthService) issue(user repositories.User) (Session, error) {
	identity := domain.Identity{UserID: user.ID, Username: user.Username}
	token, err := s.tokens.GenerateToken(identity)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, Identity: identity}, nil
}
