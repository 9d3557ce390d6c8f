package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/countersight/counter-cloud/internal/users"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// UserStore is the subset of the users store the auth service needs.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash, role string) (users.User, error)
	GetUserByUsername(ctx context.Context, username string) (users.User, error)
}

type Service struct {
	store  UserStore
	config JWTConfig
}

func NewService(store UserStore, config JWTConfig) *Service {
	return &Service{store: store, config: config}
}

func (s *Service) Register(ctx context.Context, username, password string, role Role) (users.User, error) {
	hash, err := users.HashPassword(password)
	if err != nil {
		return users.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, username, hash, string(role))
	if err != nil {
		return users.User{}, err
	}
	return user, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("query user: %w", err)
	}

	if !users.CheckPassword(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	role, err := ParseRole(user.Role)
	if err != nil {
		return "", fmt.Errorf("stored role: %w", err)
	}

	token, err := GenerateToken(s.config, user.ID, user.Username, role)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return token, nil
}
