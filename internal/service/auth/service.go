package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/medsched/clinic-api/internal/model"
	"github.com/medsched/clinic-api/internal/repository"
	"github.com/medsched/clinic-api/pkg/auth"
	apperrors "github.com/medsched/clinic-api/pkg/errors"
)

type Service struct {
	users  repository.UserRepository
	tokens auth.TokenService
}

func NewService(users repository.UserRepository, tokens auth.TokenService) *Service {
	return &Service{users: users, tokens: tokens}
}

// Login verifies credentials and issues an access token carrying the
// user id and role. Bad username and bad password are indistinguishable
// to the caller.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error) {
	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperrors.Unauthorized("invalid credentials")
	}

	token, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	return &model.LoginResponse{
		AccessToken: token,
		UserID:      user.ID,
		Username:    user.Username,
		FullName:    user.FullName,
		Role:        user.Role,
	}, nil
}

// ValidateToken resolves an opaque session token to an identity.
func (s *Service) ValidateToken(ctx context.Context, token string) (*model.Identity, error) {
	identity, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid token")
	}
	return identity, nil
}
