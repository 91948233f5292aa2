package user

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/medsched/clinic-api/internal/model"
	"github.com/medsched/clinic-api/internal/repository"
	apperrors "github.com/medsched/clinic-api/pkg/errors"
)

type Service struct {
	repo   repository.UserRepository
	logger zerolog.Logger
}

func NewService(repo repository.UserRepository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	if !req.Role.Valid() {
		return nil, apperrors.BadRequest("invalid role")
	}

	if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
		return nil, apperrors.BadRequest("username already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	user := &model.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         req.Role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Str("username", user.Username).Str("role", string(user.Role)).Msg("user registered")
	return user, nil
}

// ListClinicians returns the doctor directory used by the booking form.
func (s *Service) ListClinicians(ctx context.Context) ([]*model.ClinicianSummary, error) {
	return s.repo.ListClinicians(ctx)
}
