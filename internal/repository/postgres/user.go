package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/medsched/clinic-api/internal/model"
	apperrors "github.com/medsched/clinic-api/pkg/errors"
)

const userColumns = `id, username, password_hash, full_name, role, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (username, password_hash, full_name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	err := r.db.QueryRowxContext(ctx, query,
		user.Username,
		user.PasswordHash,
		user.FullName,
		user.Role,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetClinician(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND role = $2`, id, model.RoleClinician)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("doctor")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get clinician: %w", err)
	}
	return &user, nil
}

func (r *userRepository) ListClinicians(ctx context.Context) ([]*model.ClinicianSummary, error) {
	var clinicians []*model.ClinicianSummary
	err := r.db.SelectContext(ctx, &clinicians, `
		SELECT id, username, full_name
		FROM users
		WHERE role = $1
		ORDER BY full_name ASC
	`, model.RoleClinician)
	if err != nil {
		return nil, fmt.Errorf("failed to list clinicians: %w", err)
	}
	return clinicians, nil
}
