package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/medsched/clinic-api/internal/model"
	apperrors "github.com/medsched/clinic-api/pkg/errors"
)

const patientColumns = `
	id, record_number, first_name, last_name, gender, date_of_birth,
	allergies, medical_history, current_medications, created_at, updated_at`

func (r *patientRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	return withSerializableTx(ctx, r.db, fn)
}

func (r *patientRepository) Create(ctx context.Context, q sqlx.ExtContext, patient *model.Patient) error {
	query := `
		INSERT INTO patients (
			id, record_number, first_name, last_name, gender, date_of_birth,
			allergies, medical_history, current_medications,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	patient.CreatedAt = time.Now()
	patient.UpdatedAt = patient.CreatedAt

	_, err := q.ExecContext(ctx, query,
		patient.ID,
		patient.RecordNumber,
		patient.FirstName,
		patient.LastName,
		patient.Gender,
		patient.DateOfBirth,
		patient.Allergies,
		patient.MedicalHistory,
		patient.CurrentMedications,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) NextSequence(ctx context.Context, q sqlx.ExtContext) (int64, error) {
	var next int64
	err := sqlx.GetContext(ctx, q, &next, `SELECT COALESCE(MAX(id), 0) + 1 FROM patients`)
	if err != nil {
		return 0, fmt.Errorf("failed to read patient sequence: %w", err)
	}
	return next, nil
}

func (r *patientRepository) GetByID(ctx context.Context, id int64) (*model.Patient, error) {
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient,
		`SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("patient")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) GetByRecordNumber(ctx context.Context, recordNumber string) (*model.Patient, error) {
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient,
		`SELECT `+patientColumns+` FROM patients WHERE record_number = $1`, recordNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("patient")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients
		SET first_name = $1, last_name = $2, gender = $3, date_of_birth = $4,
			allergies = $5, medical_history = $6, current_medications = $7,
			updated_at = $8
		WHERE record_number = $9
	`
	patient.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		patient.FirstName,
		patient.LastName,
		patient.Gender,
		patient.DateOfBirth,
		patient.Allergies,
		patient.MedicalHistory,
		patient.CurrentMedications,
		patient.UpdatedAt,
		patient.RecordNumber,
	)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("patient")
	}

	return nil
}

func (r *patientRepository) Delete(ctx context.Context, recordNumber string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM patients WHERE record_number = $1`, recordNumber)
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("patient")
	}

	return nil
}

func (r *patientRepository) List(ctx context.Context) ([]*model.Patient, error) {
	var patients []*model.Patient
	err := r.db.SelectContext(ctx, &patients,
		`SELECT `+patientColumns+` FROM patients ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

func (r *patientRepository) Search(ctx context.Context, query string, limit int) ([]*model.Patient, error) {
	var patients []*model.Patient
	err := r.db.SelectContext(ctx, &patients, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE record_number ILIKE '%' || $1 || '%'
		   OR first_name ILIKE '%' || $1 || '%'
		   OR last_name ILIKE '%' || $1 || '%'
		ORDER BY id
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search patients: %w", err)
	}
	return patients, nil
}

func (r *patientRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM patients`); err != nil {
		return 0, fmt.Errorf("failed to count patients: %w", err)
	}
	return count, nil
}
