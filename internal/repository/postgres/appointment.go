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

const appointmentColumns = `
	id, record_number, patient_id, doctor_id, start_time, end_time,
	status, notes_reception, notes_doctor, created_by_user_id,
	created_at, updated_at`

func (r *appointmentRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	return withSerializableTx(ctx, r.db, fn)
}

func (r *appointmentRepository) Create(ctx context.Context, q sqlx.ExtContext, apt *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, record_number, patient_id, doctor_id,
			start_time, end_time, status, notes_reception,
			created_by_user_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	apt.CreatedAt = time.Now()
	apt.UpdatedAt = apt.CreatedAt

	_, err := q.ExecContext(ctx, query,
		apt.ID,
		apt.RecordNumber,
		apt.PatientID,
		apt.DoctorID,
		apt.StartTime,
		apt.EndTime,
		apt.Status,
		apt.NotesReception,
		apt.CreatedByUserID,
		apt.CreatedAt,
		apt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

// NextSequence reads max(id)+1 inside the caller's transaction. The id is
// assigned explicitly on insert so record numbers stay in step with row ids
// even when concurrent creators race (serializable isolation resolves the
// race, the loser retries or fails).
func (r *appointmentRepository) NextSequence(ctx context.Context, q sqlx.ExtContext) (int64, error) {
	var next int64
	err := sqlx.GetContext(ctx, q, &next, `SELECT COALESCE(MAX(id), 0) + 1 FROM appointments`)
	if err != nil {
		return 0, fmt.Errorf("failed to read appointment sequence: %w", err)
	}
	return next, nil
}

// FindConflict applies the half-open overlap predicate: [s1,e1) and [s2,e2)
// overlap iff s1 < e2 AND e1 > s2, so bookings that merely touch at a
// boundary do not conflict.
func (r *appointmentRepository) FindConflict(ctx context.Context, q sqlx.ExtContext, doctorID int64, start, end time.Time, excludeRecordNumber string) (*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1
		AND start_time < $2
		AND end_time > $3
	`
	args := []interface{}{doctorID, end, start}

	if excludeRecordNumber != "" {
		query += " AND record_number != $4"
		args = append(args, excludeRecordNumber)
	}

	query += " LIMIT 1"

	var apt model.Appointment
	err := sqlx.GetContext(ctx, q, &apt, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check conflicts: %w", err)
	}
	return &apt, nil
}

func (r *appointmentRepository) GetByRecordNumber(ctx context.Context, recordNumber string) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE record_number = $1`

	var apt model.Appointment
	err := r.db.GetContext(ctx, &apt, query, recordNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("appointment")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &apt, nil
}

// UpdateFields writes only the given columns. Record number and creator are
// not updatable through this path; field names double as column names.
func (r *appointmentRepository) UpdateFields(ctx context.Context, q sqlx.ExtContext, recordNumber string, changes map[model.AppointmentField]interface{}) error {
	if len(changes) == 0 {
		return nil
	}

	query := "UPDATE appointments SET "
	args := make([]interface{}, 0, len(changes)+2)
	argCount := 1

	for _, field := range []model.AppointmentField{
		model.FieldPatientID,
		model.FieldDoctorID,
		model.FieldStartTime,
		model.FieldEndTime,
		model.FieldNotesReception,
		model.FieldStatus,
		model.FieldNotesDoctor,
	} {
		value, ok := changes[field]
		if !ok {
			continue
		}
		if argCount > 1 {
			query += ", "
		}
		query += fmt.Sprintf("%s = $%d", field, argCount)
		args = append(args, value)
		argCount++
	}

	query += fmt.Sprintf(", updated_at = $%d WHERE record_number = $%d", argCount, argCount+1)
	args = append(args, time.Now(), recordNumber)

	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("appointment")
	}

	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filter *model.AppointmentFilter) ([]*model.AppointmentSummary, error) {
	query := `
		SELECT a.record_number, a.start_time, a.end_time, a.status,
			   p.first_name || ' ' || p.last_name AS patient_name,
			   p.record_number AS patient_record_number,
			   d.full_name AS doctor_full_name,
			   c.full_name AS created_by_full_name,
			   a.notes_reception
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN users d ON d.id = a.doctor_id
		JOIN users c ON c.id = a.created_by_user_id
	`
	var (
		where []string
		args  []interface{}
	)

	if filter != nil && filter.DoctorID != 0 {
		args = append(args, filter.DoctorID)
		where = append(where, fmt.Sprintf("a.doctor_id = $%d", len(args)))
	}
	if filter != nil && filter.PatientRecordNumber != "" {
		args = append(args, filter.PatientRecordNumber)
		where = append(where, fmt.Sprintf("p.record_number = $%d", len(args)))
	}

	for i, clause := range where {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}

	query += " ORDER BY a.start_time ASC"

	var appointments []*model.AppointmentSummary
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) CountStartingBetween(ctx context.Context, from, to time.Time, doctorID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM appointments WHERE start_time >= $1 AND start_time < $2`
	args := []interface{}{from, to}

	if doctorID != 0 {
		query += " AND doctor_id = $3"
		args = append(args, doctorID)
	}

	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count appointments: %w", err)
	}
	return count, nil
}

func (r *appointmentRepository) CountByStatus(ctx context.Context, status model.AppointmentStatus, doctorID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM appointments WHERE status = $1`
	args := []interface{}{status}

	if doctorID != 0 {
		query += " AND doctor_id = $2"
		args = append(args, doctorID)
	}

	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count appointments by status: %w", err)
	}
	return count, nil
}

func (r *appointmentRepository) CountDistinctPatients(ctx context.Context, doctorID int64) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(DISTINCT patient_id) FROM appointments WHERE doctor_id = $1`, doctorID)
	if err != nil {
		return 0, fmt.Errorf("failed to count distinct patients: %w", err)
	}
	return count, nil
}
