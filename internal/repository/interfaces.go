package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/medsched/clinic-api/internal/model"
)

// All repository interfaces in one file. Methods that take a sqlx.ExtContext
// run against either the pool or an open transaction; the appointment
// conflict gate depends on being able to group them under one serializable
// transaction via WithTx.
type (
	AppointmentRepository interface {
		// WithTx runs fn inside a serializable transaction. The conflict
		// check, the sequence read and the write must share one transaction
		// or two concurrent creators can both pass the check.
		WithTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error
		Create(ctx context.Context, q sqlx.ExtContext, apt *model.Appointment) error
		// NextSequence returns max(id)+1 across all appointments.
		NextSequence(ctx context.Context, q sqlx.ExtContext) (int64, error)
		// FindConflict returns any booking for doctorID whose [start, end)
		// interval overlaps the given one, skipping excludeRecordNumber when
		// non-empty. A nil appointment means no conflict.
		FindConflict(ctx context.Context, q sqlx.ExtContext, doctorID int64, start, end time.Time, excludeRecordNumber string) (*model.Appointment, error)
		GetByRecordNumber(ctx context.Context, recordNumber string) (*model.Appointment, error)
		UpdateFields(ctx context.Context, q sqlx.ExtContext, recordNumber string, changes map[model.AppointmentField]interface{}) error
		List(ctx context.Context, filter *model.AppointmentFilter) ([]*model.AppointmentSummary, error)
		// CountStartingBetween counts bookings with start_time in [from, to);
		// doctorID 0 means all doctors.
		CountStartingBetween(ctx context.Context, from, to time.Time, doctorID int64) (int64, error)
		CountByStatus(ctx context.Context, status model.AppointmentStatus, doctorID int64) (int64, error)
		CountDistinctPatients(ctx context.Context, doctorID int64) (int64, error)
	}

	PatientRepository interface {
		WithTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error
		Create(ctx context.Context, q sqlx.ExtContext, patient *model.Patient) error
		NextSequence(ctx context.Context, q sqlx.ExtContext) (int64, error)
		GetByID(ctx context.Context, id int64) (*model.Patient, error)
		GetByRecordNumber(ctx context.Context, recordNumber string) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		Delete(ctx context.Context, recordNumber string) error
		List(ctx context.Context) ([]*model.Patient, error)
		Search(ctx context.Context, query string, limit int) ([]*model.Patient, error)
		Count(ctx context.Context) (int64, error)
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		GetByID(ctx context.Context, id int64) (*model.User, error)
		GetByUsername(ctx context.Context, username string) (*model.User, error)
		// GetClinician resolves id only when the user holds the clinician
		// role; any other user yields not found.
		GetClinician(ctx context.Context, id int64) (*model.User, error)
		ListClinicians(ctx context.Context) ([]*model.ClinicianSummary, error)
	}
)
