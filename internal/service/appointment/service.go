package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/medsched/clinic-api/internal/model"
	"github.com/medsched/clinic-api/internal/repository"
	"github.com/medsched/clinic-api/internal/service/rbac"
	apperrors "github.com/medsched/clinic-api/pkg/errors"
	"github.com/medsched/clinic-api/pkg/messaging"
	"github.com/medsched/clinic-api/pkg/metrics"
)

// Postgres SQLSTATEs that mean the store itself refused an overlapping or
// racing write: serialization_failure under the serializable transaction,
// exclusion_violation from the interval constraint.
const (
	pgSerializationFailure = "40001"
	pgExclusionViolation   = "23P01"
)

// Service is the booking lifecycle manager. It owns creation and update
// orchestration: field authorization, interval validation, the conflict
// gate, record numbering and persistence.
type Service struct {
	repo     repository.AppointmentRepository
	patients repository.PatientRepository
	users    repository.UserRepository
	rbac     *rbac.Service
	broker   messaging.Broker
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewService(
	repo repository.AppointmentRepository,
	patients repository.PatientRepository,
	users repository.UserRepository,
	rbacSvc *rbac.Service,
	broker messaging.Broker,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Service {
	return &Service{
		repo:     repo,
		patients: patients,
		users:    users,
		rbac:     rbacSvc,
		broker:   broker,
		metrics:  m,
		logger:   logger,
	}
}

// ValidateInterval rejects empty and inverted intervals. start == end is an
// empty booking and is rejected like an inverted one.
func ValidateInterval(start, end time.Time) error {
	if !start.Before(end) {
		return apperrors.InvalidInterval()
	}
	return nil
}

func requireCoreFields(req *model.CreateAppointmentRequest) error {
	switch {
	case req.PatientID == 0:
		return apperrors.MissingField("patient_id")
	case req.DoctorID == 0:
		return apperrors.MissingField("doctor_id")
	case req.StartTime.IsZero():
		return apperrors.MissingField("start_time")
	case req.EndTime.IsZero():
		return apperrors.MissingField("end_time")
	}
	return nil
}

// Create books a new appointment. The conflict check, the sequence read and
// the insert share one serializable transaction so concurrent creators
// cannot both pass the gate or take the same record number.
func (s *Service) Create(ctx context.Context, identity model.Identity, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	if !s.rbac.CanCreateAppointment(identity.Role) {
		s.metrics.UnauthorizedWrites.WithLabelValues(string(identity.Role)).Inc()
		return nil, apperrors.Forbidden("only reception or admin can create appointments")
	}

	if err := requireCoreFields(req); err != nil {
		s.metrics.ValidationFailures.WithLabelValues("missing_field").Inc()
		return nil, err
	}
	if err := ValidateInterval(req.StartTime, req.EndTime); err != nil {
		s.metrics.ValidationFailures.WithLabelValues("invalid_interval").Inc()
		return nil, err
	}

	var apt *model.Appointment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		conflict, err := s.repo.FindConflict(ctx, tx, req.DoctorID, req.StartTime, req.EndTime, "")
		if err != nil {
			return err
		}
		if conflict != nil {
			return apperrors.SchedulingConflict(conflict.RecordNumber)
		}

		if _, err := s.patients.GetByID(ctx, req.PatientID); err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				return apperrors.ReferenceNotFound("patient")
			}
			return err
		}
		if _, err := s.users.GetClinician(ctx, req.DoctorID); err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				return apperrors.ReferenceNotFound("doctor")
			}
			return err
		}

		seq, err := s.repo.NextSequence(ctx, tx)
		if err != nil {
			return err
		}

		apt = &model.Appointment{
			ID:              seq,
			RecordNumber:    model.AppointmentRecordNumber(seq),
			PatientID:       req.PatientID,
			DoctorID:        req.DoctorID,
			StartTime:       req.StartTime,
			EndTime:         req.EndTime,
			Status:          model.AppointmentStatusPending,
			NotesReception:  req.NotesReception,
			CreatedByUserID: identity.UserID,
		}
		return s.repo.Create(ctx, tx, apt)
	})
	if err != nil {
		return nil, s.mapStoreError(err)
	}

	s.metrics.AppointmentsCreated.Inc()
	s.publish(ctx, messaging.ChannelAppointmentCreated, apt, identity)
	s.logger.Info().
		Str("record_number", apt.RecordNumber).
		Int64("doctor_id", apt.DoctorID).
		Int64("created_by", identity.UserID).
		Msg("appointment created")

	return apt, nil
}

// Update applies a partial field set to an existing booking. Only the fields
// present in the request are written; the effective doctor and interval for
// the conflict re-check fall back to the stored values for omitted fields.
func (s *Service) Update(ctx context.Context, identity model.Identity, recordNumber string, req *model.UpdateAppointmentRequest) (*model.Appointment, error) {
	existing, err := s.repo.GetByRecordNumber(ctx, recordNumber)
	if err != nil {
		return nil, err
	}

	if err := s.rbac.CheckOwnership(identity, existing); err != nil {
		s.metrics.UnauthorizedWrites.WithLabelValues(string(identity.Role)).Inc()
		return nil, err
	}

	fields, err := s.rbac.FilterUpdate(identity.Role, req)
	if err != nil {
		s.metrics.UnauthorizedWrites.WithLabelValues(string(identity.Role)).Inc()
		return nil, err
	}
	if len(fields) == 0 {
		return nil, apperrors.NoOp()
	}

	if req.Status != nil && !req.Status.Valid() {
		return nil, apperrors.BadRequest("invalid status value")
	}

	changes := make(map[model.AppointmentField]interface{}, len(fields))
	rescheduled := false
	for _, field := range fields {
		switch field {
		case model.FieldPatientID:
			changes[field] = *req.PatientID
		case model.FieldDoctorID:
			changes[field] = *req.DoctorID
			rescheduled = true
		case model.FieldStartTime:
			changes[field] = *req.StartTime
			rescheduled = true
		case model.FieldEndTime:
			changes[field] = *req.EndTime
			rescheduled = true
		case model.FieldNotesReception:
			changes[field] = req.NotesReception.Value
		case model.FieldStatus:
			changes[field] = *req.Status
		case model.FieldNotesDoctor:
			changes[field] = req.NotesDoctor.Value
		}
	}

	// Effective values: request fields overlaid on the stored booking.
	finalDoctorID := existing.DoctorID
	if req.DoctorID != nil {
		finalDoctorID = *req.DoctorID
	}
	finalStart := existing.StartTime
	if req.StartTime != nil {
		finalStart = *req.StartTime
	}
	finalEnd := existing.EndTime
	if req.EndTime != nil {
		finalEnd = *req.EndTime
	}

	if err := ValidateInterval(finalStart, finalEnd); err != nil {
		s.metrics.ValidationFailures.WithLabelValues("invalid_interval").Inc()
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if req.PatientID != nil {
			if _, err := s.patients.GetByID(ctx, *req.PatientID); err != nil {
				if apperrors.Is(err, apperrors.ErrNotFound) {
					return apperrors.ReferenceNotFound("patient")
				}
				return err
			}
		}
		if req.DoctorID != nil {
			if _, err := s.users.GetClinician(ctx, *req.DoctorID); err != nil {
				if apperrors.Is(err, apperrors.ErrNotFound) {
					return apperrors.ReferenceNotFound("doctor")
				}
				return err
			}
		}

		// Pure status/notes edits never re-run the conflict check; the
		// booking's own interval would otherwise have to conflict with
		// itself, which the exclusion by record number prevents anyway.
		if rescheduled {
			conflict, err := s.repo.FindConflict(ctx, tx, finalDoctorID, finalStart, finalEnd, recordNumber)
			if err != nil {
				return err
			}
			if conflict != nil {
				return apperrors.SchedulingConflict(conflict.RecordNumber)
			}
		}

		return s.repo.UpdateFields(ctx, tx, recordNumber, changes)
	})
	if err != nil {
		return nil, s.mapStoreError(err)
	}

	updated, err := s.repo.GetByRecordNumber(ctx, recordNumber)
	if err != nil {
		return nil, err
	}

	s.metrics.AppointmentsUpdated.Inc()
	s.publish(ctx, messaging.ChannelAppointmentUpdated, updated, identity)
	s.logger.Info().
		Str("record_number", recordNumber).
		Int64("updated_by", identity.UserID).
		Msg("appointment updated")

	return updated, nil
}

// Get returns a single booking with its patient and staff projections.
// Clinicians can only fetch bookings assigned to them.
func (s *Service) Get(ctx context.Context, identity model.Identity, recordNumber string) (*model.AppointmentDetail, error) {
	apt, err := s.repo.GetByRecordNumber(ctx, recordNumber)
	if err != nil {
		return nil, err
	}

	if !s.rbac.CanView(identity, apt) {
		return nil, apperrors.Forbidden("clinicians can only view their assigned appointments")
	}

	detail := &model.AppointmentDetail{Appointment: *apt}

	if patient, err := s.patients.GetByID(ctx, apt.PatientID); err == nil {
		detail.Patient = patient
	}
	if doctor, err := s.users.GetByID(ctx, apt.DoctorID); err == nil {
		detail.Doctor = &model.ClinicianSummary{ID: doctor.ID, Username: doctor.Username, FullName: doctor.FullName}
	}
	if creator, err := s.users.GetByID(ctx, apt.CreatedByUserID); err == nil {
		detail.CreatedBy = &model.ClinicianSummary{ID: creator.ID, Username: creator.Username, FullName: creator.FullName}
	}

	return detail, nil
}

// List returns booking summaries, restricted to the caller's own bookings
// for clinicians. patientRecordNumber further narrows to one patient's
// history when non-empty.
func (s *Service) List(ctx context.Context, identity model.Identity, patientRecordNumber string) ([]*model.AppointmentSummary, error) {
	filter := &model.AppointmentFilter{
		DoctorID:            s.rbac.ListScope(identity),
		PatientRecordNumber: patientRecordNumber,
	}
	return s.repo.List(ctx, filter)
}

// mapStoreError turns store-level refusals of racing writes into the same
// typed conflict the explicit check produces, and passes typed errors
// through untouched.
func (s *Service) mapStoreError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Code == apperrors.ErrSchedulingConflict {
			s.metrics.ConflictsRejected.Inc()
		}
		return appErr
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if string(pqErr.Code) == pgSerializationFailure || string(pqErr.Code) == pgExclusionViolation {
			s.metrics.ConflictsRejected.Inc()
			return apperrors.SchedulingConflict("")
		}
	}
	return err
}

func (s *Service) publish(ctx context.Context, channel string, apt *model.Appointment, identity model.Identity) {
	if s.broker == nil {
		return
	}
	event := messaging.AppointmentEvent{
		RecordNumber: apt.RecordNumber,
		DoctorID:     apt.DoctorID,
		PatientID:    apt.PatientID,
		StartTime:    apt.StartTime.Format(time.RFC3339),
		EndTime:      apt.EndTime.Format(time.RFC3339),
		Status:       string(apt.Status),
		ActorUserID:  identity.UserID,
	}
	if err := s.broker.Publish(ctx, channel, event); err != nil {
		s.metrics.EventPublishFailures.Inc()
		s.logger.Warn().Err(err).Str("channel", channel).Msg("failed to publish appointment event")
	}
}
