package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsched/clinic-api/internal/model"
	"github.com/medsched/clinic-api/internal/service/rbac"
	apperrors "github.com/medsched/clinic-api/pkg/errors"
	"github.com/medsched/clinic-api/pkg/metrics"
)

// In-memory repositories backing the service tests. WithTx runs the
// callback directly; the serialization guarantees under test live in the
// postgres implementation.

type fakeAppointmentRepo struct {
	appointments  map[string]*model.Appointment
	conflictCalls int
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appointments: make(map[string]*model.Appointment)}
}

func (r *fakeAppointmentRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	return fn(ctx, nil)
}

func (r *fakeAppointmentRepo) Create(ctx context.Context, q sqlx.ExtContext, apt *model.Appointment) error {
	cp := *apt
	r.appointments[apt.RecordNumber] = &cp
	return nil
}

func (r *fakeAppointmentRepo) NextSequence(ctx context.Context, q sqlx.ExtContext) (int64, error) {
	var max int64
	for _, apt := range r.appointments {
		if apt.ID > max {
			max = apt.ID
		}
	}
	return max + 1, nil
}

func (r *fakeAppointmentRepo) FindConflict(ctx context.Context, q sqlx.ExtContext, doctorID int64, start, end time.Time, excludeRecordNumber string) (*model.Appointment, error) {
	r.conflictCalls++
	for _, apt := range r.appointments {
		if apt.DoctorID != doctorID || apt.RecordNumber == excludeRecordNumber {
			continue
		}
		if apt.StartTime.Before(end) && apt.EndTime.After(start) {
			cp := *apt
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeAppointmentRepo) GetByRecordNumber(ctx context.Context, recordNumber string) (*model.Appointment, error) {
	apt, ok := r.appointments[recordNumber]
	if !ok {
		return nil, apperrors.NotFound("appointment")
	}
	cp := *apt
	return &cp, nil
}

func (r *fakeAppointmentRepo) UpdateFields(ctx context.Context, q sqlx.ExtContext, recordNumber string, changes map[model.AppointmentField]interface{}) error {
	apt, ok := r.appointments[recordNumber]
	if !ok {
		return apperrors.NotFound("appointment")
	}
	for field, value := range changes {
		switch field {
		case model.FieldPatientID:
			apt.PatientID = value.(int64)
		case model.FieldDoctorID:
			apt.DoctorID = value.(int64)
		case model.FieldStartTime:
			apt.StartTime = value.(time.Time)
		case model.FieldEndTime:
			apt.EndTime = value.(time.Time)
		case model.FieldStatus:
			apt.Status = value.(model.AppointmentStatus)
		case model.FieldNotesReception:
			apt.NotesReception = value.(*string)
		case model.FieldNotesDoctor:
			apt.NotesDoctor = value.(*string)
		}
	}
	return nil
}

func (r *fakeAppointmentRepo) List(ctx context.Context, filter *model.AppointmentFilter) ([]*model.AppointmentSummary, error) {
	var out []*model.AppointmentSummary
	for _, apt := range r.appointments {
		if filter.DoctorID != 0 && apt.DoctorID != filter.DoctorID {
			continue
		}
		out = append(out, &model.AppointmentSummary{
			RecordNumber: apt.RecordNumber,
			StartTime:    apt.StartTime,
			EndTime:      apt.EndTime,
			Status:       apt.Status,
		})
	}
	return out, nil
}

func (r *fakeAppointmentRepo) CountStartingBetween(ctx context.Context, from, to time.Time, doctorID int64) (int64, error) {
	return 0, nil
}

func (r *fakeAppointmentRepo) CountByStatus(ctx context.Context, status model.AppointmentStatus, doctorID int64) (int64, error) {
	return 0, nil
}

func (r *fakeAppointmentRepo) CountDistinctPatients(ctx context.Context, doctorID int64) (int64, error) {
	return 0, nil
}

type fakePatientRepo struct {
	patients map[int64]*model.Patient
}

func (r *fakePatientRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	return fn(ctx, nil)
}

func (r *fakePatientRepo) Create(ctx context.Context, q sqlx.ExtContext, patient *model.Patient) error {
	r.patients[patient.ID] = patient
	return nil
}

func (r *fakePatientRepo) NextSequence(ctx context.Context, q sqlx.ExtContext) (int64, error) {
	return int64(len(r.patients)) + 1, nil
}

func (r *fakePatientRepo) GetByID(ctx context.Context, id int64) (*model.Patient, error) {
	p, ok := r.patients[id]
	if !ok {
		return nil, apperrors.NotFound("patient")
	}
	return p, nil
}

func (r *fakePatientRepo) GetByRecordNumber(ctx context.Context, recordNumber string) (*model.Patient, error) {
	for _, p := range r.patients {
		if p.RecordNumber == recordNumber {
			return p, nil
		}
	}
	return nil, apperrors.NotFound("patient")
}

func (r *fakePatientRepo) Update(ctx context.Context, patient *model.Patient) error { return nil }
func (r *fakePatientRepo) Delete(ctx context.Context, recordNumber string) error    { return nil }
func (r *fakePatientRepo) List(ctx context.Context) ([]*model.Patient, error)       { return nil, nil }
func (r *fakePatientRepo) Search(ctx context.Context, query string, limit int) ([]*model.Patient, error) {
	return nil, nil
}
func (r *fakePatientRepo) Count(ctx context.Context) (int64, error) { return 0, nil }

type fakeUserRepo struct {
	users map[int64]*model.User
}

func (r *fakeUserRepo) Create(ctx context.Context, user *model.User) error { return nil }

func (r *fakeUserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.NotFound("user")
	}
	return u, nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, apperrors.NotFound("user")
}

func (r *fakeUserRepo) GetClinician(ctx context.Context, id int64) (*model.User, error) {
	u, ok := r.users[id]
	if !ok || u.Role != model.RoleClinician {
		return nil, apperrors.NotFound("doctor")
	}
	return u, nil
}

func (r *fakeUserRepo) ListClinicians(ctx context.Context) ([]*model.ClinicianSummary, error) {
	return nil, nil
}

const (
	patientAlice  = int64(1)
	patientBob    = int64(2)
	doctorSmith   = int64(10)
	doctorJones   = int64(11)
	receptionUser = int64(20)
	adminUser     = int64(21)
)

var (
	reception = model.Identity{UserID: receptionUser, Role: model.RoleReception}
	admin     = model.Identity{UserID: adminUser, Role: model.RoleAdmin}
	drSmith   = model.Identity{UserID: doctorSmith, Role: model.RoleClinician}
	drJones   = model.Identity{UserID: doctorJones, Role: model.RoleClinician}
)

func newTestService() (*Service, *fakeAppointmentRepo) {
	repo := newFakeAppointmentRepo()
	patients := &fakePatientRepo{patients: map[int64]*model.Patient{
		patientAlice: {ID: patientAlice, RecordNumber: "PAT-001", FirstName: "Alice", LastName: "Ames"},
		patientBob:   {ID: patientBob, RecordNumber: "PAT-002", FirstName: "Bob", LastName: "Burns"},
	}}
	users := &fakeUserRepo{users: map[int64]*model.User{
		doctorSmith:   {ID: doctorSmith, Username: "smith", FullName: "Dr Smith", Role: model.RoleClinician},
		doctorJones:   {ID: doctorJones, Username: "jones", FullName: "Dr Jones", Role: model.RoleClinician},
		receptionUser: {ID: receptionUser, Username: "frontdesk", FullName: "Front Desk", Role: model.RoleReception},
	}}

	svc := NewService(repo, patients, users, rbac.NewService(), nil, metrics.New("test"), zerolog.Nop())
	return svc, repo
}

func at(hour, min int) time.Time {
	return time.Date(2026, time.September, 1, hour, min, 0, 0, time.UTC)
}

func createReq(patientID, doctorID int64, start, end time.Time) *model.CreateAppointmentRequest {
	return &model.CreateAppointmentRequest{
		PatientID: patientID,
		DoctorID:  doctorID,
		StartTime: start,
		EndTime:   end,
	}
}

func TestCreateAppointment(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	apt, err := svc.Create(ctx, reception, createReq(patientAlice, doctorSmith, at(9, 0), at(9, 30)))
	require.NoError(t, err)

	assert.Equal(t, "APT-001", apt.RecordNumber)
	assert.Equal(t, model.AppointmentStatusPending, apt.Status)
	assert.Equal(t, receptionUser, apt.CreatedByUserID)
	assert.Equal(t, doctorSmith, apt.DoctorID)
}

func TestCreateAppointment_SequentialRecordNumbers(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for i, want := range []string{"APT-001", "APT-002", "APT-003"} {
		start := at(9+i, 0)
		apt, err := svc.Create(ctx, reception, createReq(patientAlice, doctorSmith, start, start.Add(30*time.Minute)))
		require.NoError(t, err)
		assert.Equal(t, want, apt.RecordNumber)
	}
}

func TestCreateAppointment_Authorization(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, drSmith, createReq(patientAlice, doctorSmith, at(9, 0), at(9, 30)))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	_, err = svc.Create(ctx, admin, createReq(patientAlice, doctorSmith, at(9, 0), at(9, 30)))
	assert.NoError(t, err)
}

func TestCreateAppointment_MissingFields(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		field string
		req   *model.CreateAppointmentRequest
	}{
		{"patient_id", createReq(0, doctorSmith, at(9, 0), at(9, 30))},
		{"doctor_id", createReq(patientAlice, 0, at(9, 0), at(9, 30))},
		{"start_time", createReq(patientAlice, doctorSmith, time.Time{}, at(9, 30))},
		{"end_time", createReq(patientAlice, doctorSmith, at(9, 0), time.Time{})},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			_, err := svc.Create(ctx, reception, tt.req)
			require.Error(t, err)
			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperrors.ErrMissingField, appErr.Code)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestCreateAppointment_InvalidInterval(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, reception, createReq(patientAlice, doctorSmith, at(9, 0), at(9, 0)))
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInterval))

	_, err = svc.Create(ctx, reception, createReq(patientAlice, doctorSmith, at(10, 0), at(9, 0)))
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInterval))
}

func TestCreateAppointment_Conflicts(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, reception, createReq(patientAlice, doctorSmith, at(9, 0), at(9, 30)))
	require.NoError(t, err)

	// Overlapping slot for the same doctor is refused and names the
	// existing booking.
	_, err = svc.Create(ctx, reception, createReq(patientBob, doctorSmith, at(9, 15), at(9, 45)))
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrSchedulingConflict, appErr.Code)
	assert.Equal(t, "APT-001", appErr.ConflictRecord)

	// Back-to-back is fine: the interval is half-open.
	_, err = svc.Create(ctx, reception, createReq(patientBob, doctorSmith, at(9, 30), at(10, 0)))
	assert.NoError(t, err)

	// Same slot with another doctor is fine.
	_, err = svc.Create(ctx, reception, createReq(patientBob, doctorJones, at(9, 0), at(9, 30)))
	assert.NoError(t, err)
}

func TestCreateAppointment_ReferenceChecks(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, reception, createReq(999, doctorSmith, at(9, 0), at(9, 30)))
	assert.True(t, apperrors.Is(err, apperrors.ErrReferenceNotFound))

	_, err = svc.Create(ctx, reception, createReq(patientAlice, 999, at(9, 0), at(9, 30)))
	assert.True(t, apperrors.Is(err, apperrors.ErrReferenceNotFound))

	// Reception staff are users but not bookable doctors.
	_, err = svc.Create(ctx, reception, createReq(patientAlice, receptionUser, at(9, 0), at(9, 30)))
	assert.True(t, apperrors.Is(err, apperrors.ErrReferenceNotFound))
}

func TestUpdateAppointment_ClinicianCompletesOwnBooking(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	apt, err := svc.Create(ctx, reception, createReq(patientAlice, doctorSmith, at(9, 0), at(9, 30)))
	require.NoError(t, err)

	status := model.AppointmentStatusCompleted
	updated, err := svc.Update(ctx, drSmith, apt.RecordNumber, &model.UpdateAppointmentRequest{
		Status:      &status,
		NotesDoctor: model.Optional[string]{Set: true, Value: strPtr("BP normal, bloods ordered")},
	})
	require.NoError(t, err)

	assert.Equal(t, model.AppointmentStatusCompleted, updated.Status)
	require.NotNil(t, updated.NotesDoctor)
	assert.Equal(t, "BP normal, bloods ordered", *updated.NotesDoctor)
}

func TestUpdateAppointment_NotesOnlySkipsConflictCheck(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	apt, err := svc.Create(ctx, reception, createReq(patientAlice, doctorSmith, at(9, 0), at(9, 30)))
	require.NoError(t, err)

	callsAfterCreate := repo.conflictCalls

	_, err = svc.Update(ctx, reception, apt.RecordNumber, &model.UpdateAppointmentRequest{
		NotesReception: model.Optional[string]{Set: true, Value: strPtr("patient asked for a reminder call")},
	})
	require.NoError(t, err)
	assert.Equal(t, callsAfterCreate, repo.conflictCalls)
}

func TestUpdateAppointment_RescheduleExcludesSelf(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	apt, err := svc.Create(ctx, reception, createReq(patientAlice, doctorSmith, at(9, 0), at(9, 30)))
	require.NoError(t, err)

	// Shifting within the booking's own window must not conflict with
	// itself.
	start, end := at(9, 15), at(9, 45)
	updated, err := svc.Update(ctx, reception, apt.RecordNumber, &model.UpdateAppointmentRequest{
		StartTime: &start,
		EndTime:   &end,
	})
	require.NoError(t, err)
	assert.Equal(t, start, updated.StartTime)
	assert.Equal(t, end, updated.EndTime)
}

func TestUpdateAppointment_RescheduleConflict(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, reception, createReq(patientAlice, doctorSmith, at(9, 0), at(9, 30)))
	require.NoError(t, err)
	second, err := svc.Create(ctx, reception, createReq(patientBob, doctorSmith, at(10, 0), at(10, 30)))
	require.NoError(t, err)

	start, end := at(9, 15), at(9, 45)
	_, err = svc.Update(ctx, reception, second.RecordNumber, &model.UpdateAppointmentRequest{
		StartTime: &start,
		EndTime:   &end,
	})
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrSchedulingConflict, appErr.Code)
	assert.Equal(t, "APT-001", appErr.ConflictRecord)
}

func TestUpdateAppointment_EffectiveIntervalFallback(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	apt, err := svc.Create(ctx, reception, createReq(patientAlice, doctorSmith, at(9, 0), at(9, 30)))
	require.NoError(t, err)

	// Moving only the end before the stored start must be rejected against
	// the stored start, not a zero value.
	end := at(8, 30)
	_, err = svc.Update(ctx, reception, apt.RecordNumber, &model.UpdateAppointmentRequest{EndTime: &end})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInterval))
}

func TestUpdateAppointment_FieldAuthorization(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	apt, err := svc.Create(ctx, reception, createReq(patientAlice, doctorSmith, at(9, 0), at(9, 30)))
	require.NoError(t, err)

	status := model.AppointmentStatusCompleted
	_, err = svc.Update(ctx, reception, apt.RecordNumber, &model.UpdateAppointmentRequest{Status: &status})
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	start := at(11, 0)
	_, err = svc.Update(ctx, drSmith, apt.RecordNumber, &model.UpdateAppointmentRequest{StartTime: &start})
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	// Admin can do both at once.
	end := at(11, 30)
	_, err = svc.Update(ctx, admin, apt.RecordNumber, &model.UpdateAppointmentRequest{
		StartTime: &start,
		EndTime:   &end,
		Status:    &status,
	})
	assert.NoError(t, err)
}

func TestUpdateAppointment_ClinicianOwnership(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	apt, err := svc.Create(ctx, reception, createReq(patientAlice, doctorSmith, at(9, 0), at(9, 30)))
	require.NoError(t, err)

	status := model.AppointmentStatusCompleted
	_, err = svc.Update(ctx, drJones, apt.RecordNumber, &model.UpdateAppointmentRequest{Status: &status})
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestUpdateAppointment_InvalidStatus(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	apt, err := svc.Create(ctx, reception, createReq(patientAlice, doctorSmith, at(9, 0), at(9, 30)))
	require.NoError(t, err)

	bad := model.AppointmentStatus("CANCELLED")
	_, err = svc.Update(ctx, drSmith, apt.RecordNumber, &model.UpdateAppointmentRequest{Status: &bad})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestUpdateAppointment_NoOp(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	apt, err := svc.Create(ctx, reception, createReq(patientAlice, doctorSmith, at(9, 0), at(9, 30)))
	require.NoError(t, err)

	_, err = svc.Update(ctx, reception, apt.RecordNumber, &model.UpdateAppointmentRequest{})
	assert.True(t, apperrors.Is(err, apperrors.ErrNoOp))
}

func TestUpdateAppointment_NotFound(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	note := model.Optional[string]{Set: true, Value: strPtr("x")}
	_, err := svc.Update(ctx, reception, "APT-999", &model.UpdateAppointmentRequest{NotesReception: note})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestUpdateAppointment_ClearNote(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	req := createReq(patientAlice, doctorSmith, at(9, 0), at(9, 30))
	req.NotesReception = strPtr("initial note")
	apt, err := svc.Create(ctx, reception, req)
	require.NoError(t, err)
	require.NotNil(t, apt.NotesReception)

	updated, err := svc.Update(ctx, reception, apt.RecordNumber, &model.UpdateAppointmentRequest{
		NotesReception: model.Optional[string]{Set: true, Value: nil},
	})
	require.NoError(t, err)
	assert.Nil(t, updated.NotesReception)
}

func TestGetAppointment_ClinicianScope(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	apt, err := svc.Create(ctx, reception, createReq(patientAlice, doctorSmith, at(9, 0), at(9, 30)))
	require.NoError(t, err)

	detail, err := svc.Get(ctx, drSmith, apt.RecordNumber)
	require.NoError(t, err)
	assert.Equal(t, "PAT-001", detail.Patient.RecordNumber)
	assert.Equal(t, "Dr Smith", detail.Doctor.FullName)

	_, err = svc.Get(ctx, drJones, apt.RecordNumber)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestListAppointments_ClinicianScope(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, reception, createReq(patientAlice, doctorSmith, at(9, 0), at(9, 30)))
	require.NoError(t, err)
	_, err = svc.Create(ctx, reception, createReq(patientBob, doctorJones, at(9, 0), at(9, 30)))
	require.NoError(t, err)

	all, err := svc.List(ctx, reception, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	own, err := svc.List(ctx, drSmith, "")
	require.NoError(t, err)
	assert.Len(t, own, 1)
}

func strPtr(s string) *string { return &s }
