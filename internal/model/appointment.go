package model

import (
	"fmt"
	"time"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "PENDING"
	AppointmentStatusCompleted AppointmentStatus = "COMPLETED"
)

func (s AppointmentStatus) Valid() bool {
	return s == AppointmentStatusPending || s == AppointmentStatusCompleted
}

// AppointmentField names a writable booking field. The authorization matrix
// and the partial-update machinery both work in terms of these names.
type AppointmentField string

const (
	FieldPatientID      AppointmentField = "patient_id"
	FieldDoctorID       AppointmentField = "doctor_id"
	FieldStartTime      AppointmentField = "start_time"
	FieldEndTime        AppointmentField = "end_time"
	FieldNotesReception AppointmentField = "notes_reception"
	FieldStatus         AppointmentField = "status"
	FieldNotesDoctor    AppointmentField = "notes_doctor"
)

// Appointment is a booking of a doctor's time slot for a patient.
// Invariants: StartTime < EndTime, no two appointments for the same doctor
// overlap under the half-open [start, end) predicate, RecordNumber and
// CreatedByUserID never change after creation.
type Appointment struct {
	ID              int64             `db:"id" json:"-"`
	RecordNumber    string            `db:"record_number" json:"record_number"`
	PatientID       int64             `db:"patient_id" json:"patient_id"`
	DoctorID        int64             `db:"doctor_id" json:"doctor_id"`
	StartTime       time.Time         `db:"start_time" json:"start_time"`
	EndTime         time.Time         `db:"end_time" json:"end_time"`
	Status          AppointmentStatus `db:"status" json:"status"`
	NotesReception  *string           `db:"notes_reception" json:"notes_reception"`
	NotesDoctor     *string           `db:"notes_doctor" json:"notes_doctor"`
	CreatedByUserID int64             `db:"created_by_user_id" json:"created_by_user_id"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// AppointmentRecordNumber formats the human-facing identifier for a
// sequence id, e.g. 7 -> APT-007. Sequences beyond 999 widen naturally.
func AppointmentRecordNumber(seq int64) string {
	return fmt.Sprintf("APT-%03d", seq)
}

type CreateAppointmentRequest struct {
	PatientID      int64     `json:"patient_id"`
	DoctorID       int64     `json:"doctor_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	NotesReception *string   `json:"notes_reception"`
}

// UpdateAppointmentRequest carries an arbitrary subset of booking fields.
// Pointer fields are "present" when non-nil; the notes fields use Optional
// so an explicit null (clear the note) is distinguishable from omission.
type UpdateAppointmentRequest struct {
	PatientID      *int64             `json:"patient_id"`
	DoctorID       *int64             `json:"doctor_id"`
	StartTime      *time.Time         `json:"start_time"`
	EndTime        *time.Time         `json:"end_time"`
	NotesReception Optional[string]   `json:"notes_reception"`
	Status         *AppointmentStatus `json:"status"`
	NotesDoctor    Optional[string]   `json:"notes_doctor"`
}

// Fields returns the names of the fields present in the request.
func (r *UpdateAppointmentRequest) Fields() []AppointmentField {
	var fields []AppointmentField
	if r.PatientID != nil {
		fields = append(fields, FieldPatientID)
	}
	if r.DoctorID != nil {
		fields = append(fields, FieldDoctorID)
	}
	if r.StartTime != nil {
		fields = append(fields, FieldStartTime)
	}
	if r.EndTime != nil {
		fields = append(fields, FieldEndTime)
	}
	if r.NotesReception.Set {
		fields = append(fields, FieldNotesReception)
	}
	if r.Status != nil {
		fields = append(fields, FieldStatus)
	}
	if r.NotesDoctor.Set {
		fields = append(fields, FieldNotesDoctor)
	}
	return fields
}

// AppointmentSummary is the list-view projection with denormalized names.
type AppointmentSummary struct {
	RecordNumber        string            `db:"record_number" json:"record_number"`
	StartTime           time.Time         `db:"start_time" json:"start_time"`
	EndTime             time.Time         `db:"end_time" json:"end_time"`
	Status              AppointmentStatus `db:"status" json:"status"`
	PatientName         string            `db:"patient_name" json:"patient_name"`
	PatientRecordNumber string            `db:"patient_record_number" json:"patient_record_number"`
	DoctorFullName      string            `db:"doctor_full_name" json:"doctor_full_name"`
	CreatedByFullName   string            `db:"created_by_full_name" json:"created_by_full_name"`
	NotesReception      *string           `db:"notes_reception" json:"notes_reception"`
}

// AppointmentDetail is the single-booking projection.
type AppointmentDetail struct {
	Appointment
	Patient   *Patient          `json:"patient_details,omitempty"`
	Doctor    *ClinicianSummary `json:"doctor_details,omitempty"`
	CreatedBy *ClinicianSummary `json:"created_by_details,omitempty"`
}

// AppointmentFilter narrows list queries. DoctorID restricts to one
// doctor's bookings; PatientRecordNumber to one patient's history.
type AppointmentFilter struct {
	DoctorID            int64
	PatientRecordNumber string
}
