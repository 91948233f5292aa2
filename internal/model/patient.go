package model

import (
	"time"
)

// Patient record numbers look like PAT-007: the numeric part is the row
// sequence at creation time, zero padded to three digits.
type Patient struct {
	ID                 int64     `db:"id" json:"id"`
	RecordNumber       string    `db:"record_number" json:"record_number"`
	FirstName          string    `db:"first_name" json:"first_name"`
	LastName           string    `db:"last_name" json:"last_name"`
	Gender             string    `db:"gender" json:"gender"`
	DateOfBirth        time.Time `db:"date_of_birth" json:"date_of_birth"`
	Allergies          *string   `db:"allergies" json:"allergies"`
	MedicalHistory     *string   `db:"medical_history" json:"medical_history"`
	CurrentMedications *string   `db:"current_medications" json:"current_medications"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

type PatientRequest struct {
	FirstName          string    `json:"first_name" binding:"required"`
	LastName           string    `json:"last_name" binding:"required"`
	Gender             string    `json:"gender" binding:"required"`
	DateOfBirth        time.Time `json:"date_of_birth" binding:"required"`
	Allergies          *string   `json:"allergies"`
	MedicalHistory     *string   `json:"medical_history"`
	CurrentMedications *string   `json:"current_medications"`
}

// PatientMatch is one autocomplete result from the lookup endpoint.
type PatientMatch struct {
	ID           int64  `json:"id"`
	RecordNumber string `json:"record_number"`
	Display      string `json:"display"`
}
