package model

import (
	"time"
)

// Role determines which booking fields a user may write and which bookings
// they may see. The set is fixed; there is no dynamic role administration.
type Role string

const (
	RoleReception Role = "reception"
	RoleClinician Role = "clinician"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleReception, RoleClinician, RoleAdmin:
		return true
	}
	return false
}

// User represents a staff account. Doctors are users with RoleClinician.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         Role      `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Identity is the authenticated caller resolved from a session token.
type Identity struct {
	UserID int64 `json:"user_id"`
	Role   Role  `json:"role"`
}

// ClinicianSummary is the projection served by the clinician directory.
type ClinicianSummary struct {
	ID       int64  `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	FullName string `db:"full_name" json:"full_name"`
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
	Role     Role   `json:"role" binding:"required,role"`
}
