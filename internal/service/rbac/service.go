package rbac

import (
	"github.com/medsched/clinic-api/internal/model"
	apperrors "github.com/medsched/clinic-api/pkg/errors"
)

// writeMatrix is the field authorization matrix: which booking fields each
// role may write. Reception owns the schedule side, clinicians the clinical
// side, admin both.
var writeMatrix = map[model.Role]map[model.AppointmentField]bool{
	model.RoleReception: {
		model.FieldPatientID:      true,
		model.FieldDoctorID:       true,
		model.FieldStartTime:      true,
		model.FieldEndTime:        true,
		model.FieldNotesReception: true,
	},
	model.RoleClinician: {
		model.FieldStatus:      true,
		model.FieldNotesDoctor: true,
	},
	model.RoleAdmin: {
		model.FieldPatientID:      true,
		model.FieldDoctorID:       true,
		model.FieldStartTime:      true,
		model.FieldEndTime:        true,
		model.FieldNotesReception: true,
		model.FieldStatus:         true,
		model.FieldNotesDoctor:    true,
	},
}

type Service struct{}

func NewService() *Service {
	return &Service{}
}

// AuthorizedFields returns the set of booking fields the role may write.
func (s *Service) AuthorizedFields(role model.Role) map[model.AppointmentField]bool {
	fields := make(map[model.AppointmentField]bool, len(writeMatrix[role]))
	for field := range writeMatrix[role] {
		fields[field] = true
	}
	return fields
}

// FilterUpdate checks every field present in the request against the matrix.
// Any disallowed field rejects the entire update; fields are never silently
// dropped, so a caller can't be surprised by a partial write.
func (s *Service) FilterUpdate(role model.Role, req *model.UpdateAppointmentRequest) ([]model.AppointmentField, error) {
	requested := req.Fields()
	allowed := writeMatrix[role]

	for _, field := range requested {
		if !allowed[field] {
			return nil, apperrors.Forbidden("role " + string(role) + " may not update " + string(field))
		}
	}
	return requested, nil
}

// CanCreateAppointment reports whether the role may create bookings.
// Clinicians book nothing themselves; reception and admin do.
func (s *Service) CanCreateAppointment(role model.Role) bool {
	return role == model.RoleReception || role == model.RoleAdmin
}

// CheckOwnership enforces the second authorization axis: a clinician may
// only touch bookings where they are the assigned doctor. Admin bypasses;
// reception has no ownership restriction (its scope is the field matrix).
func (s *Service) CheckOwnership(identity model.Identity, apt *model.Appointment) error {
	if identity.Role == model.RoleClinician && apt.DoctorID != identity.UserID {
		return apperrors.Forbidden("clinicians can only edit their own appointments")
	}
	return nil
}

// CanView reports whether the identity may read the booking. Clinicians see
// only their assigned bookings; reception and admin see all.
func (s *Service) CanView(identity model.Identity, apt *model.Appointment) bool {
	if identity.Role == model.RoleClinician {
		return apt.DoctorID == identity.UserID
	}
	return true
}

// ListScope returns the doctor id a list query must be restricted to, or 0
// for an unrestricted view.
func (s *Service) ListScope(identity model.Identity) int64 {
	if identity.Role == model.RoleClinician {
		return identity.UserID
	}
	return 0
}

// CanManagePatients reports whether the role may create, update or delete
// patient records.
func (s *Service) CanManagePatients(role model.Role) bool {
	return role == model.RoleReception || role == model.RoleAdmin
}
