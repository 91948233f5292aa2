package dashboard

import (
	"context"
	"time"

	"github.com/medsched/clinic-api/internal/model"
	"github.com/medsched/clinic-api/internal/repository"
	"github.com/medsched/clinic-api/internal/service/rbac"
)

type Service struct {
	appointments repository.AppointmentRepository
	patients     repository.PatientRepository
	rbac         *rbac.Service
}

func NewService(appointments repository.AppointmentRepository, patients repository.PatientRepository, rbacSvc *rbac.Service) *Service {
	return &Service{appointments: appointments, patients: patients, rbac: rbacSvc}
}

// Stats computes the dashboard counters. A clinician's figures only cover
// their own bookings, and their patient total counts the distinct patients
// they have bookings with rather than the whole registry.
func (s *Service) Stats(ctx context.Context, identity model.Identity) (*model.DashboardStats, error) {
	doctorID := s.rbac.ListScope(identity)

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	tomorrow := today.AddDate(0, 0, 1)

	todayCount, err := s.appointments.CountStartingBetween(ctx, today, tomorrow, doctorID)
	if err != nil {
		return nil, err
	}

	pendingCount, err := s.appointments.CountByStatus(ctx, model.AppointmentStatusPending, doctorID)
	if err != nil {
		return nil, err
	}

	var totalPatients int64
	if doctorID != 0 {
		totalPatients, err = s.appointments.CountDistinctPatients(ctx, doctorID)
	} else {
		totalPatients, err = s.patients.Count(ctx)
	}
	if err != nil {
		return nil, err
	}

	return &model.DashboardStats{
		TodayCount:    todayCount,
		TotalPatients: totalPatients,
		PendingCount:  pendingCount,
	}, nil
}
