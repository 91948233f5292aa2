package patient

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/medsched/clinic-api/internal/model"
	"github.com/medsched/clinic-api/internal/repository"
	"github.com/medsched/clinic-api/internal/service/rbac"
	apperrors "github.com/medsched/clinic-api/pkg/errors"
)

const lookupLimit = 10

type Service struct {
	repo   repository.PatientRepository
	rbac   *rbac.Service
	logger zerolog.Logger
}

func NewService(repo repository.PatientRepository, rbacSvc *rbac.Service, logger zerolog.Logger) *Service {
	return &Service{repo: repo, rbac: rbacSvc, logger: logger}
}

// Create registers a new patient, numbering it PAT-### from the row
// sequence inside the same transaction as the insert.
func (s *Service) Create(ctx context.Context, identity model.Identity, req *model.PatientRequest) (*model.Patient, error) {
	if !s.rbac.CanManagePatients(identity.Role) {
		return nil, apperrors.Forbidden("only reception or admin can create patient records")
	}

	var patient *model.Patient
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		seq, err := s.repo.NextSequence(ctx, tx)
		if err != nil {
			return err
		}

		patient = &model.Patient{
			ID:                 seq,
			RecordNumber:       fmt.Sprintf("PAT-%03d", seq),
			FirstName:          req.FirstName,
			LastName:           req.LastName,
			Gender:             req.Gender,
			DateOfBirth:        req.DateOfBirth,
			Allergies:          req.Allergies,
			MedicalHistory:     req.MedicalHistory,
			CurrentMedications: req.CurrentMedications,
		}
		return s.repo.Create(ctx, tx, patient)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("record_number", patient.RecordNumber).Msg("patient created")
	return patient, nil
}

func (s *Service) Get(ctx context.Context, recordNumber string) (*model.Patient, error) {
	return s.repo.GetByRecordNumber(ctx, recordNumber)
}

func (s *Service) List(ctx context.Context) ([]*model.Patient, error) {
	return s.repo.List(ctx)
}

// Update replaces the demographic fields wholesale; the record number and
// row id are stable.
func (s *Service) Update(ctx context.Context, identity model.Identity, recordNumber string, req *model.PatientRequest) (*model.Patient, error) {
	if !s.rbac.CanManagePatients(identity.Role) {
		return nil, apperrors.Forbidden("only reception or admin can update patient records")
	}

	patient, err := s.repo.GetByRecordNumber(ctx, recordNumber)
	if err != nil {
		return nil, err
	}

	patient.FirstName = req.FirstName
	patient.LastName = req.LastName
	patient.Gender = req.Gender
	patient.DateOfBirth = req.DateOfBirth
	patient.Allergies = req.Allergies
	patient.MedicalHistory = req.MedicalHistory
	patient.CurrentMedications = req.CurrentMedications

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *Service) Delete(ctx context.Context, identity model.Identity, recordNumber string) error {
	if !s.rbac.CanManagePatients(identity.Role) {
		return apperrors.Forbidden("only reception or admin can delete patient records")
	}
	if err := s.repo.Delete(ctx, recordNumber); err != nil {
		return err
	}
	s.logger.Info().Str("record_number", recordNumber).Msg("patient deleted")
	return nil
}

// Lookup serves the autocomplete box: matches against record number and
// both name parts, capped at ten results.
func (s *Service) Lookup(ctx context.Context, query string) ([]*model.PatientMatch, error) {
	if query == "" {
		return []*model.PatientMatch{}, nil
	}

	patients, err := s.repo.Search(ctx, query, lookupLimit)
	if err != nil {
		return nil, err
	}

	matches := make([]*model.PatientMatch, 0, len(patients))
	for _, p := range patients {
		matches = append(matches, &model.PatientMatch{
			ID:           p.ID,
			RecordNumber: p.RecordNumber,
			Display:      fmt.Sprintf("%s - %s %s", p.RecordNumber, p.FirstName, p.LastName),
		})
	}
	return matches, nil
}
