package services

import (
	"context"
	"errors"

	"github.com/wrenfield/vintrack/api/internal/logger"
	"github.com/wrenfield/vintrack/api/internal/models"
	"github.com/wrenfield/vintrack/api/internal/repository"
)

var (
	ErrChemicalNameTaken = errors.New("a chemical with that name already exists")
	ErrChemicalInUse     = errors.New("chemical is referenced by sprays or spray records")
)

// ChemicalService manages the chemical catalogue and its mode-of-action
// groups.
type ChemicalService interface {
	List(ctx context.Context) ([]models.Chemical, error)
	Get(ctx context.Context, id uint) (*models.Chemical, error)
	Create(ctx context.Context, c *models.Chemical, groupIDs []uint) error
	Update(ctx context.Context, c *models.Chemical, groupIDs []uint) error

	// Delete removes a chemical unless any spray or spray record still
	// references it.
	Delete(ctx context.Context, id uint) error

	ListGroups(ctx context.Context) ([]models.ChemicalGroup, error)
}

// chemicalService is the concrete implementation of ChemicalService.
type chemicalService struct {
	repo    repository.ChemicalRepository
	records repository.SprayRecordRepository
	log     *logger.Logger
}

// NewChemicalService creates a new ChemicalService.
func NewChemicalService(
	repo repository.ChemicalRepository,
	records repository.SprayRecordRepository,
	log *logger.Logger,
) ChemicalService {
	return &chemicalService{repo: repo, records: records, log: log}
}

func (s *chemicalService) List(ctx context.Context) ([]models.Chemical, error) {
	return s.repo.List(ctx)
}

func (s *chemicalService) Get(ctx context.Context, id uint) (*models.Chemical, error) {
	chemical, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if chemical == nil {
		return nil, ErrChemicalNotFound
	}
	return chemical, nil
}

func (s *chemicalService) Create(ctx context.Context, c *models.Chemical, groupIDs []uint) error {
	existing, err := s.repo.GetByName(ctx, c.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrChemicalNameTaken
	}

	if err := s.repo.Create(ctx, c, groupIDs); err != nil {
		return err
	}

	s.log.Info("Created chemical", map[string]interface{}{
		"chemical_id": c.ID,
		"name":        c.Name,
	})
	return nil
}

func (s *chemicalService) Update(ctx context.Context, c *models.Chemical, groupIDs []uint) error {
	existing, err := s.repo.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrChemicalNotFound
	}

	// A rename must not collide with another chemical.
	if c.Name != existing.Name {
		clash, err := s.repo.GetByName(ctx, c.Name)
		if err != nil {
			return err
		}
		if clash != nil && clash.ID != c.ID {
			return ErrChemicalNameTaken
		}
	}

	return s.repo.Update(ctx, c, groupIDs)
}

func (s *chemicalService) Delete(ctx context.Context, id uint) error {
	chemical, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if chemical == nil {
		return ErrChemicalNotFound
	}

	sprayRefs, err := s.repo.CountSprayRefs(ctx, id)
	if err != nil {
		return err
	}
	recordRefs, err := s.records.CountChemicalRefs(ctx, id)
	if err != nil {
		return err
	}
	if sprayRefs > 0 || recordRefs > 0 {
		s.log.Warn("Refused to delete referenced chemical", map[string]interface{}{
			"chemical_id": id,
			"spray_refs":  sprayRefs,
			"record_refs": recordRefs,
		})
		return ErrChemicalInUse
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info("Deleted chemical", map[string]interface{}{
		"chemical_id": id,
		"name":        chemical.Name,
	})
	return nil
}

func (s *chemicalService) ListGroups(ctx context.Context) ([]models.ChemicalGroup, error) {
	return s.repo.ListGroups(ctx)
}
