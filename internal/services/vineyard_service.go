package services

import (
	"context"
	"errors"

	"github.com/wrenfield/vintrack/api/internal/logger"
	"github.com/wrenfield/vintrack/api/internal/models"
	"github.com/wrenfield/vintrack/api/internal/repository"
)

var (
	ErrManagementUnitNotFound = errors.New("management unit not found")
	ErrGrowthStageNotFound    = errors.New("growth stage not found")
	ErrVineyardNameTaken      = errors.New("a vineyard with that name already exists")
)

// VineyardService manages vineyards, their management units and the
// growth-stage reference data.
type VineyardService interface {
	ListVineyards(ctx context.Context) ([]models.Vineyard, error)
	GetVineyard(ctx context.Context, id uint) (*models.Vineyard, error)
	CreateVineyard(ctx context.Context, v *models.Vineyard) error
	UpdateVineyard(ctx context.Context, v *models.Vineyard) error
	DeleteVineyard(ctx context.Context, id uint) error

	GetManagementUnit(ctx context.Context, id uint) (*models.ManagementUnit, error)
	UpdateManagementUnit(ctx context.Context, mu *models.ManagementUnit) error

	// ListManagementUnits returns units optionally filtered by wine colour
	// ("Red" or "White"); an empty colour returns every unit.
	ListManagementUnits(ctx context.Context, colour string) ([]models.ManagementUnit, error)

	// ListActiveManagementUnits returns units whose status is Active.
	ListActiveManagementUnits(ctx context.Context) ([]models.ManagementUnit, error)

	ListGrowthStages(ctx context.Context, majorsOnly bool) ([]models.GrowthStage, error)
}

// vineyardService is the concrete implementation of VineyardService.
type vineyardService struct {
	repo repository.VineyardRepository
	log  *logger.Logger
}

// NewVineyardService creates a new VineyardService.
func NewVineyardService(repo repository.VineyardRepository, log *logger.Logger) VineyardService {
	return &vineyardService{repo: repo, log: log}
}

func (s *vineyardService) ListVineyards(ctx context.Context) ([]models.Vineyard, error) {
	return s.repo.ListVineyards(ctx)
}

func (s *vineyardService) GetVineyard(ctx context.Context, id uint) (*models.Vineyard, error) {
	vineyard, err := s.repo.GetVineyard(ctx, id)
	if err != nil {
		return nil, err
	}
	if vineyard == nil {
		return nil, ErrVineyardNotFound
	}
	return vineyard, nil
}

func (s *vineyardService) CreateVineyard(ctx context.Context, v *models.Vineyard) error {
	if err := s.repo.CreateVineyard(ctx, v); err != nil {
		return err
	}

	s.log.Info("Created vineyard", map[string]interface{}{
		"vineyard_id": v.ID,
		"name":        v.Name,
	})
	return nil
}

func (s *vineyardService) UpdateVineyard(ctx context.Context, v *models.Vineyard) error {
	existing, err := s.repo.GetVineyard(ctx, v.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrVineyardNotFound
	}
	return s.repo.SaveVineyard(ctx, v)
}

func (s *vineyardService) DeleteVineyard(ctx context.Context, id uint) error {
	vineyard, err := s.repo.GetVineyard(ctx, id)
	if err != nil {
		return err
	}
	if vineyard == nil {
		return ErrVineyardNotFound
	}

	if err := s.repo.DeleteVineyard(ctx, id); err != nil {
		return err
	}

	s.log.Info("Deleted vineyard", map[string]interface{}{
		"vineyard_id": id,
		"name":        vineyard.Name,
		"unit_count":  len(vineyard.ManagementUnits),
	})
	return nil
}

func (s *vineyardService) GetManagementUnit(ctx context.Context, id uint) (*models.ManagementUnit, error) {
	unit, err := s.repo.GetManagementUnit(ctx, id)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, ErrManagementUnitNotFound
	}
	return unit, nil
}

func (s *vineyardService) UpdateManagementUnit(ctx context.Context, mu *models.ManagementUnit) error {
	existing, err := s.repo.GetManagementUnit(ctx, mu.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrManagementUnitNotFound
	}
	return s.repo.SaveManagementUnit(ctx, mu)
}

func (s *vineyardService) ListManagementUnits(ctx context.Context, colour string) ([]models.ManagementUnit, error) {
	if colour == "" {
		return s.repo.ListManagementUnits(ctx)
	}
	return s.repo.ListManagementUnitsByColour(ctx, colour)
}

func (s *vineyardService) ListActiveManagementUnits(ctx context.Context) ([]models.ManagementUnit, error) {
	units, err := s.repo.ListManagementUnits(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]models.ManagementUnit, 0, len(units))
	for i := range units {
		if units[i].IsActive() {
			active = append(active, units[i])
		}
	}
	return active, nil
}

func (s *vineyardService) ListGrowthStages(ctx context.Context, majorsOnly bool) ([]models.GrowthStage, error) {
	return s.repo.ListGrowthStages(ctx, majorsOnly)
}
