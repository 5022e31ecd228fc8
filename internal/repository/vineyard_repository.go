package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/wrenfield/vintrack/api/internal/models"
)

// VineyardRepository defines data access for vineyards, management units
// and the reference data hanging off them.
type VineyardRepository interface {
	// ListVineyards returns all vineyards ordered by name.
	ListVineyards(ctx context.Context) ([]models.Vineyard, error)

	// GetVineyard returns a vineyard with its management units (variety,
	// wine colour and status preloaded). Returns nil, nil when not found.
	GetVineyard(ctx context.Context, id uint) (*models.Vineyard, error)

	// CreateVineyard inserts a new vineyard.
	CreateVineyard(ctx context.Context, v *models.Vineyard) error

	// SaveVineyard persists changes to an existing vineyard.
	SaveVineyard(ctx context.Context, v *models.Vineyard) error

	// DeleteVineyard removes a vineyard; units and their records cascade.
	DeleteVineyard(ctx context.Context, id uint) error

	// GetManagementUnit returns a unit with variety, colour and status
	// preloaded. Returns nil, nil when not found.
	GetManagementUnit(ctx context.Context, id uint) (*models.ManagementUnit, error)

	// SaveManagementUnit persists changes to an existing unit.
	SaveManagementUnit(ctx context.Context, mu *models.ManagementUnit) error

	// ListManagementUnits returns every unit with variety, colour and
	// status preloaded, ordered by name.
	ListManagementUnits(ctx context.Context) ([]models.ManagementUnit, error)

	// ListManagementUnitsByColour returns units whose variety's wine
	// colour matches the given name. Units without a variety never match.
	ListManagementUnitsByColour(ctx context.Context, colour string) ([]models.ManagementUnit, error)

	// ListGrowthStages returns growth stages ordered by EL number,
	// optionally restricted to major stages.
	ListGrowthStages(ctx context.Context, majorsOnly bool) ([]models.GrowthStage, error)

	// GetGrowthStage returns a growth stage. Returns nil, nil when not found.
	GetGrowthStage(ctx context.Context, id uint) (*models.GrowthStage, error)
}

// vineyardRepository is the GORM implementation of VineyardRepository.
type vineyardRepository struct {
	db *gorm.DB
}

// NewVineyardRepository creates a VineyardRepository backed by GORM.
func NewVineyardRepository(db *gorm.DB) VineyardRepository {
	return &vineyardRepository{db: db}
}

func (r *vineyardRepository) ListVineyards(ctx context.Context) ([]models.Vineyard, error) {
	var vineyards []models.Vineyard
	err := r.db.WithContext(ctx).
		Order("name").
		Find(&vineyards).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list vineyards: %w", err)
	}
	return vineyards, nil
}

func (r *vineyardRepository) GetVineyard(ctx context.Context, id uint) (*models.Vineyard, error) {
	var vineyard models.Vineyard
	err := r.db.WithContext(ctx).
		Preload("ManagementUnits", func(db *gorm.DB) *gorm.DB {
			return db.Order("management_units.name")
		}).
		Preload("ManagementUnits.Variety.WineColour").
		Preload("ManagementUnits.Status").
		First(&vineyard, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vineyard %d: %w", id, err)
	}
	return &vineyard, nil
}

func (r *vineyardRepository) CreateVineyard(ctx context.Context, v *models.Vineyard) error {
	if err := r.db.WithContext(ctx).Create(v).Error; err != nil {
		return fmt.Errorf("failed to create vineyard: %w", err)
	}
	return nil
}

func (r *vineyardRepository) SaveVineyard(ctx context.Context, v *models.Vineyard) error {
	if err := r.db.WithContext(ctx).Save(v).Error; err != nil {
		return fmt.Errorf("failed to save vineyard %d: %w", v.ID, err)
	}
	return nil
}

func (r *vineyardRepository) DeleteVineyard(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Select("ManagementUnits").Delete(&models.Vineyard{ID: id}).Error; err != nil {
		return fmt.Errorf("failed to delete vineyard %d: %w", id, err)
	}
	return nil
}

func (r *vineyardRepository) GetManagementUnit(ctx context.Context, id uint) (*models.ManagementUnit, error) {
	var unit models.ManagementUnit
	err := r.db.WithContext(ctx).
		Preload("Variety.WineColour").
		Preload("Status").
		First(&unit, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get management unit %d: %w", id, err)
	}
	return &unit, nil
}

func (r *vineyardRepository) SaveManagementUnit(ctx context.Context, mu *models.ManagementUnit) error {
	if err := r.db.WithContext(ctx).Save(mu).Error; err != nil {
		return fmt.Errorf("failed to save management unit %d: %w", mu.ID, err)
	}
	return nil
}

func (r *vineyardRepository) ListManagementUnits(ctx context.Context) ([]models.ManagementUnit, error) {
	var units []models.ManagementUnit
	err := r.db.WithContext(ctx).
		Preload("Variety.WineColour").
		Preload("Status").
		Order("name").
		Find(&units).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list management units: %w", err)
	}
	return units, nil
}

func (r *vineyardRepository) ListManagementUnitsByColour(ctx context.Context, colour string) ([]models.ManagementUnit, error) {
	var units []models.ManagementUnit
	err := r.db.WithContext(ctx).
		Joins("JOIN varieties ON varieties.id = management_units.variety_id").
		Joins("JOIN wine_colours ON wine_colours.id = varieties.wine_colour_id").
		Where("wine_colours.name = ?", colour).
		Preload("Variety.WineColour").
		Preload("Status").
		Order("management_units.name").
		Find(&units).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %s management units: %w", colour, err)
	}
	return units, nil
}

func (r *vineyardRepository) ListGrowthStages(ctx context.Context, majorsOnly bool) ([]models.GrowthStage, error) {
	query := r.db.WithContext(ctx).Order("el_number")
	if majorsOnly {
		query = query.Where("is_major = ?", true)
	}

	var stages []models.GrowthStage
	if err := query.Find(&stages).Error; err != nil {
		return nil, fmt.Errorf("failed to list growth stages: %w", err)
	}
	return stages, nil
}

func (r *vineyardRepository) GetGrowthStage(ctx context.Context, id uint) (*models.GrowthStage, error) {
	var stage models.GrowthStage
	err := r.db.WithContext(ctx).First(&stage, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get growth stage %d: %w", id, err)
	}
	return &stage, nil
}
