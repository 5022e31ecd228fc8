package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/wrenfield/vintrack/api/internal/models"
)

// SprayRepository defines data access for spray programs, sprays and
// their planned chemicals.
type SprayRepository interface {
	// ListSprayPrograms returns programs ordered by starting year, newest
	// first, with their sprays and chemicals preloaded.
	ListSprayPrograms(ctx context.Context) ([]models.SprayProgram, error)

	// GetSprayProgram returns a program with its sprays preloaded, sprays
	// ordered by target growth stage. Returns nil, nil when not found.
	GetSprayProgram(ctx context.Context, id uint) (*models.SprayProgram, error)

	// CreateSprayProgram inserts a new program.
	CreateSprayProgram(ctx context.Context, p *models.SprayProgram) error

	// SaveSprayProgram persists changes to an existing program.
	SaveSprayProgram(ctx context.Context, p *models.SprayProgram) error

	// DeleteSprayProgram removes a program; its sprays cascade.
	DeleteSprayProgram(ctx context.Context, id uint) error

	// GetSpray returns a spray with chemicals and growth stage preloaded.
	// Returns nil, nil when not found.
	GetSpray(ctx context.Context, id uint) (*models.Spray, error)

	// ListSpraysByProgram returns a program's sprays ordered by the EL
	// number of their target growth stage.
	ListSpraysByProgram(ctx context.Context, programID uint) ([]models.Spray, error)

	// CreateSpray inserts a spray together with its chemical rows.
	CreateSpray(ctx context.Context, s *models.Spray) error

	// SaveSpray persists changes to a spray's own fields.
	SaveSpray(ctx context.Context, s *models.Spray) error

	// ReplaceSprayChemicals swaps the full chemical set of a spray.
	ReplaceSprayChemicals(ctx context.Context, sprayID uint, chems []models.SprayChemical) error

	// DeleteSpray removes a spray; chemicals and records cascade.
	DeleteSpray(ctx context.Context, id uint) error

	// ListSprayChemicals returns the planned chemicals of a spray with
	// the chemical preloaded.
	ListSprayChemicals(ctx context.Context, sprayID uint) ([]models.SprayChemical, error)
}

// sprayRepository is the GORM implementation of SprayRepository.
type sprayRepository struct {
	db *gorm.DB
}

// NewSprayRepository creates a SprayRepository backed by GORM.
func NewSprayRepository(db *gorm.DB) SprayRepository {
	return &sprayRepository{db: db}
}

func (r *sprayRepository) ListSprayPrograms(ctx context.Context) ([]models.SprayProgram, error) {
	var programs []models.SprayProgram
	err := r.db.WithContext(ctx).
		Preload("Sprays.GrowthStage").
		Preload("Sprays.SprayChemicals.Chemical").
		Order("year_start DESC, name").
		Find(&programs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list spray programs: %w", err)
	}
	return programs, nil
}

func (r *sprayRepository) GetSprayProgram(ctx context.Context, id uint) (*models.SprayProgram, error) {
	var program models.SprayProgram
	err := r.db.WithContext(ctx).
		Preload("Sprays", func(db *gorm.DB) *gorm.DB {
			return db.Order("sprays.growth_stage_id")
		}).
		Preload("Sprays.GrowthStage").
		Preload("Sprays.SprayChemicals.Chemical").
		First(&program, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get spray program %d: %w", id, err)
	}
	return &program, nil
}

func (r *sprayRepository) CreateSprayProgram(ctx context.Context, p *models.SprayProgram) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create spray program: %w", err)
	}
	return nil
}

func (r *sprayRepository) SaveSprayProgram(ctx context.Context, p *models.SprayProgram) error {
	if err := r.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("failed to save spray program %d: %w", p.ID, err)
	}
	return nil
}

func (r *sprayRepository) DeleteSprayProgram(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Select("Sprays").Delete(&models.SprayProgram{ID: id}).Error; err != nil {
		return fmt.Errorf("failed to delete spray program %d: %w", id, err)
	}
	return nil
}

func (r *sprayRepository) GetSpray(ctx context.Context, id uint) (*models.Spray, error) {
	var spray models.Spray
	err := r.db.WithContext(ctx).
		Preload("GrowthStage").
		Preload("SprayChemicals.Chemical").
		First(&spray, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get spray %d: %w", id, err)
	}
	return &spray, nil
}

func (r *sprayRepository) ListSpraysByProgram(ctx context.Context, programID uint) ([]models.Spray, error) {
	var sprays []models.Spray
	err := r.db.WithContext(ctx).
		Joins("JOIN growth_stages ON growth_stages.id = sprays.growth_stage_id").
		Where("sprays.spray_program_id = ?", programID).
		Preload("GrowthStage").
		Preload("SprayChemicals.Chemical").
		Order("growth_stages.el_number").
		Find(&sprays).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sprays for program %d: %w", programID, err)
	}
	return sprays, nil
}

func (r *sprayRepository) CreateSpray(ctx context.Context, s *models.Spray) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("failed to create spray: %w", err)
	}
	return nil
}

func (r *sprayRepository) SaveSpray(ctx context.Context, s *models.Spray) error {
	err := r.db.WithContext(ctx).
		Omit("SprayChemicals", "SprayRecords").
		Save(s).Error
	if err != nil {
		return fmt.Errorf("failed to save spray %d: %w", s.ID, err)
	}
	return nil
}

func (r *sprayRepository) ReplaceSprayChemicals(ctx context.Context, sprayID uint, chems []models.SprayChemical) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("spray_id = ?", sprayID).Delete(&models.SprayChemical{}).Error; err != nil {
			return err
		}
		for i := range chems {
			chems[i].ID = 0
			chems[i].SprayID = sprayID
		}
		if len(chems) == 0 {
			return nil
		}
		return tx.Create(&chems).Error
	})
	if err != nil {
		return fmt.Errorf("failed to replace chemicals for spray %d: %w", sprayID, err)
	}
	return nil
}

func (r *sprayRepository) DeleteSpray(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).
		Select("SprayChemicals", "SprayRecords").
		Delete(&models.Spray{ID: id}).Error
	if err != nil {
		return fmt.Errorf("failed to delete spray %d: %w", id, err)
	}
	return nil
}

func (r *sprayRepository) ListSprayChemicals(ctx context.Context, sprayID uint) ([]models.SprayChemical, error) {
	var chems []models.SprayChemical
	err := r.db.WithContext(ctx).
		Where("spray_id = ?", sprayID).
		Preload("Chemical").
		Find(&chems).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list chemicals for spray %d: %w", sprayID, err)
	}
	return chems, nil
}
