package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/wrenfield/vintrack/api/internal/models"
)

// ChemicalRepository defines data access for chemicals and their
// mode-of-action groups.
type ChemicalRepository interface {
	// List returns all chemicals with their groups, ordered by name.
	List(ctx context.Context) ([]models.Chemical, error)

	// Get returns a chemical with its groups. Returns nil, nil when not found.
	Get(ctx context.Context, id uint) (*models.Chemical, error)

	// GetByName returns a chemical by exact name. Returns nil, nil when
	// not found.
	GetByName(ctx context.Context, name string) (*models.Chemical, error)

	// Create inserts a chemical and attaches the given groups.
	Create(ctx context.Context, c *models.Chemical, groupIDs []uint) error

	// Update persists a chemical's fields and replaces its group set.
	Update(ctx context.Context, c *models.Chemical, groupIDs []uint) error

	// Delete removes a chemical. Callers must check references first.
	Delete(ctx context.Context, id uint) error

	// ListGroups returns all chemical groups ordered by code.
	ListGroups(ctx context.Context) ([]models.ChemicalGroup, error)

	// CountSprayRefs returns how many planned spray rows reference the
	// chemical.
	CountSprayRefs(ctx context.Context, chemicalID uint) (int64, error)
}

// chemicalRepository is the GORM implementation of ChemicalRepository.
type chemicalRepository struct {
	db *gorm.DB
}

// NewChemicalRepository creates a ChemicalRepository backed by GORM.
func NewChemicalRepository(db *gorm.DB) ChemicalRepository {
	return &chemicalRepository{db: db}
}

func (r *chemicalRepository) List(ctx context.Context) ([]models.Chemical, error) {
	var chemicals []models.Chemical
	err := r.db.WithContext(ctx).
		Preload("ChemicalGroups").
		Order("name").
		Find(&chemicals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list chemicals: %w", err)
	}
	return chemicals, nil
}

func (r *chemicalRepository) Get(ctx context.Context, id uint) (*models.Chemical, error) {
	var chemical models.Chemical
	err := r.db.WithContext(ctx).
		Preload("ChemicalGroups").
		First(&chemical, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chemical %d: %w", id, err)
	}
	return &chemical, nil
}

func (r *chemicalRepository) GetByName(ctx context.Context, name string) (*models.Chemical, error) {
	var chemical models.Chemical
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		First(&chemical).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chemical %q: %w", name, err)
	}
	return &chemical, nil
}

func (r *chemicalRepository) Create(ctx context.Context, c *models.Chemical, groupIDs []uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		return r.replaceGroups(tx, c, groupIDs)
	})
	if err != nil {
		return fmt.Errorf("failed to create chemical: %w", err)
	}
	return nil
}

func (r *chemicalRepository) Update(ctx context.Context, c *models.Chemical, groupIDs []uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("ChemicalGroups").Save(c).Error; err != nil {
			return err
		}
		return r.replaceGroups(tx, c, groupIDs)
	})
	if err != nil {
		return fmt.Errorf("failed to update chemical %d: %w", c.ID, err)
	}
	return nil
}

// replaceGroups swaps the chemical's group associations for the given ids.
func (r *chemicalRepository) replaceGroups(tx *gorm.DB, c *models.Chemical, groupIDs []uint) error {
	var groups []models.ChemicalGroup
	if len(groupIDs) > 0 {
		if err := tx.Find(&groups, groupIDs).Error; err != nil {
			return err
		}
	}
	return tx.Model(c).Association("ChemicalGroups").Replace(groups)
}

func (r *chemicalRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chemical := models.Chemical{ID: id}
		if err := tx.Model(&chemical).Association("ChemicalGroups").Clear(); err != nil {
			return err
		}
		return tx.Delete(&chemical).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete chemical %d: %w", id, err)
	}
	return nil
}

func (r *chemicalRepository) ListGroups(ctx context.Context) ([]models.ChemicalGroup, error) {
	var groups []models.ChemicalGroup
	err := r.db.WithContext(ctx).
		Order("code").
		Find(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list chemical groups: %w", err)
	}
	return groups, nil
}

func (r *chemicalRepository) CountSprayRefs(ctx context.Context, chemicalID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SprayChemical{}).
		Where("chemical_id = ?", chemicalID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count spray rows for chemical %d: %w", chemicalID, err)
	}
	return count, nil
}
