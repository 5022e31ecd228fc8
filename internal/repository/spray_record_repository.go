package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/wrenfield/vintrack/api/internal/models"
)

// SprayRecordRepository defines data access for spray records and their
// applied chemical batches. WithTx rebinds the repository to a transaction
// so multi-record mutations can commit or roll back as one unit.
type SprayRecordRepository interface {
	// WithTx returns a copy of the repository bound to the given transaction.
	WithTx(tx *gorm.DB) SprayRecordRepository

	// Transaction runs fn inside a database transaction.
	Transaction(ctx context.Context, fn func(txRepo SprayRecordRepository) error) error

	// GetByUnitAndSpray returns the record for a (unit, spray) pair.
	// Returns nil, nil when no record exists.
	GetByUnitAndSpray(ctx context.Context, unitID, sprayID uint) (*models.SprayRecord, error)

	// Get returns a record with unit, operator, growth stage and chemical
	// batches preloaded. Returns nil, nil when not found.
	Get(ctx context.Context, id uint) (*models.SprayRecord, error)

	// Create inserts a new record.
	Create(ctx context.Context, r *models.SprayRecord) error

	// Save persists changes to an existing record.
	Save(ctx context.Context, r *models.SprayRecord) error

	// Delete removes a record; its chemical batch rows cascade.
	Delete(ctx context.Context, id uint) error

	// ListBySprayAndVineyard returns all records of a spray whose
	// management unit belongs to the vineyard.
	ListBySprayAndVineyard(ctx context.Context, sprayID, vineyardID uint) ([]models.SprayRecord, error)

	// ListByVineyard returns every record whose management unit belongs
	// to the vineyard, with the spray preloaded.
	ListByVineyard(ctx context.Context, vineyardID uint) ([]models.SprayRecord, error)

	// ListCompletedByVineyard returns a vineyard's completed records with
	// unit, spray, operator and chemical batches preloaded, oldest first.
	ListCompletedByVineyard(ctx context.Context, vineyardID uint) ([]models.SprayRecord, error)

	// UpsertChemical inserts or updates the batch number for a
	// (record, chemical) pair.
	UpsertChemical(ctx context.Context, recordID, chemicalID uint, batchNumber string) error

	// CountByOperator returns how many records reference the given user.
	CountByOperator(ctx context.Context, operatorID uint) (int64, error)

	// CountChemicalRefs returns how many batch rows reference the chemical.
	CountChemicalRefs(ctx context.Context, chemicalID uint) (int64, error)
}

// sprayRecordRepository is the GORM implementation of SprayRecordRepository.
type sprayRecordRepository struct {
	db *gorm.DB
}

// NewSprayRecordRepository creates a SprayRecordRepository backed by GORM.
func NewSprayRecordRepository(db *gorm.DB) SprayRecordRepository {
	return &sprayRecordRepository{db: db}
}

func (r *sprayRecordRepository) WithTx(tx *gorm.DB) SprayRecordRepository {
	return &sprayRecordRepository{db: tx}
}

func (r *sprayRecordRepository) Transaction(ctx context.Context, fn func(txRepo SprayRecordRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

func (r *sprayRecordRepository) GetByUnitAndSpray(ctx context.Context, unitID, sprayID uint) (*models.SprayRecord, error) {
	var record models.SprayRecord
	err := r.db.WithContext(ctx).
		Where("management_unit_id = ? AND spray_id = ?", unitID, sprayID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get spray record for unit %d spray %d: %w", unitID, sprayID, err)
	}
	return &record, nil
}

func (r *sprayRecordRepository) Get(ctx context.Context, id uint) (*models.SprayRecord, error) {
	var record models.SprayRecord
	err := r.db.WithContext(ctx).
		Preload("ManagementUnit.Variety.WineColour").
		Preload("ManagementUnit.Status").
		Preload("Operator").
		Preload("GrowthStage").
		Preload("Chemicals.Chemical").
		First(&record, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get spray record %d: %w", id, err)
	}
	return &record, nil
}

func (r *sprayRecordRepository) Create(ctx context.Context, record *models.SprayRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to create spray record: %w", err)
	}
	return nil
}

func (r *sprayRecordRepository) Save(ctx context.Context, record *models.SprayRecord) error {
	err := r.db.WithContext(ctx).
		Omit("ManagementUnit", "Spray", "Operator", "GrowthStage", "Chemicals").
		Save(record).Error
	if err != nil {
		return fmt.Errorf("failed to save spray record %d: %w", record.ID, err)
	}
	return nil
}

func (r *sprayRecordRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).
		Select("Chemicals").
		Delete(&models.SprayRecord{ID: id}).Error
	if err != nil {
		return fmt.Errorf("failed to delete spray record %d: %w", id, err)
	}
	return nil
}

func (r *sprayRecordRepository) ListBySprayAndVineyard(ctx context.Context, sprayID, vineyardID uint) ([]models.SprayRecord, error) {
	var records []models.SprayRecord
	err := r.db.WithContext(ctx).
		Joins("JOIN management_units ON management_units.id = spray_records.management_unit_id").
		Where("spray_records.spray_id = ? AND management_units.vineyard_id = ?", sprayID, vineyardID).
		Preload("ManagementUnit.Variety.WineColour").
		Preload("ManagementUnit.Status").
		Preload("Operator").
		Order("management_units.name").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list records for spray %d in vineyard %d: %w", sprayID, vineyardID, err)
	}
	return records, nil
}

func (r *sprayRecordRepository) ListByVineyard(ctx context.Context, vineyardID uint) ([]models.SprayRecord, error) {
	var records []models.SprayRecord
	err := r.db.WithContext(ctx).
		Joins("JOIN management_units ON management_units.id = spray_records.management_unit_id").
		Where("management_units.vineyard_id = ?", vineyardID).
		Preload("Spray.GrowthStage").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list records for vineyard %d: %w", vineyardID, err)
	}
	return records, nil
}

func (r *sprayRecordRepository) ListCompletedByVineyard(ctx context.Context, vineyardID uint) ([]models.SprayRecord, error) {
	var records []models.SprayRecord
	err := r.db.WithContext(ctx).
		Joins("JOIN management_units ON management_units.id = spray_records.management_unit_id").
		Where("management_units.vineyard_id = ? AND spray_records.complete = ?", vineyardID, true).
		Preload("ManagementUnit").
		Preload("Spray.GrowthStage").
		Preload("Operator").
		Preload("GrowthStage").
		Preload("Chemicals.Chemical").
		Order("spray_records.date_completed").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list completed records for vineyard %d: %w", vineyardID, err)
	}
	return records, nil
}

func (r *sprayRecordRepository) UpsertChemical(ctx context.Context, recordID, chemicalID uint, batchNumber string) error {
	db := r.db.WithContext(ctx)

	var existing models.SprayRecordChemical
	err := db.Where("spray_record_id = ? AND chemical_id = ?", recordID, chemicalID).
		First(&existing).Error
	switch {
	case err == nil:
		existing.BatchNumber = batchNumber
		if err := db.Save(&existing).Error; err != nil {
			return fmt.Errorf("failed to update batch for record %d chemical %d: %w", recordID, chemicalID, err)
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := models.SprayRecordChemical{
			SprayRecordID: recordID,
			ChemicalID:    chemicalID,
			BatchNumber:   batchNumber,
		}
		if err := db.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert batch for record %d chemical %d: %w", recordID, chemicalID, err)
		}
		return nil
	default:
		return fmt.Errorf("failed to look up batch for record %d chemical %d: %w", recordID, chemicalID, err)
	}
}

func (r *sprayRecordRepository) CountByOperator(ctx context.Context, operatorID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SprayRecord{}).
		Where("operator_id = ?", operatorID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count records for operator %d: %w", operatorID, err)
	}
	return count, nil
}

func (r *sprayRecordRepository) CountChemicalRefs(ctx context.Context, chemicalID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SprayRecordChemical{}).
		Where("chemical_id = ?", chemicalID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count batch rows for chemical %d: %w", chemicalID, err)
	}
	return count, nil
}
