package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wrenfield/vintrack/api/internal/logger"
	"github.com/wrenfield/vintrack/api/internal/models"
	"github.com/wrenfield/vintrack/api/internal/repository"
)

// Service-level errors
var (
	ErrSprayNotFound        = errors.New("spray not found")
	ErrSprayRecordNotFound  = errors.New("spray record not found")
	ErrVineyardNotFound     = errors.New("vineyard not found")
	ErrOperatorRequired     = errors.New("an operator must be assigned to a completed record")
	ErrNoUnitsSelected      = errors.New("at least one management unit must be selected")
	ErrMissingBatchNumber   = errors.New("missing batch number")
	ErrUnknownBatchChemical = errors.New("batch number supplied for a chemical not on this spray")
	ErrInvalidWindDirection = errors.New("invalid wind direction")
)

// CompletionInput carries a spray-completion submission. BatchNumbers maps
// chemical id to the batch actually used, one entry per chemical attached
// to the spray.
type CompletionInput struct {
	OperatorID       uint
	GrowthStageID    *uint
	TimeStarted      *time.Time
	TimeFinished     *time.Time
	HoursTaken       *decimal.Decimal
	Temperature      *int
	RelativeHumidity *int
	WindSpeed        *int
	WindDirection    string
	BatchNumbers     map[uint]string
}

// SprayStatus summarises one spray's progress across a vineyard's units.
type SprayStatus struct {
	SprayID        uint   `json:"spray_id"`
	SprayName      string `json:"spray_name"`
	TotalRecords   int    `json:"total_records"`
	CompleteCount  int    `json:"complete_count"`
	Complete       bool   `json:"complete"`
	TargetELNumber int    `json:"target_el_number,omitempty"`
}

// SprayRecordService owns the reconciliation between planned sprays and
// the per-unit records of their execution. The record set is the sole
// source of truth for completion; nothing is stored on the spray itself.
type SprayRecordService interface {
	// CreateOrUpdate ensures a record exists for the (unit, spray) pair.
	// An existing record is returned untouched; otherwise a pending record
	// with no operator is inserted. Idempotent.
	CreateOrUpdate(ctx context.Context, unitID, sprayID uint) (*models.SprayRecord, error)

	// ApplyToAllUnits creates pending records for every active management
	// unit. Inactive units are skipped and logged, never an error.
	// Returns the number of units now carrying a record for the spray.
	ApplyToAllUnits(ctx context.Context, sprayID uint) (int, error)

	// ApplyToAllReds creates pending records for every active red-variety unit.
	ApplyToAllReds(ctx context.Context, sprayID uint) (int, error)

	// ApplyToAllWhites creates pending records for every active white-variety unit.
	ApplyToAllWhites(ctx context.Context, sprayID uint) (int, error)

	// ApplyToUnits creates pending records for the named units, skipping
	// inactive ones.
	ApplyToUnits(ctx context.Context, sprayID uint, unitIDs []uint) (int, error)

	// CompleteRecords marks the named units' records complete with the
	// supplied operator, conditions and chemical batches. Validation runs
	// before any mutation; the mutation itself is one transaction, so a
	// failure on any unit rolls back all of them. Units with no existing
	// record are skipped.
	CompleteRecords(ctx context.Context, sprayID uint, unitIDs []uint, input CompletionInput) error

	// EditRecord re-applies the completion mutation to a single record.
	// There is no separate reopen transition.
	EditRecord(ctx context.Context, recordID uint, input CompletionInput) error

	// GetRecord returns a record with its associations.
	GetRecord(ctx context.Context, recordID uint) (*models.SprayRecord, error)

	// DeleteRecord removes a record and its chemical batch rows.
	DeleteRecord(ctx context.Context, recordID uint) error

	// AddNote appends a note to a record.
	AddNote(ctx context.Context, recordID uint, note string) error

	// ListRecords returns the records of a spray across a vineyard.
	ListRecords(ctx context.Context, sprayID, vineyardID uint) ([]models.SprayRecord, error)

	// SprayCompleteForVineyard derives completion for a spray across a
	// vineyard: false when no records exist, otherwise the AND of every
	// record's complete flag.
	SprayCompleteForVineyard(ctx context.Context, sprayID, vineyardID uint) (bool, error)

	// ProgramCompleteForVineyard reports whether every spray in a program
	// is complete for the vineyard.
	ProgramCompleteForVineyard(ctx context.Context, programID, vineyardID uint) (bool, error)

	// VineyardSprayStatus summarises per-spray progress for a vineyard.
	VineyardSprayStatus(ctx context.Context, vineyardID uint) ([]SprayStatus, error)
}

// sprayRecordService is the concrete implementation of SprayRecordService.
type sprayRecordService struct {
	records   repository.SprayRecordRepository
	sprays    repository.SprayRepository
	vineyards repository.VineyardRepository
	log       *logger.Logger
}

// NewSprayRecordService creates a new SprayRecordService.
func NewSprayRecordService(
	records repository.SprayRecordRepository,
	sprays repository.SprayRepository,
	vineyards repository.VineyardRepository,
	log *logger.Logger,
) SprayRecordService {
	return &sprayRecordService{
		records:   records,
		sprays:    sprays,
		vineyards: vineyards,
		log:       log,
	}
}

func (s *sprayRecordService) CreateOrUpdate(ctx context.Context, unitID, sprayID uint) (*models.SprayRecord, error) {
	existing, err := s.records.GetByUnitAndSpray(ctx, unitID, sprayID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up spray record: %w", err)
	}
	if existing != nil {
		// Reaffirmation is a no-op: the pair already has its one record.
		return existing, nil
	}

	record := &models.SprayRecord{
		ManagementUnitID: unitID,
		SprayID:          sprayID,
	}
	if err := s.records.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create spray record: %w", err)
	}

	s.log.Info("Created pending spray record", map[string]interface{}{
		"spray_id":           sprayID,
		"management_unit_id": unitID,
		"record_id":          record.ID,
	})

	return record, nil
}

func (s *sprayRecordService) ApplyToAllUnits(ctx context.Context, sprayID uint) (int, error) {
	units, err := s.vineyards.ListManagementUnits(ctx)
	if err != nil {
		return 0, err
	}
	return s.applyToUnits(ctx, sprayID, units)
}

func (s *sprayRecordService) ApplyToAllReds(ctx context.Context, sprayID uint) (int, error) {
	units, err := s.vineyards.ListManagementUnitsByColour(ctx, models.WineColourRed)
	if err != nil {
		return 0, err
	}
	return s.applyToUnits(ctx, sprayID, units)
}

func (s *sprayRecordService) ApplyToAllWhites(ctx context.Context, sprayID uint) (int, error) {
	units, err := s.vineyards.ListManagementUnitsByColour(ctx, models.WineColourWhite)
	if err != nil {
		return 0, err
	}
	return s.applyToUnits(ctx, sprayID, units)
}

func (s *sprayRecordService) ApplyToUnits(ctx context.Context, sprayID uint, unitIDs []uint) (int, error) {
	if len(unitIDs) == 0 {
		return 0, ErrNoUnitsSelected
	}

	units := make([]models.ManagementUnit, 0, len(unitIDs))
	for _, id := range unitIDs {
		unit, err := s.vineyards.GetManagementUnit(ctx, id)
		if err != nil {
			return 0, err
		}
		if unit == nil {
			s.log.Warn("Skipping unknown management unit", map[string]interface{}{
				"management_unit_id": id,
				"spray_id":           sprayID,
			})
			continue
		}
		units = append(units, *unit)
	}

	return s.applyToUnits(ctx, sprayID, units)
}

// applyToUnits runs the idempotent create-or-update over the eligible
// subset of units. Inactive units are logged and skipped.
func (s *sprayRecordService) applyToUnits(ctx context.Context, sprayID uint, units []models.ManagementUnit) (int, error) {
	spray, err := s.sprays.GetSpray(ctx, sprayID)
	if err != nil {
		return 0, err
	}
	if spray == nil {
		return 0, ErrSprayNotFound
	}

	applied := 0
	for i := range units {
		unit := &units[i]
		if !unit.IsActive() {
			s.log.Info("Skipping inactive management unit", map[string]interface{}{
				"management_unit_id": unit.ID,
				"unit_name":          unit.Name,
				"spray_id":           sprayID,
			})
			continue
		}

		if _, err := s.CreateOrUpdate(ctx, unit.ID, sprayID); err != nil {
			return applied, err
		}
		applied++
	}

	s.log.Info("Applied spray to management units", map[string]interface{}{
		"spray_id":   sprayID,
		"spray_name": spray.Name,
		"applied":    applied,
		"skipped":    len(units) - applied,
	})

	return applied, nil
}

func (s *sprayRecordService) CompleteRecords(ctx context.Context, sprayID uint, unitIDs []uint, input CompletionInput) error {
	if input.OperatorID == 0 {
		return ErrOperatorRequired
	}
	if len(unitIDs) == 0 {
		return ErrNoUnitsSelected
	}

	windDirection, err := s.parseWindDirection(input.WindDirection)
	if err != nil {
		return err
	}

	spray, err := s.sprays.GetSpray(ctx, sprayID)
	if err != nil {
		return err
	}
	if spray == nil {
		return ErrSprayNotFound
	}

	// Every chemical on the spray needs a batch number before anything
	// is written; a single omission rejects the whole submission.
	if err := validateBatchNumbers(spray.SprayChemicals, input.BatchNumbers); err != nil {
		return err
	}

	now := time.Now().UTC()
	err = s.records.Transaction(ctx, func(tx repository.SprayRecordRepository) error {
		for _, unitID := range unitIDs {
			record, err := tx.GetByUnitAndSpray(ctx, unitID, sprayID)
			if err != nil {
				return err
			}
			if record == nil {
				// The spray was never applied to this unit; the
				// original skips these rather than failing.
				s.log.Warn("No spray record for selected unit", map[string]interface{}{
					"spray_id":           sprayID,
					"management_unit_id": unitID,
				})
				continue
			}

			applyCompletion(record, input, windDirection, now)
			if err := tx.Save(ctx, record); err != nil {
				return err
			}

			for chemicalID, batchNumber := range input.BatchNumbers {
				if err := tx.UpsertChemical(ctx, record.ID, chemicalID, batchNumber); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to complete spray records: %w", err)
	}

	s.log.Info("Completed spray records", map[string]interface{}{
		"spray_id":    sprayID,
		"unit_count":  len(unitIDs),
		"operator_id": input.OperatorID,
	})

	return nil
}

func (s *sprayRecordService) EditRecord(ctx context.Context, recordID uint, input CompletionInput) error {
	if input.OperatorID == 0 {
		return ErrOperatorRequired
	}

	windDirection, err := s.parseWindDirection(input.WindDirection)
	if err != nil {
		return err
	}

	record, err := s.records.Get(ctx, recordID)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrSprayRecordNotFound
	}

	spray, err := s.sprays.GetSpray(ctx, record.SprayID)
	if err != nil {
		return err
	}
	if spray == nil {
		return ErrSprayNotFound
	}

	if err := validateBatchNumbers(spray.SprayChemicals, input.BatchNumbers); err != nil {
		return err
	}

	now := time.Now().UTC()
	err = s.records.Transaction(ctx, func(tx repository.SprayRecordRepository) error {
		applyCompletion(record, input, windDirection, now)
		if err := tx.Save(ctx, record); err != nil {
			return err
		}
		for chemicalID, batchNumber := range input.BatchNumbers {
			if err := tx.UpsertChemical(ctx, record.ID, chemicalID, batchNumber); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to edit spray record %d: %w", recordID, err)
	}

	return nil
}

func (s *sprayRecordService) GetRecord(ctx context.Context, recordID uint) (*models.SprayRecord, error) {
	record, err := s.records.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrSprayRecordNotFound
	}
	return record, nil
}

func (s *sprayRecordService) DeleteRecord(ctx context.Context, recordID uint) error {
	record, err := s.records.Get(ctx, recordID)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrSprayRecordNotFound
	}

	if err := s.records.Delete(ctx, recordID); err != nil {
		return err
	}

	s.log.Info("Deleted spray record", map[string]interface{}{
		"record_id":          recordID,
		"spray_id":           record.SprayID,
		"management_unit_id": record.ManagementUnitID,
	})

	return nil
}

func (s *sprayRecordService) AddNote(ctx context.Context, recordID uint, note string) error {
	record, err := s.records.Get(ctx, recordID)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrSprayRecordNotFound
	}

	record.Notes = note
	return s.records.Save(ctx, record)
}

func (s *sprayRecordService) ListRecords(ctx context.Context, sprayID, vineyardID uint) ([]models.SprayRecord, error) {
	vineyard, err := s.vineyards.GetVineyard(ctx, vineyardID)
	if err != nil {
		return nil, err
	}
	if vineyard == nil {
		return nil, ErrVineyardNotFound
	}

	return s.records.ListBySprayAndVineyard(ctx, sprayID, vineyardID)
}

func (s *sprayRecordService) SprayCompleteForVineyard(ctx context.Context, sprayID, vineyardID uint) (bool, error) {
	records, err := s.records.ListBySprayAndVineyard(ctx, sprayID, vineyardID)
	if err != nil {
		return false, err
	}

	// No records means the spray was never started here; that is distinct
	// from "done" and reads as incomplete.
	if len(records) == 0 {
		return false, nil
	}

	for i := range records {
		if !records[i].Complete {
			return false, nil
		}
	}
	return true, nil
}

func (s *sprayRecordService) ProgramCompleteForVineyard(ctx context.Context, programID, vineyardID uint) (bool, error) {
	sprays, err := s.sprays.ListSpraysByProgram(ctx, programID)
	if err != nil {
		return false, err
	}
	if len(sprays) == 0 {
		return false, nil
	}

	for i := range sprays {
		complete, err := s.SprayCompleteForVineyard(ctx, sprays[i].ID, vineyardID)
		if err != nil {
			return false, err
		}
		if !complete {
			return false, nil
		}
	}
	return true, nil
}

func (s *sprayRecordService) VineyardSprayStatus(ctx context.Context, vineyardID uint) ([]SprayStatus, error) {
	vineyard, err := s.vineyards.GetVineyard(ctx, vineyardID)
	if err != nil {
		return nil, err
	}
	if vineyard == nil {
		return nil, ErrVineyardNotFound
	}

	records, err := s.records.ListByVineyard(ctx, vineyardID)
	if err != nil {
		return nil, err
	}

	bySpray := make(map[uint]*SprayStatus)
	order := make([]uint, 0)
	for i := range records {
		record := &records[i]
		status, ok := bySpray[record.SprayID]
		if !ok {
			status = &SprayStatus{SprayID: record.SprayID}
			if record.Spray != nil {
				status.SprayName = record.Spray.Name
				if record.Spray.GrowthStage != nil {
					status.TargetELNumber = record.Spray.GrowthStage.ELNumber
				}
			}
			bySpray[record.SprayID] = status
			order = append(order, record.SprayID)
		}

		status.TotalRecords++
		if record.Complete {
			status.CompleteCount++
		}
	}

	statuses := make([]SprayStatus, 0, len(order))
	for _, sprayID := range order {
		status := bySpray[sprayID]
		status.Complete = status.TotalRecords > 0 && status.CompleteCount == status.TotalRecords
		statuses = append(statuses, *status)
	}
	return statuses, nil
}

// parseWindDirection validates an optional wind-direction string.
func (s *sprayRecordService) parseWindDirection(raw string) (*models.WindDirection, error) {
	if raw == "" {
		return nil, nil
	}
	direction, err := models.ParseWindDirection(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidWindDirection, raw)
	}
	return &direction, nil
}

// validateBatchNumbers checks the submitted batch map against the spray's
// chemical list: every chemical needs a non-empty batch number, and no
// batch may reference a chemical the spray does not carry.
func validateBatchNumbers(sprayChemicals []models.SprayChemical, batches map[uint]string) error {
	required := make(map[uint]string, len(sprayChemicals))
	for i := range sprayChemicals {
		sc := &sprayChemicals[i]
		name := fmt.Sprintf("chemical %d", sc.ChemicalID)
		if sc.Chemical != nil {
			name = sc.Chemical.Name
		}
		required[sc.ChemicalID] = name

		if batches[sc.ChemicalID] == "" {
			return fmt.Errorf("%w for %s", ErrMissingBatchNumber, name)
		}
	}

	for chemicalID := range batches {
		if _, ok := required[chemicalID]; !ok {
			return fmt.Errorf("%w: chemical %d", ErrUnknownBatchChemical, chemicalID)
		}
	}
	return nil
}

// applyCompletion overwrites a record with the submitted completion data.
// Editing a completed record re-runs this same mutation; the completed
// timestamp is refreshed rather than preserved.
func applyCompletion(record *models.SprayRecord, input CompletionInput, wind *models.WindDirection, now time.Time) {
	record.OperatorID = &input.OperatorID
	record.GrowthStageID = input.GrowthStageID
	record.TimeStarted = input.TimeStarted
	record.TimeFinished = input.TimeFinished
	record.HoursTaken = input.HoursTaken
	record.Temperature = input.Temperature
	record.RelativeHumidity = input.RelativeHumidity
	record.WindSpeed = input.WindSpeed
	record.WindDirection = wind
	record.Complete = true
	record.DateCompleted = &now
}
