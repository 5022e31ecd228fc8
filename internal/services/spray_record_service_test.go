package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrenfield/vintrack/api/internal/models"
)

func TestCreateOrUpdate_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	fx := seedVineyard(t, env)
	seedSpray(t, env, fx)
	ctx := context.Background()

	unit := fx.units[0]

	first, err := env.recordSvc.CreateOrUpdate(ctx, unit.ID, fx.spray.ID)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.False(t, first.Complete, "New record should be pending")
	assert.Nil(t, first.OperatorID, "New record should have no operator")

	// Applying again must return the same record, not create a second one.
	second, err := env.recordSvc.CreateOrUpdate(ctx, unit.ID, fx.spray.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "Reapplying should reuse the existing record")

	var count int64
	env.db.Model(&models.SprayRecord{}).
		Where("management_unit_id = ? AND spray_id = ?", unit.ID, fx.spray.ID).
		Count(&count)
	assert.Equal(t, int64(1), count, "Exactly one record per (unit, spray) pair")
}

func TestCreateOrUpdate_PreservesCompletedRecord(t *testing.T) {
	env := newTestEnv(t)
	fx := seedVineyard(t, env)
	seedSpray(t, env, fx)
	seedOperator(t, env, fx)
	ctx := context.Background()

	unit := fx.units[0]
	_, err := env.recordSvc.CreateOrUpdate(ctx, unit.ID, fx.spray.ID)
	require.NoError(t, err)

	input := CompletionInput{
		OperatorID:    fx.operator.ID,
		WindDirection: "NE",
		BatchNumbers:  fx.batchNumbers(),
	}
	require.NoError(t, env.recordSvc.CompleteRecords(ctx, fx.spray.ID, []uint{unit.ID}, input))

	// A later re-apply must not reset the completed record.
	record, err := env.recordSvc.CreateOrUpdate(ctx, unit.ID, fx.spray.ID)
	require.NoError(t, err)
	assert.True(t, record.Complete, "Re-applying must not reopen a completed record")
}

func TestApplyToAllUnits_SkipsInactive(t *testing.T) {
	env := newTestEnv(t)
	fx := seedVineyard(t, env)
	seedSpray(t, env, fx)
	ctx := context.Background()

	applied, err := env.recordSvc.ApplyToAllUnits(ctx, fx.spray.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, applied, "The fallow unit should be skipped")

	var count int64
	env.db.Model(&models.SprayRecord{}).Where("spray_id = ?", fx.spray.ID).Count(&count)
	assert.Equal(t, int64(8), count)

	// The fallow block never received a record.
	fallow := fx.units[8]
	record, err := env.records.GetByUnitAndSpray(ctx, fallow.ID, fx.spray.ID)
	require.NoError(t, err)
	assert.Nil(t, record, "Inactive unit must not receive a record")
}

func TestApplyToAllReds_FiltersColourAndStatus(t *testing.T) {
	env := newTestEnv(t)
	fx := seedVineyard(t, env)
	seedSpray(t, env, fx)
	ctx := context.Background()

	applied, err := env.recordSvc.ApplyToAllReds(ctx, fx.spray.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, applied, "Four active red blocks, fallow red skipped")

	records, err := env.records.ListBySprayAndVineyard(ctx, fx.spray.ID, fx.vineyard.ID)
	require.NoError(t, err)
	for _, r := range records {
		assert.True(t, r.ManagementUnit.IsRedWine(), "Only red blocks should carry a record")
	}
}

func TestApplyToAllWhites(t *testing.T) {
	env := newTestEnv(t)
	fx := seedVineyard(t, env)
	seedSpray(t, env, fx)
	ctx := context.Background()

	applied, err := env.recordSvc.ApplyToAllWhites(ctx, fx.spray.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, applied)
}

func TestApplyToUnits_UnknownSpray(t *testing.T) {
	env := newTestEnv(t)
	fx := seedVineyard(t, env)
	ctx := context.Background()

	_, err := env.recordSvc.ApplyToUnits(ctx, 999, []uint{fx.units[0].ID})
	assert.ErrorIs(t, err, ErrSprayNotFound)
}

func TestCompleteRecords_MissingBatchNumberRejectsWholeSubmission(t *testing.T) {
	env := newTestEnv(t)
	fx := seedVineyard(t, env)
	seedSpray(t, env, fx)
	seedOperator(t, env, fx)
	ctx := context.Background()

	_, err := env.recordSvc.ApplyToAllUnits(ctx, fx.spray.ID)
	require.NoError(t, err)

	unitIDs := []uint{fx.units[0].ID, fx.units[1].ID}

	// Batch for copper only; sulphur is missing.
	input := CompletionInput{
		OperatorID:   fx.operator.ID,
		BatchNumbers: map[uint]string{fx.copper.ID: "CU-2025-014"},
	}
	err = env.recordSvc.CompleteRecords(ctx, fx.spray.ID, unitIDs, input)
	require.ErrorIs(t, err, ErrMissingBatchNumber)
	assert.Contains(t, err.Error(), "Wettable Sulphur", "Error should name the missing chemical")

	// Nothing was written.
	for _, unitID := range unitIDs {
		record, err := env.records.GetByUnitAndSpray(ctx, unitID, fx.spray.ID)
		require.NoError(t, err)
		assert.False(t, record.Complete, "Rejected submission must not mutate records")
		assert.Nil(t, record.OperatorID)
	}

	var batchRows int64
	env.db.Model(&models.SprayRecordChemical{}).Count(&batchRows)
	assert.Zero(t, batchRows, "No batch rows should exist after a rejected submission")
}

func TestCompleteRecords_UnknownBatchChemical(t *testing.T) {
	env := newTestEnv(t)
	fx := seedVineyard(t, env)
	seedSpray(t, env, fx)
	seedOperator(t, env, fx)
	ctx := context.Background()

	_, err := env.recordSvc.ApplyToAllUnits(ctx, fx.spray.ID)
	require.NoError(t, err)

	batches := fx.batchNumbers()
	batches[9999] = "GHOST-01"

	input := CompletionInput{OperatorID: fx.operator.ID, BatchNumbers: batches}
	err = env.recordSvc.CompleteRecords(ctx, fx.spray.ID, []uint{fx.units[0].ID}, input)
	assert.ErrorIs(t, err, ErrUnknownBatchChemical)
}

func TestCompleteRecords_RequiresOperatorAndUnits(t *testing.T) {
	env := newTestEnv(t)
	fx := seedVineyard(t, env)
	seedSpray(t, env, fx)
	seedOperator(t, env, fx)
	ctx := context.Background()

	err := env.recordSvc.CompleteRecords(ctx, fx.spray.ID, []uint{1}, CompletionInput{})
	assert.ErrorIs(t, err, ErrOperatorRequired)

	err = env.recordSvc.CompleteRecords(ctx, fx.spray.ID, nil, CompletionInput{OperatorID: fx.operator.ID})
	assert.ErrorIs(t, err, ErrNoUnitsSelected)
}

func TestCompleteRecords_InvalidWindDirection(t *testing.T) {
	env := newTestEnv(t)
	fx := seedVineyard(t, env)
	seedSpray(t, env, fx)
	seedOperator(t, env, fx)
	ctx := context.Background()

	input := CompletionInput{
		OperatorID:    fx.operator.ID,
		WindDirection: "NNW",
		BatchNumbers:  fx.batchNumbers(),
	}
	err := env.recordSvc.CompleteRecords(ctx, fx.spray.ID, []uint{fx.units[0].ID}, input)
	assert.ErrorIs(t, err, ErrInvalidWindDirection)
}

func TestCompleteRecords_MarksSelectedUnits(t *testing.T) {
	env := newTestEnv(t)
	fx := seedVineyard(t, env)
	seedSpray(t, env, fx)
	seedOperator(t, env, fx)
	ctx := context.Background()

	_, err := env.recordSvc.ApplyToAllUnits(ctx, fx.spray.ID)
	require.NoError(t, err)

	temp := 22
	humidity := 61
	windSpeed := 9
	selected := []uint{fx.units[0].ID, fx.units[1].ID, fx.units[2].ID}
	input := CompletionInput{
		OperatorID:       fx.operator.ID,
		Temperature:      &temp,
		RelativeHumidity: &humidity,
		WindSpeed:        &windSpeed,
		WindDirection:    "SW",
		BatchNumbers:     fx.batchNumbers(),
	}
	require.NoError(t, env.recordSvc.CompleteRecords(ctx, fx.spray.ID, selected, input))

	for _, unitID := range selected {
		record, err := env.records.GetByUnitAndSpray(ctx, unitID, fx.spray.ID)
		require.NoError(t, err)
		assert.True(t, record.Complete)
		assert.Equal(t, models.RecordCompleted, record.State())
		require.NotNil(t, record.OperatorID)
		assert.Equal(t, fx.operator.ID, *record.OperatorID)
		require.NotNil(t, record.DateCompleted)
		require.NotNil(t, record.WindDirection)
		assert.Equal(t, models.WindSW, *record.WindDirection)

		full, err := env.records.Get(ctx, record.ID)
		require.NoError(t, err)
		assert.Len(t, full.Chemicals, 2, "Both chemical batches recorded")
	}

	// Unselected units stay pending.
	untouched, err := env.records.GetByUnitAndSpray(ctx, fx.units[3].ID, fx.spray.ID)
	require.NoError(t, err)
	assert.False(t, untouched.Complete)
}

func TestCompleteRecords_SkipsUnitsWithoutRecords(t *testing.T) {
	env := newTestEnv(t)
	fx := seedVineyard(t, env)
	seedSpray(t, env, fx)
	seedOperator(t, env, fx)
	ctx := context.Background()

	// Only the first unit got the spray.
	_, err := env.recordSvc.CreateOrUpdate(ctx, fx.units[0].ID, fx.spray.ID)
	require.NoError(t, err)

	input := CompletionInput{OperatorID: fx.operator.ID, BatchNumbers: fx.batchNumbers()}
	selected := []uint{fx.units[0].ID, fx.units[5].ID}
	require.NoError(t, env.recordSvc.CompleteRecords(ctx, fx.spray.ID, selected, input))

	record, err := env.records.GetByUnitAndSpray(ctx, fx.units[0].ID, fx.spray.ID)
	require.NoError(t, err)
	assert.True(t, record.Complete)

	ghost, err := env.records.GetByUnitAndSpray(ctx, fx.units[5].ID, fx.spray.ID)
	require.NoError(t, err)
	assert.Nil(t, ghost, "Completion must not invent records for unapplied units")
}

func TestCompleteRecords_UpsertsBatchRowsOnResubmit(t *testing.T) {
	env := newTestEnv(t)
	fx := seedVineyard(t, env)
	seedSpray(t, env, fx)
	seedOperator(t, env, fx)
	ctx := context.Background()

	unitID := fx.units[0].ID
	_, err := env.recordSvc.CreateOrUpdate(ctx, unitID, fx.spray.ID)
	require.NoError(t, err)

	input := CompletionInput{OperatorID: fx.operator.ID, BatchNumbers: fx.batchNumbers()}
	require.NoError(t, env.recordSvc.CompleteRecords(ctx, fx.spray.ID, []uint{unitID}, input))

	// Resubmit with a corrected copper batch.
	batches := fx.batchNumbers()
	batches[fx.copper.ID] = "CU-2025-015"
	input.BatchNumbers = batches
	require.NoError(t, env.recordSvc.CompleteRecords(ctx, fx.spray.ID, []uint{unitID}, input))

	record, err := env.records.GetByUnitAndSpray(ctx, unitID, fx.spray.ID)
	require.NoError(t, err)
	full, err := env.records.Get(ctx, record.ID)
	require.NoError(t, err)

	require.Len(t, full.Chemicals, 2, "Resubmission updates rows instead of duplicating them")
	byChemical := map[uint]string{}
	for _, chem := range full.Chemicals {
		byChemical[chem.ChemicalID] = chem.BatchNumber
	}
	assert.Equal(t, "CU-2025-015", byChemical[fx.copper.ID])
	assert.Equal(t, "WS-2025-081", byChemical[fx.sulphur.ID])
}

func TestSprayCompleteForVineyard(t *testing.T) {
	env := newTestEnv(t)
	fx := seedVineyard(t, env)
	seedSpray(t, env, fx)
	seedOperator(t, env, fx)
	ctx := context.Background()

	// No records yet: not complete.
	complete, err := env.recordSvc.SprayCompleteForVineyard(ctx, fx.spray.ID, fx.vineyard.ID)
	require.NoError(t, err)
	assert.False(t, complete, "A spray with no records is not complete")

	_, err = env.recordSvc.ApplyToAllUnits(ctx, fx.spray.ID)
	require.NoError(t, err)

	complete, err = env.recordSvc.SprayCompleteForVineyard(ctx, fx.spray.ID, fx.vineyard.ID)
	require.NoError(t, err)
	assert.False(t, complete, "Pending records leave the spray incomplete")

	// Complete all but one unit.
	activeUnitIDs := make([]uint, 0, 8)
	for _, unit := range fx.units[:8] {
		activeUnitIDs = append(activeUnitIDs, unit.ID)
	}
	input := CompletionInput{OperatorID: fx.operator.ID, BatchNumbers: fx.batchNumbers()}
	require.NoError(t, env.recordSvc.CompleteRecords(ctx, fx.spray.ID, activeUnitIDs[:7], input))

	complete, err = env.recordSvc.SprayCompleteForVineyard(ctx, fx.spray.ID, fx.vineyard.ID)
	require.NoError(t, err)
	assert.False(t, complete, "One pending record keeps the spray incomplete")

	// Complete the last one.
	require.NoError(t, env.recordSvc.CompleteRecords(ctx, fx.spray.ID, activeUnitIDs[7:], input))

	complete, err = env.recordSvc.SprayCompleteForVineyard(ctx, fx.spray.ID, fx.vineyard.ID)
	require.NoError(t, err)
	assert.True(t, complete, "All records complete means the spray is complete")
}

func TestProgramCompleteForVineyard(t *testing.T) {
	env := newTestEnv(t)
	fx := seedVineyard(t, env)
	seedSpray(t, env, fx)
	seedOperator(t, env, fx)
	ctx := context.Background()

	// A second spray in the same program.
	second := models.Spray{
		Name:           "Flowering",
		SprayProgramID: fx.program.ID,
		GrowthStageID:  fx.stage.ID,
		SprayChemicals: []models.SprayChemical{
			{ChemicalID: fx.copper.ID, Target: models.TargetDownyMildew, ConcentrationFactor: decimal.NewFromInt(1)},
		},
	}
	require.NoError(t, env.db.Create(&second).Error)

	unitID := fx.units[0].ID
	_, err := env.recordSvc.CreateOrUpdate(ctx, unitID, fx.spray.ID)
	require.NoError(t, err)
	_, err = env.recordSvc.CreateOrUpdate(ctx, unitID, second.ID)
	require.NoError(t, err)

	input := CompletionInput{OperatorID: fx.operator.ID, BatchNumbers: fx.batchNumbers()}
	require.NoError(t, env.recordSvc.CompleteRecords(ctx, fx.spray.ID, []uint{unitID}, input))

	complete, err := env.recordSvc.ProgramCompleteForVineyard(ctx, fx.program.ID, fx.vineyard.ID)
	require.NoError(t, err)
	assert.False(t, complete, "Second spray still pending")

	require.NoError(t, env.recordSvc.CompleteRecords(ctx, second.ID, []uint{unitID}, CompletionInput{
		OperatorID:   fx.operator.ID,
		BatchNumbers: map[uint]string{fx.copper.ID: "CU-2025-020"},
	}))

	complete, err = env.recordSvc.ProgramCompleteForVineyard(ctx, fx.program.ID, fx.vineyard.ID)
	require.NoError(t, err)
	assert.True(t, complete)
}

func TestVineyardSprayStatus(t *testing.T) {
	env := newTestEnv(t)
	fx := seedVineyard(t, env)
	seedSpray(t, env, fx)
	seedOperator(t, env, fx)
	ctx := context.Background()

	_, err := env.recordSvc.ApplyToAllUnits(ctx, fx.spray.ID)
	require.NoError(t, err)

	input := CompletionInput{OperatorID: fx.operator.ID, BatchNumbers: fx.batchNumbers()}
	require.NoError(t, env.recordSvc.CompleteRecords(ctx, fx.spray.ID, []uint{fx.units[0].ID, fx.units[1].ID}, input))

	statuses, err := env.recordSvc.VineyardSprayStatus(ctx, fx.vineyard.ID)
	require.NoError(t, err)
	require.Len(t, statuses, 1)

	status := statuses[0]
	assert.Equal(t, fx.spray.ID, status.SprayID)
	assert.Equal(t, "Pre-bloom", status.SprayName)
	assert.Equal(t, 8, status.TotalRecords)
	assert.Equal(t, 2, status.CompleteCount)
	assert.False(t, status.Complete)
	assert.Equal(t, 18, status.TargetELNumber)
}

func TestEditRecord_RewritesCompletionData(t *testing.T) {
	env := newTestEnv(t)
	fx := seedVineyard(t, env)
	seedSpray(t, env, fx)
	seedOperator(t, env, fx)
	ctx := context.Background()

	unitID := fx.units[0].ID
	_, err := env.recordSvc.CreateOrUpdate(ctx, unitID, fx.spray.ID)
	require.NoError(t, err)

	input := CompletionInput{
		OperatorID:    fx.operator.ID,
		WindDirection: "N",
		BatchNumbers:  fx.batchNumbers(),
	}
	require.NoError(t, env.recordSvc.CompleteRecords(ctx, fx.spray.ID, []uint{unitID}, input))

	record, err := env.records.GetByUnitAndSpray(ctx, unitID, fx.spray.ID)
	require.NoError(t, err)

	temp := 18
	edit := CompletionInput{
		OperatorID:    fx.operator.ID,
		Temperature:   &temp,
		WindDirection: "SE",
		BatchNumbers:  fx.batchNumbers(),
	}
	require.NoError(t, env.recordSvc.EditRecord(ctx, record.ID, edit))

	updated, err := env.recordSvc.GetRecord(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, updated.Complete, "Editing keeps the record complete")
	require.NotNil(t, updated.Temperature)
	assert.Equal(t, 18, *updated.Temperature)
	require.NotNil(t, updated.WindDirection)
	assert.Equal(t, models.WindSE, *updated.WindDirection)
}

func TestEditRecord_ValidatesBatchNumbers(t *testing.T) {
	env := newTestEnv(t)
	fx := seedVineyard(t, env)
	seedSpray(t, env, fx)
	seedOperator(t, env, fx)
	ctx := context.Background()

	record, err := env.recordSvc.CreateOrUpdate(ctx, fx.units[0].ID, fx.spray.ID)
	require.NoError(t, err)

	err = env.recordSvc.EditRecord(ctx, record.ID, CompletionInput{
		OperatorID:   fx.operator.ID,
		BatchNumbers: map[uint]string{fx.copper.ID: "CU-2025-014"},
	})
	assert.ErrorIs(t, err, ErrMissingBatchNumber)
}

func TestDeleteRecord_RemovesBatchRows(t *testing.T) {
	env := newTestEnv(t)
	fx := seedVineyard(t, env)
	seedSpray(t, env, fx)
	seedOperator(t, env, fx)
	ctx := context.Background()

	unitID := fx.units[0].ID
	_, err := env.recordSvc.CreateOrUpdate(ctx, unitID, fx.spray.ID)
	require.NoError(t, err)

	input := CompletionInput{OperatorID: fx.operator.ID, BatchNumbers: fx.batchNumbers()}
	require.NoError(t, env.recordSvc.CompleteRecords(ctx, fx.spray.ID, []uint{unitID}, input))

	record, err := env.records.GetByUnitAndSpray(ctx, unitID, fx.spray.ID)
	require.NoError(t, err)

	require.NoError(t, env.recordSvc.DeleteRecord(ctx, record.ID))

	gone, err := env.records.GetByUnitAndSpray(ctx, unitID, fx.spray.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	var batchRows int64
	env.db.Model(&models.SprayRecordChemical{}).
		Where("spray_record_id = ?", record.ID).
		Count(&batchRows)
	assert.Zero(t, batchRows, "Batch rows cascade with the record")
}

func TestAddNote(t *testing.T) {
	env := newTestEnv(t)
	fx := seedVineyard(t, env)
	seedSpray(t, env, fx)
	ctx := context.Background()

	record, err := env.recordSvc.CreateOrUpdate(ctx, fx.units[0].ID, fx.spray.ID)
	require.NoError(t, err)

	require.NoError(t, env.recordSvc.AddNote(ctx, record.ID, "Nozzle 3 partially blocked"))

	updated, err := env.recordSvc.GetRecord(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nozzle 3 partially blocked", updated.Notes)

	err = env.recordSvc.AddNote(ctx, 9999, "ghost")
	assert.ErrorIs(t, err, ErrSprayRecordNotFound)
}

// End-to-end: apply a spray across the whole vineyard, complete it in two
// submissions, and confirm the rollups land where they should.
func TestSprayLifecycleAcrossVineyard(t *testing.T) {
	env := newTestEnv(t)
	fx := seedVineyard(t, env)
	seedSpray(t, env, fx)
	seedOperator(t, env, fx)
	ctx := context.Background()

	applied, err := env.recordSvc.ApplyToAllUnits(ctx, fx.spray.ID)
	require.NoError(t, err)
	require.Equal(t, 8, applied)

	activeIDs := make([]uint, 0, 8)
	for _, unit := range fx.units[:8] {
		activeIDs = append(activeIDs, unit.ID)
	}

	input := CompletionInput{
		OperatorID:    fx.operator.ID,
		WindDirection: "W",
		BatchNumbers:  fx.batchNumbers(),
	}

	// Morning run covers five blocks, afternoon run the rest.
	require.NoError(t, env.recordSvc.CompleteRecords(ctx, fx.spray.ID, activeIDs[:5], input))
	complete, err := env.recordSvc.SprayCompleteForVineyard(ctx, fx.spray.ID, fx.vineyard.ID)
	require.NoError(t, err)
	require.False(t, complete)

	require.NoError(t, env.recordSvc.CompleteRecords(ctx, fx.spray.ID, activeIDs[5:], input))
	complete, err = env.recordSvc.SprayCompleteForVineyard(ctx, fx.spray.ID, fx.vineyard.ID)
	require.NoError(t, err)
	require.True(t, complete)

	complete, err = env.recordSvc.ProgramCompleteForVineyard(ctx, fx.program.ID, fx.vineyard.ID)
	require.NoError(t, err)
	assert.True(t, complete, "Single-spray program completes with its spray")

	// The diary export sees every completed application.
	records, err := env.records.ListCompletedByVineyard(ctx, fx.vineyard.ID)
	require.NoError(t, err)
	assert.Len(t, records, 8)
}
