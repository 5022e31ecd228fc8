package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSprayDiary(t *testing.T) {
	env := newTestEnv(t)
	fx := seedVineyard(t, env)
	seedSpray(t, env, fx)
	seedOperator(t, env, fx)
	ctx := context.Background()

	_, err := env.recordSvc.CreateOrUpdate(ctx, fx.units[0].ID, fx.spray.ID)
	require.NoError(t, err)
	_, err = env.recordSvc.CreateOrUpdate(ctx, fx.units[1].ID, fx.spray.ID)
	require.NoError(t, err)

	input := CompletionInput{
		OperatorID:    fx.operator.ID,
		WindDirection: "NW",
		BatchNumbers:  fx.batchNumbers(),
	}
	require.NoError(t, env.recordSvc.CompleteRecords(ctx, fx.spray.ID, []uint{fx.units[0].ID}, input))

	data, filename, err := env.exportSvc.SprayDiary(ctx, fx.vineyard.ID)
	require.NoError(t, err)
	assert.Equal(t, "amarok-spray-diary.xlsx", filename)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err, "Export should be a readable workbook")
	defer f.Close()

	rows, err := f.GetRows("Spray Diary")
	require.NoError(t, err)

	// Header plus one line per chemical of the single completed record;
	// the pending record on the second unit is excluded.
	require.Len(t, rows, 3)
	assert.Equal(t, "Date Completed", rows[0][0])
	assert.Equal(t, "Chemical", rows[0][3])

	chemicals := []string{rows[1][3], rows[2][3]}
	assert.Contains(t, chemicals, "Copper Hydroxide")
	assert.Contains(t, chemicals, "Wettable Sulphur")
	assert.Equal(t, "Sam Fletcher", rows[1][5])
}

func TestSprayDiary_UnknownVineyard(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.exportSvc.SprayDiary(context.Background(), 42)
	assert.ErrorIs(t, err, ErrVineyardNotFound)
}
