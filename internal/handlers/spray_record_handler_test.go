package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/wrenfield/vintrack/api/internal/models"
)

// applyAll applies the seeded spray to every active unit through the API.
func applyAll(t *testing.T, server *testServer, world *world) {
	t.Helper()

	w := server.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/sprays/%d/apply", world.spray.ID),
		ApplyRequest{Scope: "all"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response ApplyResponse
	decode(t, w, &response)
	require.Equal(t, len(world.units), response.Applied)
}

func TestApplySpray(t *testing.T) {
	server := newTestServer(t)
	world := server.seedWorld(t)

	applyAll(t, server, world)

	t.Run("records listed for the spray", func(t *testing.T) {
		w := server.do(t, http.MethodGet,
			fmt.Sprintf("/api/v1/sprays/%d/records?vineyard_id=%d", world.spray.ID, world.vineyard.ID), nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var response RecordListResponse
		decode(t, w, &response)
		assert.Equal(t, 2, response.Count)
		for _, record := range response.Records {
			assert.False(t, record.Complete)
		}
	})

	t.Run("missing vineyard filter", func(t *testing.T) {
		w := server.do(t, http.MethodGet,
			fmt.Sprintf("/api/v1/sprays/%d/records", world.spray.ID), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid scope", func(t *testing.T) {
		w := server.do(t, http.MethodPost,
			fmt.Sprintf("/api/v1/sprays/%d/apply", world.spray.ID),
			map[string]interface{}{"scope": "everything"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown spray", func(t *testing.T) {
		w := server.do(t, http.MethodPost, "/api/v1/sprays/999/apply",
			ApplyRequest{Scope: "all"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCompleteSpray(t *testing.T) {
	server := newTestServer(t)
	world := server.seedWorld(t)
	applyAll(t, server, world)

	unitIDs := []uint{world.units[0].ID, world.units[1].ID}
	temperature := 21

	t.Run("missing batch number rejected", func(t *testing.T) {
		w := server.do(t, http.MethodPost,
			fmt.Sprintf("/api/v1/sprays/%d/complete", world.spray.ID),
			CompletionRequest{
				UnitIDs:    unitIDs,
				OperatorID: server.operator.ID,
			})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Copper Hydroxide")
	})

	t.Run("valid submission completes records", func(t *testing.T) {
		w := server.do(t, http.MethodPost,
			fmt.Sprintf("/api/v1/sprays/%d/complete", world.spray.ID),
			CompletionRequest{
				UnitIDs:       unitIDs,
				OperatorID:    server.operator.ID,
				Temperature:   &temperature,
				WindDirection: "SW",
				BatchNumbers:  map[uint]string{world.copper.ID: "CU-2025-014"},
			})

		assert.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

		var records []models.SprayRecord
		require.NoError(t, server.db.DB.Where("spray_id = ?", world.spray.ID).Find(&records).Error)
		require.Len(t, records, 2)
		for _, record := range records {
			assert.True(t, record.Complete)
			assert.NotNil(t, record.DateCompleted)
		}
	})

	t.Run("status rollup reflects completion", func(t *testing.T) {
		w := server.do(t, http.MethodGet,
			fmt.Sprintf("/api/v1/vineyards/%d/spray-status", world.vineyard.ID), nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"complete":true`)
	})
}

func TestGetAndAnnotateRecord(t *testing.T) {
	server := newTestServer(t)
	world := server.seedWorld(t)
	applyAll(t, server, world)

	var record models.SprayRecord
	require.NoError(t, server.db.DB.Where("spray_id = ?", world.spray.ID).First(&record).Error)

	t.Run("get", func(t *testing.T) {
		w := server.do(t, http.MethodGet, fmt.Sprintf("/api/v1/spray-records/%d", record.ID), nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var got models.SprayRecord
		decode(t, w, &got)
		assert.Equal(t, record.ID, got.ID)
		assert.False(t, got.Complete)
	})

	t.Run("add note", func(t *testing.T) {
		w := server.do(t, http.MethodPost,
			fmt.Sprintf("/api/v1/spray-records/%d/notes", record.ID),
			NoteRequest{Note: "Drift risk near the creek rows"})
		assert.Equal(t, http.StatusNoContent, w.Code)

		var reloaded models.SprayRecord
		require.NoError(t, server.db.DB.First(&reloaded, record.ID).Error)
		assert.Contains(t, reloaded.Notes, "Drift risk")
	})

	t.Run("unknown record", func(t *testing.T) {
		w := server.do(t, http.MethodGet, "/api/v1/spray-records/999", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestExportSprayDiary(t *testing.T) {
	server := newTestServer(t)
	world := server.seedWorld(t)
	applyAll(t, server, world)

	w := server.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/sprays/%d/complete", world.spray.ID),
		CompletionRequest{
			UnitIDs:      []uint{world.units[0].ID},
			OperatorID:   server.operator.ID,
			BatchNumbers: map[uint]string{world.copper.ID: "CU-2025-014"},
		})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = server.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/vineyards/%d/spray-diary", world.vineyard.ID), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "amarok-spray-diary.xlsx")
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		w.Header().Get("Content-Type"))

	workbook, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer workbook.Close()

	rows, err := workbook.GetRows("Spray Diary")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Contains(t, rows[1], "Copper Hydroxide")
	assert.Contains(t, rows[1], "Block 1")
}
