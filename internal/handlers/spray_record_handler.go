package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	apierrors "github.com/wrenfield/vintrack/api/internal/errors"
	"github.com/wrenfield/vintrack/api/internal/middleware"
	"github.com/wrenfield/vintrack/api/internal/models"
	"github.com/wrenfield/vintrack/api/internal/services"
)

// SprayRecordHandler handles spray-record HTTP requests: completion
// submissions, edits, notes, status rollups and the diary export.
type SprayRecordHandler struct {
	service services.SprayRecordService
	export  services.ExportService
}

// NewSprayRecordHandler creates a new SprayRecordHandler instance.
func NewSprayRecordHandler(service services.SprayRecordService, export services.ExportService) *SprayRecordHandler {
	return &SprayRecordHandler{service: service, export: export}
}

// CompletionRequest represents a spray-completion submission. BatchNumbers
// maps chemical id to the batch used.
type CompletionRequest struct {
	UnitIDs          []uint           `json:"unit_ids" binding:"required,min=1"`
	OperatorID       uint             `json:"operator_id" binding:"required"`
	GrowthStageID    *uint            `json:"growth_stage_id"`
	TimeStarted      *time.Time       `json:"time_started"`
	TimeFinished     *time.Time       `json:"time_finished"`
	HoursTaken       *decimal.Decimal `json:"hours_taken"`
	Temperature      *int             `json:"temperature"`
	RelativeHumidity *int             `json:"relative_humidity"`
	WindSpeed        *int             `json:"wind_speed"`
	WindDirection    string           `json:"wind_direction"`
	BatchNumbers     map[uint]string  `json:"batch_numbers"`
}

// EditRequest represents an edit of a single record. Same payload as a
// completion, without the unit selection.
type EditRequest struct {
	OperatorID       uint             `json:"operator_id" binding:"required"`
	GrowthStageID    *uint            `json:"growth_stage_id"`
	TimeStarted      *time.Time       `json:"time_started"`
	TimeFinished     *time.Time       `json:"time_finished"`
	HoursTaken       *decimal.Decimal `json:"hours_taken"`
	Temperature      *int             `json:"temperature"`
	RelativeHumidity *int             `json:"relative_humidity"`
	WindSpeed        *int             `json:"wind_speed"`
	WindDirection    string           `json:"wind_direction"`
	BatchNumbers     map[uint]string  `json:"batch_numbers"`
}

// NoteRequest represents the body of an add-note request.
type NoteRequest struct {
	Note string `json:"note" binding:"required,max=10000"`
}

// RecordListResponse represents the response for record list endpoints.
type RecordListResponse struct {
	Records []models.SprayRecord `json:"records"`
	Count   int                  `json:"count"`
}

// Complete handles POST /api/v1/sprays/:id/complete.
// Marks the selected units' records complete in a single transaction.
func (h *SprayRecordHandler) Complete(c *gin.Context) {
	sprayID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	input := services.CompletionInput{
		OperatorID:       req.OperatorID,
		GrowthStageID:    req.GrowthStageID,
		TimeStarted:      req.TimeStarted,
		TimeFinished:     req.TimeFinished,
		HoursTaken:       req.HoursTaken,
		Temperature:      req.Temperature,
		RelativeHumidity: req.RelativeHumidity,
		WindSpeed:        req.WindSpeed,
		WindDirection:    req.WindDirection,
		BatchNumbers:     req.BatchNumbers,
	}
	if err := h.service.CompleteRecords(c.Request.Context(), sprayID, req.UnitIDs, input); err != nil {
		h.writeRecordError(c, err, "Failed to complete spray records")
		return
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Info("Spray completion submitted", map[string]interface{}{
			"spray_id":   sprayID,
			"unit_count": len(req.UnitIDs),
		})
	}

	c.Status(http.StatusNoContent)
}

// ListForSpray handles GET /api/v1/sprays/:id/records?vineyard_id=N.
func (h *SprayRecordHandler) ListForSpray(c *gin.Context) {
	sprayID, ok := pathID(c, "id")
	if !ok {
		return
	}

	vineyardID, ok := queryID(c, "vineyard_id")
	if !ok {
		return
	}

	records, err := h.service.ListRecords(c.Request.Context(), sprayID, vineyardID)
	if err != nil {
		if errors.Is(err, services.ErrVineyardNotFound) {
			apierrors.NotFound(c, "Vineyard not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to list spray records", err)
		return
	}
	c.JSON(http.StatusOK, RecordListResponse{Records: records, Count: len(records)})
}

// Get handles GET /api/v1/spray-records/:id.
func (h *SprayRecordHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	record, err := h.service.GetRecord(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrSprayRecordNotFound) {
			apierrors.NotFound(c, "Spray record not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to get spray record", err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// Edit handles PUT /api/v1/spray-records/:id.
func (h *SprayRecordHandler) Edit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	input := services.CompletionInput{
		OperatorID:       req.OperatorID,
		GrowthStageID:    req.GrowthStageID,
		TimeStarted:      req.TimeStarted,
		TimeFinished:     req.TimeFinished,
		HoursTaken:       req.HoursTaken,
		Temperature:      req.Temperature,
		RelativeHumidity: req.RelativeHumidity,
		WindSpeed:        req.WindSpeed,
		WindDirection:    req.WindDirection,
		BatchNumbers:     req.BatchNumbers,
	}
	if err := h.service.EditRecord(c.Request.Context(), id, input); err != nil {
		h.writeRecordError(c, err, "Failed to edit spray record")
		return
	}

	record, err := h.service.GetRecord(c.Request.Context(), id)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to reload spray record", err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// Delete handles DELETE /api/v1/spray-records/:id.
func (h *SprayRecordHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteRecord(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrSprayRecordNotFound) {
			apierrors.NotFound(c, "Spray record not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to delete spray record", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddNote handles POST /api/v1/spray-records/:id/notes.
func (h *SprayRecordHandler) AddNote(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	if err := h.service.AddNote(c.Request.Context(), id, req.Note); err != nil {
		if errors.Is(err, services.ErrSprayRecordNotFound) {
			apierrors.NotFound(c, "Spray record not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to add note", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Status handles GET /api/v1/vineyards/:id/spray-status.
// Returns the per-spray completion rollup for the vineyard.
func (h *SprayRecordHandler) Status(c *gin.Context) {
	vineyardID, ok := pathID(c, "id")
	if !ok {
		return
	}

	statuses, err := h.service.VineyardSprayStatus(c.Request.Context(), vineyardID)
	if err != nil {
		if errors.Is(err, services.ErrVineyardNotFound) {
			apierrors.NotFound(c, "Vineyard not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to build spray status", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sprays": statuses, "count": len(statuses)})
}

// ProgramStatus handles GET /api/v1/vineyards/:id/programs/:programID/complete.
func (h *SprayRecordHandler) ProgramStatus(c *gin.Context) {
	vineyardID, ok := pathID(c, "id")
	if !ok {
		return
	}
	programID, ok := pathID(c, "programID")
	if !ok {
		return
	}

	complete, err := h.service.ProgramCompleteForVineyard(c.Request.Context(), programID, vineyardID)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to check program completion", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"complete": complete})
}

// ExportDiary handles GET /api/v1/vineyards/:id/spray-diary.
// Streams the vineyard's completed records as an XLSX workbook.
func (h *SprayRecordHandler) ExportDiary(c *gin.Context) {
	vineyardID, ok := pathID(c, "id")
	if !ok {
		return
	}

	data, filename, err := h.export.SprayDiary(c.Request.Context(), vineyardID)
	if err != nil {
		if errors.Is(err, services.ErrVineyardNotFound) {
			apierrors.NotFound(c, "Vineyard not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to export spray diary", err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// writeRecordError maps record-service errors to HTTP responses.
func (h *SprayRecordHandler) writeRecordError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrSprayNotFound):
		apierrors.NotFound(c, "Spray not found")
	case errors.Is(err, services.ErrSprayRecordNotFound):
		apierrors.NotFound(c, "Spray record not found")
	case errors.Is(err, services.ErrOperatorRequired),
		errors.Is(err, services.ErrNoUnitsSelected),
		errors.Is(err, services.ErrMissingBatchNumber),
		errors.Is(err, services.ErrUnknownBatchChemical),
		errors.Is(err, services.ErrInvalidWindDirection):
		apierrors.BadRequest(c, err.Error(), nil)
	default:
		apierrors.InternalServerError(c, fallback, err)
	}
}

// queryID parses a numeric id query parameter, writing a 400 response and
// returning false when it is missing or invalid.
func queryID(c *gin.Context, name string) (uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		apierrors.BadRequest(c, name+" query parameter is required", nil)
		return 0, false
	}

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		apierrors.BadRequest(c, "Invalid "+name+" parameter", map[string]interface{}{
			name: raw,
		})
		return 0, false
	}
	return uint(id), true
}
