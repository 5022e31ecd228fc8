package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	apierrors "github.com/wrenfield/vintrack/api/internal/errors"
	"github.com/wrenfield/vintrack/api/internal/models"
	"github.com/wrenfield/vintrack/api/internal/services"
)

// SprayHandler handles spray-program and spray HTTP requests.
type SprayHandler struct {
	service services.SprayService
	records services.SprayRecordService
}

// NewSprayHandler creates a new SprayHandler instance.
func NewSprayHandler(service services.SprayService, records services.SprayRecordService) *SprayHandler {
	return &SprayHandler{service: service, records: records}
}

// ProgramRequest represents the body of a program create or update.
type ProgramRequest struct {
	Name      string `json:"name" binding:"required,min=1,max=255"`
	YearStart int    `json:"year_start" binding:"required,min=1990,max=2200"`
	YearEnd   int    `json:"year_end" binding:"required,min=1990,max=2200"`
}

// SprayChemicalRequest represents one chemical row of a spray submission.
type SprayChemicalRequest struct {
	ChemicalID          uint            `json:"chemical_id"`
	Target              string          `json:"target"`
	ConcentrationFactor decimal.Decimal `json:"concentration_factor"`
}

// SprayRequest represents the body of a spray create or update.
type SprayRequest struct {
	Name                     string                 `json:"name" binding:"required,min=1,max=255"`
	GrowthStageID            uint                   `json:"growth_stage_id" binding:"required"`
	WaterSprayRatePerHectare decimal.Decimal        `json:"water_spray_rate_per_hectare"`
	Chemicals                []SprayChemicalRequest `json:"chemicals"`
}

// ApplyRequest selects which management units a spray is applied to.
// Scope "units" requires unit_ids; the other scopes ignore them.
type ApplyRequest struct {
	Scope   string `json:"scope" binding:"required,oneof=all reds whites units"`
	UnitIDs []uint `json:"unit_ids"`
}

// ApplyResponse reports how many units received a pending record.
type ApplyResponse struct {
	Applied int `json:"applied"`
}

// ProgramListResponse represents the response for the program list endpoint.
type ProgramListResponse struct {
	Programs []models.SprayProgram `json:"programs"`
	Count    int                   `json:"count"`
}

// ListPrograms handles GET /api/v1/spray-programs.
func (h *SprayHandler) ListPrograms(c *gin.Context) {
	programs, err := h.service.ListPrograms(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list spray programs", err)
		return
	}
	c.JSON(http.StatusOK, ProgramListResponse{Programs: programs, Count: len(programs)})
}

// GetProgram handles GET /api/v1/spray-programs/:id.
func (h *SprayHandler) GetProgram(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	program, err := h.service.GetProgram(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrSprayProgramNotFound) {
			apierrors.NotFound(c, "Spray program not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to get spray program", err)
		return
	}
	c.JSON(http.StatusOK, program)
}

// CreateProgram handles POST /api/v1/spray-programs.
func (h *SprayHandler) CreateProgram(c *gin.Context) {
	var req ProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}
	if req.YearEnd < req.YearStart {
		apierrors.BadRequest(c, "year_end must not be before year_start", nil)
		return
	}

	program := &models.SprayProgram{
		Name:      req.Name,
		YearStart: req.YearStart,
		YearEnd:   req.YearEnd,
	}
	if err := h.service.CreateProgram(c.Request.Context(), program); err != nil {
		apierrors.InternalServerError(c, "Failed to create spray program", err)
		return
	}
	c.JSON(http.StatusCreated, program)
}

// UpdateProgram handles PUT /api/v1/spray-programs/:id.
func (h *SprayHandler) UpdateProgram(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req ProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	program := &models.SprayProgram{
		ID:        id,
		Name:      req.Name,
		YearStart: req.YearStart,
		YearEnd:   req.YearEnd,
	}
	if err := h.service.UpdateProgram(c.Request.Context(), program); err != nil {
		if errors.Is(err, services.ErrSprayProgramNotFound) {
			apierrors.NotFound(c, "Spray program not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to update spray program", err)
		return
	}
	c.JSON(http.StatusOK, program)
}

// DeleteProgram handles DELETE /api/v1/spray-programs/:id.
func (h *SprayHandler) DeleteProgram(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteProgram(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrSprayProgramNotFound) {
			apierrors.NotFound(c, "Spray program not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to delete spray program", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListSprays handles GET /api/v1/spray-programs/:id/sprays.
func (h *SprayHandler) ListSprays(c *gin.Context) {
	programID, ok := pathID(c, "id")
	if !ok {
		return
	}

	sprays, err := h.service.ListSprays(c.Request.Context(), programID)
	if err != nil {
		if errors.Is(err, services.ErrSprayProgramNotFound) {
			apierrors.NotFound(c, "Spray program not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to list sprays", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sprays": sprays, "count": len(sprays)})
}

// CreateSpray handles POST /api/v1/spray-programs/:id/sprays.
func (h *SprayHandler) CreateSpray(c *gin.Context) {
	programID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req SprayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	spray, err := h.service.CreateSpray(c.Request.Context(), programID, sprayInput(req))
	if err != nil {
		h.writeSprayError(c, err, "Failed to create spray")
		return
	}
	c.JSON(http.StatusCreated, spray)
}

// GetSpray handles GET /api/v1/sprays/:id.
func (h *SprayHandler) GetSpray(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	spray, err := h.service.GetSpray(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrSprayNotFound) {
			apierrors.NotFound(c, "Spray not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to get spray", err)
		return
	}
	c.JSON(http.StatusOK, spray)
}

// UpdateSpray handles PUT /api/v1/sprays/:id.
func (h *SprayHandler) UpdateSpray(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req SprayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	spray, err := h.service.UpdateSpray(c.Request.Context(), id, sprayInput(req))
	if err != nil {
		h.writeSprayError(c, err, "Failed to update spray")
		return
	}
	c.JSON(http.StatusOK, spray)
}

// DeleteSpray handles DELETE /api/v1/sprays/:id.
func (h *SprayHandler) DeleteSpray(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteSpray(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrSprayNotFound) {
			apierrors.NotFound(c, "Spray not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to delete spray", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Apply handles POST /api/v1/sprays/:id/apply.
// Creates pending records on the selected units.
func (h *SprayHandler) Apply(c *gin.Context) {
	sprayID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	var (
		applied int
		err     error
	)
	switch req.Scope {
	case "all":
		applied, err = h.records.ApplyToAllUnits(c.Request.Context(), sprayID)
	case "reds":
		applied, err = h.records.ApplyToAllReds(c.Request.Context(), sprayID)
	case "whites":
		applied, err = h.records.ApplyToAllWhites(c.Request.Context(), sprayID)
	case "units":
		applied, err = h.records.ApplyToUnits(c.Request.Context(), sprayID, req.UnitIDs)
	}
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSprayNotFound):
			apierrors.NotFound(c, "Spray not found")
		case errors.Is(err, services.ErrNoUnitsSelected):
			apierrors.BadRequest(c, "unit_ids is required for scope units", nil)
		default:
			apierrors.InternalServerError(c, "Failed to apply spray", err)
		}
		return
	}

	c.JSON(http.StatusOK, ApplyResponse{Applied: applied})
}

// writeSprayError maps spray-service errors to HTTP responses.
func (h *SprayHandler) writeSprayError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrSprayProgramNotFound):
		apierrors.NotFound(c, "Spray program not found")
	case errors.Is(err, services.ErrSprayNotFound):
		apierrors.NotFound(c, "Spray not found")
	case errors.Is(err, services.ErrGrowthStageNotFound):
		apierrors.BadRequest(c, "Unknown growth stage", nil)
	case errors.Is(err, services.ErrChemicalNotFound):
		apierrors.BadRequest(c, "Unknown chemical", nil)
	case errors.Is(err, services.ErrInvalidSprayTarget):
		apierrors.BadRequest(c, "Invalid spray target", nil)
	default:
		apierrors.InternalServerError(c, fallback, err)
	}
}

// sprayInput converts a request body to the service input type.
func sprayInput(req SprayRequest) services.SprayInput {
	chems := make([]services.SprayChemicalInput, 0, len(req.Chemicals))
	for _, chem := range req.Chemicals {
		chems = append(chems, services.SprayChemicalInput{
			ChemicalID:          chem.ChemicalID,
			Target:              chem.Target,
			ConcentrationFactor: chem.ConcentrationFactor,
		})
	}
	return services.SprayInput{
		Name:                     req.Name,
		GrowthStageID:            req.GrowthStageID,
		WaterSprayRatePerHectare: req.WaterSprayRatePerHectare,
		Chemicals:                chems,
	}
}
