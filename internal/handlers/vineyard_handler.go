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
	"github.com/wrenfield/vintrack/api/internal/models"
	"github.com/wrenfield/vintrack/api/internal/services"
)

// VineyardHandler handles vineyard and management-unit HTTP requests.
type VineyardHandler struct {
	service services.VineyardService
}

// NewVineyardHandler creates a new VineyardHandler instance.
func NewVineyardHandler(service services.VineyardService) *VineyardHandler {
	return &VineyardHandler{service: service}
}

// VineyardRequest represents the body of a vineyard create or update.
type VineyardRequest struct {
	Name     string         `json:"name" binding:"required,min=1,max=255"`
	Address  string         `json:"address" binding:"max=255"`
	Boundary models.Polygon `json:"boundary"`
}

// ManagementUnitRequest represents the body of a management-unit update.
type ManagementUnitRequest struct {
	Name                string           `json:"name" binding:"required,min=1,max=255"`
	VarietyNameModifier string           `json:"variety_name_modifier" binding:"max=255"`
	Area                decimal.Decimal  `json:"area"`
	RowWidth            decimal.Decimal  `json:"row_width"`
	VineSpacing         decimal.Decimal  `json:"vine_spacing"`
	RowsTotal           *int             `json:"rows_total"`
	RowsStartNumber     *int             `json:"rows_start_number"`
	RowsEndNumber       *int             `json:"rows_end_number"`
	DatePlanted         *time.Time       `json:"date_planted"`
	AreaPolygon         models.Polygon   `json:"area_polygon"`
	VarietyID           *uint            `json:"variety_id"`
	StatusID            *uint            `json:"status_id"`
}

// VineyardListResponse represents the response for the vineyard list endpoint.
type VineyardListResponse struct {
	Vineyards []models.Vineyard `json:"vineyards"`
	Count     int               `json:"count"`
}

// UnitListResponse represents the response for unit list endpoints.
type UnitListResponse struct {
	ManagementUnits []models.ManagementUnit `json:"management_units"`
	Count           int                     `json:"count"`
}

// List handles GET /api/v1/vineyards.
func (h *VineyardHandler) List(c *gin.Context) {
	vineyards, err := h.service.ListVineyards(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list vineyards", err)
		return
	}
	c.JSON(http.StatusOK, VineyardListResponse{Vineyards: vineyards, Count: len(vineyards)})
}

// Get handles GET /api/v1/vineyards/:id.
func (h *VineyardHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	vineyard, err := h.service.GetVineyard(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrVineyardNotFound) {
			apierrors.NotFound(c, "Vineyard not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to get vineyard", err)
		return
	}
	c.JSON(http.StatusOK, vineyard)
}

// Create handles POST /api/v1/vineyards.
func (h *VineyardHandler) Create(c *gin.Context) {
	var req VineyardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	vineyard := &models.Vineyard{
		Name:     req.Name,
		Address:  req.Address,
		Boundary: req.Boundary,
	}
	if err := h.service.CreateVineyard(c.Request.Context(), vineyard); err != nil {
		apierrors.InternalServerError(c, "Failed to create vineyard", err)
		return
	}
	c.JSON(http.StatusCreated, vineyard)
}

// Update handles PUT /api/v1/vineyards/:id.
func (h *VineyardHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req VineyardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	vineyard := &models.Vineyard{
		ID:       id,
		Name:     req.Name,
		Address:  req.Address,
		Boundary: req.Boundary,
	}
	if err := h.service.UpdateVineyard(c.Request.Context(), vineyard); err != nil {
		if errors.Is(err, services.ErrVineyardNotFound) {
			apierrors.NotFound(c, "Vineyard not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to update vineyard", err)
		return
	}
	c.JSON(http.StatusOK, vineyard)
}

// Delete handles DELETE /api/v1/vineyards/:id.
func (h *VineyardHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteVineyard(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrVineyardNotFound) {
			apierrors.NotFound(c, "Vineyard not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to delete vineyard", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListUnits handles GET /api/v1/management-units.
// Supports ?colour=Red|White and ?active=true filters.
func (h *VineyardHandler) ListUnits(c *gin.Context) {
	if c.Query("active") == "true" {
		units, err := h.service.ListActiveManagementUnits(c.Request.Context())
		if err != nil {
			apierrors.InternalServerError(c, "Failed to list management units", err)
			return
		}
		c.JSON(http.StatusOK, UnitListResponse{ManagementUnits: units, Count: len(units)})
		return
	}

	colour := c.Query("colour")
	if colour != "" && colour != models.WineColourRed && colour != models.WineColourWhite {
		apierrors.BadRequest(c, "colour must be Red or White", nil)
		return
	}

	units, err := h.service.ListManagementUnits(c.Request.Context(), colour)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list management units", err)
		return
	}
	c.JSON(http.StatusOK, UnitListResponse{ManagementUnits: units, Count: len(units)})
}

// GetUnit handles GET /api/v1/management-units/:id.
func (h *VineyardHandler) GetUnit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	unit, err := h.service.GetManagementUnit(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrManagementUnitNotFound) {
			apierrors.NotFound(c, "Management unit not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to get management unit", err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

// UpdateUnit handles PUT /api/v1/management-units/:id.
func (h *VineyardHandler) UpdateUnit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req ManagementUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	existing, err := h.service.GetManagementUnit(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrManagementUnitNotFound) {
			apierrors.NotFound(c, "Management unit not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to get management unit", err)
		return
	}

	existing.Name = req.Name
	existing.VarietyNameModifier = req.VarietyNameModifier
	existing.Area = req.Area
	existing.RowWidth = req.RowWidth
	existing.VineSpacing = req.VineSpacing
	existing.RowsTotal = req.RowsTotal
	existing.RowsStartNumber = req.RowsStartNumber
	existing.RowsEndNumber = req.RowsEndNumber
	existing.DatePlanted = req.DatePlanted
	existing.AreaPolygon = req.AreaPolygon
	existing.VarietyID = req.VarietyID
	existing.StatusID = req.StatusID
	existing.Variety = nil
	existing.Status = nil

	if err := h.service.UpdateManagementUnit(c.Request.Context(), existing); err != nil {
		apierrors.InternalServerError(c, "Failed to update management unit", err)
		return
	}
	c.JSON(http.StatusOK, existing)
}

// GrowthStages handles GET /api/v1/growth-stages.
// Supports ?major=true to restrict to the major EL stages.
func (h *VineyardHandler) GrowthStages(c *gin.Context) {
	stages, err := h.service.ListGrowthStages(c.Request.Context(), c.Query("major") == "true")
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list growth stages", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"growth_stages": stages, "count": len(stages)})
}

// pathID parses a numeric id path parameter, writing a 400 response and
// returning false when it is not a positive integer.
func pathID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		apierrors.BadRequest(c, "Invalid "+name+" parameter", map[string]interface{}{
			name: raw,
		})
		return 0, false
	}
	return uint(id), true
}
