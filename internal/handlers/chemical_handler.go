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

// ChemicalHandler handles chemical catalogue HTTP requests.
type ChemicalHandler struct {
	service services.ChemicalService
}

// NewChemicalHandler creates a new ChemicalHandler instance.
func NewChemicalHandler(service services.ChemicalService) *ChemicalHandler {
	return &ChemicalHandler{service: service}
}

// ChemicalRequest represents the body of a chemical create or update.
type ChemicalRequest struct {
	Name             string          `json:"name" binding:"required,min=1,max=255"`
	ActiveIngredient string          `json:"active_ingredient" binding:"max=255"`
	RatePer100L      decimal.Decimal `json:"rate_per_100l"`
	RateUnit         string          `json:"rate_unit" binding:"required,oneof=mL g"`
	GroupIDs         []uint          `json:"group_ids"`
}

// ChemicalListResponse represents the response for the chemical list endpoint.
type ChemicalListResponse struct {
	Chemicals []models.Chemical `json:"chemicals"`
	Count     int               `json:"count"`
}

// List handles GET /api/v1/chemicals.
func (h *ChemicalHandler) List(c *gin.Context) {
	chemicals, err := h.service.List(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list chemicals", err)
		return
	}
	c.JSON(http.StatusOK, ChemicalListResponse{Chemicals: chemicals, Count: len(chemicals)})
}

// Get handles GET /api/v1/chemicals/:id.
func (h *ChemicalHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	chemical, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrChemicalNotFound) {
			apierrors.NotFound(c, "Chemical not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to get chemical", err)
		return
	}
	c.JSON(http.StatusOK, chemical)
}

// Create handles POST /api/v1/chemicals.
func (h *ChemicalHandler) Create(c *gin.Context) {
	var req ChemicalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	chemical := &models.Chemical{
		Name:             req.Name,
		ActiveIngredient: req.ActiveIngredient,
		RatePer100L:      req.RatePer100L,
		RateUnit:         models.MixRateUnit(req.RateUnit),
	}
	if err := h.service.Create(c.Request.Context(), chemical, req.GroupIDs); err != nil {
		if errors.Is(err, services.ErrChemicalNameTaken) {
			apierrors.Conflict(c, "A chemical with that name already exists")
			return
		}
		apierrors.InternalServerError(c, "Failed to create chemical", err)
		return
	}
	c.JSON(http.StatusCreated, chemical)
}

// Update handles PUT /api/v1/chemicals/:id.
func (h *ChemicalHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req ChemicalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	chemical := &models.Chemical{
		ID:               id,
		Name:             req.Name,
		ActiveIngredient: req.ActiveIngredient,
		RatePer100L:      req.RatePer100L,
		RateUnit:         models.MixRateUnit(req.RateUnit),
	}
	if err := h.service.Update(c.Request.Context(), chemical, req.GroupIDs); err != nil {
		switch {
		case errors.Is(err, services.ErrChemicalNotFound):
			apierrors.NotFound(c, "Chemical not found")
		case errors.Is(err, services.ErrChemicalNameTaken):
			apierrors.Conflict(c, "A chemical with that name already exists")
		default:
			apierrors.InternalServerError(c, "Failed to update chemical", err)
		}
		return
	}
	c.JSON(http.StatusOK, chemical)
}

// Delete handles DELETE /api/v1/chemicals/:id.
func (h *ChemicalHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, services.ErrChemicalNotFound):
			apierrors.NotFound(c, "Chemical not found")
		case errors.Is(err, services.ErrChemicalInUse):
			apierrors.Conflict(c, "Chemical is referenced by sprays or spray records")
		default:
			apierrors.InternalServerError(c, "Failed to delete chemical", err)
		}
		return
	}
	c.Status(http.StatusNoContent)
}

// ListGroups handles GET /api/v1/chemical-groups.
func (h *ChemicalHandler) ListGroups(c *gin.Context) {
	groups, err := h.service.ListGroups(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list chemical groups", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups, "count": len(groups)})
}
