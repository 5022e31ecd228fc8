package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/wrenfield/vintrack/api/internal/errors"
	"github.com/wrenfield/vintrack/api/internal/middleware"
	"github.com/wrenfield/vintrack/api/internal/models"
	"github.com/wrenfield/vintrack/api/internal/services"
)

// UserHandler handles user administration HTTP requests.
type UserHandler struct {
	service services.UserService
}

// NewUserHandler creates a new UserHandler instance.
func NewUserHandler(service services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// ChangeRoleRequest represents the body of a role change.
type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=user operator admin superadmin"`
}

// UserListResponse represents the response for user list endpoints.
type UserListResponse struct {
	Users []models.User `json:"users"`
	Count int           `json:"count"`
}

// List handles GET /api/v1/users.
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.service.List(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list users", err)
		return
	}
	c.JSON(http.StatusOK, UserListResponse{Users: users, Count: len(users)})
}

// Get handles GET /api/v1/users/:id.
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	user, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			apierrors.NotFound(c, "User not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to get user", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ListOperators handles GET /api/v1/users/operators.
// Returns users eligible to be assigned as spray operators.
func (h *UserHandler) ListOperators(c *gin.Context) {
	users, err := h.service.ListOperators(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list operators", err)
		return
	}
	c.JSON(http.StatusOK, UserListResponse{Users: users, Count: len(users)})
}

// ChangeRole handles PUT /api/v1/users/:id/role.
func (h *UserHandler) ChangeRole(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		apierrors.BadRequest(c, "Unknown role", nil)
		return
	}

	actor := middleware.GetCurrentUser(c)
	if actor == nil {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}

	if err := h.service.ChangeRole(c.Request.Context(), actor, id, role); err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			apierrors.NotFound(c, "User not found")
		case errors.Is(err, services.ErrSuperadminOnly):
			apierrors.Forbidden(c, "Only a superadmin may grant superadmin")
		default:
			apierrors.InternalServerError(c, "Failed to change role", err)
		}
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete handles DELETE /api/v1/users/:id.
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			apierrors.NotFound(c, "User not found")
		case errors.Is(err, services.ErrUserHasRecords):
			apierrors.Conflict(c, "User is referenced by spray records")
		default:
			apierrors.InternalServerError(c, "Failed to delete user", err)
		}
		return
	}
	c.Status(http.StatusNoContent)
}
