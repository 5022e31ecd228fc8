package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/wrenfield/vintrack/api/internal/config"
	apierrors "github.com/wrenfield/vintrack/api/internal/errors"
	"github.com/wrenfield/vintrack/api/internal/middleware"
	"github.com/wrenfield/vintrack/api/internal/models"
	"github.com/wrenfield/vintrack/api/internal/services"
)

// AuthHandler handles registration, login and session endpoints.
type AuthHandler struct {
	users services.UserService
	auth  config.AuthConfig
}

// NewAuthHandler creates a new AuthHandler instance.
func NewAuthHandler(users services.UserService, auth config.AuthConfig) *AuthHandler {
	return &AuthHandler{users: users, auth: auth}
}

// RegisterRequest represents the body of a registration request.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=255"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// LoginRequest represents the body of a login request.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SessionResponse represents the authenticated user returned after
// register, login and whoami calls.
type SessionResponse struct {
	User *models.User `json:"user"`
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			apierrors.Conflict(c, "An account with that email already exists")
			return
		}
		apierrors.InternalServerError(c, "Failed to register account", err)
		return
	}

	h.setSessionCookie(c, user)
	c.JSON(http.StatusCreated, SessionResponse{User: user})
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	user, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			apierrors.Unauthorized(c, "Invalid email or password")
			return
		}
		apierrors.InternalServerError(c, "Failed to log in", err)
		return
	}

	h.setSessionCookie(c, user)
	c.JSON(http.StatusOK, SessionResponse{User: user})
}

// Logout handles POST /api/v1/auth/logout. Clears the session cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetCookie(h.auth.CookieName, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me. Returns the current session's user.
func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		apierrors.Unauthorized(c, "Authentication required")
		return
	}
	c.JSON(http.StatusOK, SessionResponse{User: user})
}

// setSessionCookie signs a token for the user and sets it as an HTTP-only
// cookie.
func (h *AuthHandler) setSessionCookie(c *gin.Context, user *models.User) {
	token, err := middleware.IssueToken(h.auth, user, time.Now().UTC())
	if err != nil {
		if log := middleware.GetLogger(c); log != nil {
			log.Error("Failed to issue session token", err, map[string]interface{}{
				"user_id": user.ID,
			})
		}
		return
	}
	c.SetCookie(h.auth.CookieName, token, int(h.auth.TokenTTL.Seconds()), "/", "", false, true)
}
