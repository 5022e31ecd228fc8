package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/wrenfield/vintrack/api/internal/config"
	"github.com/wrenfield/vintrack/api/internal/models"
)

// currentUserKey is the gin context key the authenticated user is stored
// under.
const currentUserKey = "current_user"

// UserLoader fetches a user by id for session resolution. Satisfied by
// the user repository.
type UserLoader interface {
	Get(ctx context.Context, id uint) (*models.User, error)
}

// IssueToken signs a session token for the user.
func IssueToken(cfg config.AuthConfig, user *models.User, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(user.ID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TokenTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// parseToken validates a session token and returns the user id it names.
func parseToken(cfg config.AuthConfig, raw string) (uint, error) {
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		return 0, err
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return 0, fmt.Errorf("token carries no subject")
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token subject %q", claims.Subject)
	}
	return uint(id), nil
}

// Auth resolves the session token from the session cookie or a bearer
// header and loads the current user into the context. Requests without a
// valid session are rejected with 401.
func Auth(cfg config.AuthConfig, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFromRequest(c, cfg.CookieName)
		if raw == "" {
			abortUnauthorized(c, "Authentication required")
			return
		}

		userID, err := parseToken(cfg, raw)
		if err != nil {
			if log := GetLogger(c); log != nil {
				log.Warn("Rejected session token", map[string]interface{}{
					"reason": err.Error(),
					"path":   c.Request.URL.Path,
				})
			}
			abortUnauthorized(c, "Invalid or expired session")
			return
		}

		user, err := users.Get(c.Request.Context(), userID)
		if err != nil || user == nil {
			abortUnauthorized(c, "Invalid or expired session")
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// RequireRole rejects requests whose current user does not hold at least
// the given role. Must run after Auth.
func RequireRole(required models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetCurrentUser(c)
		if user == nil {
			abortUnauthorized(c, "Authentication required")
			return
		}
		if !user.HasPermission(required) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":       "FORBIDDEN",
					"message":    fmt.Sprintf("Requires the %s role", required),
					"request_id": GetRequestID(c),
				},
			})
			return
		}
		c.Next()
	}
}

// GetCurrentUser retrieves the authenticated user from the Gin context.
// Returns nil if the request is unauthenticated.
func GetCurrentUser(c *gin.Context) *models.User {
	if v, exists := c.Get(currentUserKey); exists {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// tokenFromRequest pulls the session token from the cookie, falling back
// to an Authorization bearer header for non-browser clients.
func tokenFromRequest(c *gin.Context, cookieName string) string {
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie
	}

	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// abortUnauthorized writes the standard error envelope. The errors
// package imports this one, so the envelope is built inline here.
func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":       "UNAUTHORIZED",
			"message":    message,
			"request_id": GetRequestID(c),
		},
	})
}
