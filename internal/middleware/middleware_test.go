package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrenfield/vintrack/api/internal/config"
	"github.com/wrenfield/vintrack/api/internal/logger"
	"github.com/wrenfield/vintrack/api/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID(t *testing.T) {
	t.Run("generates id when absent", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/", func(c *gin.Context) {
			assert.NotEmpty(t, GetRequestID(c))
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	})

	t.Run("preserves upstream id", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/", func(c *gin.Context) {
			assert.Equal(t, "upstream-id", GetRequestID(c))
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "upstream-id")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "upstream-id", w.Header().Get(RequestIDHeader))
	})
}

func TestLoggerMiddlewareStoresLogger(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.Use(Logger(logger.New("test")))
	router.GET("/", func(c *gin.Context) {
		assert.NotNil(t, GetLogger(c))
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecovery(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.Use(Logger(logger.New("test")))
	router.Use(Recovery(logger.New("test")))
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_SERVER_ERROR")
}

// fakeUsers satisfies UserLoader for auth tests.
type fakeUsers struct {
	users map[uint]*models.User
}

func (f *fakeUsers) Get(_ context.Context, id uint) (*models.User, error) {
	return f.users[id], nil
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:  "test-signing-key",
		TokenTTL:   time.Hour,
		CookieName: "vintrack_session",
	}
}

func authRouter(cfg config.AuthConfig, users UserLoader, required models.Role) *gin.Engine {
	router := gin.New()
	router.Use(RequestID())
	group := router.Group("/", Auth(cfg, users))
	if required > models.RoleUser {
		group.Use(RequireRole(required))
	}
	group.GET("/secure", func(c *gin.Context) {
		user := GetCurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"user_id": user.ID})
	})
	return router
}

func TestAuth(t *testing.T) {
	cfg := testAuthConfig()
	operator := &models.User{ID: 7, Name: "Sam", Role: models.RoleOperator}
	users := &fakeUsers{users: map[uint]*models.User{7: operator}}

	t.Run("no token", func(t *testing.T) {
		router := authRouter(cfg, users, models.RoleUser)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/secure", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid cookie", func(t *testing.T) {
		token, err := IssueToken(cfg, operator, time.Now())
		require.NoError(t, err)

		router := authRouter(cfg, users, models.RoleUser)
		req := httptest.NewRequest(http.MethodGet, "/secure", nil)
		req.AddCookie(&http.Cookie{Name: cfg.CookieName, Value: token})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"user_id":7`)
	})

	t.Run("valid bearer header", func(t *testing.T) {
		token, err := IssueToken(cfg, operator, time.Now())
		require.NoError(t, err)

		router := authRouter(cfg, users, models.RoleUser)
		req := httptest.NewRequest(http.MethodGet, "/secure", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := IssueToken(cfg, operator, time.Now().Add(-2*time.Hour))
		require.NoError(t, err)

		router := authRouter(cfg, users, models.RoleUser)
		req := httptest.NewRequest(http.MethodGet, "/secure", nil)
		req.AddCookie(&http.Cookie{Name: cfg.CookieName, Value: token})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("token signed with wrong key", func(t *testing.T) {
		other := testAuthConfig()
		other.JWTSecret = "some-other-key"
		token, err := IssueToken(other, operator, time.Now())
		require.NoError(t, err)

		router := authRouter(cfg, users, models.RoleUser)
		req := httptest.NewRequest(http.MethodGet, "/secure", nil)
		req.AddCookie(&http.Cookie{Name: cfg.CookieName, Value: token})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		ghost := &models.User{ID: 404}
		token, err := IssueToken(cfg, ghost, time.Now())
		require.NoError(t, err)

		router := authRouter(cfg, users, models.RoleUser)
		req := httptest.NewRequest(http.MethodGet, "/secure", nil)
		req.AddCookie(&http.Cookie{Name: cfg.CookieName, Value: token})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireRole(t *testing.T) {
	cfg := testAuthConfig()
	operator := &models.User{ID: 7, Role: models.RoleOperator}
	admin := &models.User{ID: 8, Role: models.RoleAdmin}
	users := &fakeUsers{users: map[uint]*models.User{7: operator, 8: admin}}

	request := func(router *gin.Engine, user *models.User) *httptest.ResponseRecorder {
		token, _ := IssueToken(cfg, user, time.Now())
		req := httptest.NewRequest(http.MethodGet, "/secure", nil)
		req.AddCookie(&http.Cookie{Name: cfg.CookieName, Value: token})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("insufficient role", func(t *testing.T) {
		router := authRouter(cfg, users, models.RoleAdmin)
		w := request(router, operator)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "FORBIDDEN")
	})

	t.Run("sufficient role", func(t *testing.T) {
		router := authRouter(cfg, users, models.RoleAdmin)
		w := request(router, admin)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("higher role passes lower check", func(t *testing.T) {
		router := authRouter(cfg, users, models.RoleOperator)
		w := request(router, admin)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
