package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oculab/retinagrade/internal/app/domain/auth"
)

func gateRouter(cfg auth.JWTConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	protected := r.Group("/", AuthMiddleware(cfg))
	protected.GET("/prediction", func(c *gin.Context) {
		c.String(http.StatusOK, "user:%s", GetUsernameFromContext(c))
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	cfg := auth.JWTConfig{
		SecretKey:       "test-secret-key",
		TokenExpiration: time.Hour,
		Logger:          zap.NewNop(),
	}
	r := gateRouter(cfg)

	t.Run("AnonymousIsRedirectedToLogin", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/prediction", nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
	})

	t.Run("GarbageTokenIsRedirected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/prediction", nil)
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "garbage"})
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusFound, w.Code)
	})

	t.Run("ValidTokenPassesWithIdentity", func(t *testing.T) {
		token, err := auth.NewJWTService().GenerateToken(cfg, "user123", "test@example.com", "testuser")
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/prediction", nil)
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user:testuser", w.Body.String())
	})

	t.Run("ExpiredTokenIsRedirected", func(t *testing.T) {
		expired := cfg
		expired.TokenExpiration = -time.Hour
		token, err := auth.NewJWTService().GenerateToken(expired, "user123", "test@example.com", "testuser")
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/prediction", nil)
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusFound, w.Code)
	})
}
