package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/oculab/retinagrade/internal/app/models"
	"github.com/oculab/retinagrade/internal/app/observability/metrics"
	"github.com/oculab/retinagrade/internal/pkg/config"
	"github.com/oculab/retinagrade/internal/pkg/flash"
)

// CookieName carries the signed session token.
const CookieName = "auth_token"

type AuthHandlers struct {
	authService AuthService
	cfg         *config.Config
	logger      *zap.Logger
}

func NewAuthHandlers(authService AuthService, cfg *config.Config, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		cfg:         cfg,
		logger:      logger,
	}
}

// ShowLogin renders the login form.
func (h *AuthHandlers) ShowLogin(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{
		"Flash":    flash.Pop(c),
		"Degraded": h.authService.Degraded(),
	})
}

// Login handles the credential post. Success binds the session to the
// resolved username via the auth cookie and moves on to prediction.
func (h *AuthHandlers) Login(c *gin.Context) {
	identifier := c.PostForm("username")
	password := c.PostForm("password")

	if identifier == "" || password == "" {
		flash.Set(c, "Username and password are required")
		c.Redirect(http.StatusFound, "/login")
		return
	}

	user, err := h.authService.Login(c.Request.Context(), identifier, password)
	h.countAuth(c, "login", err == nil)
	if err != nil {
		h.logger.Warn("Invalid login credentials", zap.String("identifier", identifier))
		if h.authService.Degraded() {
			flash.Set(c, "Database not connected. Use admin/admin for demo.")
		} else {
			flash.Set(c, "Invalid credentials")
		}
		c.Redirect(http.StatusFound, "/login")
		return
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		h.logger.Error("Failed to generate session token", zap.Error(err))
		flash.Set(c, "Login failed, please try again")
		c.Redirect(http.StatusFound, "/login")
		return
	}

	c.SetCookie(CookieName, token, int(h.cfg.JWT.TokenExpiration.Seconds()), "/", "", false, true)
	c.Redirect(http.StatusFound, "/prediction")
}

// ShowRegister renders the registration form.
func (h *AuthHandlers) ShowRegister(c *gin.Context) {
	c.HTML(http.StatusOK, "register.html", gin.H{
		"Flash":    flash.Pop(c),
		"Degraded": h.authService.Degraded(),
	})
}

// Register creates the account and hands control back to login. It never
// auto-authenticates.
func (h *AuthHandlers) Register(c *gin.Context) {
	username := c.PostForm("username")
	email := c.PostForm("email")
	password := c.PostForm("password")

	if username == "" || email == "" || password == "" {
		flash.Set(c, "All fields are required")
		c.Redirect(http.StatusFound, "/register")
		return
	}

	_, err := h.authService.Register(c.Request.Context(), username, email, password)
	h.countAuth(c, "register", err == nil)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			flash.Set(c, "Username already exists")
		} else {
			h.logger.Error("Registration failed", zap.Error(err))
			flash.Set(c, "Registration failed, please try again")
		}
		c.Redirect(http.StatusFound, "/register")
		return
	}

	if h.authService.Degraded() {
		flash.Set(c, "Database not connected. Registration simulation: Success!")
	} else {
		flash.Set(c, "Registration successful! Please login.")
	}
	c.Redirect(http.StatusFound, "/login")
}

// Logout discards the bound identity unconditionally.
func (h *AuthHandlers) Logout(c *gin.Context) {
	c.SetCookie(CookieName, "", -1, "/", "", false, true)
	c.HTML(http.StatusOK, "logout.html", gin.H{})
}

func (h *AuthHandlers) countAuth(c *gin.Context, operation string, ok bool) {
	if m := metrics.Get(); m != nil {
		m.AuthRequestsTotal.Add(c.Request.Context(), 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.Bool("success", ok),
		))
	}
}
