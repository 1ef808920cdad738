package auth

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/oculab/retinagrade/internal/app/models"
	"github.com/oculab/retinagrade/internal/pkg/config"
)

// Ensure implementation satisfies the interface
var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService is the session gate business logic. Credentials are always
// compared through bcrypt hashes; raw passwords are never stored.
type AuthService interface {
	// Login resolves identifier (username or email) against the registry
	// and verifies the password. Returns models.ErrUnauthenticated on any
	// mismatch, without revealing whether the user exists.
	Login(ctx context.Context, identifier, password string) (*models.User, error)
	// Register creates the account and hands control back to the login
	// entry point; it never auto-authenticates. models.ErrConflict means
	// the username is taken.
	Register(ctx context.Context, username, email, password string) (string, error)
	// GenerateToken issues the signed session token bound to the user.
	GenerateToken(user *models.User) (string, error)
	// Degraded reports whether the underlying registry is in fallback mode.
	Degraded() bool
}

// AuthServiceImpl provides the implementation for AuthService.
type AuthServiceImpl struct {
	logger *zap.Logger
	repo   UserRepo
	cfg    *config.Config
	jwt    *JWTService
}

// NewAuthService creates a new authentication service instance.
func NewAuthService(repo UserRepo, cfg *config.Config, logger *zap.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{logger: logger, repo: repo, cfg: cfg, jwt: NewJWTService()}
}

// Login validates credentials against the registry.
func (s *AuthServiceImpl) Login(ctx context.Context, identifier, password string) (*models.User, error) {
	l := s.logger.With(zap.String("method", "Login"), zap.String("identifier", identifier))
	l.Debug("Attempting login")

	user, err := s.repo.FindByIdentifier(ctx, identifier)
	if err != nil {
		l.Warn("FindByIdentifier failed")
		// Don't reveal if user exists or password is wrong
		return nil, fmt.Errorf("invalid credentials: %w", models.ErrUnauthenticated)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		l.Warn("Password comparison failed", zap.String("userID", user.ID))
		return nil, fmt.Errorf("invalid credentials: %w", models.ErrUnauthenticated)
	}

	l.Info("Login successful", zap.String("username", user.Username))
	return user, nil
}

// Register hashes the password and stores the new user.
func (s *AuthServiceImpl) Register(ctx context.Context, username, email, password string) (string, error) {
	l := s.logger.With(zap.String("method", "Register"), zap.String("username", username))
	l.Debug("Attempting registration")

	// Cheap pre-check for a friendly conflict message; the unique
	// constraint still catches a concurrent racer.
	taken, err := s.repo.Exists(ctx, username)
	if err != nil {
		l.Error("Existence check failed", zap.Error(err))
		return "", fmt.Errorf("registration failed: %w", err)
	}
	if taken {
		return "", fmt.Errorf("username already exists: %w", models.ErrConflict)
	}

	hashedPasswordBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		l.Error("Failed to hash password", zap.Error(err))
		return "", fmt.Errorf("could not process password")
	}

	userID, err := s.repo.Create(ctx, username, email, string(hashedPasswordBytes))
	if err != nil {
		l.Warn("Repository registration failed", zap.Error(err))
		return "", fmt.Errorf("registration failed: %w", err)
	}

	l.Info("Registration successful", zap.String("userID", userID))
	return userID, nil
}

// GenerateToken issues the session token carried in the auth cookie.
func (s *AuthServiceImpl) GenerateToken(user *models.User) (string, error) {
	return s.jwt.GenerateToken(JWTConfig{
		SecretKey:       s.cfg.JWT.SecretKey,
		TokenExpiration: s.cfg.JWT.TokenExpiration,
		Logger:          s.logger,
	}, user.ID, user.Email, user.Username)
}

// Degraded implements AuthService.
func (s *AuthServiceImpl) Degraded() bool {
	return s.repo.Degraded()
}
