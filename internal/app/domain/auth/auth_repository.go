package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/oculab/retinagrade/internal/app/models"
)

var (
	_ UserRepo = (*PostgresUserRepo)(nil)
	_ UserRepo = (*FallbackUserRepo)(nil)
)

// UserRepo is the user registry. Users are never updated in place and
// there is no deletion path; username is the identity key.
type UserRepo interface {
	// Exists reports whether any stored user matches the value on
	// username OR email.
	Exists(ctx context.Context, usernameOrEmail string) (bool, error)
	// FindByIdentifier resolves a user whose username or email equals
	// identifier. Returns models.ErrNotFound when nothing matches.
	FindByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	// Create stores a new user with a HASHED password. Returns the new
	// user ID, or models.ErrConflict when the username is taken.
	Create(ctx context.Context, username, email, hashedPassword string) (string, error)
	// Degraded reports whether the registry is running in fallback mode.
	Degraded() bool
}

// PgxPool is the pool subset the repository needs. pgxmock satisfies it.
type PgxPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresUserRepo struct {
	logger  *zap.Logger
	pool    PgxPool
	timeout time.Duration
}

// NewPostgresUserRepo creates a registry backed by the document store.
// Every round trip is bounded by timeout; the store is treated as a
// remote, possibly slow dependency.
func NewPostgresUserRepo(pool PgxPool, timeout time.Duration, logger *zap.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger:  logger,
		pool:    pool,
		timeout: timeout,
	}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *PostgresUserRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// Exists implements auth.UserRepo.
func (r *PostgresUserRepo) Exists(ctx context.Context, usernameOrEmail string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query, args, err := psql.Select("1").
		From("users").
		Where(sq.Or{
			sq.Eq{"username": usernameOrEmail},
			sq.Eq{"email": usernameOrEmail},
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("building exists query: %w", err)
	}

	var one int
	err = r.pool.QueryRow(ctx, query, args...).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		r.logger.Error("Error checking user existence", zap.Error(err), zap.String("identifier", usernameOrEmail))
		return false, fmt.Errorf("database error checking existence: %w", err)
	}
	return true, nil
}

// FindByIdentifier implements auth.UserRepo. The identifier matches on
// username OR email, identically.
func (r *PostgresUserRepo) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query, args, err := psql.Select("id", "username", "email", "password_hash").
		From("users").
		Where(sq.Or{
			sq.Eq{"username": identifier},
			sq.Eq{"email": identifier},
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building lookup query: %w", err)
	}

	var user models.User
	err = r.pool.QueryRow(ctx, query, args...).Scan(&user.ID, &user.Username, &user.Email, &user.Password)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s not found: %w", identifier, models.ErrNotFound)
		}
		r.logger.Error("Error fetching user by identifier", zap.Error(err), zap.String("identifier", identifier))
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}
	return &user, nil
}

// Create implements auth.UserRepo. Expects a HASHED password. Uniqueness
// is enforced by the users_username_unique constraint, so a losing racer
// surfaces as a conflict rather than a duplicate row.
func (r *PostgresUserRepo) Create(ctx context.Context, username, email, hashedPassword string) (string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query, args, err := psql.Insert("users").
		Columns("username", "email", "password_hash", "created_at").
		Values(username, email, hashedPassword, time.Now()).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return "", fmt.Errorf("building insert query: %w", err)
	}

	var userID string
	err = r.pool.QueryRow(ctx, query, args...).Scan(&userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", fmt.Errorf("username already exists: %w", models.ErrConflict)
		}
		r.logger.Error("Error inserting user", zap.Error(err), zap.String("username", username))
		return "", fmt.Errorf("database error registering user: %w", err)
	}

	r.logger.Info("User registered successfully", zap.String("userID", userID))
	return userID, nil
}

// Degraded implements auth.UserRepo.
func (r *PostgresUserRepo) Degraded() bool { return false }

// FallbackUserRepo serves a single hardcoded demo identity (admin/admin)
// when the document store is unreachable at startup. Registration is a
// no-op success. The degraded state is observable through Degraded.
type FallbackUserRepo struct {
	logger *zap.Logger
	demo   models.User
}

const (
	demoUsername = "admin"
	demoEmail    = "admin@example.com"
	demoPassword = "admin"
)

func NewFallbackUserRepo(logger *zap.Logger) *FallbackUserRepo {
	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		// bcrypt only fails on an invalid cost, which is constant here.
		panic(err)
	}
	logger.Warn("User store unavailable, registry running in fallback mode",
		zap.String("demo_user", demoUsername))
	return &FallbackUserRepo{
		logger: logger,
		demo: models.User{
			ID:       "demo",
			Username: demoUsername,
			Email:    demoEmail,
			Password: string(hash),
		},
	}
}

// Exists implements auth.UserRepo.
func (r *FallbackUserRepo) Exists(_ context.Context, usernameOrEmail string) (bool, error) {
	return usernameOrEmail == r.demo.Username || usernameOrEmail == r.demo.Email, nil
}

// FindByIdentifier implements auth.UserRepo.
func (r *FallbackUserRepo) FindByIdentifier(_ context.Context, identifier string) (*models.User, error) {
	if identifier != r.demo.Username && identifier != r.demo.Email {
		return nil, fmt.Errorf("user %s not found: %w", identifier, models.ErrNotFound)
	}
	demo := r.demo
	return &demo, nil
}

// Create implements auth.UserRepo. Registration cannot be persisted
// without a store; it is simulated as a success.
func (r *FallbackUserRepo) Create(_ context.Context, username, _, _ string) (string, error) {
	r.logger.Info("Fallback mode: registration simulated", zap.String("username", username))
	return r.demo.ID, nil
}

// Degraded implements auth.UserRepo.
func (r *FallbackUserRepo) Degraded() bool { return true }
