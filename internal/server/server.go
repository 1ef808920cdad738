package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/oculab/retinagrade/internal/app/domain/auth"
	"github.com/oculab/retinagrade/internal/app/domain/classify"
	"github.com/oculab/retinagrade/internal/app/domain/uploads"
	"github.com/oculab/retinagrade/internal/app/observability/metrics"
	database "github.com/oculab/retinagrade/internal/db"
	"github.com/oculab/retinagrade/internal/pkg/config"
)

// Server holds the dependencies for the HTTP server. All process-wide
// state (model, registry, upload store) is initialized here once and
// injected into the components that need it.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	dbPool  *pgxpool.Pool
	repo    auth.UserRepo
	model   *classify.ModelStore
	uploads *uploads.Store
	router  http.Handler
}

// New creates a new Server instance with all dependencies. An
// unreachable user store degrades the registry to fallback mode and an
// unloadable model degrades the pipeline; only a failure to create the
// upload directory is fatal.
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger,
	}

	ctx := context.Background()
	s.setupRegistry(ctx)
	s.model = classify.Load(cfg.Model.Path, logger)

	uploadStore, err := uploads.NewStore(cfg.UploadDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to setup upload storage: %w", err)
	}
	s.uploads = uploadStore

	s.publishDegradedState(ctx)
	return s, nil
}

// setupRegistry connects to the user store and runs migrations. Any
// failure along the way leaves the registry in fallback mode.
func (s *Server) setupRegistry(ctx context.Context) {
	pool, err := s.setupDatabase(ctx)
	if err != nil {
		s.logger.Warn("User store unreachable, continuing in fallback mode", zap.Error(err))
		s.repo = auth.NewFallbackUserRepo(s.logger)
		return
	}
	s.dbPool = pool
	s.repo = auth.NewPostgresUserRepo(pool, s.cfg.Postgres.Timeout, s.logger)
}

// setupDatabase initializes the database connection and runs migrations
func (s *Server) setupDatabase(ctx context.Context) (*pgxpool.Pool, error) {
	s.logger.Info("Setting up database connection and migrations")

	dbConfig, err := database.NewDatabaseConfig(s.cfg, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database configuration: %w", err)
	}

	pool, err := database.Init(dbConfig.ConnectionURL, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database pool: %w", err)
	}

	if !database.WaitForDB(ctx, pool, s.logger) {
		pool.Close()
		return nil, fmt.Errorf("database unreachable")
	}
	s.logger.Info("Connected to user store",
		zap.String("host", s.cfg.Postgres.Host),
		zap.String("port", s.cfg.Postgres.Port),
		zap.String("database", s.cfg.Postgres.DB))

	if err = database.RunMigrations(dbConfig.ConnectionURL, s.logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	s.logger.Info("Database setup completed successfully")
	return pool, nil
}

func (s *Server) publishDegradedState(ctx context.Context) {
	m := metrics.Get()
	if m == nil {
		return
	}
	var fallback, loaded int64
	if s.repo.Degraded() {
		fallback = 1
	}
	if s.model.Available() {
		loaded = 1
	}
	m.StoreFallbackGauge.Record(ctx, fallback)
	m.ModelLoadedGauge.Record(ctx, loaded)
}

// HTTPServer creates and configures the HTTP server
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         ":" + s.cfg.ServerPort,
		Handler:      s.router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// SetRouter sets the HTTP router/handler
func (s *Server) SetRouter(router http.Handler) {
	s.router = router
}

// UserRepo returns the registry (fallback or store backed).
func (s *Server) UserRepo() auth.UserRepo {
	return s.repo
}

// ModelStore returns the loaded (or unavailable) classifier.
func (s *Server) ModelStore() *classify.ModelStore {
	return s.model
}

// UploadStore returns the image upload store.
func (s *Server) UploadStore() *uploads.Store {
	return s.uploads
}

// GetConfig returns the configuration
func (s *Server) GetConfig() *config.Config {
	return s.cfg
}

// Close closes all server resources
func (s *Server) Close() {
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.model != nil {
		s.model.Close()
	}
}
