package routes

import (
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"

	"github.com/oculab/retinagrade/internal/app/domain/auth"
	"github.com/oculab/retinagrade/internal/app/domain/classify"
	"github.com/oculab/retinagrade/internal/app/domain/home"
	"github.com/oculab/retinagrade/internal/app/domain/uploads"
	"github.com/oculab/retinagrade/internal/app/middleware"
	"github.com/oculab/retinagrade/internal/pkg/config"
)

// Deps carries the process-wide state routes need, initialized once at
// startup and injected here instead of referenced as globals.
type Deps struct {
	Cfg     *config.Config
	Repo    auth.UserRepo
	Model   *classify.ModelStore
	Uploads *uploads.Store
	Logger  *zap.Logger
}

// Setup wires handlers onto the router. The prediction routes sit behind
// the session gate; login and register are the only mutating routes
// reachable anonymously.
func Setup(r *gin.Engine, deps *Deps) {
	authService := auth.NewAuthService(deps.Repo, deps.Cfg, deps.Logger)
	authHandlers := auth.NewAuthHandlers(authService, deps.Cfg, deps.Logger)

	pipeline := classify.NewPipeline(deps.Model, deps.Logger)
	classifyHandlers := classify.NewHandler(pipeline, deps.Uploads, deps.Logger)

	homeHandlers := home.NewHomeHandlers(deps.Model.Available(), deps.Repo.Degraded())

	r.GET("/", homeHandlers.ShowHomePage)
	r.GET("/health", homeHandlers.Health)

	r.GET("/login", authHandlers.ShowLogin)
	r.POST("/login", authHandlers.Login)
	r.GET("/register", authHandlers.ShowRegister)
	r.POST("/register", authHandlers.Register)
	r.GET("/logout", authHandlers.Logout)

	jwtCfg := auth.JWTConfig{
		SecretKey:       deps.Cfg.JWT.SecretKey,
		TokenExpiration: deps.Cfg.JWT.TokenExpiration,
		Logger:          deps.Logger,
	}
	authorized := r.Group("/", middleware.AuthMiddleware(jwtCfg))
	authorized.GET("/prediction", classifyHandlers.ShowPrediction)
	authorized.POST("/prediction", classifyHandlers.Predict)
}
