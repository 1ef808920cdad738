package server

import (
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	appmiddleware "github.com/oculab/retinagrade/internal/app/middleware"
	"github.com/oculab/retinagrade/internal/routes"
)

// SetupRouter configures and returns the Gin router with all middleware and routes
func SetupRouter(srv *Server, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(ginzap.GinzapWithConfig(logger, &ginzap.Config{
		UTC:        true,
		TimeFormat: time.RFC3339,
	}))
	r.Use(ginzap.RecoveryWithZap(logger, true))
	r.Use(otelgin.Middleware("retinagrade"))
	r.Use(appmiddleware.CORSMiddleware())
	r.Use(appmiddleware.SecurityMiddleware())

	r.LoadHTMLGlob("templates/*.html")
	r.Static("/uploads", srv.GetConfig().UploadDir)

	routes.Setup(r, &routes.Deps{
		Cfg:     srv.GetConfig(),
		Repo:    srv.UserRepo(),
		Model:   srv.ModelStore(),
		Uploads: srv.UploadStore(),
		Logger:  logger,
	})

	return r
}
