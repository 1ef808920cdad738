package home

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oculab/retinagrade/internal/pkg/flash"
)

type HomeHandlers struct {
	modelLoaded   bool
	storeFallback bool
}

func NewHomeHandlers(modelLoaded, storeFallback bool) *HomeHandlers {
	return &HomeHandlers{
		modelLoaded:   modelLoaded,
		storeFallback: storeFallback,
	}
}

// ShowHomePage renders the landing page.
func (h *HomeHandlers) ShowHomePage(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Flash": flash.Pop(c),
	})
}

// Health reports the degraded-state flags so an unavailable model or a
// registry in fallback mode is always observable from outside.
func (h *HomeHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"model_loaded":   h.modelLoaded,
		"store_fallback": h.storeFallback,
	})
}
