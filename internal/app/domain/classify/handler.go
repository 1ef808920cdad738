package classify

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/oculab/retinagrade/internal/app/domain/uploads"
	"github.com/oculab/retinagrade/internal/app/middleware"
	"github.com/oculab/retinagrade/internal/app/models"
	"github.com/oculab/retinagrade/internal/app/observability/metrics"
	"github.com/oculab/retinagrade/internal/pkg/flash"
)

// maxUploadBytes bounds a single retinal image upload.
const maxUploadBytes = 10 << 20

type Handler struct {
	pipeline *Pipeline
	uploads  *uploads.Store
	logger   *zap.Logger
}

func NewHandler(pipeline *Pipeline, uploads *uploads.Store, logger *zap.Logger) *Handler {
	return &Handler{
		pipeline: pipeline,
		uploads:  uploads,
		logger:   logger,
	}
}

// ShowPrediction renders the upload form.
func (h *Handler) ShowPrediction(c *gin.Context) {
	c.HTML(http.StatusOK, "prediction.html", gin.H{
		"Flash":    flash.Pop(c),
		"Username": middleware.GetUsernameFromContext(c),
	})
}

// Predict accepts a multipart upload in the "image" field, stores it
// under a unique key and runs the classification pipeline. Pipeline
// failures render as messages on the page, never as server errors.
func (h *Handler) Predict(c *gin.Context) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		flash.Set(c, "No file part")
		c.Redirect(http.StatusFound, "/prediction")
		return
	}
	if fileHeader.Filename == "" || fileHeader.Size == 0 {
		flash.Set(c, "No selected file")
		c.Redirect(http.StatusFound, "/prediction")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		flash.Set(c, "Image too large")
		c.Redirect(http.StatusFound, "/prediction")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open upload", zap.Error(err))
		flash.Set(c, "Failed to read upload")
		c.Redirect(http.StatusFound, "/prediction")
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		h.logger.Error("Failed to read upload", zap.Error(err))
		flash.Set(c, "Failed to read upload")
		c.Redirect(http.StatusFound, "/prediction")
		return
	}

	ref, err := h.uploads.Save(fileHeader.Filename, raw)
	if err != nil {
		h.logger.Error("Failed to store upload", zap.Error(err))
		flash.Set(c, "Failed to store upload")
		c.Redirect(http.StatusFound, "/prediction")
		return
	}

	start := time.Now()
	result := h.pipeline.Classify(c.Request.Context(), raw, ref)
	h.recordPrediction(c, time.Since(start), result)

	c.HTML(http.StatusOK, "prediction.html", gin.H{
		"Username": middleware.GetUsernameFromContext(c),
		"Result":   result,
	})
}

func (h *Handler) recordPrediction(c *gin.Context, elapsed time.Duration, result models.PredictionResult) {
	m := metrics.Get()
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case result.Notice != "":
		outcome = "model_unavailable"
	case result.Err != "":
		outcome = "error"
	}
	ctx := c.Request.Context()
	m.PredictionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.PredictionDuration.Record(ctx, elapsed.Seconds())
}
