package classify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/oculab/retinagrade/internal/app/models"
	"github.com/oculab/retinagrade/internal/app/observability/metrics"
)

// ModelNotLoadedNotice is rendered when classification is requested while
// no model artifact could be loaded at startup.
const ModelNotLoadedNotice = "Model not loaded. Please ensure the model file is in the 'model' directory."

// Pipeline orchestrates preprocessing, inference and label mapping.
// Identical uploads hit a content-addressed result cache instead of the
// model; inference is deterministic so cached labels never go stale.
type Pipeline struct {
	model   Predictor
	results *cache.Cache
	logger  *zap.Logger
}

func NewPipeline(model Predictor, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		model:   model,
		results: cache.New(15*time.Minute, 30*time.Minute),
		logger:  logger,
	}
}

// Classify turns raw image bytes into a PredictionResult. An unavailable
// model produces a notice, not an error; preprocessing and inference
// failures produce a result carrying a descriptive error string. Nothing
// in here is allowed to abort the surrounding request.
func (p *Pipeline) Classify(ctx context.Context, raw []byte, imageRef string) models.PredictionResult {
	if !p.model.Available() {
		return models.PredictionResult{Notice: ModelNotLoadedNotice, SourceImageRef: imageRef}
	}

	sum := sha256.Sum256(raw)
	key := hex.EncodeToString(sum[:])
	if cached, found := p.results.Get(key); found {
		result := cached.(models.PredictionResult)
		result.SourceImageRef = imageRef
		p.logger.Debug("Classification served from cache", zap.String("key", key))
		return result
	}

	tensor, err := Prepare(raw)
	if err != nil {
		p.logger.Warn("Preprocessing failed", zap.String("image", imageRef), zap.Error(err))
		if m := metrics.Get(); m != nil {
			m.PreprocessFailuresTotal.Add(ctx, 1)
		}
		return models.PredictionResult{
			Err:            fmt.Sprintf("Error during prediction: %v", err),
			SourceImageRef: imageRef,
		}
	}

	scores, err := p.model.Predict(tensor)
	if err != nil {
		p.logger.Error("Inference failed", zap.String("image", imageRef), zap.Error(err))
		return models.PredictionResult{
			Err:            fmt.Sprintf("Error during prediction: %v", err),
			SourceImageRef: imageRef,
		}
	}

	result := models.PredictionResult{
		Label:          Labels[Argmax(scores)],
		SourceImageRef: imageRef,
	}
	p.results.Set(key, result, cache.DefaultExpiration)
	return result
}

// Argmax returns the index of the largest score. Ties resolve to the
// lowest index.
func Argmax(scores []float32) int {
	maxIdx := 0
	for i, v := range scores {
		if v > scores[maxIdx] {
			maxIdx = i
		}
	}
	return maxIdx
}
