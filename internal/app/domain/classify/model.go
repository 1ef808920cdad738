package classify

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/oculab/retinagrade/internal/app/models"
)

const (
	// InputSize is the fixed spatial resolution the classifier expects.
	InputSize = 299
	// NumClasses is the size of the ordinal severity vocabulary.
	NumClasses = 5

	numChannels = 3
)

// Labels maps model output class index to severity label.
var Labels = [NumClasses]string{
	"No Diabetic Retinopathy",
	"Mild DR",
	"Moderate DR",
	"Severe DR",
	"Proliferative DR",
}

// Predictor produces class scores for a prepared input tensor.
type Predictor interface {
	// Predict returns a score vector of length NumClasses. Deterministic
	// for a given model and tensor, no observable side effects.
	Predict(tensor []float32) ([]float32, error)
	// Available reports whether a model is loaded.
	Available() bool
}

var _ Predictor = (*ModelStore)(nil)

// ModelStore owns the ONNX session for the frozen classifier. The model
// is immutable after Load and shared by all inference calls; the session
// reuses one input/output tensor pair, so Run is serialized by mu.
type ModelStore struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	logger       *zap.Logger
}

// Load attempts to load the model artifact exactly once at process start.
// Any failure (missing file, corrupt artifact, incompatible format) is
// logged and yields an unavailable store; it is never fatal and never
// retried. Callers must treat the unavailable state as first class.
func Load(path string, logger *zap.Logger) *ModelStore {
	s := &ModelStore{logger: logger}

	if _, err := os.Stat(path); err != nil {
		logger.Warn("Model artifact not found, prediction will be unavailable",
			zap.String("path", path), zap.Error(err))
		return s
	}

	if err := ort.InitializeEnvironment(); err != nil {
		logger.Error("Failed to initialize ONNX environment", zap.Error(err))
		return s
	}

	inputShape := ort.NewShape(1, InputSize, InputSize, numChannels)
	outputShape := ort.NewShape(1, NumClasses)

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		logger.Error("Failed to create input tensor", zap.Error(err))
		return s
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		logger.Error("Failed to create output tensor", zap.Error(err))
		return s
	}

	session, err := ort.NewAdvancedSession(path,
		[]string{"input"}, []string{"output"},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		logger.Error("Failed to create ONNX session", zap.String("path", path), zap.Error(err))
		return s
	}

	s.session = session
	s.inputTensor = inputTensor
	s.outputTensor = outputTensor
	logger.Info("Model loaded", zap.String("path", path))
	return s
}

// Available implements Predictor.
func (s *ModelStore) Available() bool {
	return s != nil && s.session != nil
}

// Predict implements Predictor. The returned slice is a copy; it stays
// valid after the next inference call.
func (s *ModelStore) Predict(tensor []float32) ([]float32, error) {
	if !s.Available() {
		return nil, models.ErrModelUnavailable
	}
	if len(tensor) != InputSize*InputSize*numChannels {
		return nil, fmt.Errorf("expected %d tensor values, got %d", InputSize*InputSize*numChannels, len(tensor))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.inputTensor.GetData(), tensor)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	scores := make([]float32, NumClasses)
	copy(scores, s.outputTensor.GetData())
	return scores, nil
}

// Close releases the session and tensors.
func (s *ModelStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	if s.session != nil {
		s.session.Destroy()
		ort.DestroyEnvironment()
	}
	s.session = nil
}
