package classify

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakePredictor returns canned scores and counts invocations.
type fakePredictor struct {
	scores    []float32
	err       error
	available bool
	calls     int
}

func (f *fakePredictor) Predict(tensor []float32) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

func (f *fakePredictor) Available() bool {
	return f.available
}

func testImageBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestClassifyArgmaxLabel(t *testing.T) {
	model := &fakePredictor{
		available: true,
		scores:    []float32{0.2, 0.2, 0.5, 0.05, 0.05},
	}
	p := NewPipeline(model, zap.NewNop())

	result := p.Classify(context.Background(), testImageBytes(t, color.White), "a.png")

	assert.True(t, result.Ok())
	assert.Equal(t, "Moderate DR", result.Label)
	assert.Equal(t, "a.png", result.SourceImageRef)
}

func TestClassifyTieBreaksToLowestIndex(t *testing.T) {
	model := &fakePredictor{
		available: true,
		scores:    []float32{0.4, 0.4, 0.1, 0.05, 0.05},
	}
	p := NewPipeline(model, zap.NewNop())

	result := p.Classify(context.Background(), testImageBytes(t, color.White), "a.png")

	assert.Equal(t, "No Diabetic Retinopathy", result.Label)
}

func TestClassifyIsDeterministicAndCached(t *testing.T) {
	model := &fakePredictor{
		available: true,
		scores:    []float32{0, 0, 0, 0, 1},
	}
	p := NewPipeline(model, zap.NewNop())
	raw := testImageBytes(t, color.White)

	first := p.Classify(context.Background(), raw, "a.png")
	second := p.Classify(context.Background(), raw, "b.png")

	assert.Equal(t, "Proliferative DR", first.Label)
	assert.Equal(t, first.Label, second.Label)
	// Identical bytes hit the content-addressed cache; the ref still
	// tracks the current request.
	assert.Equal(t, 1, model.calls)
	assert.Equal(t, "b.png", second.SourceImageRef)
}

func TestClassifyModelUnavailable(t *testing.T) {
	model := &fakePredictor{available: false}
	p := NewPipeline(model, zap.NewNop())

	// Undecodable bytes: if preprocessing ran it would fail, so a clean
	// notice proves the pipeline short-circuits before the preprocessor.
	result := p.Classify(context.Background(), []byte("not an image"), "a.png")

	assert.Equal(t, ModelNotLoadedNotice, result.Notice)
	assert.Empty(t, result.Err)
	assert.Empty(t, result.Label)
	assert.Equal(t, 0, model.calls)
}

func TestClassifyUndecodableImage(t *testing.T) {
	model := &fakePredictor{available: true, scores: []float32{1, 0, 0, 0, 0}}
	p := NewPipeline(model, zap.NewNop())

	result := p.Classify(context.Background(), []byte("not an image"), "a.png")

	assert.False(t, result.Ok())
	assert.Contains(t, result.Err, "Error during prediction")
	assert.Equal(t, 0, model.calls)
}

func TestClassifyInferenceFailure(t *testing.T) {
	model := &fakePredictor{available: true, err: assert.AnError}
	p := NewPipeline(model, zap.NewNop())

	result := p.Classify(context.Background(), testImageBytes(t, color.White), "a.png")

	assert.False(t, result.Ok())
	assert.Contains(t, result.Err, "Error during prediction")
}

func TestArgmax(t *testing.T) {
	tests := []struct {
		name   string
		scores []float32
		want   int
	}{
		{"SingleMax", []float32{0.2, 0.2, 0.5, 0.05, 0.05}, 2},
		{"TieAtMax", []float32{0.5, 0.5, 0.0, 0.0, 0.0}, 0},
		{"AllEqual", []float32{0.2, 0.2, 0.2, 0.2, 0.2}, 0},
		{"LastWins", []float32{0.1, 0.1, 0.1, 0.1, 0.6}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Argmax(tt.scores))
		})
	}
}
