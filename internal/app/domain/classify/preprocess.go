package classify

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"

	"github.com/oculab/retinagrade/internal/app/models"
)

// Prepare converts raw uploaded image bytes into the tensor the model
// expects: decode, resize to 299x299, batch of 1, Inception-family
// scaling of each channel into [-1, 1]. Layout is NHWC float32, matching
// the exported classifier. An undecodable image yields an error wrapping
// models.ErrPreprocess.
func Prepare(raw []byte) ([]float32, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", models.ErrPreprocess, err)
	}

	resized := resize.Resize(InputSize, InputSize, img, resize.Lanczos3)
	bounds := resized.Bounds()
	if bounds.Dx() != InputSize || bounds.Dy() != InputSize {
		return nil, fmt.Errorf("%w: resize produced %dx%d", models.ErrPreprocess, bounds.Dx(), bounds.Dy())
	}

	data := make([]float32, InputSize*InputSize*numChannels)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			// RGBA is 16-bit per channel; shift down to the 0..255 range
			// the training-time preprocessing operated on.
			data[i] = float32(r>>8)/127.5 - 1
			data[i+1] = float32(g>>8)/127.5 - 1
			data[i+2] = float32(b>>8)/127.5 - 1
			i += numChannels
		}
	}

	return data, nil
}
