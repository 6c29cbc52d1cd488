package extract

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	// Register decoders for the image formats the pipeline accepts.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// maxOCRWidth bounds the resize ahead of OCR; images are never upscaled.
const maxOCRWidth = 2000

// NormalizeImage prepares an image buffer for a recognition engine:
// bounded-width resize, grayscale conversion and linear intensity
// normalization, re-encoded as PNG.
func NormalizeImage(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxOCRWidth {
		h = h * maxOCRWidth / w
		w = maxOCRWidth
		scaled := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), src, bounds, draw.Over, nil)
		src = scaled
	}

	gray := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(gray, gray.Bounds(), src, src.Bounds().Min, draw.Src)
	stretchContrast(gray)

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, fmt.Errorf("encode normalized image: %w", err)
	}
	return buf.Bytes(), nil
}

// stretchContrast linearly maps the observed intensity range onto the full
// 0..255 scale in place.
func stretchContrast(img *image.Gray) {
	min, max := uint8(255), uint8(0)
	for _, p := range img.Pix {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}
	if (min == 0 && max == 255) || min >= max {
		return
	}
	scale := 255.0 / float64(max-min)
	for i, p := range img.Pix {
		img.Pix[i] = uint8(float64(p-min)*scale + 0.5)
	}
}
