package ocr

import (
	"bytes"
	"image/jpeg"
	"net/http"

	"github.com/disintegration/imaging"
)

// Preprocessor enhances receipt photos before OCR. PDFs pass through
// untouched; vendors accept them directly.
type Preprocessor struct {
	maxDimension int
}

// NewPreprocessor creates an image preprocessor with the default size cap.
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{maxDimension: 2000}
}

// Preprocess applies grayscale, auto-contrast and sharpening to make thermal
// receipt text readable. On any decode failure the original bytes are
// returned unchanged rather than failing the whole submission.
func (p *Preprocessor) Preprocess(data []byte) []byte {
	if http.DetectContentType(data) == "application/pdf" {
		return data
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return data
	}

	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 20)
	img = imaging.Sharpen(img, 1.0)

	// Downscale very large photos; OCR quality plateaus past ~2000px and the
	// vendors bill by pixel count.
	bounds := img.Bounds()
	if bounds.Dx() > p.maxDimension || bounds.Dy() > p.maxDimension {
		img = imaging.Fit(img, p.maxDimension, p.maxDimension, imaging.Lanczos)
	}

	var out bytes.Buffer
	if err := imaging.Encode(&out, img, imaging.JPEG, imaging.JPEGQuality(jpeg.DefaultQuality)); err != nil {
		return data
	}
	return out.Bytes()
}
