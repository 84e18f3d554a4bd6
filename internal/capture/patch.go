package capture

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/kozaktomas/class-attendance/internal/feature"
)

// PatchExtractor produces feature vectors from a face patch: crop, scale
// to a square patch, convert to grayscale and flatten. This mirrors the
// extraction the enrolled encodings were produced with, so patch size
// must match across enrollment and recognition.
type PatchExtractor struct {
	patchSize int
}

// NewPatchExtractor creates an extractor with the given square patch
// side. The produced vectors have patchSize*patchSize elements.
func NewPatchExtractor(patchSize int) *PatchExtractor {
	return &PatchExtractor{patchSize: patchSize}
}

// Dim returns the produced vector length.
func (e *PatchExtractor) Dim() int {
	return e.patchSize * e.patchSize
}

// Extract crops the bounding box out of the image and converts it to a
// grayscale patch vector plus its probe summary.
func (e *PatchExtractor) Extract(imageData []byte, box image.Rectangle) (Features, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return Features{}, fmt.Errorf("failed to decode image: %w", err)
	}

	box = box.Intersect(img.Bounds())
	if box.Empty() {
		return Features{}, fmt.Errorf("bounding box %v outside image bounds %v", box, img.Bounds())
	}

	// Scale the face crop to the square patch.
	patch := image.NewRGBA(image.Rect(0, 0, e.patchSize, e.patchSize))
	draw.BiLinear.Scale(patch, patch.Bounds(), img, box, draw.Src, nil)

	full := make(feature.Vector, e.patchSize*e.patchSize)
	i := 0
	for y := 0; y < e.patchSize; y++ {
		for x := 0; x < e.patchSize; x++ {
			r, g, b, _ := patch.At(x, y).RGBA()
			// ITU-R BT.601 luma on 8-bit channels.
			gray := (299*float64(r>>8) + 587*float64(g>>8) + 114*float64(b>>8)) / 1000
			full[i] = float32(gray)
			i++
		}
	}

	return Features{
		Full:  full,
		Probe: feature.Probe(full, feature.ProbeDim),
	}, nil
}
