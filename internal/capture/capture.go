// Package capture defines the frame-acquisition collaborators: face
// localization, feature extraction and frame sources. Face localization
// itself runs in an external detector service; this package only consumes
// its results.
package capture

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/kozaktomas/class-attendance/internal/feature"
)

// Detection anomalies are recoverable: the detection loop skips the tick
// and produces no event.
var (
	ErrNoFace        = errors.New("no face detected in the image")
	ErrMultipleFaces = errors.New("multiple faces detected in the image")
)

// Locator finds the single face in an image.
type Locator interface {
	// Locate returns the face bounding box, ErrNoFace or
	// ErrMultipleFaces.
	Locate(ctx context.Context, imageData []byte) (image.Rectangle, error)
}

// Features carries the extraction result: the full patch vector and its
// probe summary for approximate search.
type Features struct {
	Full  feature.Vector
	Probe feature.Vector
}

// Extractor converts a located face into a feature vector.
type Extractor interface {
	Extract(imageData []byte, box image.Rectangle) (Features, error)
}

// Frame is one unit of work for the detection loop.
type Frame struct {
	// Ref identifies the frame origin (file path, camera tag).
	Ref string
	// Data is the raw encoded image.
	Data []byte
	// At is the capture timestamp used for attendance classification.
	At time.Time
}

// Source produces frames for a single consumer. The channel closes when
// the source is exhausted or the context is cancelled.
type Source interface {
	Frames(ctx context.Context) <-chan Frame
}
