// Package detect - Detection model backends and the filtered detection
// contract consumed by the monitoring loop.
package detect

import (
	"image"

	"gocv.io/x/gocv"
)

// DefaultConfidenceFloor is the score a detection must strictly exceed to be
// reported. A detection scored exactly at the floor is discarded.
const DefaultConfidenceFloor = 0.4

// COCO class IDs the sentry reports on.
const (
	ClassPerson   = 0
	ClassKnife    = 43
	ClassScissors = 76
)

// DefaultAllowedClasses returns the class allow-set mapping COCO IDs to
// human-readable labels.
func DefaultAllowedClasses() map[int]string {
	return map[int]string{
		ClassPerson:   "person",
		ClassKnife:    "knife",
		ClassScissors: "scissors",
	}
}

// Detection represents a detected object. Values are produced fresh on each
// inference call and never mutated afterwards.
type Detection struct {
	Box     image.Rectangle
	Score   float32
	ClassID int
	Label   string
}

// Center returns the integer center of the bounding box, using floor
// division to match the box's coordinate truncation.
func (d Detection) Center() image.Point {
	return image.Pt((d.Box.Min.X+d.Box.Max.X)/2, (d.Box.Min.Y+d.Box.Max.Y)/2)
}

// Detector runs object detection on a single frame.
//
// Implementations must not retain a reference to the frame beyond the call;
// the caller reuses the underlying buffer on the next tick.
type Detector interface {
	Detect(frame gocv.Mat) ([]Detection, error)
	Close() error
}

// Config holds the parameters shared by the detector backends.
type Config struct {
	ModelPath           string
	InputShape          image.Point
	ConfidenceThreshold float32
	NMSThreshold        float32
	AllowedClasses      map[int]string
	// LogitScores indicates the model emits raw logits rather than
	// probabilities; scores are squashed through a sigmoid before
	// thresholding.
	LogitScores bool
}

func (c Config) withDefaults() Config {
	if c.InputShape.X == 0 || c.InputShape.Y == 0 {
		c.InputShape = image.Pt(640, 640)
	}
	if c.ConfidenceThreshold == 0 {
		c.ConfidenceThreshold = DefaultConfidenceFloor
	}
	if c.NMSThreshold == 0 {
		c.NMSThreshold = 0.5
	}
	if c.AllowedClasses == nil {
		c.AllowedClasses = DefaultAllowedClasses()
	}
	return c
}

// filter applies the confidence floor (strict >) and the class allow-set,
// attaching the label derived from the class ID. Input order is preserved.
func filter(raw []Detection, floor float32, allowed map[int]string) []Detection {
	out := make([]Detection, 0, len(raw))
	for _, d := range raw {
		if d.Score <= floor {
			continue
		}
		label, ok := allowed[d.ClassID]
		if !ok {
			continue
		}
		d.Label = label
		out = append(out, d)
	}
	return out
}

// clampBox clips a box to the frame bounds and canonicalizes it.
func clampBox(x1, y1, x2, y2 int, frame image.Point) image.Rectangle {
	x1 = max(0, x1)
	y1 = max(0, y1)
	x2 = min(frame.X, x2)
	y2 = min(frame.Y, y2)
	return image.Rect(x1, y1, x2, y2).Canon()
}
