package sentry

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/sentry-ai/go-sentry/detect"
	"github.com/sentry-ai/go-sentry/zone"
)

// Annotation colors, matching the reference dashboard: red for in-zone
// threats, green for safe detections, yellow for the status line.
var (
	dangerColor = color.RGBA{R: 255, A: 255}
	safeColor   = color.RGBA{G: 255, A: 255}
	statusColor = color.RGBA{R: 255, G: 255, A: 255}
)

// BoxInstruction draws a labeled bounding box.
type BoxInstruction struct {
	Box   image.Rectangle
	Label string
	Color color.RGBA
}

// PolylineInstruction draws a closed outline.
type PolylineInstruction struct {
	Points []image.Point
	Color  color.RGBA
}

// TextInstruction draws overlay text.
type TextInstruction struct {
	Text   string
	Origin image.Point
	Color  color.RGBA
	Scale  float64
}

// Overlay is the per-tick render instruction list. The loop builds it from
// the cached detections and the display collaborator consumes it; keeping
// it as data lets tests inspect the annotations without a renderer.
type Overlay struct {
	Boxes     []BoxInstruction
	Polylines []PolylineInstruction
	Texts     []TextInstruction
}

// NewOverlay returns an empty overlay.
func NewOverlay() *Overlay {
	return &Overlay{}
}

// AddDetection appends a labeled box, color-coded by containment.
func (o *Overlay) AddDetection(det detect.Detection, inZone bool) {
	c := safeColor
	if inZone {
		c = dangerColor
	}
	o.Boxes = append(o.Boxes, BoxInstruction{
		Box:   det.Box,
		Label: fmt.Sprintf("%s %.2f", det.Label, det.Score),
		Color: c,
	})
}

// AddZone appends the zone outline, red while any detection this tick is
// inside it. A nil zone draws nothing.
func (o *Overlay) AddZone(z *zone.DangerZone, threatActive bool) {
	vs := z.Vertices()
	if len(vs) == 0 {
		return
	}
	c := safeColor
	if threatActive {
		c = dangerColor
	}
	o.Polylines = append(o.Polylines, PolylineInstruction{Points: vs, Color: c})
}

// AddStatus appends the status line.
func (o *Overlay) AddStatus(status string) {
	o.Texts = append(o.Texts, TextInstruction{
		Text:   "System: " + status,
		Origin: image.Pt(20, 40),
		Color:  statusColor,
		Scale:  1.0,
	})
}

// Draw renders every instruction onto the frame.
func (o *Overlay) Draw(frame *gocv.Mat) {
	for _, b := range o.Boxes {
		gocv.Rectangle(frame, b.Box, b.Color, 2)
		origin := image.Pt(b.Box.Min.X, b.Box.Min.Y-10)
		gocv.PutText(frame, b.Label, origin, gocv.FontHersheySimplex, 0.5, b.Color, 2)
	}
	for _, p := range o.Polylines {
		pts := gocv.NewPointsVectorFromPoints([][]image.Point{p.Points})
		gocv.Polylines(frame, pts, true, p.Color, 2)
		pts.Close()
	}
	for _, t := range o.Texts {
		gocv.PutText(frame, t.Text, t.Origin, gocv.FontHersheySimplex, t.Scale, t.Color, 2)
	}
}
