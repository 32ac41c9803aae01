package capture

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/handsign/internal/detector"
)

// Overlay is one hand to draw with its label.
type Overlay struct {
	Pose  detector.HandPose
	Label string
}

// Style selects how Annotate draws overlays.
type Style int

const (
	// StyleBoxes draws a box around each hand with its label above it.
	StyleBoxes Style = iota
	// StyleLandmarks draws joints and bones and writes the label in the top
	// left corner.
	StyleLandmarks
)

var (
	green = color.RGBA{G: 255, A: 255}
	red   = color.RGBA{R: 255, A: 255}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// labelOrigin is where StyleLandmarks writes labels.
var labelOrigin = image.Point{X: 10, Y: 50}

// Annotator draws overlays onto frames for a fixed schema.
type Annotator struct {
	style  Style
	schema detector.LandmarkSchema
}

// NewAnnotator returns an annotator drawing in style against schema.
func NewAnnotator(style Style, schema detector.LandmarkSchema) *Annotator {
	return &Annotator{style: style, schema: schema}
}

// Annotate draws every overlay onto frame in place.
func (a *Annotator) Annotate(frame *gocv.Mat, overlays []Overlay) {
	if frame == nil || frame.Empty() {
		return
	}
	w, h := frame.Cols(), frame.Rows()

	for _, o := range overlays {
		switch a.style {
		case StyleLandmarks:
			a.drawLandmarks(frame, o.Pose, w, h)
			gocv.PutText(frame, o.Label, labelOrigin, gocv.FontHersheySimplex, 1, green, 2)
		default:
			box, ok := o.Pose.Bounds()
			if !ok {
				continue
			}
			r := box.Pixels(w, h)
			gocv.Rectangle(frame, r, green, 2)
			gocv.PutText(frame, o.Label, image.Point{X: r.Min.X, Y: r.Min.Y - 10}, gocv.FontHersheySimplex, 0.9, green, 2)
		}
	}
}

func (a *Annotator) drawLandmarks(frame *gocv.Mat, pose detector.HandPose, w, h int) {
	for _, c := range detector.Connections {
		from, ok1 := pose.Landmark(a.schema, c[0])
		to, ok2 := pose.Landmark(a.schema, c[1])
		if !ok1 || !ok2 {
			continue
		}
		gocv.Line(frame, from.Pixel(w, h), to.Pixel(w, h), white, 2)
	}
	for _, p := range a.schema.Points() {
		lm, ok := pose.Landmark(a.schema, p)
		if !ok {
			continue
		}
		gocv.Circle(frame, lm.Pixel(w, h), 4, red, -1)
	}
}
