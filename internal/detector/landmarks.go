// Package detector provides the hand detection boundary: pose types, landmark
// schemas, and detector implementations that turn video frames into poses.
package detector

import (
	"encoding/json"
	"image"
	"math"
)

// Hand landmark indices following the MediaPipe hand model.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Landmark is a single tracked point of a hand in normalized image
// coordinates. X and Y are in [0,1] with Y growing down the image. Z is the
// detector's relative depth and is passed through untouched.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandPose is the set of landmarks for one detected hand in one frame.
// Points are ordered by the detector's indexing; an index at or beyond
// len(Points) is absent, and so is a null entry in the JSON form.
type HandPose struct {
	Points     []Landmark
	Handedness string // "Left" or "Right"
	Score      float64

	// absent marks indices below len(Points) that carry no landmark.
	absent []bool
}

// NewHandPose builds a pose from points, treating a nil entry as an absent
// landmark.
func NewHandPose(points []*Landmark) HandPose {
	p := HandPose{Points: make([]Landmark, len(points))}
	for i, lm := range points {
		if lm == nil {
			if p.absent == nil {
				p.absent = make([]bool, len(points))
			}
			p.absent[i] = true
			continue
		}
		p.Points[i] = *lm
	}
	return p
}

// At returns the landmark at index i and whether it is present.
func (p HandPose) At(i int) (Landmark, bool) {
	if i < 0 || i >= len(p.Points) {
		return Landmark{}, false
	}
	if i < len(p.absent) && p.absent[i] {
		return Landmark{}, false
	}
	return p.Points[i], true
}

// PointRefs returns the points with nil in place of every absent landmark.
func (p HandPose) PointRefs() []*Landmark {
	refs := make([]*Landmark, len(p.Points))
	for i := range p.Points {
		if lm, ok := p.At(i); ok {
			refs[i] = &lm
		}
	}
	return refs
}

type jsonPose struct {
	Points     []*Landmark `json:"points"`
	Handedness string      `json:"handedness,omitempty"`
	Score      float64     `json:"score,omitempty"`
}

func (p HandPose) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonPose{Points: p.PointRefs(), Handedness: p.Handedness, Score: p.Score})
}

func (p *HandPose) UnmarshalJSON(b []byte) error {
	var aux jsonPose
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*p = NewHandPose(aux.Points)
	p.Handedness = aux.Handedness
	p.Score = aux.Score
	return nil
}

// Landmark returns the landmark the schema assigns to point.
func (p HandPose) Landmark(schema LandmarkSchema, point Point) (Landmark, bool) {
	idx, ok := schema.Index(point)
	if !ok {
		return Landmark{}, false
	}
	return p.At(idx)
}

// Box is an axis aligned bounding box in normalized coordinates.
type Box struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Bounds returns the bounding box of every present landmark in the pose.
// Returns false when there is none.
func (p HandPose) Bounds() (Box, bool) {
	b := Box{
		MinX: math.Inf(1),
		MinY: math.Inf(1),
		MaxX: math.Inf(-1),
		MaxY: math.Inf(-1),
	}
	found := false
	for i := range p.Points {
		lm, ok := p.At(i)
		if !ok {
			continue
		}
		found = true
		b.MinX = math.Min(b.MinX, lm.X)
		b.MinY = math.Min(b.MinY, lm.Y)
		b.MaxX = math.Max(b.MaxX, lm.X)
		b.MaxY = math.Max(b.MaxY, lm.Y)
	}
	if !found {
		return Box{}, false
	}
	return b, true
}

// Pixels scales the box to a frame of the given size.
func (b Box) Pixels(width, height int) image.Rectangle {
	return image.Rect(
		int(b.MinX*float64(width)),
		int(b.MinY*float64(height)),
		int(b.MaxX*float64(width)),
		int(b.MaxY*float64(height)),
	)
}

// Pixel maps a landmark to pixel coordinates in a frame of the given size.
func (l Landmark) Pixel(width, height int) image.Point {
	return image.Pt(int(l.X*float64(width)), int(l.Y*float64(height)))
}
