package gesture

import (
	"math"

	"github.com/ayusman/handsign/internal/detector"
)

// PinchThreshold is the per-axis distance, in normalized units, under which
// the thumb and index tips count as touching.
const PinchThreshold = 0.05

// Features are the derived booleans every rule is written against.
type Features struct {
	Index  bool `json:"index"`
	Middle bool `json:"middle"`
	Ring   bool `json:"ring"`
	Pinky  bool `json:"pinky"`
	Thumb  bool `json:"thumb"`
	Pinch  bool `json:"pinch"`
}

// AllFingers reports whether index, middle, ring and pinky are all extended.
func (f Features) AllFingers() bool {
	return f.Index && f.Middle && f.Ring && f.Pinky
}

// NoFingers reports whether none of index, middle, ring and pinky is extended.
func (f Features) NoFingers() bool {
	return !f.Index && !f.Middle && !f.Ring && !f.Pinky
}

// fingerPoints pairs each finger's tip with its MCP knuckle.
var fingerPoints = [4][2]detector.Point{
	{detector.PointIndexTip, detector.PointIndexMCP},
	{detector.PointMiddleTip, detector.PointMiddleMCP},
	{detector.PointRingTip, detector.PointRingMCP},
	{detector.PointPinkyTip, detector.PointPinkyMCP},
}

// RequiredPoints lists every point Extract reads.
func RequiredPoints() []detector.Point {
	points := []detector.Point{detector.PointThumbTip, detector.PointThumbIP}
	for _, fp := range fingerPoints {
		points = append(points, fp[0], fp[1])
	}
	return points
}

// Extract derives the features of pose. It fails with a
// *MissingLandmarkError if any required point is absent.
func Extract(pose detector.HandPose, schema detector.LandmarkSchema) (Features, error) {
	lookup := func(p detector.Point) (detector.Landmark, error) {
		idx, ok := schema.Index(p)
		if !ok {
			return detector.Landmark{}, &MissingLandmarkError{Point: p, Index: -1, Schema: schema.Version()}
		}
		lm, ok := pose.At(idx)
		if !ok {
			return detector.Landmark{}, &MissingLandmarkError{Point: p, Index: idx, Schema: schema.Version()}
		}
		return lm, nil
	}

	thumbTip, err := lookup(detector.PointThumbTip)
	if err != nil {
		return Features{}, err
	}
	thumbIP, err := lookup(detector.PointThumbIP)
	if err != nil {
		return Features{}, err
	}

	var extended [4]bool
	var indexTip detector.Landmark
	for i, fp := range fingerPoints {
		tip, err := lookup(fp[0])
		if err != nil {
			return Features{}, err
		}
		mcp, err := lookup(fp[1])
		if err != nil {
			return Features{}, err
		}
		extended[i] = tip.Y < mcp.Y
		if i == 0 {
			indexTip = tip
		}
	}

	pinch := math.Abs(thumbTip.X-indexTip.X) < PinchThreshold &&
		math.Abs(thumbTip.Y-indexTip.Y) < PinchThreshold

	return Features{
		Index:  extended[0],
		Middle: extended[1],
		Ring:   extended[2],
		Pinky:  extended[3],
		Thumb:  thumbTip.X < thumbIP.X,
		Pinch:  pinch,
	}, nil
}
