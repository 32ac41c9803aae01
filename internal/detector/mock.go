package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu     sync.Mutex
	hands  []HandPose
	err    error
	calls  int
	closed bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the poses that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandPose) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the pre-configured poses or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandPose, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Calls returns how many times Detect was called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Preset geometry for an upright hand in a mirrored (selfie) frame: the
// thumb sits at low X, fingers run index to pinky towards high X, Y grows
// down the image.
var (
	presetMCPX = [4]float64{0.40, 0.47, 0.54, 0.60}

	presetThumbCMC      = Landmark{X: 0.42, Y: 0.80}
	presetThumbMCP      = Landmark{X: 0.36, Y: 0.74}
	presetThumbIP       = Landmark{X: 0.31, Y: 0.68}
	presetThumbTipOpen  = Landmark{X: 0.25, Y: 0.62}
	presetThumbTipTuck  = Landmark{X: 0.48, Y: 0.62}
	presetWrist         = Landmark{X: 0.50, Y: 0.85}
	presetMCPY          = 0.65
	presetExtendedJoint = [3]float64{0.52, 0.42, 0.34} // PIP, DIP, tip
	presetCurledJoint   = [3]float64{0.58, 0.64, 0.70}
)

// FingerPose builds a 21 point pose with each of the index, middle, ring and
// pinky fingers extended or curled, and the thumb extended or tucked.
func FingerPose(extended [4]bool, thumbExtended bool) HandPose {
	points := make([]Landmark, NumLandmarks)

	points[Wrist] = presetWrist
	points[ThumbCMC] = presetThumbCMC
	points[ThumbMCP] = presetThumbMCP
	points[ThumbIP] = presetThumbIP
	if thumbExtended {
		points[ThumbTip] = presetThumbTipOpen
	} else {
		points[ThumbTip] = presetThumbTipTuck
	}

	bases := [4]int{IndexMCP, MiddleMCP, RingMCP, PinkyMCP}
	for f, base := range bases {
		x := presetMCPX[f]
		points[base] = Landmark{X: x, Y: presetMCPY}

		joints := presetCurledJoint
		if extended[f] {
			joints = presetExtendedJoint
		}
		for j, y := range joints {
			points[base+1+j] = Landmark{X: x, Y: y, Z: -0.01 * float64(j+1)}
		}
	}

	return HandPose{
		Points:     points,
		Handedness: "Right",
		Score:      0.95,
	}
}

// OpenPalmPose returns a pose with every finger and the thumb extended.
func OpenPalmPose() HandPose { return FingerPose([4]bool{true, true, true, true}, true) }

// FistPose returns a pose with every finger curled and the thumb tucked.
func FistPose() HandPose { return FingerPose([4]bool{}, false) }

// ThumbsUpPose returns a pose with the fingers curled and the thumb out.
func ThumbsUpPose() HandPose { return FingerPose([4]bool{}, true) }

// PeacePose returns a pose with index and middle extended.
func PeacePose() HandPose { return FingerPose([4]bool{true, true, false, false}, false) }

// PinkyPose returns a pose with only the pinky extended.
func PinkyPose() HandPose { return FingerPose([4]bool{false, false, false, true}, false) }

// RockNRollPose returns a pose with index and pinky extended.
func RockNRollPose() HandPose { return FingerPose([4]bool{true, false, false, true}, true) }

// LShapePose returns a pose with index and thumb extended.
func LShapePose() HandPose { return FingerPose([4]bool{true, false, false, false}, true) }

// PointingPose returns a pose with only the index extended.
func PointingPose() HandPose { return FingerPose([4]bool{true, false, false, false}, false) }

// OKPose returns a pose with the index curled onto the thumb tip and the
// other three fingers extended.
func OKPose() HandPose {
	pose := FingerPose([4]bool{false, true, true, true}, false)
	tip := pose.Points[IndexTip]
	pose.Points[ThumbTip] = Landmark{X: tip.X + 0.01, Y: tip.Y - 0.01}
	return pose
}
