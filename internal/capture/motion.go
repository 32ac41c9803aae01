package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const (
	// blurKernel is the Gaussian kernel applied before differencing.
	blurKernel = 21
	// pixelDelta is the grey level change that marks a pixel as moved.
	pixelDelta = 25
)

// MotionDetector compares each frame with the previous one and reports the
// share of pixels that changed.
type MotionDetector struct {
	threshold   float64
	prevGray    gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// NewMotionDetector returns a detector that reports motion when more than
// threshold percent of the pixels change between frames.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		prevGray:  gocv.NewMat(),
	}
}

// Detect returns whether frame moved relative to the last frame, and the
// changed pixel percentage. The first frame only sets the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: blurKernel, Y: blurKernel}, 0, 0, gocv.BorderDefault)

	if !m.initialized || blurred.Rows() != m.prevGray.Rows() || blurred.Cols() != m.prevGray.Cols() {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, pixelDelta, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(mask)) / float64(mask.Rows()*mask.Cols()) * 100.0
	blurred.CopyTo(&m.prevGray)

	return changed > m.threshold, changed
}

// Reset forgets the baseline frame.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

// Close releases the baseline Mat.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release()
}

func (m *MotionDetector) release() {
	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.initialized = false
}

// SetThreshold ignores values <= 0.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = threshold
}

// Gate tracks whether the pipeline should be idle or active. Motion switches
// it to active; IdleAfter without motion switches it back.
type Gate struct {
	IdleFPS   int
	ActiveFPS int
	IdleAfter time.Duration

	active     bool
	lastMotion time.Time
}

// NewGate returns an idle gate.
func NewGate(idleFPS, activeFPS int, idleAfter time.Duration) *Gate {
	return &Gate{IdleFPS: idleFPS, ActiveFPS: activeFPS, IdleAfter: idleAfter}
}

// Observe records whether motion was seen at now. It returns the FPS the
// camera should run at and whether that changed.
func (g *Gate) Observe(motion bool, now time.Time) (fps int, changed bool) {
	switch {
	case motion:
		g.lastMotion = now
		if !g.active {
			g.active = true
			return g.ActiveFPS, true
		}
	case g.active && now.Sub(g.lastMotion) > g.IdleAfter:
		g.active = false
		return g.IdleFPS, true
	}
	return g.FPS(), false
}

// Active reports whether frames should be sent to the detector.
func (g *Gate) Active() bool { return g.active }

// FPS returns the rate for the current state.
func (g *Gate) FPS() int {
	if g.active {
		return g.ActiveFPS
	}
	return g.IdleFPS
}
