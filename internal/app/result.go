package app

import (
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/handsign/internal/detector"
	"github.com/ayusman/handsign/internal/gesture"
)

// HandResult is the classification of one detected hand.
type HandResult struct {
	Hand       int              `json:"hand"`
	Handedness string           `json:"handedness,omitempty"`
	Score      float64          `json:"score,omitempty"`
	Gesture    gesture.Gesture  `json:"gesture"`
	Label      string           `json:"label"`
	Features   gesture.Features `json:"features"`
	Box        *detector.Box    `json:"box,omitempty"`
	Error      string           `json:"error,omitempty"`

	Pose detector.HandPose `json:"-"`
	Err  error             `json:"-"`
}

// FrameResult is everything produced for one camera frame. A frame with no
// hands has an empty Hands slice and means "no gesture".
type FrameResult struct {
	SessionID string       `json:"session,omitempty"`
	Frame     int64        `json:"frame"`
	Time      time.Time    `json:"time"`
	Hands     []HandResult `json:"hands"`
}

// Empty reports whether no hand was detected.
func (r FrameResult) Empty() bool { return len(r.Hands) == 0 }

// Labels returns the display label of each hand in detection order, or nil
// for an empty frame.
func (r FrameResult) Labels() []string {
	if r.Empty() {
		return nil
	}
	labels := make([]string, len(r.Hands))
	for i, h := range r.Hands {
		labels[i] = h.Label
	}
	return labels
}

// ClassifyHands classifies each pose independently. A pose with a missing
// landmark yields an Unknown result carrying the error; it does not affect
// the other hands. logger may be nil.
func ClassifyHands(c gesture.Classifier, poses []detector.HandPose, logger *zap.SugaredLogger) []HandResult {
	results := make([]HandResult, 0, len(poses))
	for i, pose := range poses {
		res, err := c.Classify(pose)
		hr := HandResult{
			Hand:       i,
			Handedness: pose.Handedness,
			Score:      pose.Score,
			Gesture:    res.Gesture,
			Label:      res.Label,
			Features:   res.Features,
			Pose:       pose,
			Err:        err,
		}
		if box, ok := pose.Bounds(); ok {
			hr.Box = &box
		}
		if err != nil {
			hr.Error = err.Error()
			if logger != nil {
				logger.Warnw("hand not classified", "hand", i, "error", err)
			}
		}
		results = append(results, hr)
	}
	return results
}
