package detector

import (
	"time"

	"gocv.io/x/gocv"
)

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns one pose per detected hand.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandPose, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect.
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// ScriptPath overrides the location of mediapipe_service.py.
	ScriptPath string

	// PythonPath overrides the interpreter used to run the service.
	PythonPath string

	// IdleTimeout stops the service after this long without a frame.
	IdleTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        10,
		MinConfidence:   0.7,
		MinTrackingConf: 0.7,
		IdleTimeout:     30 * time.Second,
	}
}
