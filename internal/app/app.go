// Package app runs the recognition pipeline: camera frames go to the hand
// detector, every detected hand is classified, and each frame's results are
// handed to the registered sinks.
package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/handsign/internal/capture"
	"github.com/ayusman/handsign/internal/detector"
	"github.com/ayusman/handsign/internal/gesture"
	"github.com/ayusman/handsign/internal/store"
)

// Mode selects how Run presents results.
type Mode string

const (
	// ModeDebug shows a window with landmarks and the label in the corner.
	ModeDebug Mode = "debug"
	// ModeView shows a window with a labelled box per hand.
	ModeView Mode = "view"
	// ModeCollect runs headless and collects per-frame label lists.
	ModeCollect Mode = "collect"
)

// ParseMode accepts "normal" as an alias of view.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDebug, ModeView, ModeCollect:
		return Mode(s), nil
	case "normal":
		return ModeView, nil
	}
	return "", fmt.Errorf("unknown mode %q (want debug, view or collect)", s)
}

// Windowed reports whether the mode opens a display window.
func (m Mode) Windowed() bool { return m == ModeDebug || m == ModeView }

// Pipeline rate defaults.
const (
	IdleFPS   = 5
	ActiveFPS = 15
	IdleAfter = 2 * time.Second
)

// Config holds configuration options for the application.
type Config struct {
	Mode   Mode
	Camera capture.Config
	// MotionGate makes the pipeline idle at IdleFPS without classifying
	// until motion is seen.
	MotionGate   bool
	MotionThresh float64
	IdleFPS      int
	ActiveFPS    int
	IdleAfter    time.Duration
	Schema       detector.LandmarkSchema
	Store        *store.Store
	// Frames, when set, receives every annotated frame as JPEG.
	Frames *capture.FrameBuffer
	Logger *zap.SugaredLogger
	// Out receives collect mode output. Defaults to os.Stdout.
	Out io.Writer
}

// App is the main application that orchestrates camera, detector,
// classifier and sinks.
type App struct {
	config     Config
	logger     *zap.SugaredLogger
	camera     capture.Camera
	motion     *capture.MotionDetector
	gate       *capture.Gate
	detector   detector.Detector
	classifier gesture.Classifier
	annotator  *capture.Annotator
	collector  *Collector

	mu      sync.RWMutex
	sinks   []Sink
	enabled bool
	session *store.Session
	frame   int64
}

// New creates an App. The camera is built from config.Camera and the
// MediaPipe detector is used when its helper script can be found; tests
// replace either with SetCamera and SetDetector.
func New(config Config) *App {
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}
	if config.Out == nil {
		config.Out = os.Stdout
	}
	if config.Mode == "" {
		config.Mode = ModeView
	}
	if config.MotionThresh <= 0 {
		config.MotionThresh = 1.0 // 1% pixel change
	}
	if config.IdleFPS <= 0 {
		config.IdleFPS = IdleFPS
	}
	if config.ActiveFPS <= 0 {
		config.ActiveFPS = ActiveFPS
	}
	if config.IdleAfter <= 0 {
		config.IdleAfter = IdleAfter
	}
	if config.Schema.Version() == "" {
		config.Schema = detector.MediaPipeSchema
	}

	style := capture.StyleBoxes
	if config.Mode == ModeDebug {
		style = capture.StyleLandmarks
	}

	a := &App{
		config:     config,
		logger:     config.Logger,
		camera:     capture.NewCamera(config.Camera),
		motion:     capture.NewMotionDetector(config.MotionThresh),
		gate:       capture.NewGate(config.IdleFPS, config.ActiveFPS, config.IdleAfter),
		classifier: gesture.NewClassifier(config.Schema),
		annotator:  capture.NewAnnotator(style, config.Schema),
		enabled:    true,
	}

	if config.Mode == ModeCollect {
		a.collector = NewCollector(config.Out)
		a.sinks = append(a.sinks, a.collector)
	}
	if config.Store != nil {
		a.sinks = append(a.sinks, NewRecorder(config.Store, a.logger))
	}

	return a
}

// UseMediaPipe starts using the MediaPipe detector configured by cfg.
func (a *App) UseMediaPipe(cfg detector.Config) error {
	mp, err := detector.NewMediaPipeDetector(cfg)
	if err != nil {
		return err
	}
	a.SetDetector(mp)
	a.logger.Infow("using MediaPipe hand detection", "maxHands", cfg.MaxHands)
	return nil
}

// AddSink registers s to receive every processed frame.
func (a *App) AddSink(s Sink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sinks = append(a.sinks, s)
}

// SetEnabled enables or disables gesture detection.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether gesture detection is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetDetector sets the hand detector implementation to use.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// Detector returns the hand detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// SetCamera replaces the frame source. Call before Run.
func (a *App) SetCamera(c capture.Camera) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.camera = c
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.camera
}

// Classifier returns the classifier bound to the configured schema.
func (a *App) Classifier() gesture.Classifier {
	return a.classifier
}

// Collector returns the collect mode sink, or nil in other modes.
func (a *App) Collector() *Collector {
	return a.collector
}

// Session returns the recorded session, or nil without a store or before
// Run.
func (a *App) Session() *store.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session
}

// ProcessFrame detects and classifies the hands in frame and delivers the
// result to every sink. Detector failures are returned and nothing is
// delivered; a hand with missing landmarks is reported inside the result.
func (a *App) ProcessFrame(frame *gocv.Mat) (FrameResult, error) {
	a.mu.Lock()
	det := a.detector
	a.frame++
	result := FrameResult{Frame: a.frame, Time: time.Now().UTC()}
	if a.session != nil {
		result.SessionID = a.session.ID
	}
	sinks := append([]Sink(nil), a.sinks...)
	a.mu.Unlock()

	if det == nil {
		return result, errors.New("no hand detector configured")
	}

	poses, err := det.Detect(frame)
	if err != nil {
		return result, fmt.Errorf("detect hands: %w", err)
	}

	result.Hands = ClassifyHands(a.classifier, poses, a.logger)
	if result.Empty() {
		a.logger.Debugw("no gesture", "frame", result.Frame)
	} else {
		a.logger.Debugw("gestures classified", "frame", result.Frame, "labels", result.Labels())
	}

	for _, s := range sinks {
		s.OnFrame(result)
	}
	return result, nil
}

// Annotate draws result onto frame in the mode's style.
func (a *App) Annotate(frame *gocv.Mat, result FrameResult) {
	overlays := make([]capture.Overlay, len(result.Hands))
	for i, h := range result.Hands {
		overlays[i] = capture.Overlay{Pose: h.Pose, Label: h.Label}
	}
	a.annotator.Annotate(frame, overlays)
}

// Stop releases the camera, motion detector and hand detector and ends the
// session. It is safe to call more than once.
func (a *App) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var err error
	if a.camera != nil {
		err = multierr.Append(err, a.camera.Close())
	}
	a.motion.Close()
	if a.detector != nil {
		err = multierr.Append(err, a.detector.Close())
	}
	if a.session != nil && a.config.Store != nil && a.session.EndedAt == nil {
		now := time.Now().UTC()
		if endErr := a.config.Store.Sessions().End(a.session.ID, now); endErr != nil {
			err = multierr.Append(err, fmt.Errorf("end session: %w", endErr))
		} else {
			a.session.EndedAt = &now
		}
	}

	a.logger.Infow("pipeline stopped", "frames", a.frame)
	return err
}
