package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/handsign/internal/capture"
	"github.com/ayusman/handsign/internal/store"
)

// Key codes that close the display window.
const (
	keyEsc = 27
	keyQ   = 'q'
)

// windowTitle is the display window caption per mode.
var windowTitle = map[Mode]string{
	ModeDebug: "Hand Gesture Recognition (Debug)",
	ModeView:  "Hand Gesture Recognition",
}

// Run opens the camera and processes frames until ctx is cancelled, the
// window is closed with ESC or q, or a non-looping source runs out of
// frames. In collect mode the collected lists are written to Out on return.
//
// Window modes must call Run from the main goroutine; OpenCV's highgui is
// not thread safe on every platform.
func (a *App) Run(ctx context.Context) error {
	camera := a.Camera()
	if err := camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}

	if err := a.startSession(); err != nil {
		return err
	}

	var window *gocv.Window
	if a.config.Mode.Windowed() {
		window = gocv.NewWindow(windowTitle[a.config.Mode])
		defer window.Close()
	}

	if a.collector != nil {
		defer func() {
			if err := a.collector.Dump(a.config.Out); err != nil {
				a.logger.Warnw("failed to write collected gestures", "error", err)
			}
		}()
	}

	fps := a.config.ActiveFPS
	if a.config.MotionGate {
		fps = a.gate.FPS()
	}
	camera.SetFPS(fps)

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	a.logger.Infow("pipeline started", "mode", a.config.Mode, "fps", fps, "schema", a.config.Schema.Version())

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if !a.IsEnabled() {
			continue
		}

		frame, err := camera.ReadFrame()
		if errors.Is(err, capture.ErrNoMoreFrames) {
			return nil
		}
		if err != nil {
			a.logger.Warnw("failed to read frame", "error", err)
			continue
		}

		if a.config.MotionGate {
			moved, changed := a.motion.Detect(frame)
			if next, switched := a.gate.Observe(moved, time.Now()); switched {
				camera.SetFPS(next)
				ticker.Reset(time.Second / time.Duration(next))
				a.logger.Debugw("frame rate changed", "fps", next, "active", a.gate.Active(), "changed", changed)
			}
		}

		var result FrameResult
		if !a.config.MotionGate || a.gate.Active() {
			result, err = a.ProcessFrame(frame)
			if err != nil {
				a.logger.Warnw("frame not processed", "error", err)
			}
		}

		quit := a.present(frame, result, window)
		frame.Close()
		if quit {
			return nil
		}
	}
}

// present draws and displays or streams the frame. It reports whether the
// user asked to quit.
func (a *App) present(frame *gocv.Mat, result FrameResult, window *gocv.Window) bool {
	if window == nil && a.config.Frames == nil {
		return false
	}

	a.Annotate(frame, result)

	if a.config.Frames != nil {
		if err := a.config.Frames.Put(frame); err != nil {
			a.logger.Debugw("failed to encode frame", "error", err)
		}
	}

	if window == nil {
		return false
	}
	window.IMShow(*frame)
	key := window.WaitKey(1) & 0xFF
	return key == keyEsc || key == keyQ
}

func (a *App) startSession() error {
	if a.config.Store == nil {
		return nil
	}

	sess := &store.Session{
		Mode:   string(a.config.Mode),
		Schema: a.config.Schema.Version(),
	}
	if err := a.config.Store.Sessions().Create(sess); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	a.mu.Lock()
	a.session = sess
	a.mu.Unlock()

	a.logger.Infow("session started", "session", sess.ID)
	return nil
}
