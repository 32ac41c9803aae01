package app

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/ayusman/handsign/internal/store"
)

// Sink receives every processed frame. OnFrame is called from the pipeline
// goroutine and must not block for long.
type Sink interface {
	OnFrame(FrameResult)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(FrameResult)

func (f SinkFunc) OnFrame(r FrameResult) { f(r) }

// NoHandMessage is printed by Collector for frames without hands.
const NoHandMessage = "No hand detected"

// Collector accumulates the label list of every frame that had at least one
// hand and reports empty frames on its writer.
type Collector struct {
	mu     sync.Mutex
	out    io.Writer
	frames [][]string
}

// NewCollector returns a Collector writing "no hand" notices to out. A nil
// out discards them.
func NewCollector(out io.Writer) *Collector {
	if out == nil {
		out = io.Discard
	}
	return &Collector{out: out}
}

func (c *Collector) OnFrame(r FrameResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r.Empty() {
		fmt.Fprintln(c.out, NoHandMessage)
		return
	}
	c.frames = append(c.frames, r.Labels())
}

// Frames returns a copy of the collected label lists.
func (c *Collector) Frames() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([][]string, len(c.frames))
	copy(out, c.frames)
	return out
}

// Dump writes the collected lists as one JSON array.
func (c *Collector) Dump(w io.Writer) error {
	frames := c.Frames()
	if frames == nil {
		frames = [][]string{}
	}
	return json.NewEncoder(w).Encode(frames)
}

// Recorder writes each frame's hands to the detections table.
type Recorder struct {
	store  *store.Store
	logger *zap.SugaredLogger
}

func NewRecorder(s *store.Store, logger *zap.SugaredLogger) *Recorder {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Recorder{store: s, logger: logger}
}

func (r *Recorder) OnFrame(res FrameResult) {
	if res.Empty() || res.SessionID == "" {
		return
	}

	batch := make([]*store.Detection, len(res.Hands))
	for i, h := range res.Hands {
		batch[i] = &store.Detection{
			SessionID:  res.SessionID,
			Frame:      res.Frame,
			Hand:       h.Hand,
			Handedness: h.Handedness,
			Score:      h.Score,
			Gesture:    h.Gesture.ID(),
			Error:      h.Error,
			CreatedAt:  res.Time,
		}
	}
	if err := r.store.Detections().Record(batch); err != nil {
		r.logger.Errorw("failed to record detections", "frame", res.Frame, "error", err)
	}
}
