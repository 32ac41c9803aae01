package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/handsign/internal/capture"
	"github.com/ayusman/handsign/internal/detector"
	"github.com/ayusman/handsign/internal/gesture"
	"github.com/ayusman/handsign/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type frameLog struct {
	mu     sync.Mutex
	frames []FrameResult
}

func (l *frameLog) OnFrame(r FrameResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames = append(l.frames, r)
}

func (l *frameLog) all() []FrameResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]FrameResult(nil), l.frames...)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"debug", ModeDebug, false},
		{"view", ModeView, false},
		{"normal", ModeView, false},
		{"collect", ModeCollect, false},
		{"quit", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseMode(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
	if ModeCollect.Windowed() || !ModeDebug.Windowed() {
		t.Error("only debug and view open a window")
	}
}

func TestClassifyHands_IndependentHands(t *testing.T) {
	broken := detector.PeacePose()
	broken.Points = broken.Points[:detector.PinkyTip]

	poses := []detector.HandPose{detector.OKPose(), broken, detector.FistPose()}
	results := ClassifyHands(gesture.NewClassifier(detector.MediaPipeSchema), poses, nil)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Gesture != gesture.OK || results[0].Label != "OK" {
		t.Errorf("hand 0 = %+v", results[0])
	}
	if !errors.Is(results[1].Err, gesture.ErrMissingLandmark) || results[1].Error == "" {
		t.Errorf("hand 1 should carry the missing landmark error, got %v", results[1].Err)
	}
	if results[1].Gesture != gesture.Unknown {
		t.Errorf("hand 1 gesture = %s, want Unknown", results[1].Gesture)
	}
	if results[2].Gesture != gesture.Fist {
		t.Errorf("hand 2 gesture = %s, want Fist", results[2].Gesture)
	}
	for i, r := range results {
		if r.Hand != i {
			t.Errorf("result %d has hand index %d", i, r.Hand)
		}
		if r.Box == nil {
			t.Errorf("result %d has no box", i)
		}
	}
}

func TestFrameResult_JSON(t *testing.T) {
	r := FrameResult{
		Frame: 7,
		Hands: ClassifyHands(gesture.Classifier{}, []detector.HandPose{detector.RockNRollPose()}, nil),
	}
	raw, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	s := string(raw)
	if !strings.Contains(s, `"gesture":"rock_n_roll"`) || !strings.Contains(s, `"label":"Rock'n Roll"`) {
		t.Errorf("unexpected JSON %s", s)
	}
	if strings.Contains(s, "points") {
		t.Errorf("pose should not be serialized: %s", s)
	}
}

func TestApp_ProcessFrame(t *testing.T) {
	a := New(Config{Mode: ModeView})
	mock := detector.NewMockDetector()
	mock.SetHands([]detector.HandPose{detector.PeacePose(), detector.ThumbsUpPose()})
	a.SetDetector(mock)

	log := &frameLog{}
	a.AddSink(log)

	result, err := a.ProcessFrame(nil)
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if got := result.Labels(); len(got) != 2 || got[0] != "Peace" || got[1] != "Thumbs Up" {
		t.Errorf("Labels() = %v", got)
	}
	if result.Frame != 1 {
		t.Errorf("Frame = %d, want 1", result.Frame)
	}

	mock.SetHands(nil)
	result, err = a.ProcessFrame(nil)
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if !result.Empty() || result.Labels() != nil {
		t.Errorf("expected empty frame, got %+v", result)
	}

	if frames := log.all(); len(frames) != 2 {
		t.Errorf("sink received %d frames, want 2", len(frames))
	}
}

func TestApp_ProcessFrame_DetectorError(t *testing.T) {
	a := New(Config{})
	mock := detector.NewMockDetector()
	mock.SetError(errors.New("service crashed"))
	a.SetDetector(mock)

	log := &frameLog{}
	a.AddSink(log)

	if _, err := a.ProcessFrame(nil); err == nil {
		t.Fatal("expected error from detector")
	}
	if len(log.all()) != 0 {
		t.Error("sinks should not receive failed frames")
	}

	a.SetDetector(nil)
	if _, err := a.ProcessFrame(nil); err == nil {
		t.Error("expected error without a detector")
	}
}

func TestCollector(t *testing.T) {
	var out bytes.Buffer
	c := NewCollector(&out)

	c.OnFrame(FrameResult{Hands: []HandResult{{Label: "Peace"}, {Label: "Fist"}}})
	c.OnFrame(FrameResult{})
	c.OnFrame(FrameResult{Hands: []HandResult{{Label: "OK"}}})

	if out.String() != NoHandMessage+"\n" {
		t.Errorf("output = %q", out.String())
	}

	frames := c.Frames()
	if len(frames) != 2 || frames[0][1] != "Fist" || frames[1][0] != "OK" {
		t.Errorf("Frames() = %v", frames)
	}

	var dump bytes.Buffer
	if err := c.Dump(&dump); err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if strings.TrimSpace(dump.String()) != `[["Peace","Fist"],["OK"]]` {
		t.Errorf("Dump() = %s", dump.String())
	}

	dump.Reset()
	NewCollector(nil).Dump(&dump)
	if strings.TrimSpace(dump.String()) != "[]" {
		t.Errorf("empty Dump() = %s", dump.String())
	}
}

func TestRecorder(t *testing.T) {
	s := newTestStore(t)
	sess := &store.Session{Mode: store.ModeCollect, Schema: detector.DefaultSchemaVersion}
	if err := s.Sessions().Create(sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	rec := NewRecorder(s, nil)
	hands := ClassifyHands(gesture.Classifier{}, []detector.HandPose{detector.LShapePose(), {}}, nil)
	rec.OnFrame(FrameResult{SessionID: sess.ID, Frame: 4, Time: time.Now().UTC(), Hands: hands})
	// Empty frames and frames outside a session are skipped.
	rec.OnFrame(FrameResult{SessionID: sess.ID, Frame: 5})
	rec.OnFrame(FrameResult{Frame: 6, Hands: hands})

	list, err := s.Detections().ListBySession(sess.ID, 0)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(list))
	}
	if list[0].Gesture != "l_shape" || list[0].Frame != 4 {
		t.Errorf("detection 0 = %+v", list[0])
	}
	if list[1].Gesture != "unknown" || list[1].Error == "" {
		t.Errorf("detection 1 = %+v", list[1])
	}
}

type failingDetector struct{ detector.MockDetector }

func (f *failingDetector) Close() error { return errors.New("close failed") }

func TestApp_Stop(t *testing.T) {
	a := New(Config{})
	a.SetCamera(capture.NewMockCamera(nil, false))
	a.SetDetector(&failingDetector{})

	err := a.Stop()
	if err == nil || !strings.Contains(err.Error(), "close failed") {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestApp_Run_Collect(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	s := newTestStore(t)

	frames := make([]*gocv.Mat, 3)
	for i := range frames {
		m := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
		defer m.Close()
		frames[i] = &m
	}

	var out bytes.Buffer
	buf := capture.NewFrameBuffer()
	a := New(Config{Mode: ModeCollect, Store: s, Out: &out, ActiveFPS: 100, Frames: buf})
	a.SetCamera(capture.NewMockCamera(frames, false))

	mock := detector.NewMockDetector()
	mock.SetHands([]detector.HandPose{detector.PointingPose()})
	a.SetDetector(mock)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := a.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if got := a.Collector().Frames(); len(got) != 3 || got[0][0] != "Pointing" {
		t.Errorf("collected %v", got)
	}
	if !strings.Contains(out.String(), `["Pointing"]`) {
		t.Errorf("collect output = %q", out.String())
	}
	if _, seq := buf.Latest(); seq != 3 {
		t.Errorf("frame buffer seq = %d, want 3", seq)
	}

	sess := a.Session()
	if sess == nil {
		t.Fatal("expected a session")
	}
	stored, err := s.Sessions().GetByID(sess.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.EndedAt == nil || stored.Mode != "collect" {
		t.Errorf("stored session = %+v", stored)
	}
	counts, _ := s.Detections().CountByGesture(sess.ID)
	if len(counts) != 1 || counts[0].Gesture != "pointing" || counts[0].Count != 3 {
		t.Errorf("counts = %+v", counts)
	}
}

func TestApp_Run_Cancelled(t *testing.T) {
	a := New(Config{Mode: ModeCollect, Out: &bytes.Buffer{}})
	a.SetCamera(capture.NewMockCamera(nil, true))
	a.SetDetector(detector.NewMockDetector())
	a.SetEnabled(false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
