package detector

import (
	"encoding/json"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHandPose_At(t *testing.T) {
	pose := FistPose()

	t.Run("present index", func(t *testing.T) {
		lm, ok := pose.At(IndexTip)
		if !ok {
			t.Fatal("expected index tip to be present")
		}
		if lm != pose.Points[IndexTip] {
			t.Errorf("At(IndexTip) = %+v, want %+v", lm, pose.Points[IndexTip])
		}
	})

	t.Run("index beyond points is absent", func(t *testing.T) {
		short := HandPose{Points: pose.Points[:PinkyTip]}
		if _, ok := short.At(PinkyTip); ok {
			t.Error("expected pinky tip to be absent from a 20 point pose")
		}
	})

	t.Run("negative index is absent", func(t *testing.T) {
		if _, ok := pose.At(-1); ok {
			t.Error("expected negative index to be absent")
		}
	})

	t.Run("nil entry is absent", func(t *testing.T) {
		refs := pose.PointRefs()
		refs[RingTip] = nil
		holed := NewHandPose(refs)
		if _, ok := holed.At(RingTip); ok {
			t.Error("expected ring tip to be absent")
		}
		if _, ok := holed.At(PinkyTip); !ok {
			t.Error("expected pinky tip after the hole to be present")
		}
	})
}

func TestHandPose_JSONNullPoint(t *testing.T) {
	refs := PeacePose().PointRefs()
	refs[RingTip] = nil
	data, err := json.Marshal(map[string]interface{}{"points": refs, "handedness": "Right"})
	if err != nil {
		t.Fatal(err)
	}

	var pose HandPose
	if err := json.Unmarshal(data, &pose); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(pose.Points) != NumLandmarks {
		t.Fatalf("expected %d points, got %d", NumLandmarks, len(pose.Points))
	}
	if _, ok := pose.At(RingTip); ok {
		t.Error("null ring tip decoded as a present landmark")
	}
	if lm, ok := pose.At(IndexTip); !ok || lm != PeacePose().Points[IndexTip] {
		t.Errorf("index tip = %+v, %v", lm, ok)
	}
	if pose.Handedness != "Right" {
		t.Errorf("handedness = %s, want Right", pose.Handedness)
	}

	out, err := json.Marshal(pose)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(out), "null") {
		t.Errorf("absent point should encode as null: %s", out)
	}
}

func TestHandPose_Landmark(t *testing.T) {
	pose := OpenPalmPose()

	lm, ok := pose.Landmark(MediaPipeSchema, PointThumbIP)
	if !ok {
		t.Fatal("expected thumb IP to resolve through the MediaPipe schema")
	}
	if lm != pose.Points[ThumbIP] {
		t.Errorf("thumb IP = %+v, want %+v", lm, pose.Points[ThumbIP])
	}

	empty, err := NewSchema("empty/v1", nil)
	if err != nil {
		t.Fatalf("NewSchema() error = %v", err)
	}
	if _, ok := pose.Landmark(empty, PointThumbIP); ok {
		t.Error("expected a schema without thumb IP to report it absent")
	}
}

func TestHandPose_Bounds(t *testing.T) {
	pose := HandPose{Points: []Landmark{
		{X: 0.2, Y: 0.4},
		{X: 0.6, Y: 0.1},
		{X: 0.4, Y: 0.9},
	}}

	box, ok := pose.Bounds()
	if !ok {
		t.Fatal("expected bounds for a non-empty pose")
	}

	want := Box{MinX: 0.2, MinY: 0.1, MaxX: 0.6, MaxY: 0.9}
	if box != want {
		t.Errorf("Bounds() = %+v, want %+v", box, want)
	}

	rect := box.Pixels(640, 480)
	if rect != image.Rect(128, 48, 384, 432) {
		t.Errorf("Pixels() = %v", rect)
	}

	if _, ok := (HandPose{}).Bounds(); ok {
		t.Error("expected no bounds for an empty pose")
	}

	holed := NewHandPose([]*Landmark{{X: 0.2, Y: 0.4}, nil, {X: 0.4, Y: 0.9}})
	if box, _ := holed.Bounds(); box.MinY != 0.4 {
		t.Errorf("absent point should not count toward bounds, got %+v", box)
	}
	if _, ok := NewHandPose([]*Landmark{nil}).Bounds(); ok {
		t.Error("expected no bounds when every point is absent")
	}
}

func TestSchema(t *testing.T) {
	t.Run("mediapipe schema covers all 21 points", func(t *testing.T) {
		if got := MediaPipeSchema.Size(); got != NumLandmarks {
			t.Errorf("Size() = %d, want %d", got, NumLandmarks)
		}
		points := MediaPipeSchema.Points()
		if len(points) != NumLandmarks {
			t.Fatalf("len(Points()) = %d, want %d", len(points), NumLandmarks)
		}
		if points[0] != PointWrist || points[NumLandmarks-1] != PointPinkyTip {
			t.Errorf("points not ordered by index: first %s, last %s", points[0], points[NumLandmarks-1])
		}
	})

	t.Run("rejects negative index", func(t *testing.T) {
		_, err := NewSchema("bad/v1", map[Point]int{PointWrist: -1})
		if err == nil {
			t.Error("expected error for negative index")
		}
	})

	t.Run("rejects empty version", func(t *testing.T) {
		if _, err := NewSchema("", nil); err == nil {
			t.Error("expected error for empty version")
		}
	})

	t.Run("lookup", func(t *testing.T) {
		s, err := LookupSchema("")
		if err != nil {
			t.Fatalf("LookupSchema(\"\") error = %v", err)
		}
		if s.Version() != DefaultSchemaVersion {
			t.Errorf("default version = %s, want %s", s.Version(), DefaultSchemaVersion)
		}

		_, err = LookupSchema("nope/v9")
		if !errors.Is(err, ErrUnknownSchema) {
			t.Errorf("expected ErrUnknownSchema, got %v", err)
		}
	})

	t.Run("register", func(t *testing.T) {
		custom, err := NewSchema("test-register/v1", map[Point]int{PointWrist: 3})
		if err != nil {
			t.Fatalf("NewSchema() error = %v", err)
		}
		if err := RegisterSchema(custom); err != nil {
			t.Fatalf("RegisterSchema() error = %v", err)
		}

		got, err := LookupSchema("test-register/v1")
		if err != nil {
			t.Fatalf("LookupSchema() error = %v", err)
		}
		if idx, _ := got.Index(PointWrist); idx != 3 {
			t.Errorf("wrist index = %d, want 3", idx)
		}

		found := false
		for _, v := range SchemaVersions() {
			if v == "test-register/v1" {
				found = true
			}
		}
		if !found {
			t.Error("registered version missing from SchemaVersions()")
		}
	})
}

func TestServiceArgs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxHands = 2
	cfg.MinConfidence = 0.5

	got := serviceArgs("svc.py", cfg)
	want := []string{
		"svc.py",
		"--max-hands", "2",
		"--min-detection-confidence", "0.5",
		"--min-tracking-confidence", "0.7",
	}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("serviceArgs() = %v, want %v", got, want)
	}

	// The shipped service must accept every flag we pass.
	script, err := os.ReadFile(filepath.Join("..", "..", "scripts", "mediapipe_service.py"))
	if err != nil {
		t.Fatalf("read service script: %v", err)
	}
	for _, arg := range got {
		if strings.HasPrefix(arg, "--") && !strings.Contains(string(script), `"`+arg+`"`) {
			t.Errorf("mediapipe_service.py does not declare %s", arg)
		}
	}
}

func TestDecodeResponse(t *testing.T) {
	t.Run("keeps short point lists short", func(t *testing.T) {
		poses, err := decodeResponse([]byte(`{"hands":[{"points":[{"x":0.1,"y":0.2,"z":0}],"handedness":"Left","score":0.8}]}`))
		if err != nil {
			t.Fatalf("decodeResponse() error = %v", err)
		}
		if len(poses) != 1 {
			t.Fatalf("expected 1 pose, got %d", len(poses))
		}
		if len(poses[0].Points) != 1 {
			t.Errorf("expected 1 point, got %d", len(poses[0].Points))
		}
		if poses[0].Handedness != "Left" {
			t.Errorf("handedness = %s, want Left", poses[0].Handedness)
		}
	})

	t.Run("null point stays absent", func(t *testing.T) {
		poses, err := decodeResponse([]byte(`{"hands":[{"points":[{"x":0.1,"y":0.2},null,{"x":0.3,"y":0.4}]}]}`))
		if err != nil {
			t.Fatalf("decodeResponse() error = %v", err)
		}
		if len(poses) != 1 || len(poses[0].Points) != 3 {
			t.Fatalf("unexpected poses %+v", poses)
		}
		if _, ok := poses[0].At(1); ok {
			t.Error("null point decoded as present")
		}
	})

	t.Run("no hands", func(t *testing.T) {
		poses, err := decodeResponse([]byte(`{"hands":[]}`))
		if err != nil {
			t.Fatalf("decodeResponse() error = %v", err)
		}
		if len(poses) != 0 {
			t.Errorf("expected no poses, got %d", len(poses))
		}
	})

	t.Run("service error", func(t *testing.T) {
		if _, err := decodeResponse([]byte(`{"error":"model not loaded"}`)); err == nil {
			t.Error("expected error from service error field")
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		if _, err := decodeResponse([]byte(`{not json`)); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestNewMediaPipeDetector_MissingScript(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ScriptPath = "/nonexistent/mediapipe_service.py"

	_, err := NewMediaPipeDetector(cfg)
	if !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("expected ErrServiceNotFound, got %v", err)
	}
}

func TestMockDetector(t *testing.T) {
	t.Run("returns empty hands by default", func(t *testing.T) {
		mock := NewMockDetector()

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if hands != nil {
			t.Errorf("expected nil hands, got %v", hands)
		}
	})

	t.Run("returns configured hands", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetHands([]HandPose{ThumbsUpPose(), OpenPalmPose()})

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if len(hands) != 2 {
			t.Errorf("expected 2 hands, got %d", len(hands))
		}
		if mock.Calls() != 1 {
			t.Errorf("expected 1 call, got %d", mock.Calls())
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()

		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		hands, err := mock.Detect(nil)

		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if hands != nil {
			t.Errorf("expected nil hands when error is set, got %v", hands)
		}
	})

	t.Run("Close marks closed", func(t *testing.T) {
		mock := NewMockDetector()

		if err := mock.Close(); err != nil {
			t.Errorf("expected Close to return nil, got %v", err)
		}
		if !mock.Closed() {
			t.Error("expected Closed() after Close")
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = (*MediaPipeDetector)(nil)
	})
}

func TestFingerPose(t *testing.T) {
	pose := FingerPose([4]bool{true, false, true, false}, true)

	if len(pose.Points) != NumLandmarks {
		t.Fatalf("expected %d points, got %d", NumLandmarks, len(pose.Points))
	}

	tips := [4]int{IndexTip, MiddleTip, RingTip, PinkyTip}
	mcps := [4]int{IndexMCP, MiddleMCP, RingMCP, PinkyMCP}
	want := [4]bool{true, false, true, false}
	for f := range tips {
		got := pose.Points[tips[f]].Y < pose.Points[mcps[f]].Y
		if got != want[f] {
			t.Errorf("finger %d extended = %v, want %v", f, got, want[f])
		}
	}

	if !(pose.Points[ThumbTip].X < pose.Points[ThumbIP].X) {
		t.Error("thumb tip should sit left of thumb IP when extended")
	}

	tucked := FistPose()
	if tucked.Points[ThumbTip].X < tucked.Points[ThumbIP].X {
		t.Error("thumb tip should sit right of thumb IP when tucked")
	}
}
