package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ayusman/handsign/internal/detector"
	"github.com/ayusman/handsign/internal/gesture"
)

func TestGestureHandler_List(t *testing.T) {
	h := NewGestureHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/gestures", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var resp listGesturesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	wantOrder := []string{
		"open_palm", "fist", "thumbs_up", "peace", "pinky",
		"ok", "rock_n_roll", "l_shape", "pointing", "unknown",
	}
	if len(resp.Gestures) != len(wantOrder) {
		t.Fatalf("expected %d gestures, got %d", len(wantOrder), len(resp.Gestures))
	}
	for i, id := range wantOrder {
		g := resp.Gestures[i]
		if g.ID != id {
			t.Errorf("gesture %d: expected %s, got %s", i, id, g.ID)
		}
		wantRule := i + 1
		if id == "unknown" {
			wantRule = 0
		}
		if g.Rule != wantRule {
			t.Errorf("%s: expected rule %d, got %d", id, wantRule, g.Rule)
		}
	}

	if resp.PinchThreshold != gesture.PinchThreshold {
		t.Errorf("expected pinch threshold %v, got %v", gesture.PinchThreshold, resp.PinchThreshold)
	}

	found := false
	for _, v := range resp.Schemas {
		if v == detector.DefaultSchemaVersion {
			found = true
		}
	}
	if !found {
		t.Errorf("expected schemas to include %s, got %v", detector.DefaultSchemaVersion, resp.Schemas)
	}
}

func TestGestureHandler_Get(t *testing.T) {
	h := NewGestureHandler()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantLabel  string
	}{
		{"by id", "/api/gestures/rock_n_roll", http.StatusOK, "Rock'n Roll"},
		{"by label", "/api/gestures/Thumbs%20Up", http.StatusOK, "Thumbs Up"},
		{"unknown is listed", "/api/gestures/unknown", http.StatusOK, "Unknown"},
		{"not a gesture", "/api/gestures/wave", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var g gestureResponse
			if err := json.NewDecoder(rec.Body).Decode(&g); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if g.Label != tt.wantLabel {
				t.Errorf("expected label %q, got %q", tt.wantLabel, g.Label)
			}
		})
	}
}

func TestGestureHandler_MethodNotAllowed(t *testing.T) {
	h := NewGestureHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/gestures", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
