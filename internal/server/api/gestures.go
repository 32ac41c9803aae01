package api

import (
	"net/http"
	"strings"

	"github.com/ayusman/handsign/internal/detector"
	"github.com/ayusman/handsign/internal/gesture"
)

// GestureHandler serves the gesture vocabulary. It is read only; the
// vocabulary is fixed at build time.
type GestureHandler struct{}

func NewGestureHandler() *GestureHandler {
	return &GestureHandler{}
}

// gestureResponse describes one gesture. Rule is the 1-based position in
// the rule table and 0 for Unknown, which is returned when no rule matches.
type gestureResponse struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Rule        int    `json:"rule"`
	Description string `json:"description"`
}

type listGesturesResponse struct {
	Gestures       []gestureResponse `json:"gestures"`
	PinchThreshold float64           `json:"pinchThreshold"`
	Schemas        []string          `json:"schemas"`
}

func vocabulary() []gestureResponse {
	rules := gesture.Rules()
	out := make([]gestureResponse, 0, len(rules)+1)
	for i, r := range rules {
		out = append(out, gestureResponse{
			ID:          r.Gesture.ID(),
			Label:       r.Gesture.String(),
			Rule:        i + 1,
			Description: r.Name,
		})
	}
	return append(out, gestureResponse{
		ID:          gesture.Unknown.ID(),
		Label:       gesture.Unknown.String(),
		Description: "no rule matched",
	})
}

// ServeHTTP handles /api/gestures and /api/gestures/{id}.
func (h *GestureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/gestures"), "/")
	if id == "" {
		writeJSON(w, http.StatusOK, listGesturesResponse{
			Gestures:       vocabulary(),
			PinchThreshold: gesture.PinchThreshold,
			Schemas:        detector.SchemaVersions(),
		})
		return
	}

	g, err := gesture.Parse(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "gesture not found")
		return
	}
	for _, v := range vocabulary() {
		if v.ID == g.ID() {
			writeJSON(w, http.StatusOK, v)
			return
		}
	}
	writeError(w, http.StatusNotFound, "gesture not found")
}
