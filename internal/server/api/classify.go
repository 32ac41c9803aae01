package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ayusman/handsign/internal/app"
	"github.com/ayusman/handsign/internal/detector"
	"github.com/ayusman/handsign/internal/gesture"
)

// maxClassifyBody caps request bodies; a hand is a few hundred bytes.
const maxClassifyBody = 1 << 20

// ClassifyHandler classifies landmark sets posted by clients that run their
// own hand tracker.
type ClassifyHandler struct {
	logger *zap.SugaredLogger
}

func NewClassifyHandler(logger *zap.SugaredLogger) *ClassifyHandler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ClassifyHandler{logger: logger}
}

// ClassifyRequest carries either one hand in Points or several in Hands.
// A null point is an absent landmark.
type ClassifyRequest struct {
	Schema     string               `json:"schema,omitempty"`
	Points     []*detector.Landmark `json:"points,omitempty"`
	Handedness string               `json:"handedness,omitempty"`
	Hands      []detector.HandPose  `json:"hands,omitempty"`
}

// Poses returns the hands in the request.
func (req ClassifyRequest) Poses() []detector.HandPose {
	if len(req.Hands) > 0 {
		return req.Hands
	}
	if req.Points == nil {
		return nil
	}
	pose := detector.NewHandPose(req.Points)
	pose.Handedness = req.Handedness
	return []detector.HandPose{pose}
}

type classifyResponse struct {
	Schema string           `json:"schema"`
	Hands  []app.HandResult `json:"hands"`
	Error  string           `json:"error,omitempty"`
}

// ServeHTTP handles POST /api/classify. A hand with a missing landmark
// makes the response 422; the other hands are still classified and
// returned.
func (h *ClassifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ClassifyRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxClassifyBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	poses := req.Poses()
	if len(poses) == 0 {
		writeError(w, http.StatusBadRequest, "points or hands is required")
		return
	}

	schema, err := detector.LookupSchema(req.Schema)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hands := app.ClassifyHands(gesture.NewClassifier(schema), poses, h.logger)
	resp := classifyResponse{Schema: schema.Version(), Hands: hands}

	status := http.StatusOK
	for _, hand := range hands {
		if errors.Is(hand.Err, gesture.ErrMissingLandmark) {
			status = http.StatusUnprocessableEntity
			resp.Error = hand.Error
			break
		}
	}
	writeJSON(w, status, resp)
}
