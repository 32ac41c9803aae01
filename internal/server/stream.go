package server

import (
	"fmt"
	"net/http"

	"github.com/ayusman/handsign/internal/capture"
)

// StreamHandler serves the pipeline's annotated frames as MJPEG.
type StreamHandler struct {
	frames *capture.FrameBuffer
}

func NewStreamHandler(frames *capture.FrameBuffer) *StreamHandler {
	return &StreamHandler{frames: frames}
}

// ServeHTTP writes a part per new frame until the client goes away.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	var seq uint64
	for {
		data, next, err := h.frames.Next(ctx, seq)
		if err != nil {
			return
		}
		seq = next

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(data))
		if _, err := w.Write(data); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
