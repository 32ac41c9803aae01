package capture

import (
	"context"
	"sync"

	"gocv.io/x/gocv"
)

// FrameBuffer holds the most recent frame as JPEG for readers such as the
// MJPEG stream. Readers wait for frames newer than the last one they saw.
type FrameBuffer struct {
	mu      sync.Mutex
	data    []byte
	seq     uint64
	updated chan struct{}
}

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{updated: make(chan struct{})}
}

// Put encodes frame as JPEG and makes it the latest frame.
func (b *FrameBuffer) Put(frame *gocv.Mat) error {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return err
	}
	defer buf.Close()
	b.PutJPEG(buf.GetBytes())
	return nil
}

// PutJPEG stores already encoded bytes. data is copied.
func (b *FrameBuffer) PutJPEG(data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)

	b.mu.Lock()
	b.data = cp
	b.seq++
	close(b.updated)
	b.updated = make(chan struct{})
	b.mu.Unlock()
}

// Latest returns the current frame and its sequence number. seq is 0 until
// the first Put.
func (b *FrameBuffer) Latest() (data []byte, seq uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data, b.seq
}

// Next blocks until a frame with sequence greater than after is available
// or ctx is done.
func (b *FrameBuffer) Next(ctx context.Context, after uint64) ([]byte, uint64, error) {
	for {
		b.mu.Lock()
		if b.seq > after {
			data, seq := b.data, b.seq
			b.mu.Unlock()
			return data, seq, nil
		}
		wait := b.updated
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, after, ctx.Err()
		case <-wait:
		}
	}
}
