package capture

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func TestFrameBuffer_Next(t *testing.T) {
	b := NewFrameBuffer()

	if data, seq := b.Latest(); data != nil || seq != 0 {
		t.Fatalf("empty buffer Latest() = %v, %d", data, seq)
	}

	got := make(chan []byte, 1)
	go func() {
		data, _, err := b.Next(context.Background(), 0)
		if err != nil {
			t.Errorf("Next() error = %v", err)
		}
		got <- data
	}()

	src := []byte{0xff, 0xd8, 0x01}
	b.PutJPEG(src)
	src[2] = 0x02 // the buffer keeps its own copy

	select {
	case data := <-got:
		if !bytes.Equal(data, []byte{0xff, 0xd8, 0x01}) {
			t.Errorf("Next() = %v", data)
		}
	case <-time.After(time.Second):
		t.Fatal("Next() did not return after PutJPEG")
	}

	// A reader that has seen seq 1 waits for the next frame.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, _, err := b.Next(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Next() error = %v, want deadline exceeded", err)
	}
}

func TestFrameBuffer_Put(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	b := NewFrameBuffer()
	if err := b.Put(&frame); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	data, seq := b.Latest()
	if seq != 1 || len(data) < 2 || data[0] != 0xff || data[1] != 0xd8 {
		t.Errorf("expected a JPEG at seq 1, got seq %d len %d", seq, len(data))
	}
}
