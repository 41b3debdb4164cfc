package simulator

import (
	"context"
	"testing"
	"time"

	"kinect-track-go/internal/processing"
	"kinect-track-go/internal/types"
)

func TestFrameBlobIsLocated(t *testing.T) {
	frame := Frame(types.FrameWidth, types.FrameHeight, 200, 150)
	if !frame.Valid() {
		t.Fatalf("synthetic frame invalid")
	}
	got := processing.LocateBlob(frame, processing.DefaultThreshold)
	if got.X < 199 || got.X > 201 || got.Y < 149 || got.Y > 151 {
		t.Fatalf("unexpected blob position %+v", got)
	}
}

func TestStreamEmitsFrames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	frames := Stream(ctx, 64, 48, 200)

	select {
	case msg := <-frames:
		if msg.Type != "depth" || !msg.Frame.Valid() {
			t.Fatalf("unexpected message %+v", msg.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no frame emitted")
	}

	cancel()
	for range frames {
	}
}
