package simulator

import (
	"context"
	"math"
	"math/rand"
	"time"

	"kinect-track-go/internal/types"
)

const (
	backgroundDepth = 1000
	blobDepth       = 120
	blobRadius      = 30
)

// Stream emits synthetic depth frames at fps: a noisy flat background with a
// near disc drifting on a Lissajous path. The send never blocks; a frame the
// consumer is not ready for is skipped.
func Stream(ctx context.Context, width, height int, fps float64) <-chan types.RawMessage {
	out := make(chan types.RawMessage, 1)
	if fps <= 0 {
		fps = 30
	}
	go func() {
		defer close(out)

		ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
		defer ticker.Stop()

		frameID := 0
		start := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				t := now.Sub(start).Seconds()
				cx := float64(width)/2 + float64(width)/3*math.Sin(t*0.7)
				cy := float64(height)/2 + float64(height)/3*math.Sin(t*1.1)
				frame := Frame(width, height, cx, cy)
				frame.FrameID = frameID
				frame.Timestamp = float64(now.UnixNano()) / 1e9
				frameID++

				select {
				case out <- types.RawMessage{Type: "depth", Frame: frame}:
				default:
				}
			}
		}
	}()

	return out
}

// Frame renders one synthetic frame with the disc centred on (cx, cy).
func Frame(width, height int, cx, cy float64) types.DepthFrame {
	data := make([]uint16, width*height)
	r2 := float64(blobRadius * blobRadius)
	for y := 0; y < height; y++ {
		dy := float64(y) - cy
		for x := 0; x < width; x++ {
			dx := float64(x) - cx
			depth := backgroundDepth + rand.NormFloat64()*8
			if dx*dx+dy*dy <= r2 {
				depth = blobDepth + rand.NormFloat64()*4
			}
			if depth < 0 {
				depth = 0
			}
			data[y*width+x] = uint16(depth)
		}
	}
	return types.DepthFrame{Width: width, Height: height, Data: data}
}
