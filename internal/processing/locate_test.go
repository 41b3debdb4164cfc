package processing

import (
	"testing"

	"kinect-track-go/internal/types"
)

func filledFrame(width, height int, depth uint16) types.DepthFrame {
	data := make([]uint16, width*height)
	for i := range data {
		data[i] = depth
	}
	return types.DepthFrame{Width: width, Height: height, Data: data}
}

func fillRect(frame types.DepthFrame, x0, y0, x1, y1 int, depth uint16) {
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			frame.Data[y*frame.Width+x] = depth
		}
	}
}

func TestLocateBlobNoNearSamples(t *testing.T) {
	frame := filledFrame(types.FrameWidth, types.FrameHeight, 1000)
	got := LocateBlob(frame, DefaultThreshold)
	if got.Valid() {
		t.Fatalf("expected no detection, got %+v", got)
	}
}

func TestLocateBlobThresholdIsExclusive(t *testing.T) {
	frame := filledFrame(8, 6, DefaultThreshold)
	if got := LocateBlob(frame, DefaultThreshold); got.Valid() {
		t.Fatalf("samples at the threshold must not count as near, got %+v", got)
	}
}

func TestLocateBlobRectangleMidpoint(t *testing.T) {
	cases := []struct {
		name           string
		x0, y0, x1, y1 int
		want           types.ScreenPosition
	}{
		{"centre block", 315, 235, 324, 244, types.ScreenPosition{X: 319, Y: 239}},
		{"single pixel", 100, 50, 100, 50, types.ScreenPosition{X: 100, Y: 50}},
		{"odd span rounds down", 10, 20, 13, 25, types.ScreenPosition{X: 11, Y: 22}},
		{"bottom right corner", 630, 470, 639, 479, types.ScreenPosition{X: 634, Y: 474}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frame := filledFrame(types.FrameWidth, types.FrameHeight, 1000)
			fillRect(frame, tc.x0, tc.y0, tc.x1, tc.y1, 100)
			got := LocateBlob(frame, DefaultThreshold)
			if got != tc.want {
				t.Fatalf("unexpected position: got %+v want %+v", got, tc.want)
			}
		})
	}
}

func TestLocateBlobSpansSeparateRegions(t *testing.T) {
	frame := filledFrame(types.FrameWidth, types.FrameHeight, 1000)
	fillRect(frame, 10, 10, 19, 19, 50)
	fillRect(frame, 200, 100, 209, 109, 300)
	got := LocateBlob(frame, DefaultThreshold)
	want := types.ScreenPosition{X: (10 + 209) / 2, Y: (10 + 109) / 2}
	if got != want {
		t.Fatalf("unexpected position: got %+v want %+v", got, want)
	}
}

func TestLocateBlobOriginIsIndistinguishable(t *testing.T) {
	frame := filledFrame(types.FrameWidth, types.FrameHeight, 1000)
	frame.Data[0] = 10
	if got := LocateBlob(frame, DefaultThreshold); got.Valid() {
		t.Fatalf("detection at the origin reads as no detection, got %+v", got)
	}
}

func TestLocateBlobRejectsInvalidFrames(t *testing.T) {
	if got := LocateBlobSamples(nil, types.FrameWidth, types.FrameHeight, DefaultThreshold); got.Valid() {
		t.Fatalf("empty frame: got %+v", got)
	}
	short := make([]uint16, 10)
	if got := LocateBlobSamples(short, types.FrameWidth, types.FrameHeight, DefaultThreshold); got.Valid() {
		t.Fatalf("short frame: got %+v", got)
	}
}

func BenchmarkLocateBlobNoDetection(b *testing.B) {
	frame := filledFrame(types.FrameWidth, types.FrameHeight, 1000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		LocateBlob(frame, DefaultThreshold)
	}
}
