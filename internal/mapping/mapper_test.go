package mapping

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"kinect-track-go/internal/types"
)

const eps = 1e-9

func near(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func TestToWorldOrthographic(t *testing.T) {
	mapper := NewMapper(types.FrameWidth, types.FrameHeight)
	cam := OrthographicCamera(640, 480, 1000)

	cases := []struct {
		name string
		pos  types.ScreenPosition
		want types.WorldPosition
	}{
		{"centre", types.ScreenPosition{X: 320, Y: 240}, types.WorldPosition{X: 0, Y: 0}},
		{"top right", types.ScreenPosition{X: 640, Y: 0}, types.WorldPosition{X: 320, Y: 240}},
		{"bottom", types.ScreenPosition{X: 480, Y: 480}, types.WorldPosition{X: 160, Y: -240}},
		{"upper left quadrant", types.ScreenPosition{X: 160, Y: 120}, types.WorldPosition{X: -160, Y: 120}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := mapper.ToWorld(tc.pos, cam)
			if !ok {
				t.Fatalf("expected a mapped position")
			}
			if !near(got.X, tc.want.X) || !near(got.Y, tc.want.Y) {
				t.Fatalf("unexpected world position: got %+v want %+v", got, tc.want)
			}
		})
	}
}

func TestToWorldFollowsViewport(t *testing.T) {
	mapper := NewMapper(types.FrameWidth, types.FrameHeight)
	pos := types.ScreenPosition{X: 640, Y: 0}

	small, _ := mapper.ToWorld(pos, OrthographicCamera(640, 480, 1000))
	large, _ := mapper.ToWorld(pos, OrthographicCamera(1280, 960, 1000))
	if !near(large.X, 2*small.X) || !near(large.Y, 2*small.Y) {
		t.Fatalf("expected mapping to scale with viewport: small=%+v large=%+v", small, large)
	}
}

func TestToWorldAppliesCameraTranslation(t *testing.T) {
	mapper := NewMapper(types.FrameWidth, types.FrameHeight)
	cam := OrthographicCamera(640, 480, 1000)
	cam.World = mgl64.Translate3D(50, -25, 999.9)

	got, ok := mapper.ToWorld(types.ScreenPosition{X: 320, Y: 240}, cam)
	if !ok {
		t.Fatalf("expected a mapped position")
	}
	if !near(got.X, 50) || !near(got.Y, -25) {
		t.Fatalf("unexpected world position: %+v", got)
	}
}

func TestToWorldIdempotent(t *testing.T) {
	mapper := NewMapper(types.FrameWidth, types.FrameHeight)
	cam := OrthographicCamera(800, 600, 1000)
	pos := types.ScreenPosition{X: 123, Y: 321}

	first, ok1 := mapper.ToWorld(pos, cam)
	second, ok2 := mapper.ToWorld(pos, cam)
	if ok1 != ok2 || first != second {
		t.Fatalf("mapping not idempotent: %+v/%v vs %+v/%v", first, ok1, second, ok2)
	}
}

func TestToWorldRejectsLowX(t *testing.T) {
	mapper := NewMapper(types.FrameWidth, types.FrameHeight)
	cam := OrthographicCamera(640, 480, 1000)
	for _, pos := range []types.ScreenPosition{{X: 0, Y: 0}, {X: 0, Y: 200}} {
		if _, ok := mapper.ToWorld(pos, cam); ok {
			t.Fatalf("expected %+v to be rejected", pos)
		}
	}
}

func TestToWorldRejectsSingularProjection(t *testing.T) {
	mapper := NewMapper(types.FrameWidth, types.FrameHeight)
	cam := Camera{World: mgl64.Ident4()}
	if _, ok := mapper.ToWorld(types.ScreenPosition{X: 10, Y: 10}, cam); ok {
		t.Fatalf("expected singular projection to be rejected")
	}
}
