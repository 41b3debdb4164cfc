// Package mapping converts detected screen positions into the world space of
// the surface that draws the crosshair.
package mapping

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"kinect-track-go/internal/types"
)

// MinX is the smallest x accepted as a detection. Anything below reads as the
// zero "no detection" position.
const MinX = 0.1

// Camera is the viewing state of the target surface at one instant.
type Camera struct {
	Projection mgl64.Mat4
	World      mgl64.Mat4
}

type Mapper struct {
	Width  float64
	Height float64
}

func NewMapper(width, height int) Mapper {
	return Mapper{Width: float64(width), Height: float64(height)}
}

// ToWorld flips pos into a bottom-left origin, normalises it to [-1,1] and
// unprojects it through camera onto the near plane. It reports false when pos
// is not a detection or the projection cannot be inverted.
func (m Mapper) ToWorld(pos types.ScreenPosition, camera Camera) (types.WorldPosition, bool) {
	if m.Width <= 0 || m.Height <= 0 {
		return types.WorldPosition{}, false
	}
	x := float64(pos.X)
	y := math.Abs(float64(pos.Y) - m.Height)
	if x < MinX {
		return types.WorldPosition{}, false
	}

	ndc := mgl64.Vec3{
		x/m.Width*2 - 1,
		y/m.Height*2 - 1,
		-1,
	}

	if camera.Projection.Det() == 0 {
		return types.WorldPosition{}, false
	}
	ndcToWorld := camera.World.Mul4(camera.Projection.Inv())
	world := mgl64.TransformCoordinate(ndc, ndcToWorld)
	if math.IsNaN(world.X()) || math.IsNaN(world.Y()) || math.IsInf(world.X(), 0) || math.IsInf(world.Y(), 0) {
		return types.WorldPosition{}, false
	}
	return types.WorldPosition{X: world.X(), Y: world.Y()}, true
}

// OrthographicCamera is a 2D camera centred on the origin whose visible area
// is width by height world units, looking down -z from just inside far.
func OrthographicCamera(width, height, far float64) Camera {
	halfW := width / 2
	halfH := height / 2
	return Camera{
		Projection: mgl64.Ortho(-halfW, halfW, -halfH, halfH, 0, far),
		World:      mgl64.Translate3D(0, 0, far-0.1),
	}
}
