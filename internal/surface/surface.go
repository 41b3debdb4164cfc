// Package surface is the drawing target shared between the pipeline and the
// web clients: the depth texture, the crosshair and the client viewport.
package surface

import (
	"image"
	"image/png"
	"io"
	"sync"

	"kinect-track-go/internal/mapping"
	"kinect-track-go/internal/pipeline"
)

const cameraFar = 1000

type Surface struct {
	mu sync.Mutex

	width  int
	height int

	texture        []byte
	textureVersion uint64

	crosshair        pipeline.Detection
	hasCrosshair     bool
	crosshairVersion uint64

	viewW float64
	viewH float64
}

// New returns a surface for width x height textures, initially filled with
// opaque black.
func New(width, height int) *Surface {
	tex := make([]byte, width*height*4)
	for i := 3; i < len(tex); i += 4 {
		tex[i] = 255
	}
	return &Surface{
		width:   width,
		height:  height,
		texture: tex,
		viewW:   float64(width),
		viewH:   float64(height),
	}
}

// UpdateTexture replaces the texture pixels. Buffers of the wrong size are
// ignored.
func (s *Surface) UpdateTexture(pix []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(pix) != len(s.texture) {
		return
	}
	copy(s.texture, pix)
	s.textureVersion++
}

func (s *Surface) MoveCrosshair(d pipeline.Detection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crosshair = d
	s.hasCrosshair = true
	s.crosshairVersion++
}

// Camera is a 2D orthographic camera sized to the client viewport.
func (s *Surface) Camera() mapping.Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return mapping.OrthographicCamera(s.viewW, s.viewH, cameraFar)
}

// SetViewport records the size of the client's drawing area.
func (s *Surface) SetViewport(width, height float64) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewW = width
	s.viewH = height
	return true
}

func (s *Surface) Viewport() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewW, s.viewH
}

func (s *Surface) Size() (int, int) {
	return s.width, s.height
}

// TextureSince copies the texture into dst if it changed after version.
func (s *Surface) TextureSince(version uint64, dst []byte) ([]byte, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.textureVersion == version {
		return dst, version, false
	}
	dst = append(dst[:0], s.texture...)
	return dst, s.textureVersion, true
}

func (s *Surface) CrosshairSince(version uint64) (pipeline.Detection, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasCrosshair || s.crosshairVersion == version {
		return pipeline.Detection{}, version, false
	}
	return s.crosshair, s.crosshairVersion, true
}

// WritePNG encodes the current texture as a PNG image.
func (s *Surface) WritePNG(w io.Writer) error {
	s.mu.Lock()
	img := image.NewNRGBA(image.Rect(0, 0, s.width, s.height))
	copy(img.Pix, s.texture)
	s.mu.Unlock()
	return png.Encode(w, img)
}
