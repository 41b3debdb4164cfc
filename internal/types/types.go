package types

const (
	FrameWidth  = 640
	FrameHeight = 480

	// MaxDimension bounds either side of a frame so Width*Height cannot
	// overflow.
	MaxDimension = 1 << 16
)

// DepthFrame is one row-major snapshot of depth samples from the sensor.
type DepthFrame struct {
	FrameID   int      `json:"frame_id"`
	Timestamp float64  `json:"timestamp"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Data      []uint16 `json:"-"`
}

// Valid reports whether the frame holds exactly Width*Height samples.
func (f DepthFrame) Valid() bool {
	if f.Width <= 0 || f.Height <= 0 || f.Width > MaxDimension || f.Height > MaxDimension {
		return false
	}
	return len(f.Data) == f.Width*f.Height
}

// HasSize reports whether the frame is valid and exactly width by height.
func (f DepthFrame) HasSize(width, height int) bool {
	return f.Width == width && f.Height == height && f.Valid()
}

// Empty reports whether there is nothing to process in the frame.
func (f DepthFrame) Empty() bool {
	return len(f.Data) == 0
}

// ScreenPosition is a pixel coordinate with its origin at the top left.
// The zero value doubles as "no detection".
type ScreenPosition struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p ScreenPosition) Valid() bool {
	return p.X != 0 || p.Y != 0
}

type WorldPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RawMessage is a decoded message from the sensor bridge stream.
type RawMessage struct {
	Type  string         `json:"type"`
	Frame DepthFrame     `json:"frame"`
	Meta  map[string]any `json:"meta,omitempty"`
}

// Crosshair is what the surface publishes to UI clients.
type Crosshair struct {
	Type     string         `json:"type"`
	FrameID  int            `json:"frame_id"`
	Screen   ScreenPosition `json:"screen"`
	World    WorldPosition  `json:"world"`
	Detected bool           `json:"detected"`
}
