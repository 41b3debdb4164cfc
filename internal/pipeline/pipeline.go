// Package pipeline runs the per-tick depth processing: acquire the newest
// frame, draw it, find the nearest blob and move the crosshair onto it.
package pipeline

import (
	"go.uber.org/zap"

	"kinect-track-go/internal/mapping"
	"kinect-track-go/internal/processing"
	"kinect-track-go/internal/types"
)

type FrameSource interface {
	TryNextFrame() (types.DepthFrame, bool)
}

// Target is the surface the pipeline draws on.
type Target interface {
	UpdateTexture(pix []byte)
	MoveCrosshair(d Detection)
	Camera() mapping.Camera
}

type Detection struct {
	FrameID   int                  `json:"frame_id"`
	Timestamp float64              `json:"timestamp"`
	Screen    types.ScreenPosition `json:"screen"`
	World     types.WorldPosition  `json:"world"`
}

type Options struct {
	Threshold uint16
	// OnDetection is called after the crosshair moved.
	OnDetection func(Detection)
	Logger      *zap.SugaredLogger
}

// TickResult records which stages ran during one tick.
type TickResult struct {
	NewFrame   bool
	Visualized bool
	Located    bool
	Mapped     bool
	Detection  Detection
}

// Pipeline holds the most recent frame and the pixel buffer derived from it.
// Tick must not be called concurrently.
type Pipeline struct {
	source    FrameSource
	target    Target
	mapper    mapping.Mapper
	threshold uint16
	onDetect  func(Detection)
	logger    *zap.SugaredLogger

	held   types.DepthFrame
	pixels []byte
}

func New(source FrameSource, target Target, mapper mapping.Mapper, opts Options) *Pipeline {
	if opts.Threshold == 0 {
		opts.Threshold = processing.DefaultThreshold
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Pipeline{
		source:    source,
		target:    target,
		mapper:    mapper,
		threshold: opts.Threshold,
		onDetect:  opts.OnDetection,
		logger:    opts.Logger,
	}
}

// Tick runs acquire, store, visualize, locate and map in that order. Each
// stage is skipped when there is nothing for it to work on, and a held frame
// whose size differs from the mapper's is never drawn or located. Tick never
// blocks on the frame source.
func (p *Pipeline) Tick() TickResult {
	var res TickResult

	if frame, ok := p.source.TryNextFrame(); ok {
		p.held = frame
		res.NewFrame = true
	}
	if p.held.Empty() || !p.held.HasSize(int(p.mapper.Width), int(p.mapper.Height)) {
		return res
	}

	p.pixels = processing.EnsurePixelBuffer(p.pixels, len(p.held.Data))
	if err := processing.Visualize(p.pixels, p.held.Data); err != nil {
		p.logger.Warnf("visualize frame %d: %v", p.held.FrameID, err)
	} else {
		p.target.UpdateTexture(p.pixels)
		res.Visualized = true
	}

	pos := processing.LocateBlob(p.held, p.threshold)
	if !pos.Valid() {
		return res
	}
	res.Located = true
	res.Detection = Detection{
		FrameID:   p.held.FrameID,
		Timestamp: p.held.Timestamp,
		Screen:    pos,
	}

	world, ok := p.mapper.ToWorld(pos, p.target.Camera())
	if !ok {
		return res
	}
	res.Detection.World = world
	res.Mapped = true
	p.target.MoveCrosshair(res.Detection)
	if p.onDetect != nil {
		p.onDetect(res.Detection)
	}
	return res
}

// Held returns the frame the pipeline is currently working from.
func (p *Pipeline) Held() types.DepthFrame {
	return p.held
}
