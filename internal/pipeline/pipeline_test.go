package pipeline

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"kinect-track-go/internal/mapping"
	"kinect-track-go/internal/types"
)

type queueSource struct {
	frames []types.DepthFrame
	polls  int
}

func (q *queueSource) TryNextFrame() (types.DepthFrame, bool) {
	q.polls++
	if len(q.frames) == 0 {
		return types.DepthFrame{}, false
	}
	f := q.frames[0]
	q.frames = q.frames[1:]
	return f, true
}

type recordingTarget struct {
	camera     mapping.Camera
	texture    []byte
	updates    int
	crosshairs []Detection
}

func (r *recordingTarget) UpdateTexture(pix []byte) {
	r.texture = append(r.texture[:0], pix...)
	r.updates++
}

func (r *recordingTarget) MoveCrosshair(d Detection) {
	r.crosshairs = append(r.crosshairs, d)
}

func (r *recordingTarget) Camera() mapping.Camera {
	return r.camera
}

func newTarget() *recordingTarget {
	return &recordingTarget{camera: mapping.OrthographicCamera(640, 480, 1000)}
}

func blockFrame(id int) types.DepthFrame {
	data := make([]uint16, types.FrameWidth*types.FrameHeight)
	for i := range data {
		data[i] = 1000
	}
	for y := 235; y <= 244; y++ {
		for x := 315; x <= 324; x++ {
			data[y*types.FrameWidth+x] = 100
		}
	}
	return types.DepthFrame{FrameID: id, Width: types.FrameWidth, Height: types.FrameHeight, Data: data}
}

func newPipeline(src FrameSource, target Target) *Pipeline {
	return New(src, target, mapping.NewMapper(types.FrameWidth, types.FrameHeight), Options{})
}

func TestTickEndToEnd(t *testing.T) {
	src := &queueSource{frames: []types.DepthFrame{blockFrame(1)}}
	target := newTarget()
	var detections []Detection
	p := New(src, target, mapping.NewMapper(types.FrameWidth, types.FrameHeight), Options{
		OnDetection: func(d Detection) { detections = append(detections, d) },
	})

	res := p.Tick()
	if !res.NewFrame || !res.Visualized || !res.Located || !res.Mapped {
		t.Fatalf("expected every stage to run: %+v", res)
	}
	screen := res.Detection.Screen
	if screen.X < 319 || screen.X > 321 || screen.Y < 239 || screen.Y > 241 {
		t.Fatalf("unexpected screen position %+v", screen)
	}
	if target.texture[3] != 125 {
		t.Fatalf("background alpha: got %d want 125", target.texture[3])
	}
	blob := (240*types.FrameWidth + 320) * 4
	if target.texture[blob+3] != 12 {
		t.Fatalf("blob alpha: got %d want 12", target.texture[blob+3])
	}
	if len(target.crosshairs) != 1 || len(detections) != 1 {
		t.Fatalf("expected one crosshair move, got %d/%d", len(target.crosshairs), len(detections))
	}
	world := target.crosshairs[0].World
	if world.X < -2 || world.X > 2 || world.Y < -2 || world.Y > 2 {
		t.Fatalf("expected crosshair near the origin, got %+v", world)
	}
}

func TestTickWithoutFramesLeavesOutputs(t *testing.T) {
	src := &queueSource{}
	target := newTarget()
	target.texture = []byte{7, 7, 7, 7}
	p := newPipeline(src, target)

	res := p.Tick()
	if res != (TickResult{}) {
		t.Fatalf("expected an empty tick, got %+v", res)
	}
	if src.polls != 1 {
		t.Fatalf("expected one poll, got %d", src.polls)
	}
	if diff := cmp.Diff([]byte{7, 7, 7, 7}, target.texture); diff != "" {
		t.Fatalf("texture changed (-want +got):\n%s", diff)
	}
	if target.updates != 0 || len(target.crosshairs) != 0 {
		t.Fatalf("outputs published without a frame")
	}
}

func TestTickKeepsHeldFrame(t *testing.T) {
	src := &queueSource{frames: []types.DepthFrame{blockFrame(4)}}
	target := newTarget()
	p := newPipeline(src, target)

	p.Tick()
	res := p.Tick()
	if res.NewFrame {
		t.Fatalf("second tick should not see a new frame")
	}
	if !res.Visualized || !res.Mapped || res.Detection.FrameID != 4 {
		t.Fatalf("held frame not reused: %+v", res)
	}
	if target.updates != 2 {
		t.Fatalf("expected a texture update per tick, got %d", target.updates)
	}
	if p.Held().FrameID != 4 {
		t.Fatalf("unexpected held frame %d", p.Held().FrameID)
	}
}

func TestTickEmptyFrameSkipsStages(t *testing.T) {
	src := &queueSource{frames: []types.DepthFrame{{FrameID: 2}}}
	target := newTarget()
	target.texture = []byte{1, 2, 3, 4}
	p := newPipeline(src, target)

	res := p.Tick()
	if !res.NewFrame || res.Visualized || res.Located || res.Mapped {
		t.Fatalf("expected only acquire to run: %+v", res)
	}
	if diff := cmp.Diff([]byte{1, 2, 3, 4}, target.texture); diff != "" {
		t.Fatalf("texture changed (-want +got):\n%s", diff)
	}
}

func TestTickNoDetectionSkipsMapping(t *testing.T) {
	frame := blockFrame(3)
	for i := range frame.Data {
		frame.Data[i] = 1000
	}
	src := &queueSource{frames: []types.DepthFrame{frame}}
	target := newTarget()
	p := newPipeline(src, target)

	res := p.Tick()
	if !res.Visualized || res.Located || res.Mapped {
		t.Fatalf("unexpected stages: %+v", res)
	}
	if len(target.crosshairs) != 0 {
		t.Fatalf("crosshair moved without a detection")
	}
}

func TestTickUsesFreshCamera(t *testing.T) {
	frame := blockFrame(2)
	for i := range frame.Data {
		frame.Data[i] = 1000
	}
	frame.Data[100*types.FrameWidth+600] = 50
	src := &queueSource{frames: []types.DepthFrame{frame}}
	target := newTarget()
	p := newPipeline(src, target)

	first := p.Tick()
	target.camera = mapping.OrthographicCamera(1280, 960, 1000)
	second := p.Tick()
	if !first.Mapped || !second.Mapped {
		t.Fatalf("expected both ticks to map")
	}
	if math.Abs(second.Detection.World.X-2*first.Detection.World.X) > 1e-9 {
		t.Fatalf("camera change not applied: %+v vs %+v", first.Detection.World, second.Detection.World)
	}
}

func TestTickSkipsFrameOfOtherSize(t *testing.T) {
	w, h := 320, 240
	data := make([]uint16, w*h)
	for i := range data {
		data[i] = 1000
	}
	for y := h/2 - 5; y < h/2+5; y++ {
		for x := w/2 - 5; x < w/2+5; x++ {
			data[y*w+x] = 100
		}
	}
	src := &queueSource{frames: []types.DepthFrame{{FrameID: 1, Width: w, Height: h, Data: data}}}
	target := newTarget()
	p := newPipeline(src, target)

	res := p.Tick()
	if !res.NewFrame {
		t.Fatalf("expected the frame to be acquired")
	}
	if res.Visualized || res.Located || res.Mapped {
		t.Fatalf("320x240 frame should skip every stage: %+v", res)
	}
	if target.updates != 0 || len(target.crosshairs) != 0 {
		t.Fatalf("target touched: %d texture updates, %d crosshairs", target.updates, len(target.crosshairs))
	}
}
