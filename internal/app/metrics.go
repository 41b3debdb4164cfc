package app

import (
	"sync/atomic"
	"time"

	"kinect-track-go/internal/pipeline"
)

type metrics struct {
	ticks       atomic.Uint64
	newFrames   atomic.Uint64
	visualized  atomic.Uint64
	located     atomic.Uint64
	mapped      atomic.Uint64
	tickNanos   atomic.Uint64
	tiltOK      atomic.Uint64
	tiltErrors  atomic.Uint64
	inputDrops  atomic.Uint64
	trackErrors atomic.Uint64
}

func (m *metrics) observeTick(res pipeline.TickResult, elapsed time.Duration) {
	m.ticks.Add(1)
	m.tickNanos.Add(uint64(elapsed.Nanoseconds()))
	if res.NewFrame {
		m.newFrames.Add(1)
	}
	if res.Visualized {
		m.visualized.Add(1)
	}
	if res.Located {
		m.located.Add(1)
	}
	if res.Mapped {
		m.mapped.Add(1)
	}
}

func (m *metrics) snapshot() map[string]any {
	return map[string]any{
		"ticks_total":        m.ticks.Load(),
		"tick_nanos_total":   m.tickNanos.Load(),
		"frames_new_total":   m.newFrames.Load(),
		"visualized_total":   m.visualized.Load(),
		"detections_total":   m.located.Load(),
		"mapped_total":       m.mapped.Load(),
		"tilt_ok_total":      m.tiltOK.Load(),
		"tilt_errors_total":  m.tiltErrors.Load(),
		"input_drops_total":  m.inputDrops.Load(),
		"track_errors_total": m.trackErrors.Load(),
	}
}
