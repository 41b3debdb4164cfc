// Package app wires the sensor, the frame pipeline and the web surface
// together and drives them.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"kinect-track-go/internal/config"
	"kinect-track-go/internal/device"
	"kinect-track-go/internal/ingest"
	"kinect-track-go/internal/mapping"
	"kinect-track-go/internal/pipeline"
	"kinect-track-go/internal/surface"
)

var ErrInputBusy = errors.New("input queue full")

// Sensor is what the app needs from the sensor handle.
type Sensor interface {
	pipeline.FrameSource
	Tilt(action device.Action) (float64, error)
}

// TrackRecorder persists mapped detections.
type TrackRecorder interface {
	Write(d pipeline.Detection) error
}

type App struct {
	cfg     config.AppConfig
	logger  *zap.SugaredLogger
	sensor  Sensor
	surface *surface.Surface
	pipe    *pipeline.Pipeline
	track   TrackRecorder

	actions  chan device.Action
	messages chan any

	metrics metrics

	statusMu sync.Mutex
	status   map[string]any
}

func New(cfg config.AppConfig, sensor Sensor, surf *surface.Surface, track TrackRecorder, logger *zap.SugaredLogger) *App {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	a := &App{
		cfg:      cfg,
		logger:   logger,
		sensor:   sensor,
		surface:  surf,
		track:    track,
		actions:  make(chan device.Action, 8),
		messages: make(chan any, 16),
		status: map[string]any{
			"sensor":     "unknown",
			"motor":      "unknown",
			"stream":     "idle",
			"tilt":       nil,
			"last_frame": "",
		},
	}
	a.pipe = pipeline.New(sensor, surf, mapping.NewMapper(cfg.Width, cfg.Height), pipeline.Options{
		Threshold:   uint16(cfg.Threshold),
		OnDetection: a.recordDetection,
		Logger:      logger,
	})
	return a
}

// Messages carries events for the UI clients.
func (a *App) Messages() <-chan any {
	return a.messages
}

// Key queues a tilt action from a client. It never blocks.
func (a *App) Key(action string) error {
	parsed, err := device.ParseAction(action)
	if err != nil {
		return err
	}
	select {
	case a.actions <- parsed:
		return nil
	default:
		a.metrics.inputDrops.Add(1)
		return ErrInputBusy
	}
}

func (a *App) Viewport(width, height float64) error {
	if !a.surface.SetViewport(width, height) {
		return fmt.Errorf("invalid viewport %.0fx%.0f", width, height)
	}
	return nil
}

func (a *App) SetStatus(key string, value any) {
	a.statusMu.Lock()
	a.status[key] = value
	a.statusMu.Unlock()
}

// Tick runs one pipeline pass and records its outcome.
func (a *App) Tick() pipeline.TickResult {
	start := time.Now()
	res := a.pipe.Tick()
	a.metrics.observeTick(res, time.Since(start))
	if res.NewFrame {
		a.SetStatus("stream", "receiving")
		a.SetStatus("last_frame", time.Now().Format(time.RFC3339))
	}
	return res
}

// Run drives the pipeline once per TickRate and applies tilt actions until
// ctx is done. Ticks are never concurrent.
func (a *App) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.runCommands(ctx)
	}()
	defer wg.Wait()

	rate := a.cfg.TickRate
	if rate <= 0 {
		rate = 16 * time.Millisecond
	}
	ticker := time.NewTicker(rate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Tick()
		}
	}
}

// runCommands applies tilt actions one at a time, off the tick loop, so a
// slow motor never delays a frame.
func (a *App) runCommands(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case action := <-a.actions:
			a.applyAction(action)
		}
	}
}

func (a *App) applyAction(action device.Action) {
	degree, err := a.sensor.Tilt(action)
	msg := map[string]any{"type": "tilt", "action": string(action)}
	if !errors.Is(err, device.ErrTiltUnknown) {
		msg["degree"] = degree
	}
	if err != nil {
		a.metrics.tiltErrors.Add(1)
		msg["error"] = err.Error()
	} else {
		a.metrics.tiltOK.Add(1)
		a.SetStatus("tilt", degree)
	}
	a.publish(msg)
}

func (a *App) publish(msg any) {
	select {
	case a.messages <- msg:
	default:
	}
}

func (a *App) recordDetection(d pipeline.Detection) {
	if a.track == nil {
		return
	}
	if err := a.track.Write(d); err != nil {
		if a.metrics.trackErrors.Add(1) == 1 {
			a.logger.Warnf("track log write failed: %v", err)
		}
	}
}

// Status returns a copy of the status fields plus the current counters.
func (a *App) Status(extra func(map[string]any)) map[string]any {
	a.statusMu.Lock()
	out := make(map[string]any, len(a.status)+1)
	for k, v := range a.status {
		out[k] = v
	}
	a.statusMu.Unlock()

	metricsPayload := a.metrics.snapshot()
	metricsPayload["ingest_decode_failures_total"] = ingest.DecodeFailures()
	decodeCount, decodeNanos := ingest.DecodeTiming()
	metricsPayload["ingest_decode_total"] = decodeCount
	metricsPayload["ingest_decode_nanos_total"] = decodeNanos
	out["metrics"] = metricsPayload
	if extra != nil {
		extra(out)
	}
	return out
}

func (a *App) Config() map[string]any {
	w, h := a.surface.Size()
	return map[string]any{
		"type":      "config",
		"width":     w,
		"height":    h,
		"threshold": a.cfg.Threshold,
		"debug":     a.cfg.Debug,
	}
}

// LogStats writes a summary line every interval until ctx is done.
func (a *App) LogStats(ctx context.Context, interval time.Duration, extra func() string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := a.metrics.snapshot()
			line := ""
			if extra != nil {
				line = extra()
			}
			a.logger.Infof("pipeline stats: ticks=%v frames=%v detections=%v mapped=%v tilt_errors=%v %s",
				m["ticks_total"], m["frames_new_total"], m["detections_total"], m["mapped_total"], m["tilt_errors_total"], line)
		}
	}
}
