// Package sensor owns the connection to the depth sensor: its frame stream
// and its motor.
package sensor

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"kinect-track-go/internal/device"
	"kinect-track-go/internal/ingest"
	"kinect-track-go/internal/simulator"
	"kinect-track-go/internal/types"
)

// InitError is returned by Open when the sensor cannot be brought up.
type InitError struct {
	Op  string
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("sensor init: %s: %v", e.Op, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

type Config struct {
	Endpoint   string
	BridgeURL  string
	APIVersion string

	Simulate bool
	SimFPS   float64
	// Fallback switches to the simulator when the real sensor cannot be
	// opened instead of failing.
	Fallback bool

	Width  int
	Height int

	LogEvery int
	Conflate bool
	Recorder ingest.RawRecorder
	OnMeta   func(types.RawMessage)
	Logger   *zap.SugaredLogger
}

// Handle is the single live connection to the sensor. Frame receives and
// motor commands are serialized on the same lock.
type Handle struct {
	mu sync.Mutex

	Source *Source
	Device device.Device
	Tilter *device.Tilter
	Bridge *device.Bridge

	simulated bool
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Open connects to the sensor and starts frame acquisition in the
// background. Any error it returns is an *InitError.
func Open(ctx context.Context, cfg Config) (*Handle, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.Width <= 0 {
		cfg.Width = types.FrameWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = types.FrameHeight
	}
	logger := cfg.Logger

	runCtx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		Source: newSource(logger, cfg.OnMeta, cfg.Width, cfg.Height),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	var (
		first <-chan types.RawMessage
		open  OpenFunc
		err   error
	)
	if !cfg.Simulate {
		first, open, err = h.openBridge(ctx, runCtx, cfg)
		if err != nil {
			if !cfg.Fallback {
				cancel()
				return nil, err
			}
			logger.Warnf("%v; falling back to simulator", err)
		}
	}
	if first == nil {
		h.simulated = true
		h.Device = device.NewSimulated(0)
		open = func(ctx context.Context) (<-chan types.RawMessage, error) {
			return simulator.Stream(ctx, cfg.Width, cfg.Height, cfg.SimFPS), nil
		}
		first, _ = open(runCtx)
		logger.Infof("using simulated sensor at %.0f fps", cfg.SimFPS)
	}

	h.Tilter = device.NewTilter(h.Device, &h.mu, logger)

	go func() {
		defer close(h.done)
		h.Source.run(runCtx, first, open, time.Second)
	}()
	return h, nil
}

func (h *Handle) openBridge(ctx, runCtx context.Context, cfg Config) (<-chan types.RawMessage, OpenFunc, error) {
	if cfg.BridgeURL == "" {
		return nil, nil, &InitError{Op: "enumerate devices", Err: fmt.Errorf("missing bridge url")}
	}
	bridge := device.NewBridge(cfg.BridgeURL, cfg.APIVersion)
	count, err := bridge.NumDevices(ctx)
	if err != nil {
		return nil, nil, &InitError{Op: "enumerate devices", Err: err}
	}
	if count == 0 {
		return nil, nil, &InitError{Op: "enumerate devices", Err: device.ErrNoDevice}
	}
	cfg.Logger.Infof("found %d devices, using first", count)

	open := func(ctx context.Context) (<-chan types.RawMessage, error) {
		return ingest.Stream(ctx, cfg.Endpoint, ingest.Options{
			LogEvery: cfg.LogEvery,
			Recorder: cfg.Recorder,
			Lock:     &h.mu,
			Conflate: cfg.Conflate,
			Logger:   cfg.Logger,
		})
	}
	first, err := open(runCtx)
	if err != nil {
		return nil, nil, &InitError{Op: "open depth stream", Err: err}
	}
	h.Bridge = bridge
	h.Device = bridge
	return first, open, nil
}

// TryNextFrame returns the newest frame received since the previous call.
func (h *Handle) TryNextFrame() (types.DepthFrame, bool) {
	return h.Source.TryNextFrame()
}

// Tilt applies a tilt action to the motor. Failures leave the tilt unchanged.
func (h *Handle) Tilt(action device.Action) (float64, error) {
	return h.Tilter.Handle(action)
}

// TiltDegree reads the current motor tilt.
func (h *Handle) TiltDegree() (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Device.GetTiltDegree()
}

func (h *Handle) Simulated() bool {
	return h.simulated
}

// Close stops acquisition and releases the device. It is safe to call more
// than once.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		h.cancel()
		var err error
		select {
		case <-h.done:
		case <-time.After(5 * time.Second):
			err = multierr.Append(err, fmt.Errorf("acquisition did not stop"))
		}
		if closer, ok := h.Device.(io.Closer); ok {
			err = multierr.Append(err, closer.Close())
		}
		h.closeErr = err
	})
	return h.closeErr
}
