package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

type AppConfig struct {
	Port int

	// Sensor bridge: ZMQ frame stream plus HTTP motor API.
	Endpoint       string
	BridgeURL      string
	BridgeAPI      string
	StatusInterval time.Duration
	Conflate       bool

	Debug          bool
	DebugFPS       float64
	IngestFallback bool
	IngestLogEvery int

	Width     int
	Height    int
	Threshold int

	TickRate time.Duration
	UIRate   time.Duration

	RawLogEnabled bool
	RawLogDir     string
	TrackLog      bool
	OutputDir     string

	LogLevel string
	LogDev   bool
}

func (c AppConfig) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	if c.Width < 1 || c.Height < 1 {
		errs = append(errs, fmt.Errorf("invalid frame size %dx%d", c.Width, c.Height))
	}
	if c.Threshold < 1 || c.Threshold > 65535 {
		errs = append(errs, fmt.Errorf("threshold %d out of range", c.Threshold))
	}
	if c.TickRate <= 0 {
		errs = append(errs, errors.New("tick rate must be positive"))
	}
	if !c.Debug && !c.IngestFallback && c.Endpoint == "" {
		errs = append(errs, errors.New("missing frame endpoint"))
	}
	if c.Debug && c.DebugFPS <= 0 {
		errs = append(errs, errors.New("debug fps must be positive"))
	}
	return multierr.Combine(errs...)
}
