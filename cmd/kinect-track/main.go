package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"kinect-track-go/internal/app"
	"kinect-track-go/internal/config"
	"kinect-track-go/internal/device"
	"kinect-track-go/internal/ingest"
	"kinect-track-go/internal/output"
	"kinect-track-go/internal/processing"
	"kinect-track-go/internal/sensor"
	"kinect-track-go/internal/server"
	"kinect-track-go/internal/surface"
	"kinect-track-go/internal/types"
)

func main() {
	var (
		port           = flag.Int("port", 8888, "HTTP port for the web UI")
		bridgeIP       = flag.String("bridge-ip", "", "Sensor bridge IP used for the ZMQ stream and the motor API")
		apiPort        = flag.Int("api-port", 80, "Sensor bridge HTTP API port")
		apiVersion     = flag.String("bridge-api-version", "1.0", "Sensor bridge API version")
		zmqPort        = flag.Int("zmq-port", 5556, "ZMQ port of the depth stream")
		endpoint       = flag.String("endpoint", "tcp://localhost:5556", "ZMQ endpoint (used when bridge-ip is empty)")
		bridgeURL      = flag.String("bridge-url", "http://localhost:80", "Bridge API base URL (used when bridge-ip is empty)")
		statusInterval = flag.Duration("status-interval", 1*time.Second, "Polling interval for bridge status")
		conflate       = flag.Bool("conflate", true, "Keep only the newest frame in the ZMQ queue")
		debug          = flag.Bool("debug", false, "Run with a simulated sensor")
		debugFPS       = flag.Float64("debug-fps", 30, "Simulated frame rate")
		ingestFallback = flag.Bool("ingest-fallback", false, "Fall back to the simulator when the sensor cannot be opened")
		ingestLogEvery = flag.Int("ingest-log-every", 100, "Log every Nth ingest error")
		threshold      = flag.Int("threshold", processing.DefaultThreshold, "Depth below which a sample is part of the nearest blob")
		tickRate       = flag.Duration("tick-rate", 16*time.Millisecond, "Pipeline tick interval")
		uiRate         = flag.Duration("ui-rate", 50*time.Millisecond, "Texture push interval for websocket clients")
		rawLogEnabled  = flag.Bool("raw-log", false, "Write raw CBOR messages to disk")
		rawLogDir      = flag.String("raw-log-dir", "rawlog", "Directory for raw ingest logs")
		trackLog       = flag.Bool("track-log", false, "Write mapped detections to a CSV file")
		outputDir      = flag.String("output-dir", "output", "Directory for track logs")
		logLevel       = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		logDev         = flag.Bool("log-dev", false, "Human-friendly console logs")
	)
	flag.Parse()

	resolvedEndpoint := *endpoint
	resolvedBridgeURL := *bridgeURL
	if *bridgeIP != "" {
		resolvedEndpoint = fmt.Sprintf("tcp://%s:%d", *bridgeIP, *zmqPort)
		resolvedBridgeURL = fmt.Sprintf("http://%s:%d", *bridgeIP, *apiPort)
	}

	cfg := config.AppConfig{
		Port:           *port,
		Endpoint:       resolvedEndpoint,
		BridgeURL:      resolvedBridgeURL,
		BridgeAPI:      *apiVersion,
		StatusInterval: *statusInterval,
		Conflate:       *conflate,
		Debug:          *debug,
		DebugFPS:       *debugFPS,
		IngestFallback: *ingestFallback,
		IngestLogEvery: *ingestLogEvery,
		Width:          types.FrameWidth,
		Height:         types.FrameHeight,
		Threshold:      *threshold,
		TickRate:       *tickRate,
		UIRate:         *uiRate,
		RawLogEnabled:  *rawLogEnabled,
		RawLogDir:      *rawLogDir,
		TrackLog:       *trackLog,
		OutputDir:      *outputDir,
		LogLevel:       *logLevel,
		LogDev:         *logDev,
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if err := run(cfg, log); err != nil {
		var initErr *sensor.InitError
		if errors.As(err, &initErr) {
			log.Fatalf("sensor unavailable - abort: %v", err)
		}
		log.Fatalf("%v", err)
	}
}

func newLogger(cfg config.AppConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.LogDev {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zc.Level = level
	return zc.Build()
}

func run(cfg config.AppConfig, log *zap.SugaredLogger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var recorder ingest.RawRecorder
	if cfg.RawLogEnabled {
		writer, werr := output.NewRawLogWriter(cfg.RawLogDir, "raw_cbor")
		if werr != nil {
			return fmt.Errorf("start raw log: %w", werr)
		}
		log.Infof("recording raw messages to %s", writer.Path())
		recorder = writer
		defer func() { err = multierr.Append(err, writer.Close()) }()
	}

	var track app.TrackRecorder
	if cfg.TrackLog {
		writer, werr := output.NewTrackWriter(cfg.OutputDir)
		if werr != nil {
			return fmt.Errorf("start track log: %w", werr)
		}
		log.Infof("writing track log to %s", writer.Path())
		track = writer
		defer func() { err = multierr.Append(err, writer.Close()) }()
	}

	surf := surface.New(cfg.Width, cfg.Height)

	var current atomic.Pointer[app.App]
	handle, err := sensor.Open(ctx, sensor.Config{
		Endpoint:   cfg.Endpoint,
		BridgeURL:  cfg.BridgeURL,
		APIVersion: cfg.BridgeAPI,
		Simulate:   cfg.Debug,
		SimFPS:     cfg.DebugFPS,
		Fallback:   cfg.IngestFallback,
		Width:      cfg.Width,
		Height:     cfg.Height,
		LogEvery:   cfg.IngestLogEvery,
		Conflate:   cfg.Conflate,
		Recorder:   recorder,
		OnMeta: func(msg types.RawMessage) {
			log.Infow("bridge metadata", "type", msg.Type, "meta", output.NormalizeJSONValue(msg.Meta))
			if a := current.Load(); a != nil && msg.Type == "end" {
				a.SetStatus("stream", "ended")
			}
		},
		Logger: log,
	})
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, handle.Close()) }()

	application := app.New(cfg, handle, surf, track, log)
	current.Store(application)
	if handle.Simulated() {
		application.SetStatus("sensor", "simulator")
	} else {
		application.SetStatus("sensor", "bridge")
		go device.PollStatus(ctx, handle.Bridge, cfg.StatusInterval, func(s device.Status) {
			application.SetStatus("motor", s.Motor)
			application.SetStatus("bridge_stream", s.Stream)
		})
	}
	if degree, err := handle.TiltDegree(); err == nil {
		application.SetStatus("tilt", degree)
	} else {
		log.Warnf("read initial tilt: %v", err)
	}

	go application.Run(ctx)
	go application.LogStats(ctx, 30*time.Second, func() string {
		s := handle.Source.Stats()
		return fmt.Sprintf("received=%d dropped=%d invalid=%d decode_failures=%d", s.Received, s.Dropped, s.Invalid, ingest.DecodeFailures())
	})

	srv := server.New(cfg, surf, server.Hooks{
		Status: func() map[string]any {
			return application.Status(func(out map[string]any) {
				s := handle.Source.Stats()
				m := out["metrics"].(map[string]any)
				m["frames_received_total"] = s.Received
				m["frames_dropped_total"] = s.Dropped
				m["frames_invalid_total"] = s.Invalid
				m["meta_messages_total"] = s.Meta
				m["stream_restarts_total"] = s.Restarts
			})
		},
		Config:   application.Config,
		Key:      application.Key,
		Viewport: application.Viewport,
	}, log)

	log.Infof("starting web UI at http://localhost:%d", cfg.Port)
	if err := srv.Run(ctx, application.Messages()); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}
