package ingest

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"
	"go.uber.org/zap"

	"kinect-track-go/internal/types"
)

// RawRecorder receives every message exactly as it came off the socket.
type RawRecorder interface {
	Record(payload []byte) error
}

type Options struct {
	// LogEvery throttles per-message error logs to one in N.
	LogEvery int
	Recorder RawRecorder
	// Lock is held around each socket receive so device commands issued
	// through the same handle never interleave with it.
	Lock        sync.Locker
	PollTimeout time.Duration
	// Conflate keeps only the newest message in the socket queue.
	Conflate bool
	Logger   *zap.SugaredLogger
}

var (
	decodeFailures atomic.Uint64
	decodeCount    atomic.Uint64
	decodeNanos    atomic.Uint64
)

func DecodeFailures() uint64 {
	return decodeFailures.Load()
}

func DecodeTiming() (uint64, uint64) {
	return decodeCount.Load(), decodeNanos.Load()
}

var decMode = mustDecMode()

func mustDecMode() cbor.DecMode {
	mode, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return mode
}

// pollBackoff spaces out retries after poll failures. ETERM ends the stream
// and EINTR is retried at once.
type pollBackoff struct {
	min, max time.Duration
	cur      time.Duration
}

func (b *pollBackoff) next(err error) (time.Duration, bool) {
	switch zmq4.AsErrno(err) {
	case zmq4.ETERM:
		return 0, true
	case zmq4.Errno(syscall.EINTR):
		return 0, false
	}
	b.cur *= 2
	if b.cur < b.min {
		b.cur = b.min
	}
	if b.cur > b.max {
		b.cur = b.max
	}
	return b.cur, false
}

func (b *pollBackoff) reset() {
	b.cur = 0
}

type noopLocker struct{}

func (noopLocker) Lock()   {}
func (noopLocker) Unlock() {}

// Stream connects a PULL socket to endpoint and returns a channel of decoded
// bridge messages. Expected CBOR shape:
// { "type": "depth", "frame_id": <int>, "timestamp": <float>, "data": tag40[[rows, cols], tag69 <bytes>] }
// Any other type is passed through as metadata.
func Stream(ctx context.Context, endpoint string, opts Options) (<-chan types.RawMessage, error) {
	if opts.LogEvery < 1 {
		opts.LogEvery = 1
	}
	if opts.Lock == nil {
		opts.Lock = noopLocker{}
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 100 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	logger := &throttledLogger{every: opts.LogEvery, log: opts.Logger}

	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return nil, fmt.Errorf("create socket: %w", err)
	}
	if opts.Conflate {
		if err := socket.SetConflate(true); err != nil {
			_ = socket.Close()
			return nil, fmt.Errorf("set conflate: %w", err)
		}
	}
	if err := socket.Connect(endpoint); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("connect %s: %w", endpoint, err)
	}

	poller := zmq4.NewPoller()
	poller.Add(socket, zmq4.POLLIN)

	out := make(chan types.RawMessage, 1)
	backoff := pollBackoff{min: 10 * time.Millisecond, max: time.Second}
	go func() {
		defer close(out)
		defer socket.Close()

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			polled, err := poller.Poll(opts.PollTimeout)
			if err != nil {
				wait, stop := backoff.next(err)
				if stop {
					return
				}
				logger.printf("ingest poll error: %v", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
				continue
			}
			backoff.reset()
			if len(polled) == 0 {
				continue
			}

			opts.Lock.Lock()
			msg, err := socket.RecvBytes(zmq4.DONTWAIT)
			opts.Lock.Unlock()
			if err != nil {
				if zmq4.AsErrno(err) == zmq4.ETERM {
					return
				}
				logger.printf("ingest recv error: %v", err)
				continue
			}
			if opts.Recorder != nil {
				if err := opts.Recorder.Record(msg); err != nil {
					logger.printf("raw log record failed: %v", err)
				}
			}

			raw, ok := decodeMessage(msg, logger)
			if !ok {
				continue
			}

			select {
			case <-ctx.Done():
				return
			case out <- raw:
			}
		}
	}()

	return out, nil
}

// DecodeMessage decodes one bridge message.
func DecodeMessage(msg []byte) (types.RawMessage, error) {
	var payload map[string]any
	if err := decMode.Unmarshal(msg, &payload); err != nil {
		return types.RawMessage{}, fmt.Errorf("cbor decode: %w", err)
	}

	msgType, _ := payload["type"].(string)
	if msgType != "depth" {
		delete(payload, "type")
		return types.RawMessage{Type: msgType, Meta: payload}, nil
	}

	frameID, err := toInt(payload["frame_id"])
	if err != nil {
		return types.RawMessage{}, fmt.Errorf("invalid frame_id: %w", err)
	}
	timestamp, err := toFloat(payload["timestamp"])
	if err != nil {
		return types.RawMessage{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	rows, cols, data, err := decodeDepthArray(payload["data"])
	if err != nil {
		return types.RawMessage{}, fmt.Errorf("invalid data: %w", err)
	}

	return types.RawMessage{
		Type: msgType,
		Frame: types.DepthFrame{
			FrameID:   frameID,
			Timestamp: timestamp,
			Width:     cols,
			Height:    rows,
			Data:      data,
		},
	}, nil
}

func decodeMessage(msg []byte, logger *throttledLogger) (types.RawMessage, bool) {
	start := time.Now()
	raw, err := DecodeMessage(msg)
	decodeCount.Add(1)
	decodeNanos.Add(uint64(time.Since(start).Nanoseconds()))
	if err != nil {
		decodeFailures.Add(1)
		logger.printf("ingest %v", err)
		return types.RawMessage{}, false
	}
	return raw, true
}

// EncodeFrame is the inverse of DecodeMessage for depth frames.
func EncodeFrame(frame types.DepthFrame) ([]byte, error) {
	return cbor.Marshal(map[string]any{
		"type":      "depth",
		"frame_id":  frame.FrameID,
		"timestamp": frame.Timestamp,
		"data":      encodeDepthArray(frame.Height, frame.Width, frame.Data),
	})
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case uint32:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("unsupported int type %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("unsupported float type %T", v)
	}
}

type throttledLogger struct {
	mu    sync.Mutex
	count int
	every int
	log   *zap.SugaredLogger
}

func (l *throttledLogger) printf(format string, args ...any) {
	l.mu.Lock()
	l.count++
	emit := l.count%l.every == 0
	l.mu.Unlock()
	if emit {
		l.log.Warnf(format, args...)
	}
}
