package sensor

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"kinect-track-go/internal/mailbox"
	"kinect-track-go/internal/types"
)

// OpenFunc starts an upstream message stream. The stream ends when the
// returned channel closes.
type OpenFunc func(ctx context.Context) (<-chan types.RawMessage, error)

// Source hands the newest depth frame from a background stream to a
// foreground consumer.
type Source struct {
	box    mailbox.Latest[types.DepthFrame]
	logger *zap.SugaredLogger

	onMeta func(types.RawMessage)

	width  int
	height int

	received atomic.Uint64
	invalid  atomic.Uint64
	meta     atomic.Uint64
	restarts atomic.Uint64
	last     atomic.Int64
}

// newSource accepts only frames of width by height.
func newSource(logger *zap.SugaredLogger, onMeta func(types.RawMessage), width, height int) *Source {
	return &Source{logger: logger, onMeta: onMeta, width: width, height: height}
}

// TryNextFrame returns the newest frame that arrived since the previous call.
// It never blocks.
func (s *Source) TryNextFrame() (types.DepthFrame, bool) {
	return s.box.TryTake()
}

// Deliver hands a message to the source as if it came off the stream.
func (s *Source) Deliver(msg types.RawMessage) {
	if msg.Type != "depth" {
		s.meta.Add(1)
		if s.onMeta != nil {
			s.onMeta(msg)
		}
		return
	}
	if !msg.Frame.HasSize(s.width, s.height) {
		s.invalid.Add(1)
		return
	}
	s.received.Add(1)
	s.last.Store(time.Now().UnixNano())
	s.box.Put(msg.Frame)
}

// run pumps messages from the stream opened by open until ctx is done. A
// stream that ends is reopened after backoff.
func (s *Source) run(ctx context.Context, first <-chan types.RawMessage, open OpenFunc, backoff time.Duration) {
	messages := first
	for {
		if messages == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			ch, err := open(ctx)
			if err != nil {
				s.logger.Warnf("reopen stream failed: %v", err)
				continue
			}
			s.restarts.Add(1)
			messages = ch
		}

		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				s.logger.Warnf("frame stream ended; reopening")
				messages = nil
				continue
			}
			s.Deliver(msg)
		}
	}
}

type SourceStats struct {
	Received uint64
	Dropped  uint64
	Invalid  uint64
	Meta     uint64
	Restarts uint64
	LastAt   time.Time
}

func (s *Source) Stats() SourceStats {
	stats := SourceStats{
		Received: s.received.Load(),
		Dropped:  s.box.Dropped(),
		Invalid:  s.invalid.Load(),
		Meta:     s.meta.Load(),
		Restarts: s.restarts.Load(),
	}
	if ns := s.last.Load(); ns > 0 {
		stats.LastAt = time.Unix(0, ns)
	}
	return stats
}
