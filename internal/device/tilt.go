package device

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

type Action string

const (
	TiltUp   Action = "tilt_up"
	TiltDown Action = "tilt_down"
)

func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case TiltUp, TiltDown:
		return Action(s), nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// Tilter turns discrete key actions into read-modify-write tilt commands.
type Tilter struct {
	dev    Device
	lock   sync.Locker
	step   float64
	logger *zap.SugaredLogger
	errors atomic.Uint64

	// last is the most recent tilt read from or written to dev, guarded by
	// lock.
	last  float64
	known bool
}

// NewTilter serializes every command on lock, which should be the lock shared
// with frame acquisition on the same handle.
func NewTilter(dev Device, lock sync.Locker, logger *zap.SugaredLogger) *Tilter {
	if lock == nil {
		lock = &sync.Mutex{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Tilter{dev: dev, lock: lock, step: TiltStep, logger: logger}
}

// Handle applies action and returns the tilt in effect afterwards. On failure
// the error is logged and the device keeps its previous tilt. If the tilt
// cannot be read and has never been seen, the error wraps ErrTiltUnknown.
func (t *Tilter) Handle(action Action) (float64, error) {
	var delta float64
	switch action {
	case TiltUp:
		delta = t.step
	case TiltDown:
		delta = -t.step
	default:
		return 0, fmt.Errorf("unknown action %q", action)
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	current, err := t.dev.GetTiltDegree()
	if err != nil {
		t.errors.Add(1)
		t.logger.Warnf("%s: read tilt failed: %v", action, err)
		if !t.known {
			return 0, fmt.Errorf("%w: %w", ErrTiltUnknown, err)
		}
		return t.last, err
	}
	t.last, t.known = current, true
	next := current + delta
	if err := t.dev.SetTiltDegree(next); err != nil {
		t.errors.Add(1)
		t.logger.Warnf("%s: set tilt %.1f failed: %v", action, next, err)
		return current, err
	}
	t.last = next
	t.logger.Infof("%s: tilt %.1f -> %.1f", action, current, next)
	return next, nil
}

func (t *Tilter) Errors() uint64 {
	return t.errors.Load()
}
