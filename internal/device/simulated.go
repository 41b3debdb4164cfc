package device

import "sync"

// Simulated is an in-memory motor used when running without hardware.
type Simulated struct {
	mu     sync.Mutex
	degree float64
	// FailNext makes the next SetTiltDegree fail with this error.
	FailNext error
}

func NewSimulated(initial float64) *Simulated {
	return &Simulated{degree: initial}
}

func (s *Simulated) GetTiltDegree() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degree, nil
}

func (s *Simulated) SetTiltDegree(degree float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailNext != nil {
		err := s.FailNext
		s.FailNext = nil
		return &Error{Op: "set_tilt_degree", Err: err}
	}
	if err := CheckTilt(degree); err != nil {
		return &Error{Op: "set_tilt_degree", Err: err}
	}
	s.degree = degree
	return nil
}
