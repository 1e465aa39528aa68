package session

import (
	"sync"
	"time"

	"github.com/funmath/funmath-backend/internal/model"
)

// saver coalesces draft writes. At most one write is in flight; edits that
// arrive meanwhile replace each other and only the newest is written next.
type saver struct {
	write    func(model.Answers)
	debounce time.Duration

	writeMu sync.Mutex

	mu      sync.Mutex
	pending model.Answers
	armed   bool
	timer   *time.Timer
}

func newSaver(debounce time.Duration, write func(model.Answers)) *saver {
	return &saver{write: write, debounce: debounce}
}

// schedule queues snapshot as the next state to persist.
func (s *saver) schedule(snapshot model.Answers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = snapshot
	if s.armed {
		return
	}
	s.armed = true
	if s.debounce <= 0 {
		go s.drain()
		return
	}
	s.timer = time.AfterFunc(s.debounce, s.drain)
}

func (s *saver) drain() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for {
		s.mu.Lock()
		next := s.pending
		s.pending = nil
		if next == nil {
			s.armed = false
			s.timer = nil
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		s.write(next)
	}
}

// flush writes any queued snapshot now and returns once nothing is in flight.
func (s *saver) flush() {
	s.mu.Lock()
	if s.timer != nil && s.timer.Stop() {
		s.timer = nil
	}
	s.mu.Unlock()
	s.drain()
}
