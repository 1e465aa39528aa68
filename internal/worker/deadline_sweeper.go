package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// sweepBatch bounds how many sessions a single sweep force-submits.
const sweepBatch = 200

// ExpiredSubmitter force-submits sessions whose exam deadline has passed.
type ExpiredSubmitter interface {
	ForceSubmitExpired(ctx context.Context, batch int) (int, error)
}

// DeadlineSweeper periodically submits sessions left open after the exam
// window closed, so the deadline holds even when no client is connected.
type DeadlineSweeper struct {
	sessions ExpiredSubmitter
	cron     *cron.Cron
	timeout  time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewDeadlineSweeper schedules sweeps on a robfig/cron schedule such as "@every 30s".
func NewDeadlineSweeper(sessions ExpiredSubmitter, schedule string, log zerolog.Logger) (*DeadlineSweeper, error) {
	s := &DeadlineSweeper{
		sessions: sessions,
		timeout:  time.Minute,
		log:      log.With().Str("component", "deadline_sweeper").Logger(),
	}
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins scheduling. Sweeps stop when ctx is cancelled or Stop is called.
func (s *DeadlineSweeper) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.log.Info().Msg("Deadline sweeper started")
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *DeadlineSweeper) Stop() {
	done := s.cron.Stop()
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	<-done.Done()
	s.log.Info().Msg("Deadline sweeper stopped")
}

func (s *DeadlineSweeper) tick() {
	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()
	if parent == nil || parent.Err() != nil {
		return
	}
	s.Sweep(parent)
}

// Sweep runs one pass immediately.
func (s *DeadlineSweeper) Sweep(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.sessions.ForceSubmitExpired(ctx, sweepBatch)
	if err != nil {
		s.log.Error().Err(err).Int("submitted", n).Msg("Sweep failed")
		return n
	}
	if n > 0 {
		s.log.Info().Int("submitted", n).Msg("Force-submitted expired sessions")
	}
	return n
}
