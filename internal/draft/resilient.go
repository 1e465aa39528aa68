package draft

import (
	"context"
	"sync"

	"github.com/funmath/funmath-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Resilient wraps a durable Store. The first time the primary fails for an
// exam, that exam switches to memory-only storage and onWarn is called once.
// Its methods never return an error.
type Resilient struct {
	primary  Store
	fallback *MemoryStore
	onWarn   func(examID uuid.UUID, err error)
	log      zerolog.Logger

	mu       sync.Mutex
	degraded map[uuid.UUID]bool
}

// NewResilient wraps primary. onWarn may be nil.
func NewResilient(primary Store, onWarn func(uuid.UUID, error), log zerolog.Logger) *Resilient {
	return &Resilient{
		primary:  primary,
		fallback: NewMemoryStore(),
		onWarn:   onWarn,
		log:      log.With().Str("component", "draft_store").Logger(),
		degraded: make(map[uuid.UUID]bool),
	}
}

// Degraded reports whether examID is held in memory only.
func (r *Resilient) Degraded(examID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.degraded[examID]
}

func (r *Resilient) degrade(examID uuid.UUID, err error) {
	r.mu.Lock()
	first := !r.degraded[examID]
	r.degraded[examID] = true
	r.mu.Unlock()

	if !first {
		return
	}
	r.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Draft storage unavailable; keeping answers in memory only")
	if r.onWarn != nil {
		r.onWarn(examID, err)
	}
}

func (r *Resilient) Save(ctx context.Context, examID uuid.UUID, answers model.Answers) error {
	_ = r.fallback.Save(ctx, examID, answers)
	if r.Degraded(examID) {
		return nil
	}
	if err := r.primary.Save(ctx, examID, answers); err != nil {
		r.degrade(examID, err)
	}
	return nil
}

func (r *Resilient) Load(ctx context.Context, examID uuid.UUID) (model.Answers, error) {
	if r.Degraded(examID) {
		return r.fallback.Load(ctx, examID)
	}
	answers, err := r.primary.Load(ctx, examID)
	if err != nil {
		r.degrade(examID, err)
		return r.fallback.Load(ctx, examID)
	}
	return answers, nil
}

func (r *Resilient) Clear(ctx context.Context, examID uuid.UUID) error {
	_ = r.fallback.Clear(ctx, examID)
	// Attempted even when degraded so a stale durable copy does not outlive submission.
	if err := r.primary.Clear(ctx, examID); err != nil {
		r.degrade(examID, err)
	}
	return nil
}
