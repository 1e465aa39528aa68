package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/funmath/funmath-backend/internal/config"
	"github.com/funmath/funmath-backend/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AnswerWriter persists saved progress rows.
type AnswerWriter interface {
	SaveAnswers(ctx context.Context, examID uuid.UUID, userID int64, answers model.Answers) error
}

// AutosaveWorker consumes the persist-answers queue and writes progress
// behind to PostgreSQL.
type AutosaveWorker struct {
	store      AnswerWriter
	rdb        *redis.Client
	queue      string
	retryDelay time.Duration
	log        zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(store AnswerWriter, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		store:      store,
		rdb:        rdb,
		queue:      config.WorkerKey.PersistAnswersQueue,
		retryDelay: 5 * time.Second,
		log:        log.With().Str("component", "autosave_worker").Logger(),
	}
}

// Start runs the worker loop until ctx is cancelled, then drains the queue.
// Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.WithoutCancel(ctx))
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AutosaveWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, time.Second, w.queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			sleep(ctx, time.Second)
		}
		return
	}
	if len(result) < 2 {
		return
	}

	job, ok := w.decode(result[1])
	if !ok {
		return
	}

	if err := w.store.SaveAnswers(ctx, job.ExamID, job.UserID, job.Answers); err != nil {
		w.log.Error().Err(err).
			Int64("user_id", job.UserID).
			Str("exam_id", job.ExamID.String()).
			Dur("retry_in", w.retryDelay).
			Msg("Persist error, requeueing")
		w.rdb.RPush(context.WithoutCancel(ctx), w.queue, result[1])
		sleep(ctx, w.retryDelay)
	}
}

func (w *AutosaveWorker) decode(raw string) (model.PersistAnswersJob, bool) {
	var job model.PersistAnswersJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		w.log.Error().Err(err).Msg("Dropping malformed job")
		return job, false
	}
	if job.ExamID == uuid.Nil || job.UserID == 0 {
		w.log.Error().Msg("Dropping job without exam or user")
		return job, false
	}
	return job, true
}

// drain persists whatever is left in the queue before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, w.queue).Result()
		if err != nil {
			break
		}
		job, ok := w.decode(raw)
		if !ok {
			continue
		}
		if err := w.store.SaveAnswers(ctx, job.ExamID, job.UserID, job.Answers); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, w.queue, raw)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
