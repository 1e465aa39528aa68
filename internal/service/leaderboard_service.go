package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/funmath/funmath-backend/internal/config"
	"github.com/funmath/funmath-backend/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// LeaderboardLimit caps how many ranked rows are projected.
const LeaderboardLimit = 100

// LeaderboardService projects submitted sessions into a ranked list. The
// projection is cached for a short TTL and invalidated on every submission.
type LeaderboardService struct {
	sessions SessionStore
	rdb      *redis.Client
	ttl      time.Duration
	log      zerolog.Logger
}

// NewLeaderboardService creates a new LeaderboardService.
func NewLeaderboardService(sessions SessionStore, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *LeaderboardService {
	return &LeaderboardService{
		sessions: sessions,
		rdb:      rdb,
		ttl:      ttl,
		log:      log.With().Str("component", "leaderboard_service").Logger(),
	}
}

// Get returns the ranked leaderboard for an exam.
func (s *LeaderboardService) Get(ctx context.Context, examID uuid.UUID) ([]model.LeaderboardEntry, error) {
	key := config.CacheKey.LeaderboardKey(examID.String())

	raw, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var entries []model.LeaderboardEntry
		if jsonErr := json.Unmarshal(raw, &entries); jsonErr == nil {
			return entries, nil
		}
	case !errors.Is(err, redis.Nil):
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Leaderboard cache read failed")
	}

	entries, err := s.sessions.Leaderboard(ctx, examID, LeaderboardLimit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	entries = Rank(entries)

	if payload, err := json.Marshal(entries); err == nil {
		if err := s.rdb.Set(ctx, key, payload, s.ttl).Err(); err != nil {
			s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Leaderboard cache write failed")
		}
	}
	return entries, nil
}

// Invalidate drops the cached projection.
func (s *LeaderboardService) Invalidate(ctx context.Context, examID uuid.UUID) error {
	return s.rdb.Del(ctx, config.CacheKey.LeaderboardKey(examID.String())).Err()
}

// Subscribe listens to the exam's session events.
func (s *LeaderboardService) Subscribe(ctx context.Context, examID uuid.UUID) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.ExamEventsChannel(examID.String()))
}

// Rank assigns 1-based positions to rows already ordered by score desc and
// submission time asc. Tied rows keep distinct ranks.
func Rank(entries []model.LeaderboardEntry) []model.LeaderboardEntry {
	if entries == nil {
		return []model.LeaderboardEntry{}
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
