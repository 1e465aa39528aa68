package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamPayloadKey returns the cache key for an exam's learner-facing payload.
func (r *CacheKeyStruct) ExamPayloadKey(examID string) string {
	return fmt.Sprintf("exam:%s:payload", examID)
}

// ExamAnswerKey returns the cache key for an exam's answer key hash.
func (r *CacheKeyStruct) ExamAnswerKey(examID string) string {
	return fmt.Sprintf("exam:%s:key", examID)
}

// SessionAnswersKey returns the hash holding a learner's saved progress.
func (r *CacheKeyStruct) SessionAnswersKey(examID string, userID int64) string {
	return fmt.Sprintf("user:%d:exam:%s:answers", userID, examID)
}

// SubmitLockKey guards a single grading run per (exam, user).
func (r *CacheKeyStruct) SubmitLockKey(examID string, userID int64) string {
	return fmt.Sprintf("user:%d:exam:%s:submit_lock", userID, examID)
}

// LeaderboardKey returns the cache key for an exam's leaderboard projection.
func (r *CacheKeyStruct) LeaderboardKey(examID string) string {
	return fmt.Sprintf("exam:%s:leaderboard", examID)
}

// ExamEventsChannel returns the Redis PubSub channel for an exam's session events.
func (r *CacheKeyStruct) ExamEventsChannel(examID string) string {
	return fmt.Sprintf("exam:%s:events", examID)
}

var CacheKey = NewCacheKeyStruct()
