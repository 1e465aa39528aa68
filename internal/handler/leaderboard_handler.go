package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/funmath/funmath-backend/internal/model"
	"github.com/funmath/funmath-backend/internal/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second
)

// Leaderboards is the leaderboard surface used by LeaderboardHandler.
type Leaderboards interface {
	Get(ctx context.Context, examID uuid.UUID) ([]model.LeaderboardEntry, error)
	Subscribe(ctx context.Context, examID uuid.UUID) *redis.PubSub
}

// LeaderboardHandler serves exam leaderboards, polled or streamed.
type LeaderboardHandler struct {
	boards Leaderboards
	log    zerolog.Logger
}

// NewLeaderboardHandler creates a new LeaderboardHandler.
func NewLeaderboardHandler(boards Leaderboards, log zerolog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{boards: boards, log: log.With().Str("component", "leaderboard_handler").Logger()}
}

// GetLeaderboard godoc
// GET /api/v1/exams/:id/leaderboard
func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	examID, ok := parseID(c, "id")
	if !ok {
		return
	}
	entries, err := h.boards.Get(c.Request.Context(), examID)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"entries": entries})
}

// StreamLeaderboard godoc
// GET /api/v1/exams/:id/leaderboard/stream
// Sends a snapshot, then a fresh one after every submission on the exam.
func (h *LeaderboardHandler) StreamLeaderboard(c *gin.Context) {
	examID, ok := parseID(c, "id")
	if !ok {
		return
	}
	reqCtx := c.Request.Context()
	log := h.log.With().Str("exam_id", examID.String()).Logger()

	pubsub := h.boards.Subscribe(reqCtx, examID)
	defer pubsub.Close()
	ch := pubsub.Channel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendSnapshot(c, reqCtx, examID)

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	log.Debug().Msg("Leaderboard stream attached")
	for {
		select {
		case <-reqCtx.Done():
			log.Debug().Msg("Leaderboard stream detached")
			return

		case msg, open := <-ch:
			if !open {
				return
			}
			var ev model.SessionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil || ev.Type != model.EventSessionSubmitted {
				continue
			}
			h.sendSnapshot(c, reqCtx, examID)

		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			c.Writer.Flush()
		}
	}
}

func (h *LeaderboardHandler) sendSnapshot(c *gin.Context, ctx context.Context, examID uuid.UUID) {
	fetchCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	entries, err := h.boards.Get(fetchCtx, examID)
	if err != nil {
		h.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Leaderboard snapshot failed")
		return
	}
	c.SSEvent("leaderboard", gin.H{"exam_id": examID, "entries": entries})
	c.Writer.Flush()
}
