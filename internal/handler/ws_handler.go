package handler

import (
	"net/http"
	"strings"

	"github.com/funmath/funmath-backend/internal/middleware"
	"github.com/funmath/funmath-backend/internal/model"
	"github.com/funmath/funmath-backend/internal/response"
	ws "github.com/funmath/funmath-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a learner's attempt over a WebSocket: autosave per
// answer and an in-band submit.
type WSHandler struct {
	sessions SessionManager
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions SessionManager, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// ExamStream godoc
// WS /ws/v1/learner/exams/:id/stream?token=
func (h *WSHandler) ExamStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID := claims.UserID

	// The session must exist (or be startable) before upgrading.
	if _, err := h.sessions.Start(c.Request.Context(), examID, userID); err != nil {
		failService(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int64("user_id", userID).
		Str("exam_id", examID.String()).
		Logger()
	wsLog.Info().Msg("Learner connected")

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var werr error
		switch msg.Action {
		case ws.ActionAutosave:
			werr = h.handleAutosave(c, conn, examID, userID, msg)
		case ws.ActionSubmit:
			werr = h.handleSubmit(c, conn, wsLog, examID, userID)
		case ws.ActionPing:
			werr = ws.WriteJSON(conn, ws.EventPong, nil)
		default:
			werr = ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
		}
		if werr != nil {
			wsLog.Debug().Err(werr).Msg("Write failed, closing")
			return
		}
	}
}

func (h *WSHandler) handleAutosave(c *gin.Context, conn *websocket.Conn, examID uuid.UUID, userID int64, msg ws.RequestPayload) error {
	if _, err := uuid.Parse(msg.QID); err != nil {
		return ws.WriteError(conn, string(response.ErrValidation), "q_id must be a question id")
	}

	err := h.sessions.SaveProgress(c.Request.Context(), examID, userID, model.Answers{msg.QID: msg.Answer})
	if err != nil {
		code := codeFor(err)
		if code == response.ErrInternal {
			h.log.Error().Err(err).Int64("user_id", userID).Msg("Autosave failed")
		}
		return ws.WriteError(conn, string(code), response.GetMessage(code))
	}
	return ws.WriteJSON(conn, ws.EventSuccess, ws.SavedData{Status: "saved", QID: msg.QID})
}

func (h *WSHandler) handleSubmit(c *gin.Context, conn *websocket.Conn, wsLog zerolog.Logger, examID uuid.UUID, userID int64) error {
	res, err := h.sessions.Submit(c.Request.Context(), examID, userID, nil, model.SubmitReasonManual)
	if err != nil {
		code := codeFor(err)
		if code == response.ErrInternal {
			wsLog.Error().Err(err).Msg("Submit failed")
		}
		return ws.WriteError(conn, string(code), response.GetMessage(code))
	}
	wsLog.Info().Float64("score", res.Score).Msg("Exam submitted over stream")
	return ws.WriteJSON(conn, ws.EventGraded, res)
}
