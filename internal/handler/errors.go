package handler

import (
	"errors"
	"net/http"

	"github.com/funmath/funmath-backend/internal/response"
	"github.com/funmath/funmath-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var serviceCodes = []struct {
	err  error
	code response.ErrCode
}{
	{service.ErrInvalidCredentials, response.ErrInvalidCredentials},
	{service.ErrEmailTaken, response.ErrConflict},
	{service.ErrUserNotFound, response.ErrNotFound},
	{service.ErrExamNotFound, response.ErrNotFound},
	{service.ErrExamNotApproved, response.ErrExamNotApproved},
	{service.ErrExamUpcoming, response.ErrExamUpcoming},
	{service.ErrExamClosed, response.ErrExamClosed},
	{service.ErrExamLocked, response.ErrExamLocked},
	{service.ErrNotExamAuthor, response.ErrNotExamAuthor},
	{service.ErrInvalidStatusTransition, response.ErrInvalidStatusTransition},
	{service.ErrSessionNotStarted, response.ErrSessionNotStarted},
	{service.ErrSessionSubmitted, response.ErrSessionSubmitted},
	{service.ErrSubmissionInProgress, response.ErrSubmissionInProgress},
	{service.ErrResultNotAvailable, response.ErrResultNotAvailable},
}

// codeFor maps a service error onto the response catalogue.
func codeFor(err error) response.ErrCode {
	for _, m := range serviceCodes {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return response.ErrInternal
}

// failService writes the error envelope for err, logging anything unexpected.
func failService(c *gin.Context, log zerolog.Logger, err error) {
	code := codeFor(err)
	if code == response.ErrInternal {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Unhandled service error")
	}
	response.FailCode(c, code)
}

func parseID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
