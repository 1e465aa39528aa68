package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/funmath/funmath-backend/internal/config"
	"github.com/funmath/funmath-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, status int, data any, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{"data": data, "metadata": map[string]string{"request_id": "t"}}
	if code != "" {
		body["error"] = map[string]string{"code": code, "message": code}
	}
	_ = json.NewEncoder(w).Encode(body)
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := &config.ClientConfig{
		APIBaseURL:    srv.URL + "/api/v1",
		SubmitTimeout: 2 * time.Second,
		SubmitRetries: 1,
		FetchRetries:  2,
	}
	return New(cfg, zerolog.Nop())
}

func TestLoginInstallsToken(t *testing.T) {
	examID := uuid.New()
	var gotAuth atomic.Value
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			writeEnvelope(w, http.StatusOK, map[string]any{"token": "tok-1", "user": map[string]any{"id": 7}}, "")
		case "/api/v1/learner/exams/" + examID.String():
			gotAuth.Store(r.Header.Get("Authorization"))
			writeEnvelope(w, http.StatusOK, map[string]any{
				"exam":        map[string]any{"exam_id": examID, "title": "Fractions"},
				"server_time": time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
				"window":      "OPEN",
			}, "")
		default:
			writeEnvelope(w, http.StatusNotFound, nil, "NOT_FOUND")
		}
	})

	res, err := c.Login(context.Background(), "a@b.c", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", res.Token)
	assert.Equal(t, int64(7), res.User.ID)

	le, err := c.GetExam(context.Background(), examID)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", gotAuth.Load())
	assert.Equal(t, "Fractions", le.Exam.Title)
	assert.Equal(t, 9, le.ServerTime.Hour())
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		code   string
		kind   Kind
	}{
		{"upcoming", http.StatusForbidden, "EXAM_UPCOMING", KindIneligible},
		{"closed", http.StatusForbidden, "EXAM_CLOSED", KindIneligible},
		{"not approved", http.StatusForbidden, "EXAM_NOT_APPROVED", KindIneligible},
		{"bad token", http.StatusUnauthorized, "TOKEN_INVALID", KindFatal},
		{"submitted", http.StatusConflict, "SESSION_SUBMITTED", KindFatal},
		{"in progress", http.StatusConflict, "SUBMISSION_IN_PROGRESS", KindTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, tc.status, nil, tc.code)
			})
			_, err := c.StartSession(context.Background(), uuid.New())
			require.Error(t, err)
			assert.Equal(t, tc.kind, KindOf(err))
			assert.Equal(t, tc.code, CodeOf(err))
		})
	}
}

func TestServerErrorsAreRetried(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			writeEnvelope(w, http.StatusServiceUnavailable, nil, "SERVICE_UNAVAILABLE")
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]any{"answers": map[string]string{"q": "1"}}, "")
	})

	answers, err := c.GetProgress(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, model.Answers{"q": "1"}, answers)
	assert.Equal(t, int32(3), hits.Load())
}

func TestExhaustedRetriesAreTransient(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeEnvelope(w, http.StatusInternalServerError, nil, "INTERNAL_ERROR")
	})

	_, err := c.Submit(context.Background(), uuid.New(), model.Answers{}, model.SubmitReasonManual)
	require.Error(t, err)
	assert.Equal(t, KindTransient, KindOf(err))
	assert.Equal(t, int32(2), hits.Load(), "submit retries once")
}

func TestSubmitSendsSheetAndReason(t *testing.T) {
	examID := uuid.New()
	var gotQuery string
	var gotBody []byte
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotBody, _ = io.ReadAll(r.Body)
		writeEnvelope(w, http.StatusOK, map[string]any{"exam_id": examID, "score": 50, "correct": 1, "total": 2}, "")
	})

	res, err := c.Submit(context.Background(), examID, nil, model.SubmitReasonTimeout)
	require.NoError(t, err)
	assert.Equal(t, "reason=timeout", gotQuery)
	assert.JSONEq(t, `{"answers":{}}`, string(gotBody))
	assert.Equal(t, 50.0, res.Score)
	assert.Equal(t, 2, res.Total)
}

func TestUndecodableBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	_, err := c.Leaderboard(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, KindTransient, KindOf(err))
}
