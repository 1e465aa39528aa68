// Package client is the learner-side HTTP client for the exam API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/funmath/funmath-backend/internal/config"
	"github.com/funmath/funmath-backend/internal/model"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// envelope mirrors the server's response wrapper.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// LoginResult is the login response body.
type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

// Client talks to the exam API. Reads retry on transient failure; submit
// uses its own, tighter timeout and retry budget.
type Client struct {
	api    *resty.Client
	submit *resty.Client
	log    zerolog.Logger
}

// New builds a Client from the learner configuration.
func New(cfg *config.ClientConfig, log zerolog.Logger) *Client {
	c := &Client{
		api:    newResty(cfg.APIBaseURL, 15*time.Second, cfg.FetchRetries),
		submit: newResty(cfg.APIBaseURL, cfg.SubmitTimeout, cfg.SubmitRetries),
		log:    log.With().Str("component", "api_client").Logger(),
	}
	if cfg.APIToken != "" {
		c.SetToken(cfg.APIToken)
	}
	return c
}

func newResty(baseURL string, timeout time.Duration, retries int) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(300 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("Accept", "application/json").
		AddRetryCondition(shouldRetry)
}

func shouldRetry(r *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	if r == nil {
		return false
	}
	status := r.StatusCode()
	return status >= 500 || status == http.StatusTooManyRequests
}

// SetToken sets the bearer token sent on every request.
func (c *Client) SetToken(token string) {
	c.api.SetAuthToken(token)
	c.submit.SetAuthToken(token)
}

// Login exchanges credentials for a token and installs it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var out LoginResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, c.api, http.MethodPost, "/auth/login", body, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var out struct {
		User *model.User `json:"user"`
	}
	if err := c.do(ctx, c.api, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// GetExam fetches the learner payload and the server clock.
func (c *Client) GetExam(ctx context.Context, examID uuid.UUID) (*model.LearnerExam, error) {
	var out model.LearnerExam
	if err := c.do(ctx, c.api, http.MethodGet, examPath(examID, ""), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartSession opens or resumes the caller's session.
func (c *Client) StartSession(ctx context.Context, examID uuid.UUID) (*model.ExamSession, error) {
	var out struct {
		Session *model.ExamSession `json:"session"`
	}
	if err := c.do(ctx, c.api, http.MethodPost, examPath(examID, "/start"), nil, &out); err != nil {
		return nil, err
	}
	return out.Session, nil
}

// GetProgress returns the server's saved answers.
func (c *Client) GetProgress(ctx context.Context, examID uuid.UUID) (model.Answers, error) {
	var out struct {
		Answers model.Answers `json:"answers"`
	}
	if err := c.do(ctx, c.api, http.MethodGet, examPath(examID, "/progress"), nil, &out); err != nil {
		return nil, err
	}
	if out.Answers == nil {
		out.Answers = model.Answers{}
	}
	return out.Answers, nil
}

// SaveProgress merges answers into the server's saved progress.
func (c *Client) SaveProgress(ctx context.Context, examID uuid.UUID, answers model.Answers) error {
	body := model.SaveProgressRequest{Answers: answers}
	return c.do(ctx, c.api, http.MethodPut, examPath(examID, "/progress"), body, nil)
}

// Submit sends the final sheet. The server is idempotent per session, so
// retrying a submit whose response was lost is safe.
func (c *Client) Submit(ctx context.Context, examID uuid.UUID, answers model.Answers, reason model.SubmitReason) (*model.SubmitResult, error) {
	if answers == nil {
		answers = model.Answers{}
	}
	path := examPath(examID, "/submit")
	if reason == model.SubmitReasonTimeout {
		path += "?reason=timeout"
	}
	var out model.SubmitResult
	if err := c.do(ctx, c.submit, http.MethodPost, path, model.SubmitRequest{Answers: answers}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetResult fetches the stored result of a submitted session.
func (c *Client) GetResult(ctx context.Context, examID uuid.UUID) (*model.SubmitResult, error) {
	var out model.SubmitResult
	if err := c.do(ctx, c.api, http.MethodGet, examPath(examID, "/result"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Leaderboard fetches the exam's ranked results.
func (c *Client) Leaderboard(ctx context.Context, examID uuid.UUID) ([]model.LeaderboardEntry, error) {
	var out struct {
		Entries []model.LeaderboardEntry `json:"entries"`
	}
	if err := c.do(ctx, c.api, http.MethodGet, "/exams/"+examID.String()+"/leaderboard", nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

func examPath(examID uuid.UUID, suffix string) string {
	return "/learner/exams/" + examID.String() + suffix
}

func (c *Client) do(ctx context.Context, rc *resty.Client, method, path string, body, out any) error {
	req := rc.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		kind := KindTransient
		if ctx.Err() != nil {
			kind = KindFatal
		}
		c.log.Debug().Err(err).Str("method", method).Str("path", path).Msg("Request failed")
		return &Error{Kind: kind, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		status := resp.StatusCode()
		return &Error{
			Kind:   classify(status, ""),
			Status: status,
			Err:    fmt.Errorf("decode %s %s: %w", method, path, err),
		}
	}

	if resp.IsError() || env.Error != nil {
		e := &Error{Status: resp.StatusCode()}
		if env.Error != nil {
			e.Code, e.Message = env.Error.Code, env.Error.Message
		}
		e.Kind = classify(e.Status, e.Code)
		c.log.Debug().Int("status", e.Status).Str("code", e.Code).Str("path", path).Msg("API error")
		return e
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &Error{Kind: KindFatal, Status: resp.StatusCode(), Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}
