// Package session drives one learner's attempt at one exam: eligibility,
// answer editing with local drafts, the countdown and submission.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/funmath/funmath-backend/internal/client"
	"github.com/funmath/funmath-backend/internal/draft"
	"github.com/funmath/funmath-backend/internal/model"
	"github.com/funmath/funmath-backend/internal/window"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is the controller's lifecycle position.
type State int

const (
	StateLoading State = iota
	StateIneligible
	StateActive
	StateSubmitting
	StateSubmitted
	StateFailed
)

func (s State) String() string {
	return [...]string{"loading", "ineligible", "active", "submitting", "submitted", "failed"}[s]
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateIneligible || s == StateSubmitted || s == StateFailed
}

// Reason explains an ineligible session.
type Reason string

const (
	ReasonUpcoming    Reason = "upcoming"
	ReasonClosed      Reason = "closed"
	ReasonNotApproved Reason = "not_approved"
)

// API is the server surface the controller needs. *client.Client satisfies it.
type API interface {
	GetExam(ctx context.Context, examID uuid.UUID) (*model.LearnerExam, error)
	StartSession(ctx context.Context, examID uuid.UUID) (*model.ExamSession, error)
	GetProgress(ctx context.Context, examID uuid.UUID) (model.Answers, error)
	SaveProgress(ctx context.Context, examID uuid.UUID, answers model.Answers) error
	Submit(ctx context.Context, examID uuid.UUID, answers model.Answers, reason model.SubmitReason) (*model.SubmitResult, error)
	GetResult(ctx context.Context, examID uuid.UUID) (*model.SubmitResult, error)
}

var _ API = (*client.Client)(nil)

// Options tune the controller. Callbacks run on the caller's goroutine for
// the triggering call and must not call back into the controller.
type Options struct {
	Debounce  time.Duration
	OnState   func(State)
	OnWarning func(string)
	OnTick    func(remaining time.Duration)
}

// Controller owns the answer sheet and the draft key of one exam.
type Controller struct {
	examID uuid.UUID
	userID int64
	api    API
	drafts draft.Store
	clock  Clock
	opts   Options
	log    zerolog.Logger
	saver  *saver

	// submitting is the single-fire latch; set before any submit I/O.
	submitting atomic.Bool

	mu      sync.Mutex
	state   State
	reason  Reason
	exam    *model.ExamPayload
	offset  time.Duration
	answers model.Answers
	result  *model.SubmitResult
	failure *Failure
}

// New builds a controller in StateLoading.
func New(examID uuid.UUID, userID int64, api API, drafts draft.Store, clock Clock, opts Options, log zerolog.Logger) *Controller {
	c := &Controller{
		examID:  examID,
		userID:  userID,
		api:     api,
		drafts:  drafts,
		clock:   clock,
		opts:    opts,
		answers: model.Answers{},
		log: log.With().
			Str("component", "session_controller").
			Str("exam_id", examID.String()).
			Int64("user_id", userID).
			Logger(),
	}
	c.saver = newSaver(opts.Debounce, c.writeDraft)
	return c
}

// ─── Accessors ──────────────────────────────────────────────────────────────

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reason is set when State is StateIneligible.
func (c *Controller) Reason() Reason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

func (c *Controller) Exam() *model.ExamPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exam
}

// Answers returns a copy of the in-memory sheet.
func (c *Controller) Answers() model.Answers {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answers.Clone()
}

func (c *Controller) Result() *model.SubmitResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Failure is set when State is StateFailed.
func (c *Controller) Failure() *Failure {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure
}

// Now is the local clock corrected by the offset observed at load.
func (c *Controller) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowLocked()
}

func (c *Controller) nowLocked() time.Time {
	return c.clock.Now().Add(c.offset)
}

// Remaining is the countdown value, in whole seconds.
func (c *Controller) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exam == nil {
		return 0
	}
	return window.Remaining(c.nowLocked(), c.exam.EndTime)
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.log.Debug().Str("state", s.String()).Msg("Session state changed")
	if c.opts.OnState != nil {
		c.opts.OnState(s)
	}
}

func (c *Controller) warn(msg string) {
	if c.opts.OnWarning != nil {
		c.opts.OnWarning(msg)
	}
}

// ─── Load ───────────────────────────────────────────────────────────────────

// Load fetches the exam, decides eligibility and, when open, resumes the
// session with local and server answers merged. A transient failure leaves
// the controller in StateLoading so Load may be called again.
func (c *Controller) Load(ctx context.Context) error {
	le, err := c.api.GetExam(ctx, c.examID)
	if err != nil {
		return c.loadFailed(err)
	}

	c.mu.Lock()
	c.exam = &le.Exam
	if !le.ServerTime.IsZero() {
		c.offset = le.ServerTime.Sub(c.clock.Now())
	}
	status := window.Classify(c.nowLocked(), le.Exam.StartTime, le.Exam.EndTime)
	c.mu.Unlock()

	switch status {
	case window.Upcoming:
		return c.ineligible(ReasonUpcoming)
	case window.Closed:
		return c.ineligible(ReasonClosed)
	}

	sess, err := c.api.StartSession(ctx, c.examID)
	if err != nil {
		return c.loadFailed(err)
	}
	if sess.Submitted {
		return c.resumeSubmitted(ctx)
	}

	local, err := c.drafts.Load(ctx, c.examID)
	if err != nil {
		c.log.Warn().Err(err).Msg("Draft load failed")
		c.warn("Saved answers on this device could not be read.")
		local = model.Answers{}
	}

	server, err := c.api.GetProgress(ctx, c.examID)
	if err != nil {
		c.log.Warn().Err(err).Msg("Progress fetch failed; using session answers")
		server = sess.Answers
	}

	merged := c.mergeAnswers(local, server)

	c.mu.Lock()
	c.answers = merged
	offset := c.offset
	c.mu.Unlock()
	c.setState(StateActive)
	c.log.Info().Int("answers", len(merged)).Dur("clock_offset", offset).Msg("Session active")
	return nil
}

// mergeAnswers overlays server progress on the local draft, dropping ids
// that are not questions of this exam.
func (c *Controller) mergeAnswers(local, server model.Answers) model.Answers {
	known := c.questionIDs()
	merged := make(model.Answers, len(local)+len(server))
	for _, src := range []model.Answers{local, server} {
		for qid, v := range src {
			if known[qid] {
				merged[qid] = v
			}
		}
	}
	return merged
}

func (c *Controller) questionIDs() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make(map[string]bool, len(c.exam.Questions))
	for _, q := range c.exam.Questions {
		ids[q.ID.String()] = true
	}
	return ids
}

func (c *Controller) ineligible(r Reason) error {
	c.mu.Lock()
	c.reason = r
	c.mu.Unlock()
	c.setState(StateIneligible)
	return nil
}

func (c *Controller) loadFailed(err error) error {
	f := newFailure(err)
	if f.Kind == client.KindIneligible {
		switch f.Code {
		case "EXAM_UPCOMING":
			return c.ineligible(ReasonUpcoming)
		case "EXAM_CLOSED":
			return c.ineligible(ReasonClosed)
		default:
			return c.ineligible(ReasonNotApproved)
		}
	}
	if f.Recoverable() {
		return f
	}
	return c.fail(f)
}

func (c *Controller) fail(f *Failure) error {
	c.mu.Lock()
	c.failure = f
	c.mu.Unlock()
	c.log.Error().Err(f.Err).Str("code", f.Code).Msg("Session failed")
	c.setState(StateFailed)
	return f
}

func (c *Controller) resumeSubmitted(ctx context.Context) error {
	c.submitting.Store(true)
	res, err := c.api.GetResult(ctx, c.examID)
	if err != nil {
		c.submitting.Store(false)
		return c.loadFailed(err)
	}
	c.finish(ctx, res)
	return nil
}

// ─── Answering ──────────────────────────────────────────────────────────────

// SetAnswer records an answer and schedules a draft save.
func (c *Controller) SetAnswer(questionID, value string) error {
	if c.submitting.Load() {
		return ErrSubmitStarted
	}

	c.mu.Lock()
	if c.submitting.Load() {
		c.mu.Unlock()
		return ErrSubmitStarted
	}
	if c.state != StateActive {
		c.mu.Unlock()
		return ErrNotActive
	}
	if window.Expired(c.nowLocked(), c.exam.EndTime) {
		c.mu.Unlock()
		return ErrWindowClosed
	}
	known := false
	for _, q := range c.exam.Questions {
		if q.ID.String() == questionID {
			known = true
			break
		}
	}
	if !known {
		c.mu.Unlock()
		return ErrUnknownQuestion
	}
	c.answers[questionID] = value
	snapshot := c.answers.Clone()
	c.mu.Unlock()

	c.saver.schedule(snapshot)
	return nil
}

func (c *Controller) writeDraft(answers model.Answers) {
	// Detached from any view context so an in-flight save completes on teardown.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.drafts.Save(ctx, c.examID, answers); err != nil {
		c.log.Warn().Err(err).Msg("Draft save failed")
		c.warn("Answers could not be saved on this device.")
	}
}

// SaveProgress writes the draft synchronously and pushes the sheet to the
// server's saved progress.
func (c *Controller) SaveProgress(ctx context.Context) error {
	if c.submitting.Load() {
		return ErrSubmitStarted
	}
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return ErrNotActive
	}
	snapshot := c.answers.Clone()
	c.mu.Unlock()

	c.saver.schedule(snapshot)
	c.saver.flush()

	if err := c.api.SaveProgress(ctx, c.examID, snapshot); err != nil {
		return newFailure(err)
	}
	return nil
}

// Flush waits for queued draft saves to land.
func (c *Controller) Flush() {
	c.saver.flush()
}

// ─── Submission ─────────────────────────────────────────────────────────────

// Submit grades the sheet. On a Submitted session it returns the stored
// result without contacting the server.
func (c *Controller) Submit(ctx context.Context) (*model.SubmitResult, error) {
	return c.submit(ctx, model.SubmitReasonManual)
}

func (c *Controller) submit(ctx context.Context, reason model.SubmitReason) (*model.SubmitResult, error) {
	c.mu.Lock()
	switch c.state {
	case StateSubmitted:
		res := c.result
		c.mu.Unlock()
		return res, nil
	case StateActive:
	default:
		c.mu.Unlock()
		return nil, ErrNotActive
	}
	c.mu.Unlock()

	if !c.submitting.CompareAndSwap(false, true) {
		return nil, ErrSubmitStarted
	}

	// The sheet and the state change share one critical section so no edit
	// lands between them.
	c.mu.Lock()
	sheet := c.sheetLocked()
	c.state = StateSubmitting
	c.mu.Unlock()
	c.log.Debug().Str("state", StateSubmitting.String()).Msg("Session state changed")
	if c.opts.OnState != nil {
		c.opts.OnState(StateSubmitting)
	}
	c.log.Info().Str("reason", string(reason)).Int("questions", len(sheet)).Msg("Submitting")

	res, err := c.api.Submit(ctx, c.examID, sheet, reason)
	if err == nil {
		c.finish(ctx, res)
		return res, nil
	}

	f := newFailure(err)
	if f.Recoverable() {
		c.log.Warn().Err(err).Msg("Submit failed; answers kept for retry")
		c.mu.Lock()
		c.state = StateActive
		c.mu.Unlock()
		c.submitting.Store(false)
		if c.opts.OnState != nil {
			c.opts.OnState(StateActive)
		}
		return nil, f
	}

	// Graded elsewhere (another device or the deadline sweeper).
	if stored, rerr := c.api.GetResult(ctx, c.examID); rerr == nil {
		c.finish(ctx, stored)
		return stored, nil
	}
	return nil, c.fail(f)
}

// sheetLocked lists every question, unanswered ones as "".
func (c *Controller) sheetLocked() model.Answers {
	sheet := make(model.Answers, len(c.exam.Questions))
	for _, q := range c.exam.Questions {
		sheet[q.ID.String()] = c.answers[q.ID.String()]
	}
	return sheet
}

func (c *Controller) finish(ctx context.Context, res *model.SubmitResult) {
	c.saver.flush()
	if err := c.drafts.Clear(context.WithoutCancel(ctx), c.examID); err != nil {
		c.log.Warn().Err(err).Msg("Draft clear failed")
	}
	c.mu.Lock()
	c.result = res
	c.mu.Unlock()
	c.setState(StateSubmitted)
	c.log.Info().Float64("score", res.Score).Msg("Submitted")
}

// ─── Countdown ──────────────────────────────────────────────────────────────

// Run drives the countdown once per second until the session reaches a
// terminal state or ctx ends. Cancelling ctx stops the timer, so no forced
// submit happens after the view is gone.
func (c *Controller) Run(ctx context.Context) error {
	ticker := c.clock.NewTicker(time.Second)
	defer ticker.Stop()

	if c.Tick(ctx) {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			if c.Tick(ctx) {
				return nil
			}
		}
	}
}

// Tick evaluates the countdown once. When time is up it forces submission
// before reporting the zero frame. It returns true once the session is
// terminal.
func (c *Controller) Tick(ctx context.Context) bool {
	c.mu.Lock()
	state := c.state
	if state.Terminal() || c.exam == nil {
		c.mu.Unlock()
		return state.Terminal()
	}
	now := c.nowLocked()
	end := c.exam.EndTime
	c.mu.Unlock()

	if state == StateActive && window.Expired(now, end) {
		if _, err := c.submit(ctx, model.SubmitReasonTimeout); err != nil {
			c.log.Warn().Err(err).Msg("Forced submit failed")
		}
	}
	if c.opts.OnTick != nil {
		c.opts.OnTick(window.Remaining(now, end))
	}
	return c.State().Terminal()
}
