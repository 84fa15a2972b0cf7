package attempt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/mindengage-assess/internal/answers"
	"github.com/mind-engage/mindengage-assess/internal/question"
	"github.com/mind-engage/mindengage-assess/internal/scoring"
)

const (
	DefaultAutosaveInterval = 30 * time.Second
	DefaultAutoAdvanceDelay = 400 * time.Millisecond
	tickInterval            = time.Second
	navigationSaveTimeout   = 10 * time.Second
)

// Deps are the collaborators a session talks to.
type Deps struct {
	Progress ProgressStore
	Results  ResultStore
	Scorer   Scorer
	Logger   *zap.Logger
}

type SessionOption func(*sessionOpts)

type sessionOpts struct {
	autosaveInterval time.Duration
	autoAdvanceDelay time.Duration
	tickInterval     time.Duration
	now              func() time.Time
	saved            *Progress
}

func WithAutosaveInterval(d time.Duration) SessionOption {
	return func(o *sessionOpts) { o.autosaveInterval = d }
}

// WithAutoAdvanceDelay sets the pause before moving past an answered choice
// question. Zero or less advances immediately.
func WithAutoAdvanceDelay(d time.Duration) SessionOption {
	return func(o *sessionOpts) { o.autoAdvanceDelay = d }
}

func WithTickInterval(d time.Duration) SessionOption {
	return func(o *sessionOpts) { o.tickInterval = d }
}

func WithClock(now func() time.Time) SessionOption {
	return func(o *sessionOpts) { o.now = now }
}

// WithProgress resumes from a persisted progress record.
func WithProgress(p Progress) SessionOption {
	return func(o *sessionOpts) { o.saved = &p }
}

// Session is one respondent's attempt at one assessment. Every mutation is
// serialized on mu; persistence calls happen outside it.
type Session struct {
	ID           string
	AssessmentID string
	RespondentID string

	cfg       AssessmentConfig
	questions []question.Question // display order
	position  map[string]int
	deps      Deps
	opts      sessionOpts
	log       *zap.Logger

	mu           sync.Mutex
	state        State
	answers      *answers.Store
	current      int
	remaining    *int
	startedAt    time.Time
	expired      bool
	advance      *time.Timer
	pending      *Result
	result       *Result
	closed       chan struct{}
	closeOnce    sync.Once
	flushing     chan struct{} // non-nil while SaveAndExit is writing
	submitSerial sync.Mutex
	saveMu       sync.Mutex // held for the duration of a progress write
	navSaves     sync.WaitGroup
}

func NewSession(cfg AssessmentConfig, respondentID string, qs []question.Question, deps Deps, opts ...SessionOption) (*Session, error) {
	if len(qs) == 0 {
		return nil, fmt.Errorf("assessment %s has no questions", cfg.ID)
	}
	if err := question.CheckOrders(qs); err != nil {
		return nil, fmt.Errorf("assessment %s: %w", cfg.ID, err)
	}
	if deps.Progress == nil || deps.Results == nil || deps.Scorer == nil {
		return nil, errors.New("session requires progress, result and scorer collaborators")
	}
	o := sessionOpts{
		autosaveInterval: DefaultAutosaveInterval,
		autoAdvanceDelay: DefaultAutoAdvanceDelay,
		tickInterval:     tickInterval,
		now:              time.Now,
	}
	for _, fn := range opts {
		fn(&o)
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	sorted := question.SortByOrder(qs)
	s := &Session{
		ID:           uuid.NewString(),
		AssessmentID: cfg.ID,
		RespondentID: respondentID,
		cfg:          cfg,
		questions:    sorted,
		position:     make(map[string]int, len(sorted)),
		deps:         deps,
		opts:         o,
		state:        StateActive,
		answers:      answers.New(),
		startedAt:    o.now(),
		closed:       make(chan struct{}),
	}
	for i, q := range sorted {
		s.position[q.ID] = i
	}
	s.log = log.With(
		zap.String("assessment_id", cfg.ID),
		zap.String("respondent_id", respondentID),
		zap.String("session_id", s.ID),
	)

	if cfg.TimeLimitMinutes != nil && *cfg.TimeLimitMinutes > 0 {
		secs := *cfg.TimeLimitMinutes * 60
		s.remaining = &secs
	}
	if p := o.saved; p != nil {
		for id, v := range p.Answers {
			if _, ok := s.position[id]; ok {
				s.answers.Set(id, v)
			}
		}
		s.current = clamp(p.LastQuestionIndex, 0, len(sorted)-1)
		if s.remaining != nil && p.TimeRemainingSeconds != nil {
			secs := clamp(*p.TimeRemainingSeconds, 0, *s.remaining)
			s.remaining = &secs
		}
	}
	return s, nil
}

// Answer records value for questionID. An empty value clears the answer.
// Answering the current choice question advances to the next one after the
// auto-advance delay, unless it is the last question.
func (s *Session) Answer(questionID, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return ErrNotActive
	}
	pos, ok := s.position[questionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	q := s.questions[pos]
	if strings.TrimSpace(value) != "" {
		if err := q.CheckAnswer(value); err != nil {
			return err
		}
	}
	s.answers.Set(questionID, value)

	autoAdvance := q.Type == question.MultipleChoice || q.Type == question.TrueFalse
	if autoAdvance && s.answers.IsAnswered(questionID) && pos == s.current && pos < len(s.questions)-1 {
		s.scheduleAdvanceLocked(pos)
	}
	return nil
}

func (s *Session) scheduleAdvanceLocked(from int) {
	s.stopAdvanceLocked()
	if s.opts.autoAdvanceDelay <= 0 {
		s.current = from + 1
		return
	}
	s.advance = time.AfterFunc(s.opts.autoAdvanceDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		// The respondent may have navigated away in the meantime.
		if s.state == StateActive && s.current == from {
			s.current = from + 1
		}
	})
}

func (s *Session) stopAdvanceLocked() {
	if s.advance != nil {
		s.advance.Stop()
		s.advance = nil
	}
}

// Next moves forward one question. On the last question it jumps to the
// first unanswered required question instead, if any remain.
func (s *Session) Next() (int, error) {
	return s.navigate(s.nextLocked)
}

func (s *Session) nextLocked() (int, error) {
	if s.state != StateActive {
		return s.current, ErrNotActive
	}
	s.stopAdvanceLocked()
	last := len(s.questions) - 1
	if s.current < last {
		s.current++
		return s.current, nil
	}
	if missing := s.answers.Missing(s.questions); len(missing) > 0 {
		s.current = s.position[missing[0]]
	}
	return s.current, nil
}

func (s *Session) Previous() (int, error) {
	return s.navigate(s.previousLocked)
}

func (s *Session) previousLocked() (int, error) {
	if s.state != StateActive {
		return s.current, ErrNotActive
	}
	s.stopAdvanceLocked()
	if s.current > 0 {
		s.current--
	}
	return s.current, nil
}

// GoTo jumps to the question at index in display order.
func (s *Session) GoTo(index int) (int, error) {
	return s.navigate(func() (int, error) {
		if s.state != StateActive {
			return s.current, ErrNotActive
		}
		if index < 0 || index >= len(s.questions) {
			return s.current, fmt.Errorf("%w: %d", ErrQuestionIndex, index)
		}
		s.stopAdvanceLocked()
		s.current = index
		return s.current, nil
	})
}

// navigate runs move under mu, then saves progress in the background.
func (s *Session) navigate(move func() (int, error)) (int, error) {
	s.mu.Lock()
	idx, err := move()
	if err != nil {
		s.mu.Unlock()
		return idx, err
	}
	s.navSaves.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.navSaves.Done()
		ctx, cancel := context.WithTimeout(context.Background(), navigationSaveTimeout)
		defer cancel()
		// Waits out an in-flight save; the snapshot is taken after, so the
		// last writer carries the latest position.
		s.saveMu.Lock()
		defer s.saveMu.Unlock()
		s.saveLocked(ctx)
	}()
	return idx, nil
}

// Tick counts down one second. It reports true exactly once, on the tick
// that reaches zero.
func (s *Session) Tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive || s.remaining == nil || s.expired {
		return false
	}
	if *s.remaining > 0 {
		*s.remaining--
	}
	if *s.remaining == 0 {
		s.expired = true
		return true
	}
	return false
}

// Autosave pushes the current progress if the session is active and no
// save is in flight. Failures are logged and swallowed.
func (s *Session) Autosave(ctx context.Context) {
	if !s.saveMu.TryLock() {
		return
	}
	defer s.saveMu.Unlock()
	s.saveLocked(ctx)
}

// saveLocked writes the current progress. The caller holds saveMu.
func (s *Session) saveLocked(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}
	p := s.progressLocked()
	s.mu.Unlock()

	if err := s.deps.Progress.SaveProgress(ctx, s.AssessmentID, s.RespondentID, p); err != nil {
		s.log.Warn("autosave failed", zap.Error(err))
		return
	}
	s.log.Debug("autosaved", zap.Int("answers", len(p.Answers)), zap.Int("index", p.LastQuestionIndex))
}

// SaveAndExit flushes progress and suspends the session. On failure the
// session stays active so the respondent can retry.
func (s *Session) SaveAndExit(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return ErrNotActive
	}
	s.state = StateSuspended
	s.stopAdvanceLocked()
	p := s.progressLocked()
	flushed := make(chan struct{})
	s.flushing = flushed
	s.mu.Unlock()

	s.saveMu.Lock()
	err := s.deps.Progress.SaveProgress(ctx, s.AssessmentID, s.RespondentID, p)
	s.saveMu.Unlock()

	s.mu.Lock()
	s.flushing = nil
	if err != nil {
		s.state = StateActive
	}
	s.mu.Unlock()
	close(flushed)
	if err != nil {
		s.log.Error("save and exit failed", zap.Error(err))
		return fmt.Errorf("save progress: %w", err)
	}
	s.log.Info("saved and exited", zap.Int("answers", len(p.Answers)))
	s.close()
	return nil
}

func (s *Session) progressLocked() Progress {
	p := Progress{
		Answers:           s.answers.Snapshot(),
		LastQuestionIndex: s.current,
		SavedAt:           s.opts.now(),
	}
	if s.remaining != nil {
		secs := *s.remaining
		p.TimeRemainingSeconds = &secs
	}
	return p
}

// Submit validates, scores and persists the attempt. A second call after
// success returns the same result. After ErrPersistResult the next call
// retries persistence only.
func (s *Session) Submit(ctx context.Context) (Result, error) {
	return s.submit(ctx, false)
}

func (s *Session) submit(ctx context.Context, forced bool) (Result, error) {
	s.submitSerial.Lock()
	defer s.submitSerial.Unlock()

	s.mu.Lock()
	switch {
	case s.state == StateSubmitted:
		r := *s.result
		s.mu.Unlock()
		return r, nil
	case s.pending != nil:
		r := *s.pending
		s.mu.Unlock()
		return s.persist(ctx, r)
	case s.state != StateActive:
		s.mu.Unlock()
		return Result{}, ErrNotActive
	}
	s.state = StateSubmitting
	s.stopAdvanceLocked()
	snapshot := s.answers.Snapshot()
	missing := s.answers.Missing(s.questions)
	if !forced {
		if v := Validate(s.questions, s.answers); !v.OK {
			s.state = StateActive
			s.mu.Unlock()
			s.log.Info("submission blocked", zap.Int("missing_required", v.MissingCount))
			return Result{}, v.Err()
		}
	}
	s.mu.Unlock()

	payload, err := s.deps.Scorer.Score(scoring.Input{
		Type:             s.cfg.Type,
		Questions:        s.questions,
		Answers:          snapshot,
		PassingThreshold: s.cfg.PassingThreshold,
	})
	if err != nil {
		s.mu.Lock()
		s.state = StateActive
		s.mu.Unlock()
		s.log.Error("scoring failed", zap.Error(err))
		return Result{}, fmt.Errorf("score attempt: %w", err)
	}

	r := Result{
		ID:           uuid.NewString(),
		AssessmentID: s.AssessmentID,
		RespondentID: s.RespondentID,
		SessionID:    s.ID,
		Payload:      payload,
		Answers:      snapshot,
		Forced:       forced,
		CompletedAt:  s.opts.now(),
	}
	if forced {
		r.MissingRequired = missing
	}
	s.mu.Lock()
	s.pending = &r
	s.mu.Unlock()
	return s.persist(ctx, r)
}

func (s *Session) persist(ctx context.Context, r Result) (Result, error) {
	id, err := s.deps.Results.PersistResult(ctx, r)
	if err != nil {
		s.log.Error("persist result failed", zap.String("result_id", r.ID), zap.Error(err))
		return Result{}, fmt.Errorf("%w: %v", ErrPersistResult, err)
	}
	if id != "" {
		r.ID = id
	}

	s.mu.Lock()
	s.result = &r
	s.pending = nil
	s.state = StateSubmitted
	s.mu.Unlock()
	s.close()
	s.log.Info("submitted", zap.String("result_id", r.ID), zap.Bool("forced", r.Forced))

	if c, ok := s.deps.Progress.(ProgressClearer); ok {
		// Waits out an in-flight autosave so it cannot resurrect the record.
		s.saveMu.Lock()
		err := c.ClearProgress(ctx, s.AssessmentID, s.RespondentID)
		s.saveMu.Unlock()
		if err != nil {
			s.log.Warn("clear progress failed", zap.Error(err))
		}
	}
	return r, nil
}

// Run drives autosave and the countdown until ctx ends or the session
// leaves play. Timer expiry forces a submission without required-question
// validation.
func (s *Session) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t := time.NewTicker(s.opts.autosaveInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-s.closed:
				return nil
			case <-t.C:
				s.Autosave(ctx)
			}
		}
	})
	if s.timed() {
		g.Go(func() error {
			if s.resumedExpired() {
				s.forceSubmit(ctx)
			}
			t := time.NewTicker(s.opts.tickInterval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-s.closed:
					return nil
				case <-t.C:
					if s.Tick() {
						s.forceSubmit(ctx)
					}
				}
			}
		})
	}
	return g.Wait()
}

func (s *Session) forceSubmit(ctx context.Context) {
	s.log.Info("time limit reached, forcing submission")
	if _, err := s.submit(ctx, true); err != nil {
		s.log.Error("forced submission failed", zap.Error(err))
	}
}

func (s *Session) timed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining != nil
}

// resumedExpired marks a session restored with no time left as expired.
func (s *Session) resumedExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive || s.remaining == nil || *s.remaining > 0 || s.expired {
		return false
	}
	s.expired = true
	return true
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// Done is closed once the session is submitted or suspended.
func (s *Session) Done() <-chan struct{} { return s.closed }

// Settle waits for progress writes started by navigation.
func (s *Session) Settle() { s.navSaves.Wait() }

// awaitExit blocks while a SaveAndExit flush is in flight.
func (s *Session) awaitExit(ctx context.Context) error {
	s.mu.Lock()
	ch := s.flushing
	s.mu.Unlock()
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// inPlay reports whether the session can still be answered or is holding a
// result that awaits persistence.
func (s *Session) inPlay() bool {
	st := s.State()
	return st == StateActive || st == StateSubmitting
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the persisted result, if any.
func (s *Session) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

type QuestionView struct {
	question.Question
	Position     int               `json:"position"`
	Choices      []question.Option `json:"choices,omitempty"`
	Unanswerable bool              `json:"unanswerable,omitempty"`
	Answer       string            `json:"answer,omitempty"`
}

// View is a read-only snapshot for presentation.
type View struct {
	SessionID            string         `json:"session_id"`
	AssessmentID         string         `json:"assessment_id"`
	Title                string         `json:"title"`
	AssessmentType       string         `json:"assessment_type"`
	State                State          `json:"state"`
	CurrentQuestionIndex int            `json:"current_question_index"`
	TimeRemainingSeconds *int           `json:"time_remaining_seconds"`
	StartedAt            time.Time      `json:"started_at"`
	Expired              bool           `json:"expired,omitempty"`
	AllAnswered          bool           `json:"all_answered"`
	MissingRequired      int            `json:"missing_required"`
	PendingResult        bool           `json:"pending_result,omitempty"`
	Questions            []QuestionView `json:"questions"`
	Result               *Result        `json:"result,omitempty"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		SessionID:            s.ID,
		AssessmentID:         s.AssessmentID,
		Title:                s.cfg.Title,
		AssessmentType:       string(s.cfg.Type),
		State:                s.state,
		CurrentQuestionIndex: s.current,
		StartedAt:            s.startedAt,
		Expired:              s.expired,
		AllAnswered:          s.answers.AllAnswered(s.questions),
		MissingRequired:      len(s.answers.Missing(s.questions)),
		PendingResult:        s.pending != nil,
		Questions:            make([]QuestionView, 0, len(s.questions)),
	}
	if s.remaining != nil {
		secs := *s.remaining
		v.TimeRemainingSeconds = &secs
	}
	if s.result != nil {
		r := *s.result
		v.Result = &r
	}
	for i, q := range s.questions {
		qv := QuestionView{Question: q, Position: i}
		qv.Answer, _ = s.answers.Get(q.ID)
		if q.Type == question.MultipleChoice || q.Type == question.TrueFalse {
			opts, err := q.Options()
			qv.Choices = opts
			qv.Unanswerable = err != nil
		}
		v.Questions = append(v.Questions, qv)
	}
	return v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
