package attempt_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/mind-engage/mindengage-assess/internal/answers"
	"github.com/mind-engage/mindengage-assess/internal/attempt"
	"github.com/mind-engage/mindengage-assess/internal/question"
	"github.com/mind-engage/mindengage-assess/internal/scoring"
)

type harness struct {
	progress *fakeProgress
	results  *fakeResults
	scorer   *countingScorer
	sess     *attempt.Session
}

func newHarness(t *testing.T, cfg attempt.AssessmentConfig, qs []question.Question, opts ...attempt.SessionOption) *harness {
	t.Helper()
	h := &harness{progress: newFakeProgress(), results: newFakeResults(), scorer: newCountingScorer()}
	deps := attempt.Deps{Progress: h.progress, Results: h.results, Scorer: h.scorer, Logger: zaptest.NewLogger(t)}
	opts = append([]attempt.SessionOption{attempt.WithAutoAdvanceDelay(0)}, opts...)
	s, err := attempt.NewSession(cfg, "resp-1", qs, deps, opts...)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	h.sess = s
	t.Cleanup(s.Settle)
	return h
}

var passFail = attempt.AssessmentConfig{ID: "exam-1", Title: "Exam", Type: scoring.PassFail}

func TestValidatorAgreesWithAnswerStore(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for run := 0; run < 300; run++ {
		var qs []question.Question
		ans := answers.New()
		for i := 0; i < 1+rng.Intn(12); i++ {
			id := string(rune('a' + i))
			qs = append(qs, question.Question{ID: id, Order: i, IsRequired: rng.Intn(2) == 0})
			switch rng.Intn(3) {
			case 0:
				ans.Set(id, "x")
			case 1:
				ans.Set(id, " ")
			}
		}
		v := attempt.Validate(qs, ans)
		if v.OK != ans.AllRequiredAnswered(qs) {
			t.Fatalf("run %d: validator ok=%v, store=%v", run, v.OK, ans.AllRequiredAnswered(qs))
		}
		if v.OK != (v.Err() == nil) {
			t.Fatalf("run %d: Err() disagrees with OK", run)
		}
	}
}

func TestSubmitBlockedByMissingRequired(t *testing.T) {
	h := newHarness(t, passFail, mixedQuestions(10, "q1", "q2", "q3"))
	if err := h.sess.Answer("q1", "b"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if err := h.sess.Answer("q5", "a"); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	_, err := h.sess.Submit(context.Background())
	var verr *attempt.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if verr.MissingCount != 2 {
		t.Fatalf("missing = %d, want 2", verr.MissingCount)
	}
	if h.scorer.count() != 0 {
		t.Fatal("scorer must not run when validation fails")
	}
	if h.sess.State() != attempt.StateActive {
		t.Fatalf("state = %s, want ACTIVE", h.sess.State())
	}
	if h.results.count() != 0 {
		t.Fatal("no result should be persisted")
	}
}

func TestSubmitOnceAndIdempotent(t *testing.T) {
	h := newHarness(t, passFail, mixedQuestions(4, "q1"))
	_ = h.sess.Answer("q1", "b")
	_ = h.sess.Answer("q2", "4")

	first, err := h.sess.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	second, err := h.sess.Submit(context.Background())
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if first.ID == "" || first.ID != second.ID {
		t.Fatalf("ids differ: %q vs %q", first.ID, second.ID)
	}
	if h.results.count() != 1 || h.scorer.count() != 1 {
		t.Fatalf("results=%d scorer=%d", h.results.count(), h.scorer.count())
	}
	if first.Payload.Score == nil || *first.Payload.Score != 88 {
		// q1: 3 of 3, q2: 4 of 5 => 7/8
		t.Fatalf("score = %v", first.Payload.Score)
	}
	if err := h.sess.Answer("q3", "a"); !errors.Is(err, attempt.ErrNotActive) {
		t.Fatalf("answer after submit: %v", err)
	}
	select {
	case <-h.sess.Done():
	default:
		t.Fatal("Done should be closed after submission")
	}
	if h.progress.clears != 1 {
		t.Fatalf("progress clears = %d", h.progress.clears)
	}
}

func TestConcurrentSubmitCreatesOneResult(t *testing.T) {
	h := newHarness(t, passFail, mixedQuestions(3))
	_ = h.sess.Answer("q2", "3")

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := h.sess.Submit(context.Background())
			if err != nil {
				t.Errorf("Submit: %v", err)
				return
			}
			ids[i] = r.ID
		}(i)
	}
	wg.Wait()
	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("ids differ: %v", ids)
		}
	}
	if h.results.count() != 1 || h.scorer.count() != 1 {
		t.Fatalf("results=%d scorer=%d", h.results.count(), h.scorer.count())
	}
}

func TestPersistFailureIsRetryable(t *testing.T) {
	h := newHarness(t, passFail, mixedQuestions(2, "q1"))
	_ = h.sess.Answer("q1", "b")
	h.results.setFail(errors.New("db down"))

	_, err := h.sess.Submit(context.Background())
	if !errors.Is(err, attempt.ErrPersistResult) {
		t.Fatalf("err = %v, want ErrPersistResult", err)
	}
	var verr *attempt.ValidationError
	if errors.As(err, &verr) {
		t.Fatal("persistence failure must not look like a validation failure")
	}
	v := h.sess.View()
	if !v.PendingResult || v.Questions[0].Answer != "b" {
		t.Fatalf("answers and pending result must be kept: %+v", v)
	}
	if err := h.sess.Answer("q2", "5"); !errors.Is(err, attempt.ErrNotActive) {
		t.Fatalf("answers are frozen while the result is pending: %v", err)
	}

	h.results.setFail(nil)
	r, err := h.sess.Submit(context.Background())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if h.scorer.count() != 1 {
		t.Fatalf("retry must not rescore, scorer calls = %d", h.scorer.count())
	}
	if h.results.persists != 2 || h.results.count() != 1 {
		t.Fatalf("persists=%d stored=%d", h.results.persists, h.results.count())
	}
	if r.Answers["q1"] != "b" || h.sess.State() != attempt.StateSubmitted {
		t.Fatalf("result = %+v state=%s", r, h.sess.State())
	}
}

func TestUnknownTypeIsHardError(t *testing.T) {
	h := newHarness(t, attempt.AssessmentConfig{ID: "x", Type: "HOROSCOPE"}, mixedQuestions(1))
	_, err := h.sess.Submit(context.Background())
	if !errors.Is(err, scoring.ErrUnknownAssessmentType) {
		t.Fatalf("err = %v", err)
	}
	if h.sess.State() != attempt.StateActive || h.results.count() != 0 {
		t.Fatal("nothing must be persisted for a misconfigured assessment")
	}
}

func TestNavigationClampsAndJumpsToGaps(t *testing.T) {
	h := newHarness(t, passFail, mixedQuestions(4, "q2", "q4"))
	s := h.sess

	if i, _ := s.Previous(); i != 0 {
		t.Fatalf("previous at start = %d", i)
	}
	for want := 1; want <= 3; want++ {
		if i, _ := s.Next(); i != want {
			t.Fatalf("next = %d, want %d", i, want)
		}
	}
	// On the last question with q2 and q4 unanswered: jump to q2.
	if i, _ := s.Next(); i != 1 {
		t.Fatalf("next on last = %d, want 1 (q2)", i)
	}
	_ = s.Answer("q2", "2")
	if _, err := s.GoTo(3); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	if i, _ := s.Next(); i != 3 {
		t.Fatalf("next on last with q4 missing = %d, want 3", i)
	}
	_ = s.Answer("q4", "5")
	if i, _ := s.Next(); i != 3 {
		t.Fatalf("next on last with nothing missing = %d, want 3", i)
	}
	if _, err := s.GoTo(4); !errors.Is(err, attempt.ErrQuestionIndex) {
		t.Fatalf("GoTo(4) err = %v", err)
	}
	if _, err := s.GoTo(-1); !errors.Is(err, attempt.ErrQuestionIndex) {
		t.Fatalf("GoTo(-1) err = %v", err)
	}
}

func TestNavigationSavesProgress(t *testing.T) {
	h := newHarness(t, passFail, mixedQuestions(3))
	s := h.sess
	_ = s.Answer("q2", "3")
	if _, err := s.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if _, err := s.GoTo(2); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	s.Settle()

	p, ok := h.progress.get("exam-1", "resp-1")
	if !ok || p.Answers["q2"] != "3" || p.LastQuestionIndex != 2 {
		t.Fatalf("saved = %+v ok=%v", p, ok)
	}
	if n := h.progress.saveCount(); n == 0 || n > 2 {
		t.Fatalf("saves = %d", n)
	}

	// Rejected moves do not write.
	before := h.progress.saveCount()
	if _, err := s.GoTo(7); !errors.Is(err, attempt.ErrQuestionIndex) {
		t.Fatalf("GoTo(7): %v", err)
	}
	s.Settle()
	if h.progress.saveCount() != before {
		t.Fatal("failed navigation wrote progress")
	}
}

func TestNavigationSaveFailureIsSwallowed(t *testing.T) {
	h := newHarness(t, passFail, mixedQuestions(3))
	h.progress.setFail(errors.New("network"))
	if i, err := h.sess.Next(); err != nil || i != 1 {
		t.Fatalf("Next = %d, %v", i, err)
	}
	h.sess.Settle()
	if h.sess.State() != attempt.StateActive || h.sess.View().CurrentQuestionIndex != 1 {
		t.Fatal("save failure disturbed the session")
	}
}

func TestAutoAdvanceOnChoice(t *testing.T) {
	h := newHarness(t, passFail, mixedQuestions(3))
	s := h.sess

	_ = s.Answer("q1", "a") // choice at current index advances
	if v := s.View(); v.CurrentQuestionIndex != 1 {
		t.Fatalf("index = %d, want 1", v.CurrentQuestionIndex)
	}
	_ = s.Answer("q2", "4") // rating does not advance
	if v := s.View(); v.CurrentQuestionIndex != 1 {
		t.Fatalf("index = %d, want 1", v.CurrentQuestionIndex)
	}
	_, _ = s.Next()
	_ = s.Answer("q3", "b") // last question stays put
	if v := s.View(); v.CurrentQuestionIndex != 2 {
		t.Fatalf("index = %d, want 2", v.CurrentQuestionIndex)
	}
}

func TestAutoAdvanceAfterDelay(t *testing.T) {
	h := newHarness(t, passFail, mixedQuestions(3), attempt.WithAutoAdvanceDelay(20*time.Millisecond))
	s := h.sess
	_ = s.Answer("q1", "b")
	if v := s.View(); v.CurrentQuestionIndex != 0 {
		t.Fatalf("advanced before the delay: %d", v.CurrentQuestionIndex)
	}
	deadline := time.Now().Add(2 * time.Second)
	for s.View().CurrentQuestionIndex != 1 {
		if time.Now().After(deadline) {
			t.Fatal("auto-advance never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAnswerValidation(t *testing.T) {
	h := newHarness(t, passFail, mixedQuestions(2))
	if err := h.sess.Answer("q2", "9"); !errors.Is(err, question.ErrInvalidAnswer) {
		t.Fatalf("rating 9: %v", err)
	}
	if err := h.sess.Answer("q1", "zzz"); !errors.Is(err, question.ErrInvalidAnswer) {
		t.Fatalf("unknown option: %v", err)
	}
	if err := h.sess.Answer("nope", "1"); !errors.Is(err, attempt.ErrUnknownQuestion) {
		t.Fatalf("unknown question: %v", err)
	}
	_ = h.sess.Answer("q2", "3")
	if err := h.sess.Answer("q2", ""); err != nil {
		t.Fatalf("clearing: %v", err)
	}
	if h.sess.View().Questions[1].Answer != "" {
		t.Fatal("empty answer should clear")
	}
}

func TestAutosaveSwallowsFailures(t *testing.T) {
	h := newHarness(t, passFail, mixedQuestions(2))
	h.progress.setFail(errors.New("network"))
	_ = h.sess.Answer("q2", "2")
	h.sess.Autosave(context.Background())
	if h.sess.State() != attempt.StateActive {
		t.Fatal("autosave failure must not disturb the session")
	}
	if err := h.sess.Answer("q1", "a"); err != nil {
		t.Fatalf("answering after failed autosave: %v", err)
	}

	h.progress.setFail(nil)
	h.sess.Autosave(context.Background())
	p, ok := h.progress.get("exam-1", "resp-1")
	if !ok || p.Answers["q1"] != "a" || p.Answers["q2"] != "2" || p.LastQuestionIndex != 1 {
		t.Fatalf("saved = %+v ok=%v", p, ok)
	}
}

func TestSaveAndExit(t *testing.T) {
	cfg := passFail
	cfg.TimeLimitMinutes = minutes(10)
	h := newHarness(t, cfg, mixedQuestions(3))
	_ = h.sess.Answer("q2", "5")
	_ = h.sess.Tick()

	if err := h.sess.SaveAndExit(context.Background()); err != nil {
		t.Fatalf("SaveAndExit: %v", err)
	}
	p, ok := h.progress.get("exam-1", "resp-1")
	if !ok || p.Answers["q2"] != "5" || p.TimeRemainingSeconds == nil || *p.TimeRemainingSeconds != 599 {
		t.Fatalf("saved = %+v", p)
	}
	if h.sess.State() != attempt.StateSuspended {
		t.Fatalf("state = %s", h.sess.State())
	}
	if err := h.sess.Answer("q1", "a"); !errors.Is(err, attempt.ErrNotActive) {
		t.Fatalf("mutation after exit: %v", err)
	}
	h.sess.Autosave(context.Background())
	if h.progress.saveCount() != 1 {
		t.Fatalf("autosave after exit wrote again: %d saves", h.progress.saveCount())
	}
}

func TestSaveAndExitFailureKeepsSessionActive(t *testing.T) {
	h := newHarness(t, passFail, mixedQuestions(2))
	h.progress.setFail(errors.New("disk full"))
	if err := h.sess.SaveAndExit(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if h.sess.State() != attempt.StateActive {
		t.Fatalf("state = %s", h.sess.State())
	}
}

func TestResumeFromProgress(t *testing.T) {
	cfg := passFail
	cfg.TimeLimitMinutes = minutes(1)
	left := 999
	saved := attempt.Progress{
		Answers:              map[string]string{"q1": "b", "gone": "x"},
		LastQuestionIndex:    42,
		TimeRemainingSeconds: &left,
	}
	h := newHarness(t, cfg, mixedQuestions(3), attempt.WithProgress(saved))
	v := h.sess.View()
	if v.CurrentQuestionIndex != 2 {
		t.Fatalf("index = %d, want clamp to 2", v.CurrentQuestionIndex)
	}
	if *v.TimeRemainingSeconds != 60 {
		t.Fatalf("remaining = %d, want clamp to the limit", *v.TimeRemainingSeconds)
	}
	if v.Questions[0].Answer != "b" {
		t.Fatal("saved answer not restored")
	}
}

func TestUntimedSessionNeverTicks(t *testing.T) {
	h := newHarness(t, passFail, mixedQuestions(1))
	if h.sess.Tick() {
		t.Fatal("untimed session expired")
	}
	if h.sess.View().TimeRemainingSeconds != nil {
		t.Fatal("untimed session has a countdown")
	}
}

func TestTimerExpiryForcesSubmission(t *testing.T) {
	cfg := passFail
	cfg.TimeLimitMinutes = minutes(1)
	left := 2
	saved := attempt.Progress{Answers: map[string]string{"q2": "4"}, TimeRemainingSeconds: &left}
	h := newHarness(t, cfg, mixedQuestions(3, "q1", "q2"),
		attempt.WithProgress(saved),
		attempt.WithTickInterval(5*time.Millisecond),
		attempt.WithAutosaveInterval(time.Hour),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- h.sess.Run(ctx) }()

	select {
	case <-h.sess.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timer never forced a submission")
	}
	if err := <-errc; err != nil {
		t.Fatalf("Run: %v", err)
	}

	r, ok := h.sess.Result()
	if !ok {
		t.Fatal("no result after expiry")
	}
	// Policy: submit anyway; unanswered required q1 is scored as absent.
	if !r.Forced || len(r.MissingRequired) != 1 || r.MissingRequired[0] != "q1" {
		t.Fatalf("result = %+v", r)
	}
	if r.Payload.TotalScore != 4 || r.Payload.MaxScore != 8 {
		t.Fatalf("total=%v max=%v", r.Payload.TotalScore, r.Payload.MaxScore)
	}
	if !h.sess.View().Expired || h.results.count() != 1 {
		t.Fatal("expected exactly one forced result")
	}
	if h.sess.Tick() {
		t.Fatal("countdown must stop once submitted")
	}
}

func TestRunAutosaves(t *testing.T) {
	h := newHarness(t, passFail, mixedQuestions(2), attempt.WithAutosaveInterval(5*time.Millisecond))
	_ = h.sess.Answer("q2", "1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = h.sess.Run(ctx); close(done) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if p, ok := h.progress.get("exam-1", "resp-1"); ok && p.Answers["q2"] == "1" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("autosave never ran")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
}
