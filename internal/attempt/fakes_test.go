package attempt_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mind-engage/mindengage-assess/internal/attempt"
	"github.com/mind-engage/mindengage-assess/internal/question"
	"github.com/mind-engage/mindengage-assess/internal/scoring"
)

/* ---------------- In-memory fakes for the session collaborators ---------------- */

type fakeProgress struct {
	mu      sync.Mutex
	saved   map[string]attempt.Progress
	saves   int
	clears  int
	failErr error
	gate    chan struct{} // SaveProgress blocks on it while set
	entered chan struct{}
}

func newFakeProgress() *fakeProgress {
	return &fakeProgress{saved: map[string]attempt.Progress{}}
}

func pkey(a, r string) string { return a + "|" + r }

func (f *fakeProgress) LoadProgress(_ context.Context, a, r string) (attempt.Progress, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.saved[pkey(a, r)]
	return p, ok, nil
}

func (f *fakeProgress) SaveProgress(_ context.Context, a, r string, p attempt.Progress) error {
	f.mu.Lock()
	gate, entered := f.gate, f.entered
	f.mu.Unlock()
	if gate != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.failErr != nil {
		return f.failErr
	}
	f.saved[pkey(a, r)] = p
	return nil
}

func (f *fakeProgress) ClearProgress(_ context.Context, a, r string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	delete(f.saved, pkey(a, r))
	return nil
}

func (f *fakeProgress) get(a, r string) (attempt.Progress, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.saved[pkey(a, r)]
	return p, ok
}

// hold makes saves block until release is called. entered receives once per
// blocked save.
func (f *fakeProgress) hold() (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.entered = make(chan struct{}, 8)
	gate := f.gate
	return f.entered, func() {
		f.mu.Lock()
		f.gate = nil
		f.mu.Unlock()
		close(gate)
	}
}

func (f *fakeProgress) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func (f *fakeProgress) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failErr = err
}

type fakeResults struct {
	mu       sync.Mutex
	byID     map[string]attempt.Result
	persists int
	failErr  error
}

func newFakeResults() *fakeResults { return &fakeResults{byID: map[string]attempt.Result{}} }

func (f *fakeResults) PersistResult(_ context.Context, r attempt.Result) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persists++
	if f.failErr != nil {
		return "", f.failErr
	}
	f.byID[r.ID] = r
	return r.ID, nil
}

func (f *fakeResults) GetResult(_ context.Context, id string) (attempt.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return attempt.Result{}, errors.New("result not found")
	}
	return r, nil
}

func (f *fakeResults) ListResults(_ context.Context, a, r string) ([]attempt.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []attempt.Result
	for _, res := range f.byID {
		if res.AssessmentID == a && res.RespondentID == r {
			out = append(out, res)
		}
	}
	return out, nil
}

func (f *fakeResults) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

func (f *fakeResults) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failErr = err
}

type countingScorer struct {
	mu    sync.Mutex
	calls int
	eng   *scoring.Engine
}

func newCountingScorer() *countingScorer { return &countingScorer{eng: scoring.NewEngine()} }

func (c *countingScorer) Score(in scoring.Input) (scoring.Payload, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.eng.Score(in)
}

func (c *countingScorer) Supports(t scoring.AssessmentType) bool { return c.eng.Supports(t) }

func (c *countingScorer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeCatalog struct {
	cfgs      map[string]attempt.AssessmentConfig
	questions map[string][]question.Question
}

func (f *fakeCatalog) LoadQuestions(_ context.Context, id string) ([]question.Question, error) {
	qs, ok := f.questions[id]
	if !ok {
		return nil, fmt.Errorf("assessment %q not found", id)
	}
	return qs, nil
}

func (f *fakeCatalog) LoadAssessmentConfig(_ context.Context, id string) (attempt.AssessmentConfig, error) {
	c, ok := f.cfgs[id]
	if !ok {
		return attempt.AssessmentConfig{}, fmt.Errorf("assessment %q not found", id)
	}
	return c, nil
}

/* ---------------- fixtures ---------------- */

var choiceOptions = json.RawMessage(`[{"text":"Low","value":"a","score":1},{"text":"High","value":"b","score":3}]`)

// mixedQuestions returns n questions alternating choice and rating, with the
// given ids marked required.
func mixedQuestions(n int, required ...string) []question.Question {
	req := map[string]bool{}
	for _, id := range required {
		req[id] = true
	}
	qs := make([]question.Question, 0, n)
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("q%d", i)
		q := question.Question{ID: id, Order: i * 10, IsRequired: req[id], Text: "Question " + id}
		if i%2 == 1 {
			q.Type = question.MultipleChoice
			q.RawOptions = choiceOptions
		} else {
			q.Type = question.RatingScale
		}
		qs = append(qs, q)
	}
	return qs
}

func minutes(n int) *int { return &n }
