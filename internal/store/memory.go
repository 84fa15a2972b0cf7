package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-assess/internal/attempt"
	"github.com/mind-engage/mindengage-assess/internal/question"
)

type progressKey struct{ assessmentID, respondentID string }

// MemoryStore is the process-local backend (DB_DRIVER=memory). Nothing
// survives a restart. Values are copied in and out so callers cannot alias
// stored maps.
type MemoryStore struct {
	mu          sync.RWMutex
	assessments map[string]Assessment
	progress    map[progressKey]attempt.Progress
	results     map[string]attempt.Result
	events      []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assessments: map[string]Assessment{},
		progress:    map[progressKey]attempt.Progress{},
		results:     map[string]attempt.Result{},
	}
}

func (m *MemoryStore) PutAssessment(_ context.Context, a Assessment) error {
	if err := question.CheckOrders(a.Questions); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a.Questions = append([]question.Question(nil), a.Questions...)
	m.assessments[a.ID] = a
	return nil
}

func (m *MemoryStore) LoadAssessmentConfig(_ context.Context, id string) (attempt.AssessmentConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assessments[id]
	if !ok {
		return attempt.AssessmentConfig{}, fmt.Errorf("assessment %s: %w", id, ErrNotFound)
	}
	return a.AssessmentConfig, nil
}

func (m *MemoryStore) LoadQuestions(_ context.Context, id string) ([]question.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assessments[id]
	if !ok || len(a.Questions) == 0 {
		return nil, fmt.Errorf("questions for %s: %w", id, ErrNotFound)
	}
	return question.SortByOrder(a.Questions), nil
}

func (m *MemoryStore) LoadProgress(_ context.Context, assessmentID, respondentID string) (attempt.Progress, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.progress[progressKey{assessmentID, respondentID}]
	if !ok {
		return attempt.Progress{}, false, nil
	}
	return copyProgress(p), true, nil
}

func (m *MemoryStore) SaveProgress(_ context.Context, assessmentID, respondentID string, p attempt.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress[progressKey{assessmentID, respondentID}] = copyProgress(p)
	return nil
}

func (m *MemoryStore) ClearProgress(_ context.Context, assessmentID, respondentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.progress, progressKey{assessmentID, respondentID})
	return nil
}

func (m *MemoryStore) PersistResult(_ context.Context, r attempt.Result) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.results[r.ID]; dup {
		return r.ID, nil
	}
	ev, err := resultCreatedEvent("local", r)
	if err != nil {
		return "", err
	}
	r.Answers = copyAnswers(r.Answers)
	m.results[r.ID] = r
	ev.Seq = int64(len(m.events) + 1)
	m.events = append(m.events, ev)
	return r.ID, nil
}

func (m *MemoryStore) GetResult(_ context.Context, id string) (attempt.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[id]
	if !ok {
		return attempt.Result{}, fmt.Errorf("result %s: %w", id, ErrNotFound)
	}
	r.Answers = copyAnswers(r.Answers)
	return r, nil
}

func (m *MemoryStore) ListResults(_ context.Context, assessmentID, respondentID string) ([]attempt.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []attempt.Result{}
	for _, r := range m.results {
		if r.AssessmentID == assessmentID && r.RespondentID == respondentID {
			r.Answers = copyAnswers(r.Answers)
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].CompletedAt.After(out[j].CompletedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) Events(_ context.Context, afterSeq int64, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Event
	for _, e := range m.events {
		if e.Seq > afterSeq {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func copyAnswers(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyProgress(p attempt.Progress) attempt.Progress {
	p.Answers = copyAnswers(p.Answers)
	if p.TimeRemainingSeconds != nil {
		n := *p.TimeRemainingSeconds
		p.TimeRemainingSeconds = &n
	}
	return p
}
