package answers

import (
	"strings"

	"github.com/mind-engage/mindengage-assess/internal/question"
)

// Store maps question id to a single answer value. An empty or
// whitespace-only value counts as unanswered. Store is not safe for
// concurrent use; the owning session serializes access.
type Store struct {
	values map[string]string
}

func New() *Store { return &Store{values: map[string]string{}} }

// FromMap copies m into a new Store.
func FromMap(m map[string]string) *Store {
	s := New()
	for k, v := range m {
		s.Set(k, v)
	}
	return s
}

// Set records value for questionID. An empty value clears the answer.
func (s *Store) Set(questionID, value string) {
	if strings.TrimSpace(value) == "" {
		delete(s.values, questionID)
		return
	}
	s.values[questionID] = value
}

func (s *Store) Get(questionID string) (string, bool) {
	v, ok := s.values[questionID]
	return v, ok
}

func (s *Store) IsAnswered(questionID string) bool {
	v, ok := s.values[questionID]
	return ok && strings.TrimSpace(v) != ""
}

// Missing returns the ids of required questions that are unanswered, in input order.
func (s *Store) Missing(qs []question.Question) []string {
	var out []string
	for _, q := range qs {
		if q.IsRequired && !s.IsAnswered(q.ID) {
			out = append(out, q.ID)
		}
	}
	return out
}

func (s *Store) AllRequiredAnswered(qs []question.Question) bool {
	return len(s.Missing(qs)) == 0
}

// AllAnswered only drives the early "finish" affordance; it never gates submission.
func (s *Store) AllAnswered(qs []question.Question) bool {
	for _, q := range qs {
		if !s.IsAnswered(q.ID) {
			return false
		}
	}
	return true
}

func (s *Store) Len() int { return len(s.values) }

// Snapshot returns a copy of the answer map.
func (s *Store) Snapshot() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
