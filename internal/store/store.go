// Package store holds the persistence gateways for assessment sessions:
// the catalog of assessments and questions, in-flight progress, results and
// the append-only event log.
package store

import (
	"context"
	"errors"

	"github.com/mind-engage/mindengage-assess/internal/attempt"
	"github.com/mind-engage/mindengage-assess/internal/question"
)

var ErrNotFound = errors.New("not found")

// Assessment is a catalog entry together with its questions.
type Assessment struct {
	attempt.AssessmentConfig
	Questions []question.Question `json:"questions"`
}

// Store is everything a deployment needs from a backend.
type Store interface {
	attempt.Catalog
	attempt.ProgressStore
	attempt.ProgressClearer
	attempt.ResultStore

	PutAssessment(ctx context.Context, a Assessment) error
	Events(ctx context.Context, afterSeq int64, limit int) ([]Event, error)
}

var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
