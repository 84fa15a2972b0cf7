package attempt

import (
	"context"
	"errors"
	"time"

	"github.com/mind-engage/mindengage-assess/internal/question"
	"github.com/mind-engage/mindengage-assess/internal/scoring"
)

var (
	ErrUnknownQuestion = errors.New("unknown question")
	ErrNotActive       = errors.New("session is not accepting changes")
	ErrQuestionIndex   = errors.New("question index out of range")
	ErrPersistResult   = errors.New("could not save result, try again")
)

type State string

const (
	StateActive     State = "ACTIVE"
	StateSubmitting State = "SUBMITTING" // also held while a scored result awaits persistence
	StateSubmitted  State = "SUBMITTED"
	StateSuspended  State = "SUSPENDED" // saved and exited; resume through a new session
)

// Progress is the durable in-flight copy of a session.
type Progress struct {
	Answers              map[string]string `json:"answers"`
	LastQuestionIndex    int               `json:"last_question_index"`
	TimeRemainingSeconds *int              `json:"time_remaining_seconds,omitempty"`
	SavedAt              time.Time         `json:"saved_at"`
}

type ProgressStore interface {
	LoadProgress(ctx context.Context, assessmentID, respondentID string) (Progress, bool, error)
	SaveProgress(ctx context.Context, assessmentID, respondentID string, p Progress) error
}

// ProgressClearer is implemented by stores that can drop progress once a
// result exists, so a retake starts empty.
type ProgressClearer interface {
	ClearProgress(ctx context.Context, assessmentID, respondentID string) error
}

// Result is immutable once persisted. Retakes produce new results.
type Result struct {
	ID              string            `json:"id"`
	AssessmentID    string            `json:"assessment_id"`
	RespondentID    string            `json:"respondent_id"`
	SessionID       string            `json:"session_id"`
	Payload         scoring.Payload   `json:"payload"`
	Answers         map[string]string `json:"answers"`
	Forced          bool              `json:"forced,omitempty"` // submitted by timer expiry
	MissingRequired []string          `json:"missing_required,omitempty"`
	CompletedAt     time.Time         `json:"completed_at"`
}

type ResultStore interface {
	// PersistResult stores r and returns its id. Persisting the same id twice
	// must not create a second result.
	PersistResult(ctx context.Context, r Result) (string, error)
	GetResult(ctx context.Context, id string) (Result, error)
	ListResults(ctx context.Context, assessmentID, respondentID string) ([]Result, error)
}

type AssessmentConfig struct {
	ID               string                 `json:"id"`
	Title            string                 `json:"title"`
	Type             scoring.AssessmentType `json:"assessment_type"`
	TimeLimitMinutes *int                   `json:"time_limit_minutes,omitempty"`
	PassingThreshold *float64               `json:"passing_threshold,omitempty"`
}

type Catalog interface {
	LoadQuestions(ctx context.Context, assessmentID string) ([]question.Question, error)
	LoadAssessmentConfig(ctx context.Context, assessmentID string) (AssessmentConfig, error)
}

type Scorer interface {
	Score(in scoring.Input) (scoring.Payload, error)
}
