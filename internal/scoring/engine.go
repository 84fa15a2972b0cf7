package scoring

import (
	"errors"
	"fmt"

	"github.com/mind-engage/mindengage-assess/internal/question"
)

type AssessmentType string

const (
	MBTI     AssessmentType = "MBTI"      // dimensional pairs
	DISC     AssessmentType = "DISC"      // multi-trait percentage profile
	PassFail AssessmentType = "PASS_FAIL" // threshold scoring
)

var ErrUnknownAssessmentType = errors.New("unknown assessment type")

// Input is everything a strategy may read. Strategies never mutate it.
type Input struct {
	Type             AssessmentType
	Questions        []question.Question
	Answers          map[string]string
	PassingThreshold *float64 // PASS_FAIL only; nil means no pass/fail verdict
}

// TypeInfo is the human-facing description of a resolved type code.
type TypeInfo struct {
	Name        string   `json:"type_name"`
	Description string   `json:"description"`
	Strengths   []string `json:"strengths"`
	Careers     []string `json:"careers"`
}

// MetadataLookup resolves type codes to descriptions. Implementations are
// static tables owned outside the engine.
type MetadataLookup interface {
	Lookup(t AssessmentType, code string) (TypeInfo, bool)
}

type DimensionResult struct {
	Pair        string             `json:"pair"` // e.g. "EI"
	Letter      string             `json:"letter"`
	Tie         bool               `json:"tie,omitempty"`
	Tallies     map[string]float64 `json:"tallies"`
	Percentages map[string]int     `json:"percentages"`
}

// Payload is the typed result of one scoring run. Fields not produced by a
// strategy stay zero.
type Payload struct {
	AssessmentType AssessmentType `json:"assessment_type"`

	TypeCode string    `json:"type,omitempty"`
	Info     *TypeInfo `json:"info,omitempty"`

	Tallies     map[string]float64 `json:"tallies,omitempty"`
	Percentages map[string]int     `json:"percentages,omitempty"`
	Dimensions  []DimensionResult  `json:"dimensions,omitempty"`

	TotalScore       float64  `json:"total_score,omitempty"`
	MaxScore         float64  `json:"max_score,omitempty"`
	PassingThreshold *float64 `json:"passing_threshold,omitempty"`
	Score            *int     `json:"score"`     // 0-100 when defined
	IsPassed         *bool    `json:"is_passed"` // only for threshold scoring

	InsufficientData bool `json:"insufficient_data,omitempty"`
}

// Strategy scores one assessment type.
type Strategy interface {
	Score(in Input) (Payload, error)
}

// Engine routes by assessment type to the correct Strategy.
type Engine struct {
	strategies map[AssessmentType]Strategy
}

type Option func(*config)

type config struct {
	meta       MetadataLookup
	strategies map[AssessmentType]Strategy
}

func WithMetadata(m MetadataLookup) Option { return func(c *config) { c.meta = m } }

// WithStrategy installs or replaces the strategy for t.
func WithStrategy(t AssessmentType, s Strategy) Option {
	return func(c *config) { c.strategies[t] = s }
}

// NewEngine installs the built-in strategies.
func NewEngine(opts ...Option) *Engine {
	cfg := &config{strategies: map[AssessmentType]Strategy{}}
	for _, o := range opts {
		o(cfg)
	}
	e := &Engine{
		strategies: map[AssessmentType]Strategy{
			MBTI:     dimensionalStrategy{dims: mbtiDimensions, meta: cfg.meta},
			DISC:     profileStrategy{traits: discTraits, meta: cfg.meta},
			PassFail: thresholdStrategy{},
		},
	}
	for t, s := range cfg.strategies {
		e.strategies[t] = s
	}
	return e
}

func (e *Engine) Score(in Input) (Payload, error) {
	s, ok := e.strategies[in.Type]
	if !ok {
		return Payload{}, fmt.Errorf("%w: %q", ErrUnknownAssessmentType, in.Type)
	}
	p, err := s.Score(in)
	if err != nil {
		return Payload{}, err
	}
	p.AssessmentType = in.Type
	return p, nil
}

// Supports reports whether t has a registered strategy.
func (e *Engine) Supports(t AssessmentType) bool {
	_, ok := e.strategies[t]
	return ok
}

func lookup(meta MetadataLookup, t AssessmentType, codes ...string) *TypeInfo {
	if meta == nil {
		return nil
	}
	for _, c := range codes {
		if c == "" {
			continue
		}
		if info, ok := meta.Lookup(t, c); ok {
			return &info
		}
	}
	return nil
}
