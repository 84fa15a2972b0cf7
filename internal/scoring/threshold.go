package scoring

import (
	"math"
	"strings"

	"github.com/mind-engage/mindengage-assess/internal/question"
)

// thresholdStrategy sums per-question contributions against their maxima.
// TEXT questions and unanswered optional questions are left out of both sums.
// Unanswered required questions (possible after a forced submission) count
// as zero against their maximum.
type thresholdStrategy struct{}

func (thresholdStrategy) Score(in Input) (Payload, error) {
	var total, maxScore float64
	for _, q := range in.Questions {
		got, top, ok := contribution(q, in.Answers)
		if !ok {
			continue
		}
		total += got
		maxScore += top
	}

	p := Payload{TotalScore: total, MaxScore: maxScore, PassingThreshold: in.PassingThreshold}
	if maxScore <= 0 {
		p.InsufficientData = true
		return p, nil
	}
	pct := int(math.Round(total / maxScore * 100))
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	p.Score = &pct
	if in.PassingThreshold != nil {
		passed := float64(pct) >= *in.PassingThreshold
		p.IsPassed = &passed
	}
	return p, nil
}

// contribution returns the points earned and available for q, and whether q
// takes part in the denominator at all.
func contribution(q question.Question, answers map[string]string) (got, top float64, ok bool) {
	v, answered := answers[q.ID]
	answered = answered && strings.TrimSpace(v) != ""

	switch q.Type {
	case question.RatingScale:
		if !answered {
			return 0, question.MaxRating, q.IsRequired
		}
		n, err := question.Rating(v)
		if err != nil {
			return 0, question.MaxRating, true
		}
		return float64(n), question.MaxRating, true

	case question.MultipleChoice, question.TrueFalse:
		opts, err := q.Options()
		if err != nil {
			return 0, 0, false
		}
		best, scored := 0.0, false
		for _, o := range opts {
			if f, has := scalar(o.Score); has && (!scored || f > best) {
				best, scored = f, true
			}
		}
		if !scored || best <= 0 {
			return 0, 0, false
		}
		if !answered {
			return 0, best, q.IsRequired
		}
		if o, found := question.FindOption(opts, v); found {
			f, _ := scalar(o.Score)
			return f, best, true
		}
		return 0, best, true

	default:
		return 0, 0, false
	}
}
