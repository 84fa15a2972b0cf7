package question

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "MULTIPLE_CHOICE"
	RatingScale    QuestionType = "RATING_SCALE"
	TrueFalse      QuestionType = "TRUE_FALSE"
	Text           QuestionType = "TEXT"
)

// Rating scale bounds for RATING_SCALE answers.
const (
	MinRating = 1
	MaxRating = 5
)

var ErrInvalidAnswer = errors.New("invalid answer for question type")

type Question struct {
	ID         string          `json:"id"`
	Text       string          `json:"text"`
	Type       QuestionType    `json:"question_type"`
	Order      int             `json:"order"`
	IsRequired bool            `json:"is_required"`
	RawOptions json.RawMessage `json:"options,omitempty"` // array, JSON string, keyed object or bare strings
	ImageURL   string          `json:"image_url,omitempty"`
}

// Options resolves the stored options into their canonical shape.
// TRUE_FALSE questions without stored options get a True/False pair.
func (q Question) Options() ([]Option, error) {
	opts, err := NormalizeOptions(q.RawOptions)
	if errors.Is(err, ErrNoOptions) && q.Type == TrueFalse {
		return []Option{{Text: "True", Value: "true"}, {Text: "False", Value: "false"}}, nil
	}
	return opts, err
}

// CheckAnswer validates the shape of a non-empty answer value.
func (q Question) CheckAnswer(value string) error {
	switch q.Type {
	case RatingScale:
		if _, err := Rating(value); err != nil {
			return err
		}
		return nil
	case MultipleChoice, TrueFalse:
		opts, err := q.Options()
		if err != nil {
			return fmt.Errorf("%w: question %s is unanswerable: %v", ErrInvalidAnswer, q.ID, err)
		}
		if _, ok := FindOption(opts, value); !ok {
			return fmt.Errorf("%w: %q is not an option of question %s", ErrInvalidAnswer, value, q.ID)
		}
		return nil
	case Text:
		return nil
	default:
		return fmt.Errorf("%w: unknown question type %q", ErrInvalidAnswer, q.Type)
	}
}

// Rating parses a RATING_SCALE answer.
func Rating(value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < MinRating || n > MaxRating {
		return 0, fmt.Errorf("%w: rating must be an integer %d-%d, got %q", ErrInvalidAnswer, MinRating, MaxRating, value)
	}
	return n, nil
}

// FindOption returns the option whose value matches.
func FindOption(opts []Option, value string) (Option, bool) {
	for _, o := range opts {
		if o.Value == value {
			return o, true
		}
	}
	return Option{}, false
}

// SortByOrder returns a copy of qs in canonical display order.
func SortByOrder(qs []Question) []Question {
	out := make([]Question, len(qs))
	copy(out, qs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// CheckOrders reports duplicate ids or order values within one assessment.
func CheckOrders(qs []Question) error {
	ids := make(map[string]bool, len(qs))
	orders := make(map[int]string, len(qs))
	for _, q := range qs {
		if q.ID == "" {
			return errors.New("question id is required")
		}
		if ids[q.ID] {
			return fmt.Errorf("duplicate question id: %s", q.ID)
		}
		ids[q.ID] = true
		if other, ok := orders[q.Order]; ok {
			return fmt.Errorf("questions %s and %s share order %d", other, q.ID, q.Order)
		}
		orders[q.Order] = q.ID
	}
	return nil
}
