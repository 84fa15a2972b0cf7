package scoring

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/mind-engage/mindengage-assess/internal/question"
)

// weights reads an option score as a per-letter weight map.
// Accepted forms: {"E":1}, {"e":"2"} and a bare letter "E" (weight 1).
func weights(raw json.RawMessage) map[string]float64 {
	if len(raw) == 0 {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		out := make(map[string]float64, len(obj))
		for k, v := range obj {
			if f, ok := number(v); ok {
				out[strings.ToUpper(strings.TrimSpace(k))] += f
			}
		}
		return out
	}
	var letter string
	if err := json.Unmarshal(raw, &letter); err == nil {
		letter = strings.ToUpper(strings.TrimSpace(letter))
		if letter != "" {
			return map[string]float64{letter: 1}
		}
	}
	return nil
}

// scalar reads an option score as a single number.
func scalar(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return number(v)
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// selectedOption returns the chosen option of an answered choice question.
func selectedOption(q question.Question, answers map[string]string) (question.Option, bool) {
	if q.Type != question.MultipleChoice && q.Type != question.TrueFalse {
		return question.Option{}, false
	}
	v := answers[q.ID]
	if strings.TrimSpace(v) == "" {
		return question.Option{}, false
	}
	opts, err := q.Options()
	if err != nil {
		return question.Option{}, false
	}
	return question.FindOption(opts, v)
}

func percent(part, whole float64) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(part / whole * 100))
}
