package attempt

import (
	"fmt"

	"github.com/mind-engage/mindengage-assess/internal/answers"
	"github.com/mind-engage/mindengage-assess/internal/question"
)

// ValidationError is the user-correctable submission failure.
type ValidationError struct {
	MissingCount int
	Missing      []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d required question(s) unanswered", e.MissingCount)
}

type Verdict struct {
	OK           bool
	MissingCount int
	Missing      []string // ids in display order
}

func (v Verdict) Err() error {
	if v.OK {
		return nil
	}
	return &ValidationError{MissingCount: v.MissingCount, Missing: v.Missing}
}

// Validate is the only hard gate on submission: it fails iff a required
// question is unanswered. It agrees with answers.Store.AllRequiredAnswered.
func Validate(qs []question.Question, ans *answers.Store) Verdict {
	missing := ans.Missing(qs)
	return Verdict{OK: len(missing) == 0, MissingCount: len(missing), Missing: missing}
}
