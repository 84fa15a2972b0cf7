package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-assess/internal/attempt"
	auth "github.com/mind-engage/mindengage-assess/internal/auth/middleware"
	"github.com/mind-engage/mindengage-assess/internal/question"
	"github.com/mind-engage/mindengage-assess/internal/scoring"
	"github.com/mind-engage/mindengage-assess/internal/store"
)

// POST /assessments/{assessmentID}/session
// Starts or resumes the caller's attempt and returns its view.
func OpenSessionHandler(m *attempt.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Open(r.Context(), chi.URLParam(r, "assessmentID"), auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, s.View())
	}
}

// GET /assessments/{assessmentID}/session
func GetSessionHandler(m *attempt.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := liveSession(w, r, m)
		if !ok {
			return
		}
		respondJSON(w, http.StatusOK, s.View())
	}
}

// PUT /assessments/{assessmentID}/session/answers/{questionID}  {"value": "..."}
// An empty value clears the answer.
func AnswerHandler(m *attempt.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Value string `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		s, ok := liveSession(w, r, m)
		if !ok {
			return
		}
		if err := s.Answer(chi.URLParam(r, "questionID"), req.Value); err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, s.View())
	}
}

// POST /assessments/{assessmentID}/session/{next|previous}
func NavigateHandler(m *attempt.Manager, forward bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := liveSession(w, r, m)
		if !ok {
			return
		}
		move := s.Previous
		if forward {
			move = s.Next
		}
		if _, err := move(); err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, s.View())
	}
}

// POST /assessments/{assessmentID}/session/goto  {"index": 3}
func GoToHandler(m *attempt.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Index *int `json:"index"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Index == nil {
			http.Error(w, "index required", http.StatusBadRequest)
			return
		}
		s, ok := liveSession(w, r, m)
		if !ok {
			return
		}
		if _, err := s.GoTo(*req.Index); err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, s.View())
	}
}

// POST /assessments/{assessmentID}/session/save-exit
func SaveExitHandler(m *attempt.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := liveSession(w, r, m)
		if !ok {
			return
		}
		if err := s.SaveAndExit(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"saved": true, "session_id": s.ID})
	}
}

// POST /assessments/{assessmentID}/session/submit
// Repeating the call after success returns the same result.
func SubmitHandler(m *attempt.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := liveSession(w, r, m)
		if !ok {
			return
		}
		res, err := s.Submit(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, res)
	}
}

func liveSession(w http.ResponseWriter, r *http.Request, m *attempt.Manager) (*attempt.Session, bool) {
	s, ok := m.Get(chi.URLParam(r, "assessmentID"), auth.SubjectFromContext(r.Context()))
	if !ok {
		respondJSON(w, http.StatusNotFound, errorBody{Error: "no open session; start one first"})
		return nil, false
	}
	return s, true
}

type errorBody struct {
	Error        string   `json:"error"`
	MissingCount int      `json:"missing_count,omitempty"`
	Missing      []string `json:"missing,omitempty"`
	Retryable    bool     `json:"retryable,omitempty"`
}

// writeError maps domain errors onto status codes. Validation failures are
// user-correctable (422); a persistence failure is retryable (503).
func writeError(w http.ResponseWriter, err error) {
	var verr *attempt.ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusUnprocessableEntity, errorBody{Error: verr.Error(), MissingCount: verr.MissingCount, Missing: verr.Missing})
	case errors.Is(err, attempt.ErrPersistResult):
		respondJSON(w, http.StatusServiceUnavailable, errorBody{Error: attempt.ErrPersistResult.Error(), Retryable: true})
	case errors.Is(err, store.ErrNotFound), errors.Is(err, attempt.ErrUnknownQuestion):
		respondJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, question.ErrInvalidAnswer), errors.Is(err, attempt.ErrQuestionIndex):
		respondJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, attempt.ErrNotActive):
		respondJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, scoring.ErrUnknownAssessmentType):
		respondJSON(w, http.StatusInternalServerError, errorBody{Error: "assessment is misconfigured"})
	default:
		respondJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
