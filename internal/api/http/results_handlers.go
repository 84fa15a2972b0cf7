package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-assess/internal/attempt"
	auth "github.com/mind-engage/mindengage-assess/internal/auth/middleware"
	"github.com/mind-engage/mindengage-assess/internal/question"
	"github.com/mind-engage/mindengage-assess/internal/rbac"
	"github.com/mind-engage/mindengage-assess/internal/scoring"
	"github.com/mind-engage/mindengage-assess/internal/store"
)

// GET /assessments/{assessmentID}/results?respondent_id=...
// Callers without result:view-all only ever see their own results.
func ListResultsHandler(results attempt.ResultStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondent := auth.SubjectFromContext(r.Context())
		if q := strings.TrimSpace(r.URL.Query().Get("respondent_id")); q != "" && rbac.Allowed(r, rbac.PermResultViewAll) {
			respondent = q
		}
		list, err := results.ListResults(r.Context(), chi.URLParam(r, "assessmentID"), respondent)
		if err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

// GET /results/{resultID}
func GetResultHandler(results attempt.ResultStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := results.GetResult(r.Context(), chi.URLParam(r, "resultID"))
		if err != nil {
			writeError(w, err)
			return
		}
		if res.RespondentID != auth.SubjectFromContext(r.Context()) && !rbac.Allowed(r, rbac.PermResultViewAll) {
			// Same answer as a missing id so ids cannot be probed.
			respondJSON(w, http.StatusNotFound, errorBody{Error: "result not found"})
			return
		}
		respondJSON(w, http.StatusOK, res)
	}
}

type assessmentWriter interface {
	PutAssessment(ctx context.Context, a store.Assessment) error
}

type typeChecker interface {
	Supports(t scoring.AssessmentType) bool
}

// PUT /assessments/{assessmentID}  body: config fields plus "questions"
func PutAssessmentHandler(catalog assessmentWriter, types typeChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var a store.Assessment
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		a.ID = chi.URLParam(r, "assessmentID")
		if a.Type == "" || len(a.Questions) == 0 {
			http.Error(w, "assessment_type and questions required", http.StatusBadRequest)
			return
		}
		if !types.Supports(a.Type) {
			respondJSON(w, http.StatusBadRequest, errorBody{Error: "unsupported assessment_type " + string(a.Type)})
			return
		}
		if err := question.CheckOrders(a.Questions); err != nil {
			respondJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		if err := catalog.PutAssessment(r.Context(), a); err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"id": a.ID, "questions": len(a.Questions)})
	}
}

type eventSource interface {
	Events(ctx context.Context, afterSeq int64, limit int) ([]store.Event, error)
}

// GET /events?after=0&limit=100
func ListEventsHandler(events eventSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		list, err := events.Events(r.Context(), after, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		if list == nil {
			list = []store.Event{}
		}
		respondJSON(w, http.StatusOK, list)
	}
}
