package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-assess/internal/attempt"
	auth "github.com/mind-engage/mindengage-assess/internal/auth/middleware"
	"github.com/mind-engage/mindengage-assess/internal/rbac"
	"github.com/mind-engage/mindengage-assess/internal/scoring"
	"github.com/mind-engage/mindengage-assess/internal/store"
)

type Deps struct {
	Auth     *auth.AuthService
	Sessions *attempt.Manager
	Store    store.Store
	Scoring  *scoring.Engine // catalog writes are checked against its types
}

// Mount registers the protected API on r (JWT → subject/role in context → RBAC).
func Mount(r chi.Router, d Deps) {
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))

		pr.Route("/assessments/{assessmentID}", func(ar chi.Router) {
			ar.With(rbac.Require(rbac.PermCatalogWrite)).
				Put("/", PutAssessmentHandler(d.Store, d.Scoring))

			ar.Route("/session", func(sr chi.Router) {
				sr.Use(rbac.Require(rbac.PermSessionTake))
				sr.Post("/", OpenSessionHandler(d.Sessions))
				sr.Get("/", GetSessionHandler(d.Sessions))
				sr.Put("/answers/{questionID}", AnswerHandler(d.Sessions))
				sr.Post("/next", NavigateHandler(d.Sessions, true))
				sr.Post("/previous", NavigateHandler(d.Sessions, false))
				sr.Post("/goto", GoToHandler(d.Sessions))
				sr.Post("/save-exit", SaveExitHandler(d.Sessions))
				sr.Post("/submit", SubmitHandler(d.Sessions))
			})

			ar.With(rbac.Require(rbac.PermResultViewOwn)).
				Get("/results", ListResultsHandler(d.Store))
		})

		pr.With(rbac.Require(rbac.PermResultViewOwn)).
			Get("/results/{resultID}", GetResultHandler(d.Store))
		pr.With(rbac.Require(rbac.PermEventsRead)).
			Get("/events", ListEventsHandler(d.Store))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}
