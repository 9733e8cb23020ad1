package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mbolis/quick-form/app"
	"github.com/mbolis/quick-form/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	if app.TrustProxy {
		// only behind a proxy that overwrites these headers
		root.Use(middleware.RealIP)
	}
	root.Use(middleware.Logger, middleware.Recoverer)

	root.Mount("/api", apiRouter(app))
	root.Get("/ws/analytics", AnalyticsStream(app))

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()

	api.Get("/forms/{slug}", PublicGetForm(app))
	api.Post("/forms/{slug}/validate", PublicValidateField(app))
	api.Post("/forms/{slug}/responses", PublicSubmitResponse(app))

	api.Route("/admin", func(r chi.Router) {
		r.Use(middlewares.Admin(app.TokenSecret))

		// CRUD form
		r.Post("/forms", CreateForm(app))
		r.Get("/forms", ListForms(app))
		r.Get("/forms/{slug}", GetForm(app))
		r.Put("/forms/{slug}", UpdateForm(app))
		r.Delete("/forms/{slug}", DeleteForm(app))

		// editor
		r.Post("/forms/{slug}/fields", AddField(app))
		r.Post("/forms/{slug}/fields/move", MoveField(app))
		r.Put("/forms/{slug}/fields/{fieldId}", UpdateField(app))
		r.Delete("/forms/{slug}/fields/{fieldId}", RemoveField(app))
		r.Post("/drafts", SaveDraft(app))
		r.Get("/drafts/{key}", GetDraft(app))
		r.Put("/drafts/{key}", SaveDraft(app))

		r.Get("/forms/{slug}/responses", GetFormResponses(app))
		r.Get("/forms/{slug}/analytics", GetFormAnalytics(app))
		r.Post("/forms/{slug}/demo-responses", GenerateDemoResponses(app))
		r.Get("/analytics", GetOverview(app))
		r.Post("/stream-token", IssueStreamToken(app))
	})

	api.Post("/login", Login(app))
	api.Post("/refresh", Refresh(app))

	return api
}
