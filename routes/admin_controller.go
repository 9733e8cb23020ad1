package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/mbolis/quick-form/app"
	"github.com/mbolis/quick-form/httpx"
	"github.com/mbolis/quick-form/log"
	"github.com/mbolis/quick-form/model"
)

func CreateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form := model.FormDefinition{}
		err := render.DecodeJSON(r.Body, &form)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		if form.Slug == "" {
			form.Slug = model.Slugify(form.Title)
		}
		if err := form.Check(); err != nil {
			httpx.LogUnprocessable(w, r, "form.check", map[string]any{
				"errors": httpx.Problems(err),
			})
			return
		}

		saved, err := app.Store.CreateForm(r.Context(), form)
		if err != nil {
			httpx.LogStoreError(w, "db.insert_form", err, form.Slug)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, saved)
	}
}

func ListForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		forms, err := app.Store.ListForms(r.Context())
		if err != nil {
			httpx.LogStoreError(w, "db.get_forms", err, nil)
			return
		}

		render.JSON(w, r, map[string]any{
			"forms": forms,
		})
	}
}

func GetForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		form, err := app.LoadForm(r.Context(), slug)
		if err != nil {
			httpx.LogStoreError(w, "db.get_form", err, slug)
			return
		}

		render.JSON(w, r, form)
	}
}

// UpdateForm replaces a published form. The slug in the path wins over the
// one in the body.
func UpdateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		form := model.FormDefinition{}
		err := render.DecodeJSON(r.Body, &form)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		form.Slug = slug

		if err := form.Check(); err != nil {
			httpx.LogUnprocessable(w, r, "form.check", map[string]any{
				"errors": httpx.Problems(err),
			})
			return
		}

		_, err = app.LoadForm(r.Context(), slug)
		if err != nil {
			httpx.LogStoreError(w, "db.update_form.lookup", err, slug)
			return
		}

		form, err = app.Store.SaveForm(r.Context(), form)
		if err != nil {
			httpx.LogStoreError(w, "db.update_form", err, slug)
			return
		}

		render.JSON(w, r, form)
	}
}

func DeleteForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		err := app.Store.DeleteForm(r.Context(), slug)
		if err != nil {
			httpx.LogStoreError(w, "db.delete_form", err, slug)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func GetFormResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		responses, err := app.ListResponses(r.Context(), slug)
		if err != nil {
			httpx.LogStoreError(w, "db.get_responses", err, slug)
			return
		}

		render.JSON(w, r, map[string]any{
			"responses": responses,
		})
	}
}
