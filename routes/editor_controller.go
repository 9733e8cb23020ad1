package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/mbolis/quick-form/app"
	"github.com/mbolis/quick-form/httpx"
	"github.com/mbolis/quick-form/log"
	"github.com/mbolis/quick-form/model"
	"github.com/mbolis/quick-form/store"
)

// editForm loads the form at {slug}, applies edit and saves the result.
// edit writes its own error response and returns false to abort. Edits to
// one form run one at a time, and the edited form must still pass Check.
func editForm(app app.App, w http.ResponseWriter, r *http.Request, code string, edit func(*model.FormDefinition) bool) (model.FormDefinition, bool) {
	slug := chi.URLParam(r, "slug")

	key := editKey(slug)
	if !app.Guard.Acquire(key) {
		httpx.LogStatusMsg(w, http.StatusConflict, log.DebugLevel, "form.busy", "form %q is being edited", slug)
		return model.FormDefinition{}, false
	}
	defer app.Guard.Release(key)

	form, err := app.LoadForm(r.Context(), slug)
	if err != nil {
		httpx.LogStoreError(w, "db."+code+".lookup", err, slug)
		return form, false
	}

	if !edit(&form) {
		return form, false
	}

	if err := form.Check(); err != nil {
		httpx.LogUnprocessable(w, r, "form.check", map[string]any{
			"errors": httpx.Problems(err),
		})
		return form, false
	}

	form, err = app.Store.SaveForm(r.Context(), form)
	if err != nil {
		httpx.LogStoreError(w, "db."+code, err, slug)
		return form, false
	}
	return form, true
}

func editKey(slug string) string {
	return "edit|" + slug
}

type addFieldRequest struct {
	Type string `json:"type"`
}

func AddField(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := addFieldRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		fieldType, err := model.ParseFieldType(req.Type)
		if err != nil {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "request.field_type", "%s", err)
			return
		}

		var added model.FieldDefinition
		form, ok := editForm(app, w, r, "add_field", func(form *model.FormDefinition) bool {
			added = form.AddField(fieldType)
			return true
		})
		if !ok {
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"field": added,
			"form":  form,
		})
	}
}

func RemoveField(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fieldID := chi.URLParam(r, "fieldId")

		form, ok := editForm(app, w, r, "remove_field", func(form *model.FormDefinition) bool {
			if !form.RemoveField(fieldID) {
				httpx.LogNotFound(w, "remove_field", fieldID)
				return false
			}
			return true
		})
		if !ok {
			return
		}

		render.JSON(w, r, form)
	}
}

// UpdateField replaces the attributes of field {fieldId}. The id is taken
// from the path.
func UpdateField(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		field := model.FieldDefinition{}
		err := render.DecodeJSON(r.Body, &field)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		field.ID = chi.URLParam(r, "fieldId")
		if !field.Type.Valid() {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "request.field_type", "unknown field type %q", field.Type)
			return
		}

		form, ok := editForm(app, w, r, "update_field", func(form *model.FormDefinition) bool {
			if !form.UpdateField(field) {
				httpx.LogNotFound(w, "update_field", field.ID)
				return false
			}
			return true
		})
		if !ok {
			return
		}

		render.JSON(w, r, form)
	}
}

type moveFieldRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func MoveField(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := moveFieldRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		form, ok := editForm(app, w, r, "move_field", func(form *model.FormDefinition) bool {
			if err := form.MoveField(req.From, req.To); err != nil {
				httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "request.move_field", "%s", err)
				return false
			}
			return true
		})
		if !ok {
			return
		}

		render.JSON(w, r, form)
	}
}

func GetDraft(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")

		draft, err := app.LoadDraft(r.Context(), key)
		if err != nil {
			httpx.LogStoreError(w, "db.get_draft", err, key)
			return
		}

		render.JSON(w, r, draft)
	}
}

// SaveDraft stores a form under edit without checking it. Without a {key}
// in the path the draft is keyed by its slug.
func SaveDraft(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		draft := model.FormDefinition{}
		err := render.DecodeJSON(r.Body, &draft)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		key := chi.URLParam(r, "key")
		if key == "" {
			key = store.DraftKey(draft.Slug)
		}

		err = app.Store.SaveDraft(r.Context(), key, draft)
		if err != nil {
			httpx.LogStoreError(w, "db.save_draft", err, key)
			return
		}

		render.JSON(w, r, map[string]any{
			"key": key,
		})
	}
}
