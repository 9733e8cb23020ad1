package routes

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/mbolis/quick-form/app"
	"github.com/mbolis/quick-form/httpx"
	"github.com/mbolis/quick-form/log"
	"github.com/mbolis/quick-form/model"
	"github.com/mbolis/quick-form/realtime"
	"github.com/mbolis/quick-form/validation"
)

const submittedMessage = "Response submitted successfully"

type publicForm struct {
	model.FormDefinition
	Submitted bool `json:"submitted,omitempty"`
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func PublicGetForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		form, err := app.LoadForm(r.Context(), slug)
		if err != nil {
			httpx.LogStoreError(w, "db.get_form", err, slug)
			return
		}

		resp := publicForm{FormDefinition: form}
		if app.SingleResponse {
			resp.Submitted, err = app.HasResponseFrom(r.Context(), slug, clientIP(r))
			if err != nil {
				httpx.LogStoreError(w, "db.get_form.ip", err, slug)
				return
			}
		}

		render.JSON(w, r, resp)
	}
}

type validateRequest struct {
	FieldID string          `json:"fieldId"`
	Value   json.RawMessage `json:"value"`
}

type validateResponse struct {
	Valid bool              `json:"valid"`
	Error *validation.Error `json:"error,omitempty"`
}

// PublicValidateField checks a single answer while the respondent types.
func PublicValidateField(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		req := validateRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		form, err := app.LoadForm(r.Context(), slug)
		if err != nil {
			httpx.LogStoreError(w, "db.get_form", err, slug)
			return
		}
		field, ok := form.Field(req.FieldID)
		if !ok {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "request.field_id", "unknown field %q", req.FieldID)
			return
		}

		_, errs := validation.ValidateSubmission(
			model.FormDefinition{Fields: []model.FieldDefinition{field}},
			map[string]json.RawMessage{field.ID: req.Value},
		)
		render.JSON(w, r, validateResponse{
			Valid: errs.Valid(),
			Error: errs[field.ID],
		})
	}
}

type submitRequest struct {
	Responses map[string]json.RawMessage `json:"responses"`
}

func PublicSubmitResponse(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		req := submitRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		form, err := app.LoadForm(r.Context(), slug)
		if err != nil {
			httpx.LogStoreError(w, "db.get_form", err, slug)
			return
		}

		data, errs := validation.ValidateSubmission(form, req.Responses)
		if !errs.Valid() {
			httpx.LogUnprocessable(w, r, "submission.invalid", map[string]any{
				"errors": errs,
			})
			return
		}

		ip := clientIP(r)
		if app.SingleResponse {
			key := slug + "|" + ip
			// check ip is not submitting now
			if !app.Guard.Acquire(key) {
				httpx.LogStatus(w, http.StatusConflict, log.DebugLevel, "ip.already_submitted")
				return
			}
			defer app.Guard.Release(key)

			// check ip did not already submit
			alreadySubmitted, err := app.HasResponseFrom(r.Context(), slug, ip)
			if err != nil {
				httpx.LogStoreError(w, "db.get_ip", err, slug)
				return
			}
			if alreadySubmitted {
				httpx.LogStatus(w, http.StatusConflict, log.DebugLevel, "ip.already_submitted")
				return
			}
		}

		id, err := uuid.NewV7()
		if err != nil {
			httpx.LogInternalError(w, "submission.new_id", err)
			return
		}
		response := model.ResponseRecord{
			ID:        id.String(),
			FormSlug:  slug,
			Timestamp: app.Clock().UTC(),
			IP:        ip,
			Data:      data,
		}
		err = app.AppendResponse(r.Context(), slug, response)
		if err != nil {
			httpx.LogStoreError(w, "db.insert_response", err, slug)
			return
		}

		if app.Hub != nil {
			app.Hub.Broadcast(realtime.NewResponseEvent(realtime.ResponseNotice{
				FormSlug:    slug,
				FormTitle:   form.Title,
				ResponseID:  response.ID,
				SubmittedAt: response.Timestamp,
			}))
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id":      response.ID,
			"message": submittedMessage,
		})
	}
}
