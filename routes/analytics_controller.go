package routes

import (
	"math/rand"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/mbolis/quick-form/analytics"
	"github.com/mbolis/quick-form/app"
	"github.com/mbolis/quick-form/httpx"
	"github.com/mbolis/quick-form/log"
	"github.com/mbolis/quick-form/mockdata"
	"github.com/mbolis/quick-form/routes/middlewares"
)

const (
	defaultDemoResponses = 10
	maxDemoResponses     = 100
)

type formAnalytics struct {
	FormSlug       string                   `json:"formSlug"`
	FormTitle      string                   `json:"formTitle"`
	TotalResponses int                      `json:"totalResponses"`
	Fields         []analytics.FieldSummary `json:"fields"`
}

func GetFormAnalytics(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		form, err := app.LoadForm(r.Context(), slug)
		if err != nil {
			httpx.LogStoreError(w, "db.get_form", err, slug)
			return
		}
		responses, err := app.ListResponses(r.Context(), slug)
		if err != nil {
			httpx.LogStoreError(w, "db.get_responses", err, slug)
			return
		}

		render.JSON(w, r, formAnalytics{
			FormSlug:       form.Slug,
			FormTitle:      form.Title,
			TotalResponses: len(responses),
			Fields:         analytics.SummarizeForm(form, responses),
		})
	}
}

func GetOverview(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		forms, err := app.Store.ListForms(r.Context())
		if err != nil {
			httpx.LogStoreError(w, "db.get_forms", err, nil)
			return
		}

		all := make([]analytics.FormResponses, 0, len(forms))
		for _, form := range forms {
			responses, err := app.ListResponses(r.Context(), form.Slug)
			if err != nil {
				httpx.LogStoreError(w, "db.get_responses", err, form.Slug)
				return
			}
			all = append(all, analytics.FormResponses{Form: form, Responses: responses})
		}

		render.JSON(w, r, analytics.BuildOverview(all, app.Clock()))
	}
}

// GenerateDemoResponses fills a form with fabricated answers so its
// dashboard has something to show.
func GenerateDemoResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		count := defaultDemoResponses
		if q := r.URL.Query().Get("count"); q != "" {
			n, err := strconv.Atoi(q)
			if err != nil || n < 1 || n > maxDemoResponses {
				httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "request.count", "count must be between 1 and %d", maxDemoResponses)
				return
			}
			count = n
		}

		form, err := app.LoadForm(r.Context(), slug)
		if err != nil {
			httpx.LogStoreError(w, "db.get_form", err, slug)
			return
		}

		gen := mockdata.New(rand.New(rand.NewSource(app.Clock().UnixNano())), app.Clock)
		responses, err := gen.Responses(form, count)
		if err != nil {
			httpx.LogInternalError(w, "demo.generate", err)
			return
		}
		for _, response := range responses {
			err = app.AppendResponse(r.Context(), slug, response)
			if err != nil {
				httpx.LogStoreError(w, "db.insert_response", err, slug)
				return
			}
		}
		log.Infof("added %d demo responses to %s", count, slug)

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"created": count,
		})
	}
}

func IssueStreamToken(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := middlewares.Credential(r)
		if subject == "" {
			subject = app.AdminUser
		}

		token, err := app.Tickets.Issue(subject, app.Clock())
		if err != nil {
			httpx.LogInternalError(w, "stream.issue_token", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"token":     token,
			"expiresIn": int(app.Tickets.TTL().Seconds()),
		})
	}
}

// AnalyticsStream upgrades to a websocket receiving a message for every
// new response.
func AnalyticsStream(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, err := app.Tickets.Verify(r.URL.Query().Get("token"))
		if err != nil {
			httpx.LogStatusMsg(w, http.StatusUnauthorized, log.DebugLevel, "stream.token", "%s", err)
			return
		}

		err = app.Hub.ServeWS(w, r)
		if err != nil {
			// the upgrader has already answered
			log.Debugf("stream.upgrade: %s", err)
			return
		}
		log.Debugf("stream opened for %s", subject)
	}
}
