package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbolis/quick-form/app"
	"github.com/mbolis/quick-form/config"
	"github.com/mbolis/quick-form/httpx"
	"github.com/mbolis/quick-form/realtime"
	"github.com/mbolis/quick-form/store"
	"github.com/mbolis/quick-form/store/storetest"
)

const (
	adminUser     = "admin"
	adminPassword = "correct horse"
)

type testServer struct {
	t       *testing.T
	app     app.App
	handler http.Handler
	token   string
}

func newTestServer(t *testing.T, singleResponse bool) *testServer {
	t.Helper()
	ctx := context.Background()

	s := store.NewMemory()
	hash, err := httpx.HashPassword(adminPassword)
	require.NoError(t, err)
	require.NoError(t, s.PutUser(ctx, adminUser, hash))
	_, err = s.CreateForm(ctx, storetest.SampleForm("feedback"))
	require.NoError(t, err)

	cfg := config.Config{
		Backend:        config.StoreMemory,
		TokenSecret:    "test-secret",
		TokenTTL:       2 * time.Minute,
		StreamTTL:      time.Minute,
		AdminUser:      adminUser,
		SingleResponse: singleResponse,
	}
	hub := realtime.NewHub()
	guard := app.NewSubmissionGuard()
	t.Cleanup(func() {
		hub.Close()
		guard.Close()
	})

	a := app.App{
		Store:        s,
		BearerServer: httpx.NewBearerServer(s, cfg),
		Config:       cfg,
		Hub:          hub,
		Tickets:      realtime.NewTickets(realtime.TicketKey(cfg.TokenSecret), cfg.StreamTTL),
		Guard:        guard,
	}
	return &testServer{t: t, app: a, handler: Wire(a)}
}

func (ts *testServer) request(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("content-type", "application/json")
	return r
}

func (ts *testServer) serve(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, r)
	return w
}

func (ts *testServer) public(method, path string, body any) *httptest.ResponseRecorder {
	return ts.serve(ts.request(method, path, body))
}

func (ts *testServer) admin(method, path string, body any) *httptest.ResponseRecorder {
	if ts.token == "" {
		ts.token = ts.login(adminUser, adminPassword)["access_token"].(string)
	}
	r := ts.request(method, path, body)
	r.Header.Set("authorization", "Bearer "+ts.token)
	return ts.serve(r)
}

func (ts *testServer) login(user, pass string) map[string]any {
	r := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	r.SetBasicAuth(user, pass)
	w := ts.serve(r)
	require.Equal(ts.t, http.StatusOK, w.Code, w.Body.String())
	return decode(ts.t, w)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

var validAnswers = map[string]any{
	"overall_rating":  4,
	"service_quality": "Good",
	"features_used":   []string{"App"},
	"comments":        "really quite good",
}

func TestPublicGetForm(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.public(http.MethodGet, "/api/forms/feedback", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "feedback", body["slug"])
	assert.Len(t, body["fields"], 4)
	assert.NotContains(t, body, "submitted")

	w = ts.public(http.MethodGet, "/api/forms/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidateField(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.public(http.MethodPost, "/api/forms/feedback/validate", map[string]any{
		"fieldId": "comments",
		"value":   "short",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"valid": false,
		"error": {"fieldId": "comments", "code": "length_out_of_range", "message": "Minimum length is 10 characters"}
	}`, w.Body.String())

	w = ts.public(http.MethodPost, "/api/forms/feedback/validate", map[string]any{
		"fieldId": "service_quality",
		"value":   "Good",
	})
	assert.JSONEq(t, `{"valid": true}`, w.Body.String())

	w = ts.public(http.MethodPost, "/api/forms/feedback/validate", map[string]any{
		"fieldId": "overall_rating",
		"value":   9,
	})
	assert.Equal(t, "invalid_value", decode(t, w)["error"].(map[string]any)["code"])

	w = ts.public(http.MethodPost, "/api/forms/feedback/validate", map[string]any{"fieldId": "ghost"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitResponse(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.public(http.MethodPost, "/api/forms/feedback/responses", map[string]any{
		"responses": map[string]any{"comments": "tiny"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	errs := decode(t, w)["errors"].(map[string]any)
	assert.Len(t, errs, 3)
	assert.Equal(t, "missing_required_value", errs["overall_rating"].(map[string]any)["code"])
	assert.Equal(t, "Overall Satisfaction is required", errs["overall_rating"].(map[string]any)["message"])
	assert.Equal(t, "length_out_of_range", errs["comments"].(map[string]any)["code"])

	w = ts.public(http.MethodPost, "/api/forms/feedback/responses", map[string]any{"responses": validAnswers})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	assert.Equal(t, "Response submitted successfully", created["message"])
	assert.NotEmpty(t, created["id"])

	w = ts.admin(http.MethodGet, "/api/admin/forms/feedback/responses", nil)
	require.Equal(t, http.StatusOK, w.Code)
	responses := decode(t, w)["responses"].([]any)
	require.Len(t, responses, 1)
	stored := responses[0].(map[string]any)
	assert.Equal(t, created["id"], stored["id"])
	assert.Equal(t, "192.0.2.1", stored["ip"])
	assert.Equal(t, []any{"App"}, stored["data"].(map[string]any)["features_used"])

	w = ts.public(http.MethodPost, "/api/forms/nope/responses", map[string]any{"responses": validAnswers})
	assert.Equal(t, http.StatusNotFound, w.Code)

	r := httptest.NewRequest(http.MethodPost, "/api/forms/feedback/responses", strings.NewReader("{"))
	assert.Equal(t, http.StatusBadRequest, ts.serve(r).Code)
}

func TestSingleResponsePerAddress(t *testing.T) {
	ts := newTestServer(t, true)

	w := ts.public(http.MethodPost, "/api/forms/feedback/responses", map[string]any{"responses": validAnswers})
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.public(http.MethodPost, "/api/forms/feedback/responses", map[string]any{"responses": validAnswers})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.public(http.MethodGet, "/api/forms/feedback", nil)
	assert.Equal(t, true, decode(t, w)["submitted"])

	for _, spoofed := range []string{"1.1.1.1", "2.2.2.2"} {
		r := ts.request(http.MethodPost, "/api/forms/feedback/responses", map[string]any{"responses": validAnswers})
		r.Header.Set("X-Real-IP", spoofed)
		r.Header.Set("X-Forwarded-For", spoofed)
		assert.Equal(t, http.StatusConflict, ts.serve(r).Code, "address header %s", spoofed)
	}

	r := ts.request(http.MethodPost, "/api/forms/feedback/responses", map[string]any{"responses": validAnswers})
	r.RemoteAddr = "198.51.100.7:5555"
	assert.Equal(t, http.StatusCreated, ts.serve(r).Code)
}

func TestSingleResponseBehindProxy(t *testing.T) {
	ts := newTestServer(t, true)
	ts.app.TrustProxy = true
	ts.handler = Wire(ts.app)

	submit := func(client string) int {
		r := ts.request(http.MethodPost, "/api/forms/feedback/responses", map[string]any{"responses": validAnswers})
		r.Header.Set("X-Real-IP", client)
		return ts.serve(r).Code
	}
	assert.Equal(t, http.StatusCreated, submit("203.0.113.1"))
	assert.Equal(t, http.StatusConflict, submit("203.0.113.1"))
	assert.Equal(t, http.StatusCreated, submit("203.0.113.2"))

	responses, err := ts.app.ListResponses(context.Background(), "feedback")
	require.NoError(t, err)
	require.Len(t, responses, 2)
	assert.Equal(t, "203.0.113.1", responses[0].IP)
}

func TestAdminAuth(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.public(http.MethodGet, "/api/admin/forms", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	r.SetBasicAuth(adminUser, "wrong")
	assert.Equal(t, http.StatusUnauthorized, ts.serve(r).Code)

	r = httptest.NewRequest(http.MethodPost, "/api/login", nil)
	assert.Equal(t, http.StatusUnauthorized, ts.serve(r).Code)

	w = ts.admin(http.MethodGet, "/api/admin/forms", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["forms"], 1)
}

func TestRefreshToken(t *testing.T) {
	ts := newTestServer(t, false)
	tokens := ts.login(adminUser, adminPassword)
	refresh := tokens["refresh_token"].(string)

	r := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
	r.Header.Set("authorization", "Refresh "+refresh)
	w := ts.serve(r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decode(t, w)["access_token"])

	r = httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
	r.Header.Set("authorization", "Refresh "+refresh)
	assert.Equal(t, http.StatusUnauthorized, ts.serve(r).Code, "refresh tokens are single use")

	r = httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, ts.serve(r).Code)
}

func TestFormCRUD(t *testing.T) {
	ts := newTestServer(t, false)

	form := storetest.SampleForm("")
	form.Title = "  Team  Lunch Poll "
	w := ts.admin(http.MethodPost, "/api/admin/forms", form)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "team-lunch-poll", decode(t, w)["slug"])

	w = ts.admin(http.MethodPost, "/api/admin/forms", form)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.admin(http.MethodPost, "/api/admin/forms", map[string]any{"slug": "x", "fields": []any{
		map[string]any{"id": "a", "type": "checkbox", "label": "A"},
	}})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.ElementsMatch(t, []any{
		"title is empty",
		"field a: checkbox field needs at least one option",
	}, decode(t, w)["errors"])

	form.Title = "Team Lunch Poll (final)"
	form.Slug = "ignored"
	w = ts.admin(http.MethodPut, "/api/admin/forms/team-lunch-poll", form)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode(t, w)
	assert.Equal(t, "team-lunch-poll", updated["slug"])
	assert.Equal(t, "Team Lunch Poll (final)", updated["title"])

	form.Title = ""
	w = ts.admin(http.MethodPut, "/api/admin/forms/team-lunch-poll", form)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	form.Title = "Ghost"
	w = ts.admin(http.MethodPut, "/api/admin/forms/ghost", form)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.admin(http.MethodGet, "/api/admin/forms/team-lunch-poll", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.admin(http.MethodDelete, "/api/admin/forms/team-lunch-poll", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = ts.admin(http.MethodGet, "/api/admin/forms/team-lunch-poll", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.admin(http.MethodDelete, "/api/admin/forms/team-lunch-poll", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func fieldIDs(t *testing.T, form map[string]any) []string {
	t.Helper()
	var ids []string
	for _, f := range form["fields"].([]any) {
		ids = append(ids, f.(map[string]any)["id"].(string))
	}
	return ids
}

func TestFieldEditor(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.admin(http.MethodPost, "/api/admin/forms/feedback/fields", map[string]any{"type": "multiple-choice"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	field := body["field"].(map[string]any)
	assert.Equal(t, "field_1", field["id"])
	assert.Equal(t, "Multiple-choice Field", field["label"])
	assert.Equal(t, []any{"Option 1", "Option 2"}, field["options"])
	assert.Equal(t,
		[]string{"overall_rating", "service_quality", "features_used", "comments", "field_1"},
		fieldIDs(t, body["form"].(map[string]any)))

	w = ts.admin(http.MethodPost, "/api/admin/forms/feedback/fields", map[string]any{"type": "slider"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.admin(http.MethodPost, "/api/admin/forms/feedback/fields/move", map[string]any{"from": 4, "to": 0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t,
		[]string{"field_1", "overall_rating", "service_quality", "features_used", "comments"},
		fieldIDs(t, decode(t, w)))

	w = ts.admin(http.MethodPost, "/api/admin/forms/feedback/fields/move", map[string]any{"from": 0, "to": 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.admin(http.MethodPut, "/api/admin/forms/feedback/fields/field_1", map[string]any{
		"type":       "text",
		"label":      "Nickname",
		"required":   true,
		"options":    []string{"stale"},
		"validation": map[string]any{"maxLength": 20},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode(t, w)["fields"].([]any)[0].(map[string]any)
	assert.Equal(t, "field_1", updated["id"])
	assert.Equal(t, "Nickname", updated["label"])
	assert.NotContains(t, updated, "options")
	assert.EqualValues(t, 20, updated["validation"].(map[string]any)["maxLength"])

	w = ts.admin(http.MethodPut, "/api/admin/forms/feedback/fields/ghost", map[string]any{"type": "text"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.admin(http.MethodPut, "/api/admin/forms/feedback/fields/features_used", map[string]any{
		"type":    "checkbox",
		"label":   "Features",
		"options": []string{},
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Len(t, decode(t, w)["errors"], 1)

	w = ts.admin(http.MethodPut, "/api/admin/forms/feedback/fields/comments", map[string]any{
		"type":       "text",
		"label":      "Comments",
		"validation": map[string]any{"minLength": 10, "maxLength": 2, "pattern": "("},
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Len(t, decode(t, w)["errors"], 2)

	stored, err := ts.app.LoadForm(context.Background(), "feedback")
	require.NoError(t, err)
	require.NoError(t, stored.Check())
	features, _ := stored.Field("features_used")
	assert.NotEmpty(t, features.Options)

	w = ts.admin(http.MethodDelete, "/api/admin/forms/feedback/fields/service_quality", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t,
		[]string{"field_1", "overall_rating", "features_used", "comments"},
		fieldIDs(t, decode(t, w)))

	w = ts.admin(http.MethodDelete, "/api/admin/forms/feedback/fields/service_quality", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.admin(http.MethodPost, "/api/admin/forms/nope/fields", map[string]any{"type": "text"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFieldEditorOneEditAtATime(t *testing.T) {
	ts := newTestServer(t, false)

	require.True(t, ts.app.Guard.Acquire(editKey("feedback")))
	w := ts.admin(http.MethodPost, "/api/admin/forms/feedback/fields", map[string]any{"type": "text"})
	assert.Equal(t, http.StatusConflict, w.Code)

	form, err := ts.app.LoadForm(context.Background(), "feedback")
	require.NoError(t, err)
	assert.Len(t, form.Fields, 4)

	ts.app.Guard.Release(editKey("feedback"))
	w = ts.admin(http.MethodPost, "/api/admin/forms/feedback/fields", map[string]any{"type": "text"})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestDrafts(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.admin(http.MethodGet, "/api/admin/drafts/unnamed", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	incomplete := map[string]any{"title": "", "fields": []any{
		map[string]any{"id": "field_1", "type": "multiple-choice", "label": "Pick"},
	}}
	w = ts.admin(http.MethodPost, "/api/admin/drafts", incomplete)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "unnamed", decode(t, w)["key"])

	w = ts.admin(http.MethodGet, "/api/admin/drafts/unnamed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"field_1"}, fieldIDs(t, decode(t, w)))

	w = ts.admin(http.MethodPut, "/api/admin/drafts/feedback", map[string]any{"slug": "feedback", "title": "WIP"})
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.admin(http.MethodGet, "/api/admin/drafts/feedback", nil)
	assert.Equal(t, "WIP", decode(t, w)["title"])
}

func TestAnalytics(t *testing.T) {
	ts := newTestServer(t, false)

	for _, rating := range []int{5, 4, 5} {
		answers := map[string]any{}
		for k, v := range validAnswers {
			answers[k] = v
		}
		answers["overall_rating"] = rating
		w := ts.public(http.MethodPost, "/api/forms/feedback/responses", map[string]any{"responses": answers})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := ts.admin(http.MethodGet, "/api/admin/forms/feedback/analytics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 3, body["totalResponses"])
	fields := body["fields"].([]any)
	require.Len(t, fields, 4)
	rating := fields[0].(map[string]any)
	assert.Equal(t, "overall_rating", rating["fieldId"])
	assert.EqualValues(t, 4.7, rating["average"])
	for _, f := range fields[1:] {
		assert.NotContains(t, f, "average")
	}

	w = ts.admin(http.MethodGet, "/api/admin/analytics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	overview := decode(t, w)
	assert.EqualValues(t, 1, overview["totalForms"])
	assert.EqualValues(t, 3, overview["totalResponses"])
	assert.EqualValues(t, 3, overview["thisWeek"])

	w = ts.admin(http.MethodGet, "/api/admin/forms/nope/analytics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDemoResponses(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.admin(http.MethodPost, "/api/admin/forms/feedback/demo-responses?count=7", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.EqualValues(t, 7, decode(t, w)["created"])

	w = ts.admin(http.MethodPost, "/api/admin/forms/feedback/demo-responses", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.EqualValues(t, 10, decode(t, w)["created"])

	w = ts.admin(http.MethodGet, "/api/admin/forms/feedback/responses", nil)
	assert.Len(t, decode(t, w)["responses"], 17)

	for _, bad := range []string{"0", "101", "many"} {
		w = ts.admin(http.MethodPost, "/api/admin/forms/feedback/demo-responses?count="+bad, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
}

func TestAnalyticsStream(t *testing.T) {
	ts := newTestServer(t, false)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/analytics"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token=forged", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	w := ts.admin(http.MethodPost, "/api/admin/stream-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ticket := decode(t, w)
	assert.EqualValues(t, 60, ticket["expiresIn"])

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+ticket["token"].(string), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return ts.app.Hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	body, err := json.Marshal(map[string]any{"responses": validAnswers})
	require.NoError(t, err)
	res, err := http.Post(srv.URL+"/api/forms/feedback/responses", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event struct {
		Type string                  `json:"type"`
		Data realtime.ResponseNotice `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, realtime.NewResponse, event.Type)
	assert.Equal(t, "feedback", event.Data.FormSlug)
	assert.Equal(t, "Customer Feedback Survey", event.Data.FormTitle)
	assert.NotEmpty(t, event.Data.ResponseID)
}
