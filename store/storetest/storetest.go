// Package storetest runs the same behavioural checks against every store.Store.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbolis/quick-form/model"
	"github.com/mbolis/quick-form/store"
)

func intp(n int) *int { return &n }

func SampleForm(slug string) model.FormDefinition {
	return model.FormDefinition{
		Slug:        slug,
		Title:       "Customer Feedback Survey",
		Description: "Help us improve",
		Fields: []model.FieldDefinition{
			{ID: "overall_rating", Type: model.Rating, Label: "Overall Satisfaction", Required: true},
			{ID: "service_quality", Type: model.MultipleChoice, Label: "Quality", Options: []string{"Good", "Poor"}, Required: true},
			{ID: "features_used", Type: model.Checkbox, Label: "Features", Options: []string{"Portal", "App"}},
			{ID: "comments", Type: model.Text, Label: "Comments", Validation: &model.Validation{MinLength: intp(10), MaxLength: intp(500)}},
		},
	}
}

func sampleResponse(id string, at time.Time, ip string) model.ResponseRecord {
	return model.ResponseRecord{
		ID:        id,
		Timestamp: at,
		IP:        ip,
		Data: map[string]model.Value{
			"overall_rating":  model.RatingValue(4),
			"service_quality": model.ChoiceValue("Good"),
			"features_used":   model.CheckboxValue{"App", "Portal"},
			"comments":        model.TextValue("really quite good"),
		},
	}
}

// Run exercises s, which must start empty.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("Forms", func(t *testing.T) { testForms(t, newStore(t)) })
	t.Run("Drafts", func(t *testing.T) { testDrafts(t, newStore(t)) })
	t.Run("Responses", func(t *testing.T) { testResponses(t, newStore(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
}

func testForms(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.LoadForm(ctx, "customer-feedback")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	created, err := s.CreateForm(ctx, SampleForm("customer-feedback"))
	require.NoError(t, err)
	assert.False(t, created.CreatedAt.IsZero())

	_, err = s.CreateForm(ctx, SampleForm("customer-feedback"))
	assert.ErrorIs(t, err, store.ErrExists)

	loaded, err := s.LoadForm(ctx, "customer-feedback")
	require.NoError(t, err)
	assert.Equal(t, SampleForm("customer-feedback").Fields, loaded.Fields)
	assert.Equal(t, "Customer Feedback Survey", loaded.Title)

	loaded.Title = "Renamed"
	loaded.Fields[0], loaded.Fields[3] = loaded.Fields[3], loaded.Fields[0]
	loaded.Fields = loaded.Fields[:3]
	saved, err := s.SaveForm(ctx, loaded)
	require.NoError(t, err)
	assert.Equal(t, created.CreatedAt.Unix(), saved.CreatedAt.Unix())

	reloaded, err := s.LoadForm(ctx, "customer-feedback")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", reloaded.Title)
	assert.Equal(t, loaded.Fields, reloaded.Fields)

	_, err = s.SaveForm(ctx, SampleForm("event-registration"))
	require.NoError(t, err)

	forms, err := s.ListForms(ctx)
	require.NoError(t, err)
	require.Len(t, forms, 2)
	assert.Equal(t, "customer-feedback", forms[0].Slug)
	assert.Equal(t, "event-registration", forms[1].Slug)

	require.NoError(t, s.DeleteForm(ctx, "customer-feedback"))
	assert.ErrorIs(t, s.DeleteForm(ctx, "customer-feedback"), store.ErrNotFound)
	_, err = s.LoadForm(ctx, "customer-feedback")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testDrafts(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.LoadDraft(ctx, store.UnnamedDraft)
	assert.ErrorIs(t, err, store.ErrNotFound)

	incomplete := model.FormDefinition{Fields: []model.FieldDefinition{{ID: "field_1", Type: model.MultipleChoice}}}
	require.NoError(t, s.SaveDraft(ctx, store.DraftKey(""), incomplete))

	draft, err := s.LoadDraft(ctx, store.UnnamedDraft)
	require.NoError(t, err)
	assert.Equal(t, incomplete.Fields, draft.Fields)

	incomplete.Title = "Now titled"
	require.NoError(t, s.SaveDraft(ctx, store.UnnamedDraft, incomplete))
	draft, err = s.LoadDraft(ctx, store.UnnamedDraft)
	require.NoError(t, err)
	assert.Equal(t, "Now titled", draft.Title)

	_, err = s.LoadForm(ctx, store.UnnamedDraft)
	assert.ErrorIs(t, err, store.ErrNotFound, "drafts are not published forms")
}

func testResponses(t *testing.T, s store.Store) {
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	err := s.AppendResponse(ctx, "nope", sampleResponse("r0", t0, ""))
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.ListResponses(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.CreateForm(ctx, SampleForm("customer-feedback"))
	require.NoError(t, err)

	rs, err := s.ListResponses(ctx, "customer-feedback")
	require.NoError(t, err)
	assert.Empty(t, rs)

	require.NoError(t, s.AppendResponse(ctx, "customer-feedback", sampleResponse("r2", t0.Add(time.Minute), "10.0.0.2")))
	require.NoError(t, s.AppendResponse(ctx, "customer-feedback", sampleResponse("r1", t0, "10.0.0.1")))

	rs, err = s.ListResponses(ctx, "customer-feedback")
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Equal(t, "r1", rs[0].ID)
	assert.Equal(t, "r2", rs[1].ID)
	assert.Equal(t, "customer-feedback", rs[0].FormSlug)
	assert.True(t, t0.Equal(rs[0].Timestamp))
	assert.Equal(t, sampleResponse("r1", t0, "").Data, rs[0].Data)

	ok, err := s.HasResponseFrom(ctx, "customer-feedback", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.HasResponseFrom(ctx, "customer-feedback", "10.0.0.9")
	require.NoError(t, err)
	assert.False(t, ok)

	// answers to removed fields disappear, the rest survives
	form, err := s.LoadForm(ctx, "customer-feedback")
	require.NoError(t, err)
	require.True(t, form.RemoveField("comments"))
	_, err = s.SaveForm(ctx, form)
	require.NoError(t, err)
	rs, err = s.ListResponses(ctx, "customer-feedback")
	require.NoError(t, err)
	assert.NotContains(t, rs[0].Data, "comments")
	assert.Equal(t, model.RatingValue(4), rs[0].Data["overall_rating"])

	require.NoError(t, s.DeleteForm(ctx, "customer-feedback"))
	_, err = s.CreateForm(ctx, SampleForm("customer-feedback"))
	require.NoError(t, err)
	rs, err = s.ListResponses(ctx, "customer-feedback")
	require.NoError(t, err)
	assert.Empty(t, rs, "responses never outlive their form")
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.PasswordHash(ctx, "admin")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.PutUser(ctx, "admin", []byte("hash-1")))
	require.NoError(t, s.PutUser(ctx, "admin", []byte("hash-2")))
	hash, err := s.PasswordHash(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, []byte("hash-2"), hash)

	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.StoreToken(ctx, "admin", "tok", "ref", exp))

	got, err := s.ConsumeToken(ctx, "admin", "tok", "ref")
	require.NoError(t, err)
	assert.True(t, exp.Equal(got))

	_, err = s.ConsumeToken(ctx, "admin", "tok", "ref")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
