package mockdata

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbolis/quick-form/model"
	"github.com/mbolis/quick-form/store/storetest"
)

func TestResponses(t *testing.T) {
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	g := New(rand.New(rand.NewSource(42)), func() time.Time { return now })
	form := storetest.SampleForm("customer-feedback")

	rs, err := g.Responses(form, 50)
	require.NoError(t, err)
	require.Len(t, rs, 50)

	ids := map[string]bool{}
	for _, r := range rs {
		assert.False(t, ids[r.ID], "duplicate id %s", r.ID)
		ids[r.ID] = true

		assert.Equal(t, "customer-feedback", r.FormSlug)
		assert.Equal(t, DemoIP, r.IP)
		assert.False(t, r.Timestamp.After(now))
		assert.True(t, r.Timestamp.After(now.Add(-Window)))

		rating, ok := r.Data["overall_rating"].(model.RatingValue)
		require.True(t, ok)
		assert.GreaterOrEqual(t, int(rating), model.MinRating)
		assert.LessOrEqual(t, int(rating), model.MaxRating)

		choice, ok := r.Data["service_quality"].(model.ChoiceValue)
		require.True(t, ok)
		assert.Contains(t, form.Fields[1].Options, string(choice))

		boxes, ok := r.Data["features_used"].(model.CheckboxValue)
		require.True(t, ok)
		assert.NotEmpty(t, boxes)
		assert.Subset(t, form.Fields[2].Options, []string(boxes))

		text, ok := r.Data["comments"].(model.TextValue)
		require.True(t, ok)
		assert.Contains(t, TextAnswers, string(text))
	}
}

func TestChoiceWithoutOptionsIsSkipped(t *testing.T) {
	g := New(rand.New(rand.NewSource(1)), nil)
	form := model.FormDefinition{Slug: "s", Fields: []model.FieldDefinition{
		{ID: "c", Type: model.Checkbox},
		{ID: "m", Type: model.MultipleChoice},
	}}

	r, err := g.Response(form)
	require.NoError(t, err)
	assert.Empty(t, r.Data)
}

func TestSameSeedSameAnswers(t *testing.T) {
	now := time.Now()
	form := storetest.SampleForm("s")
	a, err := New(rand.New(rand.NewSource(7)), func() time.Time { return now }).Response(form)
	require.NoError(t, err)
	b, err := New(rand.New(rand.NewSource(7)), func() time.Time { return now }).Response(form)
	require.NoError(t, err)

	assert.Equal(t, a.Data, b.Data)
	assert.Equal(t, a.Timestamp, b.Timestamp)
	assert.NotEqual(t, a.ID, b.ID)
}
