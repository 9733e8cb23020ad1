// Package mockdata fabricates demo responses for dashboards that have none.
// Nothing in the analytics path depends on it.
package mockdata

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/mbolis/quick-form/model"
)

const (
	DemoIP = "demo"
	Window = 7 * 24 * time.Hour
)

var TextAnswers = []string{
	"Great service!",
	"Could be better",
	"Excellent experience",
	"Good overall",
	"Amazing quality",
	"Fast delivery",
	"Professional team",
	"Highly recommended",
	"Outstanding support",
}

type Generator struct {
	rand *rand.Rand
	now  func() time.Time
}

func New(r *rand.Rand, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{rand: r, now: now}
}

// Response makes one answer for every field of form, submitted at some point
// within the last Window.
func (g *Generator) Response(form model.FormDefinition) (model.ResponseRecord, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return model.ResponseRecord{}, err
	}

	data := map[string]model.Value{}
	for _, f := range form.Fields {
		if v := g.value(f); v != nil {
			data[f.ID] = v
		}
	}

	age := time.Duration(g.rand.Int63n(int64(Window)))
	return model.ResponseRecord{
		ID:        id.String(),
		FormSlug:  form.Slug,
		Timestamp: g.now().Add(-age).UTC(),
		IP:        DemoIP,
		Data:      data,
	}, nil
}

func (g *Generator) Responses(form model.FormDefinition, n int) ([]model.ResponseRecord, error) {
	out := make([]model.ResponseRecord, 0, n)
	for i := 0; i < n; i++ {
		r, err := g.Response(form)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (g *Generator) value(f model.FieldDefinition) model.Value {
	switch f.Type {
	case model.Text:
		return model.TextValue(TextAnswers[g.rand.Intn(len(TextAnswers))])
	case model.MultipleChoice:
		if len(f.Options) == 0 {
			return nil
		}
		return model.ChoiceValue(f.Options[g.rand.Intn(len(f.Options))])
	case model.Checkbox:
		if len(f.Options) == 0 {
			return nil
		}
		picked := make([]string, len(f.Options))
		copy(picked, f.Options)
		g.rand.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
		return model.CheckboxValue(picked[:g.rand.Intn(len(picked))+1])
	case model.Rating:
		return model.RatingValue(g.rand.Intn(model.MaxRating-model.MinRating+1) + model.MinRating)
	}
	return nil
}
