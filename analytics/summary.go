// Package analytics reduces stored responses to chartable summaries.
package analytics

import (
	"math"
	"sort"
	"strings"

	"github.com/mbolis/quick-form/model"
)

// RecentTextAnswers is how many text answers a summary keeps.
const RecentTextAnswers = 5

type Chart string

const (
	ChartList Chart = "list"
	ChartBar  Chart = "bar"
	ChartPie  Chart = "pie"
)

type OptionCount struct {
	Option string `json:"option"`
	Count  int    `json:"count"`
}

type FieldSummary struct {
	FieldID string          `json:"fieldId"`
	Label   string          `json:"label"`
	Type    model.FieldType `json:"type"`
	Chart   Chart           `json:"chart"`
	// Total counts the responses that answered this field.
	Total int `json:"total"`

	Recent       []string `json:"recent,omitempty"`
	AverageWords float64  `json:"averageWords,omitempty"`

	// Average is set for rating fields only; 0 when nobody answered.
	Average *float64 `json:"average,omitempty"`
	Buckets []int    `json:"buckets,omitempty"`

	Options []OptionCount `json:"options,omitempty"`
}

// Chronological returns a copy of responses ordered by timestamp. Ties keep
// their input order.
func Chronological(responses []model.ResponseRecord) []model.ResponseRecord {
	sorted := append([]model.ResponseRecord(nil), responses...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// Summarize reduces every answer to field f. The result depends only on the
// field definition and the responses; neither is modified.
func Summarize(f model.FieldDefinition, responses []model.ResponseRecord) FieldSummary {
	s := FieldSummary{FieldID: f.ID, Label: f.Label, Type: f.Type}
	ordered := Chronological(responses)

	switch f.Type {
	case model.Text:
		s.Chart = ChartList
		summarizeText(&s, f, ordered)
	case model.Rating:
		s.Chart = ChartBar
		summarizeRating(&s, f, ordered)
	case model.MultipleChoice:
		s.Chart = ChartBar
		summarizeOptions(&s, f, ordered)
	case model.Checkbox:
		s.Chart = ChartPie
		summarizeOptions(&s, f, ordered)
	}
	return s
}

// SummarizeForm summarizes each field of form, in field order.
func SummarizeForm(form model.FormDefinition, responses []model.ResponseRecord) []FieldSummary {
	summaries := make([]FieldSummary, len(form.Fields))
	for i, f := range form.Fields {
		summaries[i] = Summarize(f, responses)
	}
	return summaries
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

func summarizeText(s *FieldSummary, f model.FieldDefinition, responses []model.ResponseRecord) {
	var answers []string
	words := 0
	for _, r := range responses {
		v, ok := r.Data[f.ID].(model.TextValue)
		if !ok || v == "" {
			continue
		}
		answers = append(answers, string(v))
		words += len(strings.Fields(string(v)))
	}

	s.Total = len(answers)
	if len(answers) > RecentTextAnswers {
		answers = answers[len(answers)-RecentTextAnswers:]
	}
	s.Recent = append([]string{}, answers...)
	if s.Total > 0 {
		s.AverageWords = round1(float64(words) / float64(s.Total))
	}
}

func summarizeRating(s *FieldSummary, f model.FieldDefinition, responses []model.ResponseRecord) {
	s.Buckets = make([]int, model.MaxRating-model.MinRating+1)
	sum := 0
	for _, r := range responses {
		v, ok := r.Data[f.ID].(model.RatingValue)
		if !ok {
			continue
		}
		s.Total++
		sum += int(v)
		if v >= model.MinRating && v <= model.MaxRating {
			s.Buckets[v-model.MinRating]++
		}
	}
	average := 0.0
	if s.Total > 0 {
		average = round1(float64(sum) / float64(s.Total))
	}
	s.Average = &average
}

func summarizeOptions(s *FieldSummary, f model.FieldDefinition, responses []model.ResponseRecord) {
	index := make(map[string]int, len(f.Options))
	s.Options = make([]OptionCount, len(f.Options))
	for i, opt := range f.Options {
		s.Options[i] = OptionCount{Option: opt}
		if _, dup := index[opt]; !dup {
			index[opt] = i
		}
	}

	count := func(selected string) {
		if i, ok := index[selected]; ok {
			s.Options[i].Count++
		}
	}

	for _, r := range responses {
		switch v := r.Data[f.ID].(type) {
		case model.ChoiceValue:
			if f.Type != model.MultipleChoice || v == "" {
				continue
			}
			s.Total++
			count(string(v))
		case model.CheckboxValue:
			if f.Type != model.Checkbox || len(v) == 0 {
				continue
			}
			s.Total++
			for _, selected := range v {
				count(selected)
			}
		}
	}
}
