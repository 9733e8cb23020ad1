package analytics

import (
	"sort"
	"time"

	"github.com/mbolis/quick-form/model"
)

const (
	// RecentActivity bounds the activity feed of the overview.
	RecentActivity = 20
	// Week is the window of Overview.ThisWeek.
	Week = 7 * 24 * time.Hour
)

// FormResponses pairs a form with its stored responses.
type FormResponses struct {
	Form      model.FormDefinition
	Responses []model.ResponseRecord
}

type FormCount struct {
	FormSlug      string `json:"formSlug"`
	FormTitle     string `json:"formTitle"`
	ResponseCount int    `json:"responseCount"`
}

type Activity struct {
	FormSlug    string    `json:"formSlug"`
	FormTitle   string    `json:"formTitle"`
	ResponseID  string    `json:"responseId"`
	SubmittedAt time.Time `json:"submittedAt"`
}

type Overview struct {
	TotalForms      int         `json:"totalForms"`
	TotalResponses  int         `json:"totalResponses"`
	AveragePerForm  float64     `json:"averagePerForm"`
	ThisWeek        int         `json:"thisWeek"`
	ResponsesByForm []FormCount `json:"responsesByForm"`
	RecentResponses []Activity  `json:"recentResponses"`
}

// BuildOverview builds the dashboard overview across forms as of now.
func BuildOverview(forms []FormResponses, now time.Time) Overview {
	o := Overview{
		TotalForms:      len(forms),
		ResponsesByForm: make([]FormCount, 0, len(forms)),
		RecentResponses: []Activity{},
	}

	var activity []Activity
	for _, fr := range forms {
		o.TotalResponses += len(fr.Responses)
		o.ResponsesByForm = append(o.ResponsesByForm, FormCount{
			FormSlug:      fr.Form.Slug,
			FormTitle:     fr.Form.Title,
			ResponseCount: len(fr.Responses),
		})
		for _, r := range fr.Responses {
			if !r.Timestamp.After(now) && now.Sub(r.Timestamp) <= Week {
				o.ThisWeek++
			}
			activity = append(activity, Activity{
				FormSlug:    fr.Form.Slug,
				FormTitle:   fr.Form.Title,
				ResponseID:  r.ID,
				SubmittedAt: r.Timestamp,
			})
		}
	}

	sort.SliceStable(activity, func(i, j int) bool {
		return activity[i].SubmittedAt.After(activity[j].SubmittedAt)
	})
	if len(activity) > RecentActivity {
		activity = activity[:RecentActivity]
	}
	o.RecentResponses = append(o.RecentResponses, activity...)

	if o.TotalForms > 0 {
		o.AveragePerForm = round1(float64(o.TotalResponses) / float64(o.TotalForms))
	}
	return o
}
