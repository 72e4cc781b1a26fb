package model

// Dashboard section names used as keys of DashboardView.Errors
const (
	SectionProfile         = "profile"
	SectionGaps            = "gaps"
	SectionRecommendations = "recommendations"
	SectionMeta            = "meta"
	SectionHistory         = "history"
)

// DashboardView is the read model behind the student and parent dashboards.
// Sections load independently; a failed section is absent and its message is
// kept in Errors.
type DashboardView struct {
	ReaderID        string                    `json:"readerId"`
	AgeGroup        string                    `json:"ageGroup"`
	Profile         *ReaderProfile            `json:"profile,omitempty"`
	TopConcepts     []ConceptScore            `json:"topConcepts"`
	Deficits        []GapSummaryItem          `json:"deficits"`
	Strengths       []GapSummaryItem          `json:"strengths"`
	Recommendations []ExplainedRecommendation `json:"recommendations"`
	MaxScore        float64                   `json:"maxScore"`
	Meta            *ProfileMeta              `json:"meta,omitempty"`
	History         []ProfileEvent            `json:"history"`
	Errors          map[string]string         `json:"errors,omitempty"`
}

// RecentChildren is the parent's quick-pick list
type RecentChildren struct {
	Children []string `json:"children"`
}
