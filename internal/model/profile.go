package model

// ConceptVector maps a concept label to a strength in [0,1]
type ConceptVector map[string]float64

// ReaderProfile is the backend's view of a reader
type ReaderProfile struct {
	ID       string        `json:"id"`
	Age      string        `json:"age"`
	Concepts ConceptVector `json:"concepts"`
}

// DefaultAgeGroup is used when a reader has no profile yet
const DefaultAgeGroup = "16+"

type Work struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Author   string        `json:"author"`
	Age      string        `json:"age"`
	Concepts ConceptVector `json:"concepts"`
}

type GapDirection string

const (
	GapBelow GapDirection = "below"
	GapAbove GapDirection = "above"
)

// GapSummaryItem is one concept's distance from the age target
type GapSummaryItem struct {
	Concept   string       `json:"concept"`
	Target    float64      `json:"target"`
	Current   float64      `json:"current"`
	Gap       float64      `json:"gap"`
	Direction GapDirection `json:"direction"`
}

type ExplainMatch struct {
	Concept string  `json:"concept"`
	Deficit float64 `json:"deficit"`
	Weight  float64 `json:"weight"`
}

// Recommendation modes reported by the backend
const (
	ModeCorrection = "correction"
	ModeDeepening  = "deepening"
)

type ExplainWhy struct {
	Deficits []ExplainMatch    `json:"deficits"`
	Gaps     []GapSummaryItem `json:"gaps,omitempty"`
	Score    float64          `json:"score"`
	Mode     string           `json:"mode,omitempty"`
}

// ExplainedRecommendation is a work plus the deficits it addresses.
// MatchPercent is filled in by the gateway relative to the best score on the list.
type ExplainedRecommendation struct {
	Work         Work       `json:"work"`
	Why          ExplainWhy `json:"why"`
	MatchPercent int        `json:"match_percent"`
}

// ProfileMeta summarises how a profile was built
type ProfileMeta struct {
	ReaderID     string  `json:"reader_id"`
	TestCount    int     `json:"test_count"`
	TextCount    int     `json:"text_count"`
	LastUpdateAt *string `json:"last_update_at"`
	LastSource   *string `json:"last_source"`
	LastTestAt   *string `json:"last_test_at"`
	LastTextAt   *string `json:"last_text_at"`
}

type ProfileEventType string

const (
	EventTest ProfileEventType = "test"
	EventText ProfileEventType = "text"
)

// ProfileEvent is one entry of the backend's profile history
type ProfileEvent struct {
	ID           int64            `json:"id"`
	ReaderID     string           `json:"reader_id"`
	CreatedAt    string           `json:"created_at"`
	Type         ProfileEventType `json:"type"`
	Payload      any              `json:"payload"`
	ProfileAfter any              `json:"profile_after"`
}

// RecommendationSnapshot is a saved recommendation list
type RecommendationSnapshot struct {
	ID        int64  `json:"id"`
	ReaderID  string `json:"reader_id"`
	CreatedAt string `json:"created_at"`
	Source    string `json:"source"` // test, text, manual
	TopN      int    `json:"top_n"`
	Gaps      any    `json:"gaps,omitempty"`
	Profile   any    `json:"profile,omitempty"`
	Recs      any    `json:"recs"`
}

// ApplyTestRequest is the body of POST /apply_test
type ApplyTestRequest struct {
	ReaderID     string        `json:"reader_id"`
	Age          string        `json:"age,omitempty"`
	TestConcepts ConceptVector `json:"test_concepts"`
}

// AnalyzeTextRequest is the body of POST /analyze_text
type AnalyzeTextRequest struct {
	ReaderID string `json:"reader_id"`
	Text     string `json:"text"`
}

// Book is an admin catalogue entry
type Book struct {
	ID         string `json:"id" validate:"required"`
	Title      string `json:"title" validate:"required"`
	Author     string `json:"author" validate:"required"`
	Age        string `json:"age,omitempty"`
	Annotation string `json:"annotation,omitempty"`
}

// ConceptScore is a single entry of a sorted concept list
type ConceptScore struct {
	Concept string  `json:"concept"`
	Value   float64 `json:"value"`
}

// AnalyzeTextResponse is returned by POST /analyze_text
type AnalyzeTextResponse struct {
	OK      bool          `json:"ok"`
	Profile ReaderProfile `json:"profile"`
}

// AdminResult is the loosely shaped reply of the admin maintenance endpoints
type AdminResult struct {
	OK      bool         `json:"ok"`
	Added   string       `json:"added,omitempty"`
	Stdout  string       `json:"stdout,omitempty"`
	Rebuild *AdminResult `json:"rebuild,omitempty"`
	Import  *AdminResult `json:"import,omitempty"`
}
