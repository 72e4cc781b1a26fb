package model

import "time"

type QuestionnaireStatus string

const (
	QuestionnaireActive    QuestionnaireStatus = "active"
	QuestionnaireCompleted QuestionnaireStatus = "completed"
)

// WizardState is the serialisable state of the response collector
type WizardState struct {
	Order     []string       `json:"order" bson:"order"` // item ids in presentation order
	Answers   map[string]int `json:"answers" bson:"answers"`
	Step      int            `json:"step" bson:"step"`
	Consent   bool           `json:"consent" bson:"consent"`
	Completed bool           `json:"completed" bson:"completed"`
}

// QuestionnaireSession is one test-taking session of a reader
type QuestionnaireSession struct {
	ID          string              `json:"id" bson:"_id,omitempty"`
	ReaderID    string              `json:"readerId" bson:"readerId"`
	AgeGroup    string              `json:"ageGroup" bson:"ageGroup"`
	Status      QuestionnaireStatus `json:"status" bson:"status"`
	State       WizardState         `json:"state" bson:"state"`
	CreatedAt   time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt" bson:"updatedAt"`
	CompletedAt *time.Time          `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
}

// QuestionnaireView is returned to the dashboard after every transition
type QuestionnaireView struct {
	SessionID string              `json:"sessionId"`
	Status    QuestionnaireStatus `json:"status"`
	AgeGroup  string              `json:"ageGroup"`
	Step      int                 `json:"step"`  // zero based
	Total     int                 `json:"total"` // number of items
	Progress  int                 `json:"progress"`
	Answered  int                 `json:"answered"`
	Question  QuestionView        `json:"question"`
	Answer    int                 `json:"answer,omitempty"` // recorded value for the current item
	Consent   bool                `json:"consent"`
	IsFirst   bool                `json:"isFirst"`
	IsLast    bool                `json:"isLast"`
}

// SubmitResult is returned once a questionnaire has been accepted by the backend
type SubmitResult struct {
	View     *QuestionnaireView `json:"questionnaire"`
	Concepts ConceptVector      `json:"concepts"`
	Profile  *ReaderProfile     `json:"profile"`
}
