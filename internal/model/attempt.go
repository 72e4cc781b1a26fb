package model

import "time"

// QuestionnaireAttempt records a questionnaire accepted by the backend
type QuestionnaireAttempt struct {
	ID          string             `json:"id" bson:"_id,omitempty"`
	SessionID   string             `json:"sessionId" bson:"sessionId"`
	ReaderID    string             `json:"readerId" bson:"readerId"`
	AgeGroup    string             `json:"ageGroup" bson:"ageGroup"`
	Answers     map[string]int     `json:"answers" bson:"answers"`
	ScaleMeans  map[string]float64 `json:"scaleMeans" bson:"scaleMeans"`
	SDMean      float64            `json:"sdMean" bson:"sdMean"`
	Penalty     float64            `json:"penalty" bson:"penalty"`
	Concepts    ConceptVector      `json:"concepts" bson:"concepts"`
	SubmittedAt time.Time          `json:"submittedAt" bson:"submittedAt"`
}
