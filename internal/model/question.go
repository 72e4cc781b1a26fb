package model

// Scale labels a group of questionnaire items
type Scale string

// Core value scales. The labels double as concept keys on the recommendation backend.
const (
	ScaleMoralChoice    Scale = "нравственный_выбор"
	ScaleResponsibility Scale = "ответственность"
	ScaleHonorDignity   Scale = "честь_и_достоинство"
	ScaleMeaningOfLife  Scale = "смысл_жизни"
	ScaleLove           Scale = "любовь"
	ScaleCollectivism   Scale = "коллективизм"
	ScalePatriotism     Scale = "патриотизм"
	ScaleFreedom        Scale = "свобода"
	ScaleSelfDevelop    Scale = "саморазвитие"
)

// Meta scales never reach the concept vector
const (
	ScaleSocialDesirability Scale = "__sd__"
	ScaleAttention          Scale = "__attention__"
)

// CoreScales lists the nine value scales in display order
var CoreScales = []Scale{
	ScaleMoralChoice,
	ScaleResponsibility,
	ScaleHonorDignity,
	ScaleMeaningOfLife,
	ScaleLove,
	ScaleCollectivism,
	ScalePatriotism,
	ScaleFreedom,
	ScaleSelfDevelop,
}

// IsCore reports whether s is one of the nine value scales
func (s Scale) IsCore() bool {
	for _, c := range CoreScales {
		if c == s {
			return true
		}
	}
	return false
}

// QuestionItem is a single Likert statement of the questionnaire bank
type QuestionItem struct {
	ID        string `json:"id" bson:"_id" yaml:"id"`
	Scale     Scale  `json:"scale" bson:"scale" yaml:"scale"`
	Title     string `json:"title" bson:"title" yaml:"title"`
	Text      string `json:"text" bson:"text" yaml:"text"`
	Reversed  bool   `json:"reversed,omitempty" bson:"reversed" yaml:"reversed"`
	Attention bool   `json:"attention,omitempty" bson:"attention" yaml:"attention"`
	Expected  int    `json:"-" bson:"expected,omitempty" yaml:"expected,omitempty"` // attention item only
	Position  int    `json:"-" bson:"position" yaml:"-"`                            // bank order in storage
}

// QuestionView is what the wizard shows for the current step
type QuestionView struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// View strips scoring metadata from an item
func (q QuestionItem) View() QuestionView {
	return QuestionView{ID: q.ID, Title: q.Title, Text: q.Text}
}
