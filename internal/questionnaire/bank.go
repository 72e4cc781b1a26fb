package questionnaire

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/kkogteva6/ReadingPlatform/internal/model"
)

//go:embed bank.yaml
var referenceBankYAML []byte

// Per-scale item counts of the reference bank. The calibration constants in
// aggregate.go are tuned against these counts and the 1..5 Likert range.
const (
	CoreScaleItems         = 7
	DesirabilityScaleItems = 6
	AttentionExpected      = 4
)

// Bank is an immutable, validated set of questionnaire items
type Bank struct {
	items     []model.QuestionItem
	byID      map[string]model.QuestionItem
	attention model.QuestionItem
}

type bankFile struct {
	Items []model.QuestionItem `yaml:"items"`
}

// NewBank validates items and builds a bank. Item order is kept as given.
func NewBank(items []model.QuestionItem) (*Bank, error) {
	b := &Bank{
		items: make([]model.QuestionItem, len(items)),
		byID:  make(map[string]model.QuestionItem, len(items)),
	}
	copy(b.items, items)

	attentionCount := 0
	perScale := make(map[model.Scale]int)
	for i, q := range b.items {
		if q.ID == "" {
			return nil, fmt.Errorf("%w: item %d has no id", ErrInvalidBank, i)
		}
		if _, dup := b.byID[q.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidBank, q.ID)
		}
		if q.Attention {
			attentionCount++
			if q.Expected < LikertMin || q.Expected > LikertMax {
				return nil, fmt.Errorf("%w: attention item %q expects %d", ErrInvalidBank, q.ID, q.Expected)
			}
			b.attention = q
		} else {
			if !q.Scale.IsCore() && q.Scale != model.ScaleSocialDesirability {
				return nil, fmt.Errorf("%w: item %q has unknown scale %q", ErrInvalidBank, q.ID, q.Scale)
			}
			perScale[q.Scale]++
		}
		b.items[i].Position = i
		b.byID[q.ID] = b.items[i]
	}

	if attentionCount != 1 {
		return nil, fmt.Errorf("%w: want exactly one attention item, got %d", ErrInvalidBank, attentionCount)
	}
	for _, s := range model.CoreScales {
		if perScale[s] != CoreScaleItems {
			return nil, fmt.Errorf("%w: scale %q has %d items, want %d", ErrInvalidBank, s, perScale[s], CoreScaleItems)
		}
	}
	if n := perScale[model.ScaleSocialDesirability]; n != DesirabilityScaleItems {
		return nil, fmt.Errorf("%w: social desirability scale has %d items, want %d", ErrInvalidBank, n, DesirabilityScaleItems)
	}

	return b, nil
}

// ParseBank reads a YAML document with a top level "items" list
func ParseBank(data []byte) (*Bank, error) {
	var f bankFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse question bank: %w", err)
	}
	return NewBank(f.Items)
}

// ReferenceBank returns the bank shipped with the binary
func ReferenceBank() (*Bank, error) {
	return ParseBank(referenceBankYAML)
}

// MustReferenceBank is ReferenceBank for tests and seeding
func MustReferenceBank() *Bank {
	b, err := ReferenceBank()
	if err != nil {
		panic(err)
	}
	return b
}

// Items returns a copy of all items in bank order
func (b *Bank) Items() []model.QuestionItem {
	out := make([]model.QuestionItem, len(b.items))
	copy(out, b.items)
	return out
}

func (b *Bank) Len() int {
	return len(b.items)
}

// Item looks an item up by id
func (b *Bank) Item(id string) (model.QuestionItem, bool) {
	q, ok := b.byID[id]
	return q, ok
}

// Attention returns the single attention-check item
func (b *Bank) Attention() model.QuestionItem {
	return b.attention
}

// Substantive returns every non-attention item in bank order
func (b *Bank) Substantive() []model.QuestionItem {
	out := make([]model.QuestionItem, 0, len(b.items)-1)
	for _, q := range b.items {
		if !q.Attention {
			out = append(out, q)
		}
	}
	return out
}

// ByScale filters items by scale label
func (b *Bank) ByScale(scale model.Scale) []model.QuestionItem {
	var out []model.QuestionItem
	for _, q := range b.items {
		if q.Scale == scale {
			out = append(out, q)
		}
	}
	return out
}
