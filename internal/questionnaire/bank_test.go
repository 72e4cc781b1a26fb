package questionnaire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkogteva6/ReadingPlatform/internal/model"
)

func TestReferenceBank(t *testing.T) {
	bank, err := ReferenceBank()
	require.NoError(t, err)

	assert.Equal(t, 70, bank.Len())
	assert.Len(t, bank.Substantive(), 69)

	att := bank.Attention()
	assert.Equal(t, "att1", att.ID)
	assert.Equal(t, AttentionExpected, att.Expected)

	for _, s := range model.CoreScales {
		items := bank.ByScale(s)
		require.Len(t, items, CoreScaleItems, "scale %s", s)
		reversed := 0
		for _, q := range items {
			if q.Reversed {
				reversed++
			}
			assert.NotEmpty(t, q.Text)
		}
		assert.Equal(t, 1, reversed, "scale %s", s)
	}
	assert.Len(t, bank.ByScale(model.ScaleSocialDesirability), DesirabilityScaleItems)

	for i, q := range bank.Items() {
		assert.Equal(t, i, q.Position)
	}
}

func TestNewBankRejects(t *testing.T) {
	valid := MustReferenceBank().Items()

	tests := []struct {
		name   string
		mutate func([]model.QuestionItem) []model.QuestionItem
	}{
		{"duplicate id", func(items []model.QuestionItem) []model.QuestionItem {
			items[1].ID = items[0].ID
			return items
		}},
		{"empty id", func(items []model.QuestionItem) []model.QuestionItem {
			items[3].ID = ""
			return items
		}},
		{"no attention item", func(items []model.QuestionItem) []model.QuestionItem {
			out := items[:0]
			for _, q := range items {
				if !q.Attention {
					out = append(out, q)
				}
			}
			return out
		}},
		{"two attention items", func(items []model.QuestionItem) []model.QuestionItem {
			extra := model.QuestionItem{ID: "att2", Scale: model.ScaleAttention, Attention: true, Expected: 2}
			return append(items, extra)
		}},
		{"attention expectation out of range", func(items []model.QuestionItem) []model.QuestionItem {
			for i := range items {
				if items[i].Attention {
					items[i].Expected = 9
				}
			}
			return items
		}},
		{"unknown scale", func(items []model.QuestionItem) []model.QuestionItem {
			items[0].Scale = "дружба"
			return items
		}},
		{"short core scale", func(items []model.QuestionItem) []model.QuestionItem {
			return items[1:]
		}},
		{"extra desirability item", func(items []model.QuestionItem) []model.QuestionItem {
			return append(items, model.QuestionItem{ID: "sdl7", Scale: model.ScaleSocialDesirability})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]model.QuestionItem, len(valid))
			copy(items, valid)

			_, err := NewBank(tt.mutate(items))
			assert.ErrorIs(t, err, ErrInvalidBank)
		})
	}
}

func TestParseBankSyntaxError(t *testing.T) {
	_, err := ParseBank([]byte("items: [unterminated"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidBank)
}

func TestBankItemsIsACopy(t *testing.T) {
	bank := MustReferenceBank()
	items := bank.Items()
	items[0].Text = "changed"

	q, ok := bank.Item(items[0].ID)
	require.True(t, ok)
	assert.NotEqual(t, "changed", q.Text)
}
