package questionnaire

import (
	"github.com/kkogteva6/ReadingPlatform/internal/model"
)

// Likert range of every item
const (
	LikertMin = 1
	LikertMax = 5
)

// Calibration constants. A single questionnaire maps a scale mean of 1..5 onto
// 0.2..0.8; the extremes are left to accumulation on the backend.
const (
	calibrationSpread = 0.3
	maxSDPenalty      = 0.18
	neutralMean       = 3.0
)

// Answers maps an item id to a recorded Likert value
type Answers map[string]int

// Result is the outcome of aggregating a complete answer set
type Result struct {
	Means    map[model.Scale]float64
	SDMean   float64
	Penalty  float64
	Concepts model.ConceptVector
}

// Scored applies reverse keying to a raw answer
func Scored(q model.QuestionItem, answer int) int {
	if q.Reversed {
		return LikertMax + LikertMin - answer
	}
	return answer
}

// ScaleMeans averages scored answers per scale. The attention item is ignored and
// scales without any answered item are absent.
func ScaleMeans(items []model.QuestionItem, answers Answers) map[model.Scale]float64 {
	sums := make(map[model.Scale]int)
	counts := make(map[model.Scale]int)
	for _, q := range items {
		if q.Attention {
			continue
		}
		a, ok := answers[q.ID]
		if !ok {
			continue
		}
		sums[q.Scale] += Scored(q, a)
		counts[q.Scale]++
	}

	means := make(map[model.Scale]float64, len(counts))
	for s, n := range counts {
		means[s] = float64(sums[s]) / float64(n)
	}
	return means
}

// Calibrate maps a 1..5 scale mean onto 0.2..0.8
func Calibrate(mean float64) float64 {
	centered := (mean - neutralMean) / 2
	return clamp01(0.5 + centered*calibrationSpread)
}

// DesirabilityPenalty grows linearly from 0 at a neutral social-desirability
// mean to 0.18 at the maximum.
func DesirabilityPenalty(sdMean float64) float64 {
	t := clamp01((sdMean - neutralMean) / 2)
	return t * maxSDPenalty
}

// Aggregate turns a complete answer set into the concept vector sent to the
// backend. Only core scales appear in the output.
func Aggregate(items []model.QuestionItem, answers Answers) Result {
	means := ScaleMeans(items, answers)

	sd, ok := means[model.ScaleSocialDesirability]
	if !ok {
		sd = neutralMean
	}
	penalty := DesirabilityPenalty(sd)

	concepts := make(model.ConceptVector, len(model.CoreScales))
	for scale, m := range means {
		if !scale.IsCore() {
			continue
		}
		concepts[string(scale)] = clamp01(Calibrate(m) - penalty)
	}

	return Result{
		Means:    means,
		SDMean:   sd,
		Penalty:  penalty,
		Concepts: concepts,
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
