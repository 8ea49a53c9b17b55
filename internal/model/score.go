package model

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Prediction is the scored result of one pipeline run.
type Prediction struct {
	Label         string
	Index         int
	Confidence    float64   // Probability of Label, as a percentage in [0, 100]
	Probabilities []float64 // Softmax of the raw scores, aligned with labels
	labels        []string
}

// Softmax turns raw scores into a probability distribution.
// The maximum is subtracted before exponentiating so large logits cannot overflow.
func Softmax(raw []float32) []float64 {
	p := make([]float64, len(raw))
	if len(raw) == 0 {
		return p
	}
	for i, v := range raw {
		p[i] = float64(v)
	}
	floats.AddConst(-floats.Max(p), p)
	for i := range p {
		p[i] = math.Exp(p[i])
	}
	floats.Scale(1/floats.Sum(p), p)
	return p
}

// Argmax returns the index of the largest value. Ties go to the lowest index.
func Argmax(p []float64) int {
	return floats.MaxIdx(p)
}

// Score normalizes a raw score vector and picks the most probable label.
func Score(raw []float32, labels []string) (*Prediction, error) {
	if len(raw) == 0 || len(raw) != len(labels) {
		return nil, fmt.Errorf("%w: model returned %d scores for %d labels", ErrInference, len(raw), len(labels))
	}
	for i, v := range raw {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: score %d is not finite (%v)", ErrInference, i, v)
		}
	}
	p := Softmax(raw)
	idx := Argmax(p)
	return &Prediction{
		Label:         labels[idx],
		Index:         idx,
		Confidence:    p[idx] * 100,
		Probabilities: p,
		labels:        labels,
	}, nil
}

// Top returns the k most probable labels, best first. Equal probabilities keep label order.
func (p *Prediction) Top(k int) []LabelScore {
	idx := make([]int, len(p.Probabilities))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(p.Probabilities[b], p.Probabilities[a])
	})
	k = min(k, len(idx))
	top := make([]LabelScore, 0, max(k, 0))
	for _, i := range idx[:max(k, 0)] {
		top = append(top, LabelScore{Label: p.labels[i], Confidence: p.Probabilities[i] * 100})
	}
	return top
}

// Response converts the prediction into its JSON form.
func (p *Prediction) Response(topK int) *PredictionResponse {
	return &PredictionResponse{
		PredictedLabel:    p.Label,
		ConfidencePercent: p.Confidence,
		Top:               p.Top(topK),
	}
}
