package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSoftmaxIsDistribution(t *testing.T) {
	vectors := [][]float32{
		{0},
		{1, 2, 3},
		{-5, -5, -5, -5},
		{1000, 1001, 999},
		{-1e4, 0, 1e4},
		peakScores(7),
	}
	for _, v := range vectors {
		p := Softmax(v)
		require.Len(t, p, len(v))
		sum := 0.0
		for _, x := range p {
			require.False(t, math.IsNaN(x))
			require.GreaterOrEqual(t, x, 0.0)
			require.LessOrEqual(t, x, 1.0)
			sum += x
		}
		require.InDelta(t, 1.0, sum, 1e-6, "scores %v", v)
	}
}

func TestSoftmaxKnownValues(t *testing.T) {
	p := Softmax([]float32{0, float32(math.Log(3))})
	require.InDelta(t, 0.25, p[0], 1e-6)
	require.InDelta(t, 0.75, p[1], 1e-6)
}

func TestArgmaxTieGoesToLowestIndex(t *testing.T) {
	raw := make([]float32, len(DefaultLabels))
	raw[4] = 3
	raw[20] = 3
	pred, err := Score(raw, DefaultLabels)
	require.NoError(t, err)
	require.Equal(t, 4, pred.Index)
	require.Equal(t, "cabbage", pred.Label)
}

func TestScoreTomato(t *testing.T) {
	raw := peakScores(33)
	pred, err := Score(raw, DefaultLabels)
	require.NoError(t, err)
	require.Equal(t, "tomato", pred.Label)
	require.Equal(t, 33, pred.Index)
	require.InDelta(t, Softmax(raw)[33]*100, pred.Confidence, 1e-9)
	require.Greater(t, pred.Confidence, 0.0)
	require.LessOrEqual(t, pred.Confidence, 100.0)
}

func TestScoreIsDeterministic(t *testing.T) {
	raw := peakScores(12)
	a, err := Score(raw, DefaultLabels)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		b, err := Score(raw, DefaultLabels)
		require.NoError(t, err)
		require.Equal(t, a.Label, b.Label)
		require.Equal(t, a.Confidence, b.Confidence)
	}
}

func TestScoreRejectsBadVectors(t *testing.T) {
	_, err := Score(make([]float32, 35), DefaultLabels)
	require.ErrorIs(t, err, ErrInference)

	_, err = Score(nil, DefaultLabels)
	require.ErrorIs(t, err, ErrInference)

	raw := peakScores(1)
	raw[2] = float32(math.NaN())
	_, err = Score(raw, DefaultLabels)
	require.ErrorIs(t, err, ErrInference)

	raw[2] = float32(math.Inf(1))
	_, err = Score(raw, DefaultLabels)
	require.ErrorIs(t, err, ErrInference)
}

func TestTop(t *testing.T) {
	labels := []string{"a", "b", "c", "d"}
	pred, err := Score([]float32{1, 3, 3, 2}, labels)
	require.NoError(t, err)

	top := pred.Top(3)
	require.Len(t, top, 3)
	require.Equal(t, "b", top[0].Label)
	require.Equal(t, "c", top[1].Label)
	require.Equal(t, "d", top[2].Label)
	require.Equal(t, pred.Confidence, top[0].Confidence)

	require.Len(t, pred.Top(10), 4)
	require.Empty(t, pred.Top(0))

	resp := pred.Response(2)
	require.Equal(t, "b", resp.PredictedLabel)
	require.Len(t, resp.Top, 2)
}
