package ml

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separable builds rows where the label depends on column 0 plus noise columns.
func separable(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]int, n)
	for i := range X {
		x0 := rng.NormFloat64()
		X[i] = []float64{x0, rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		if x0 > 0 {
			y[i] = 1
		}
	}
	return X, y
}

func TestStandardScaler(t *testing.T) {
	X := [][]float64{{1, 5}, {2, 5}, {3, 5}}
	s, err := FitStandardScaler(X)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 5}, s.Mean)
	assert.InDelta(t, math.Sqrt(2.0/3.0), s.Scale[0], 1e-12)
	assert.Equal(t, 1.0, s.Scale[1])

	out, err := s.Transform(X)
	require.NoError(t, err)
	assert.InDelta(t, 0, out[1][0], 1e-12)
	assert.InDelta(t, 0, out[2][1], 1e-12)

	_, err = s.TransformRow([]float64{1})
	assert.Error(t, err)
}

func TestFitLearnsSeparableSignal(t *testing.T) {
	X, y := separable(400, 1)
	p := DefaultParams()
	p.MaxFeatures = "all"

	c, err := Fit(X, y, p)
	require.NoError(t, err)
	assert.Len(t, c.Trees, p.NEstimators)

	pred := make([]int, len(y))
	scores := make([]float64, len(y))
	for i, x := range X {
		up, down, err := c.PredictProba(x)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, up+down, 1e-12)
		scores[i] = up
		if up >= down {
			pred[i] = 1
		}
	}
	m, err := Confusion(y, pred)
	require.NoError(t, err)
	assert.Greater(t, m.Accuracy(), 0.9)

	auc, ok := ROCAUC(y, scores)
	require.True(t, ok)
	assert.Greater(t, auc, 0.95)

	require.Len(t, c.Importances, 4)
	assert.InDelta(t, 1.0, sum(c.Importances), 1e-9)
	for j := 1; j < 4; j++ {
		assert.Greater(t, c.Importances[0], c.Importances[j])
	}
}

func TestFitIsDeterministicForSeed(t *testing.T) {
	X, y := separable(200, 7)
	a, err := Fit(X, y, DefaultParams())
	require.NoError(t, err)
	b, err := Fit(X, y, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFitRejectsSingleClass(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}}
	_, err := Fit(X, []int{1, 1, 1}, DefaultParams())
	assert.Error(t, err)
}

func TestFitRejectsBadLabels(t *testing.T) {
	_, err := Fit([][]float64{{1}, {2}}, []int{0, 2}, DefaultParams())
	assert.Error(t, err)
}

func TestFitRespectsMinSamplesLeaf(t *testing.T) {
	X, y := separable(100, 3)
	p := DefaultParams()
	p.MinSamplesLeaf = 60
	c, err := Fit(X, y, p)
	require.NoError(t, err)
	for _, tree := range c.Trees {
		assert.Len(t, tree.Nodes, 1)
	}
}

func TestFeaturesPerSplit(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 2, p.featuresPerSplit(6))
	p.MaxFeatures = "log2"
	assert.Equal(t, 2, p.featuresPerSplit(6))
	p.MaxFeatures = "all"
	assert.Equal(t, 6, p.featuresPerSplit(6))
	p.MaxFeatures = "sqrt"
	assert.Equal(t, 1, p.featuresPerSplit(1))
}

func TestROCAUC(t *testing.T) {
	auc, ok := ROCAUC([]int{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8})
	require.True(t, ok)
	assert.InDelta(t, 0.75, auc, 1e-12)

	auc, ok = ROCAUC([]int{0, 1}, []float64{0.5, 0.5})
	require.True(t, ok)
	assert.InDelta(t, 0.5, auc, 1e-12)

	_, ok = ROCAUC([]int{1, 1}, []float64{0.2, 0.9})
	assert.False(t, ok)
}

func TestConfusion(t *testing.T) {
	m, err := Confusion([]int{1, 1, 0, 0, 1}, []int{1, 0, 0, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, ConfusionMatrix{TN: 1, FP: 1, FN: 1, TP: 2}, m)
	assert.InDelta(t, 0.6, m.Accuracy(), 1e-12)
}
