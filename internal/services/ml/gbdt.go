package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// Params are the gradient boosting hyperparameters.
type Params struct {
	NEstimators     int     `json:"n_estimators"`
	LearningRate    float64 `json:"learning_rate"`
	MaxDepth        int     `json:"max_depth"`
	MinSamplesSplit int     `json:"min_samples_split"`
	MinSamplesLeaf  int     `json:"min_samples_leaf"`
	Subsample       float64 `json:"subsample"`
	MaxFeatures     string  `json:"max_features"`
	Seed            int64   `json:"seed"`
}

// DefaultParams are shallow, regularized settings for a few hundred noisy rows.
func DefaultParams() Params {
	return Params{
		NEstimators:     30,
		LearningRate:    0.1,
		MaxDepth:        3,
		MinSamplesSplit: 30,
		MinSamplesLeaf:  15,
		Subsample:       0.7,
		MaxFeatures:     "sqrt",
		Seed:            42,
	}
}

func (p Params) validate() error {
	switch {
	case p.NEstimators < 1:
		return errors.New("n_estimators must be positive")
	case p.LearningRate <= 0:
		return errors.New("learning_rate must be positive")
	case p.MaxDepth < 1:
		return errors.New("max_depth must be positive")
	case p.MinSamplesLeaf < 1:
		return errors.New("min_samples_leaf must be positive")
	case p.MinSamplesSplit < 2:
		return errors.New("min_samples_split must be at least 2")
	case p.Subsample <= 0 || p.Subsample > 1:
		return errors.New("subsample must be in (0, 1]")
	}
	return nil
}

// featuresPerSplit resolves MaxFeatures for d columns.
func (p Params) featuresPerSplit(d int) int {
	k := d
	switch p.MaxFeatures {
	case "sqrt":
		k = int(math.Sqrt(float64(d)))
	case "log2":
		k = int(math.Log2(float64(d)))
	}
	if k < 1 {
		k = 1
	}
	if k > d {
		k = d
	}
	return k
}

// Classifier is a binary gradient-boosted tree ensemble on log-odds.
type Classifier struct {
	InitScore    float64   `json:"init_score"`
	LearningRate float64   `json:"learning_rate"`
	NFeatures    int       `json:"n_features"`
	Trees        []Tree    `json:"trees"`
	Importances  []float64 `json:"feature_importances"`
}

// Fit trains a classifier on labels in {0,1}. Both classes must be present.
func Fit(X [][]float64, y []int, p Params) (*Classifier, error) {
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	n := len(X)
	if n == 0 || n != len(y) {
		return nil, fmt.Errorf("fit: %d rows and %d labels", n, len(y))
	}
	d := len(X[0])
	positives := 0
	for i, label := range y {
		if len(X[i]) != d {
			return nil, fmt.Errorf("fit: row %d has %d columns, want %d", i, len(X[i]), d)
		}
		switch label {
		case 0:
		case 1:
			positives++
		default:
			return nil, fmt.Errorf("fit: label %d at row %d", label, i)
		}
	}
	if positives == 0 || positives == n {
		return nil, errors.New("fit: labels contain a single class")
	}

	prior := float64(positives) / float64(n)
	c := &Classifier{
		InitScore:    math.Log(prior / (1 - prior)),
		LearningRate: p.LearningRate,
		NFeatures:    d,
		Trees:        make([]Tree, 0, p.NEstimators),
	}

	rng := rand.New(rand.NewSource(p.Seed))
	raw := make([]float64, n)
	for i := range raw {
		raw[i] = c.InitScore
	}
	residual := make([]float64, n)
	hessian := make([]float64, n)
	importance := make([]float64, d)
	nSub := n
	if p.Subsample < 1 {
		nSub = int(p.Subsample * float64(n))
		if nSub < 1 {
			nSub = 1
		}
	}

	b := &treeBuilder{
		X:        X,
		residual: residual,
		hessian:  hessian,
		rng:      rng,
		params: treeParams{
			maxDepth:        p.MaxDepth,
			minSamplesSplit: p.MinSamplesSplit,
			minSamplesLeaf:  p.MinSamplesLeaf,
			maxFeatures:     p.featuresPerSplit(d),
		},
	}

	for m := 0; m < p.NEstimators; m++ {
		for i := range raw {
			prob := sigmoid(raw[i])
			residual[i] = float64(y[i]) - prob
			hessian[i] = prob * (1 - prob)
		}

		idx := rng.Perm(n)[:nSub]
		tree := b.build(idx)
		c.Trees = append(c.Trees, *tree)

		if total := sum(b.importance); total > 0 {
			for j, v := range b.importance {
				importance[j] += v / total
			}
		}
		for i := range raw {
			raw[i] += p.LearningRate * tree.Predict(X[i])
		}
	}

	if total := sum(importance); total > 0 {
		for j := range importance {
			importance[j] /= total
		}
	}
	c.Importances = importance
	return c, nil
}

// Decision returns the raw log-odds score of the positive class.
func (c *Classifier) Decision(x []float64) float64 {
	score := c.InitScore
	for i := range c.Trees {
		score += c.LearningRate * c.Trees[i].Predict(x)
	}
	return score
}

// PredictProba returns P(y=1) and P(y=0); they sum to 1.
func (c *Classifier) PredictProba(x []float64) (up, down float64, err error) {
	if len(x) != c.NFeatures {
		return 0, 0, fmt.Errorf("classifier: got %d features, want %d", len(x), c.NFeatures)
	}
	up = sigmoid(c.Decision(x))
	return up, 1 - up, nil
}

func (c *Classifier) validate() error {
	if c.NFeatures < 1 || len(c.Trees) == 0 {
		return errors.New("classifier: malformed state")
	}
	for ti := range c.Trees {
		nodes := c.Trees[ti].Nodes
		if len(nodes) == 0 {
			return fmt.Errorf("classifier: tree %d is empty", ti)
		}
		for ni, n := range nodes {
			if n.Feature < 0 {
				continue
			}
			if n.Feature >= c.NFeatures || n.Left <= ni || n.Right <= ni || n.Left >= len(nodes) || n.Right >= len(nodes) {
				return fmt.Errorf("classifier: tree %d node %d is malformed", ti, ni)
			}
		}
	}
	return nil
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func sum(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s
}
