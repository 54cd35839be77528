package estimator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// TypeGradientBoosting is the model type recorded in artifacts
const TypeGradientBoosting = "gradient_boosting"

// Params holds the boosting hyperparameters
type Params struct {
	Rounds         int     `json:"rounds" mapstructure:"rounds"`
	MaxDepth       int     `json:"max_depth" mapstructure:"max_depth"`
	LearningRate   float64 `json:"learning_rate" mapstructure:"learning_rate"`
	Subsample      float64 `json:"subsample" mapstructure:"subsample"`
	ColSample      float64 `json:"colsample" mapstructure:"colsample"`
	MinChildWeight float64 `json:"min_child_weight" mapstructure:"min_child_weight"`
	Gamma          float64 `json:"gamma" mapstructure:"gamma"`
	Lambda         float64 `json:"lambda" mapstructure:"lambda"`
	Seed           int64   `json:"seed" mapstructure:"seed"`
	EarlyStopping  int     `json:"early_stopping" mapstructure:"early_stopping"`
}

// DefaultParams returns the production hyperparameters
func DefaultParams() Params {
	return Params{
		Rounds:         200,
		MaxDepth:       6,
		LearningRate:   0.1,
		Subsample:      0.8,
		ColSample:      0.8,
		MinChildWeight: 3,
		Gamma:          0.1,
		Lambda:         1.0,
		Seed:           42,
		EarlyStopping:  20,
	}
}

// Validate rejects hyperparameters that cannot train a model
func (p Params) Validate() error {
	switch {
	case p.Rounds <= 0:
		return errors.New("rounds must be positive")
	case p.MaxDepth <= 0:
		return errors.New("max_depth must be positive")
	case p.LearningRate <= 0:
		return errors.New("learning_rate must be positive")
	case p.Subsample <= 0 || p.Subsample > 1:
		return errors.New("subsample must be in (0, 1]")
	case p.ColSample <= 0 || p.ColSample > 1:
		return errors.New("colsample must be in (0, 1]")
	case p.Lambda < 0 || p.Gamma < 0 || p.MinChildWeight < 0:
		return errors.New("lambda, gamma and min_child_weight must not be negative")
	}
	return nil
}

// Progress is called after every boosting round
type Progress func(round, total int)

// GradientBoosting is a squared-error gradient-boosted ensemble of
// regression trees
type GradientBoosting struct {
	params   Params
	base     float64
	width    int
	trees    []tree
	progress Progress
}

// NewGradientBoosting creates an unfitted ensemble
func NewGradientBoosting(params Params) *GradientBoosting {
	return &GradientBoosting{params: params}
}

// OnProgress registers a per-round callback
func (g *GradientBoosting) OnProgress(fn Progress) {
	g.progress = fn
}

// Fit trains the ensemble. When eval has samples, training stops after
// EarlyStopping rounds without improvement and keeps the best prefix.
func (g *GradientBoosting) Fit(train, eval Dataset) error {
	if err := g.params.Validate(); err != nil {
		return fmt.Errorf("invalid hyperparameters: %w", err)
	}
	if train.Len() == 0 {
		return errors.New("cannot fit on an empty dataset")
	}
	width := len(train.X[0])
	if width == 0 {
		return errors.New("cannot fit without features")
	}
	if err := train.Validate(width); err != nil {
		return err
	}
	if err := eval.Validate(width); err != nil {
		return err
	}

	g.width = width
	g.base = mean(train.Y)
	g.trees = nil

	rng := rand.New(rand.NewSource(g.params.Seed))
	pred := fill(train.Len(), g.base)
	evalPred := fill(eval.Len(), g.base)
	grad := make([]float64, train.Len())

	best := math.Inf(1)
	bestRounds := 0
	if eval.Len() > 0 {
		best = mse(eval.Y, evalPred)
	}

	for round := 0; round < g.params.Rounds; round++ {
		for i := range grad {
			grad[i] = pred[i] - train.Y[i]
		}

		builder := newTreeBuilder(train.X, grad, g.params, rng)
		t := builder.build(g.sample(train.Len(), rng))
		for i := range t.Nodes {
			t.Nodes[i].Value *= g.params.LearningRate
		}
		g.trees = append(g.trees, t)

		for i, x := range train.X {
			pred[i] += t.predict(x)
		}

		if g.progress != nil {
			g.progress(round+1, g.params.Rounds)
		}

		if eval.Len() == 0 {
			continue
		}
		for i, x := range eval.X {
			evalPred[i] += t.predict(x)
		}
		if loss := mse(eval.Y, evalPred); loss < best {
			best = loss
			bestRounds = len(g.trees)
		} else if g.params.EarlyStopping > 0 && len(g.trees)-bestRounds >= g.params.EarlyStopping {
			break
		}
	}

	if eval.Len() > 0 {
		g.trees = g.trees[:bestRounds]
	}
	return nil
}

// sample draws the row subsample for one round
func (g *GradientBoosting) sample(n int, rng *rand.Rand) []int {
	rows := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if g.params.Subsample >= 1 || rng.Float64() < g.params.Subsample {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		for i := 0; i < n; i++ {
			rows = append(rows, i)
		}
	}
	return rows
}

// Predict evaluates the ensemble on one feature vector
func (g *GradientBoosting) Predict(x []float64) (float64, error) {
	if g.width == 0 {
		return 0, ErrNotFitted
	}
	if len(x) != g.width {
		return 0, fmt.Errorf("%w: got %d features, model expects %d", ErrConfigMismatch, len(x), g.width)
	}
	out := g.base
	for i := range g.trees {
		out += g.trees[i].predict(x)
	}
	return out, nil
}

// NumFeatures returns the trained input width
func (g *GradientBoosting) NumFeatures() int {
	return g.width
}

// NumTrees returns the number of trees kept after training
func (g *GradientBoosting) NumTrees() int {
	return len(g.trees)
}

// Type returns the model type
func (g *GradientBoosting) Type() string {
	return TypeGradientBoosting
}

type gradientBoostingState struct {
	Params Params  `json:"params"`
	Base   float64 `json:"base_score"`
	Width  int     `json:"num_features"`
	Trees  []tree  `json:"trees"`
}

// MarshalBinary encodes the fitted ensemble
func (g *GradientBoosting) MarshalBinary() ([]byte, error) {
	if g.width == 0 {
		return nil, ErrNotFitted
	}
	return json.Marshal(gradientBoostingState{
		Params: g.params,
		Base:   g.base,
		Width:  g.width,
		Trees:  g.trees,
	})
}

// UnmarshalBinary restores an ensemble written by MarshalBinary
func (g *GradientBoosting) UnmarshalBinary(data []byte) error {
	var state gradientBoostingState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	if state.Width <= 0 {
		return errors.New("encoded model has no features")
	}
	for ti, t := range state.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.Feature >= state.Width || (n.Feature >= 0 && (n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) || n.Left <= ni || n.Right <= ni)) {
				return fmt.Errorf("tree %d node %d is malformed", ti, ni)
			}
		}
	}
	g.params = state.Params
	g.base = state.Base
	g.width = state.Width
	g.trees = state.Trees
	return nil
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
