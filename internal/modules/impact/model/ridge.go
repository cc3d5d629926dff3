package model

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// LinearModel is one fitted ridge estimator over standardised features.
type LinearModel struct {
	Intercept float64   `msgpack:"intercept"`
	Coef      []float64 `msgpack:"coef"`
}

func (m LinearModel) predict(x []float64) float64 {
	y := m.Intercept
	for j, w := range m.Coef {
		y += w * x[j]
	}
	return y
}

// Regressor is a bagged ensemble of ridge estimators for a single metric.
type Regressor struct {
	Metric     string        `msgpack:"metric"`
	Estimators []LinearModel `msgpack:"estimators"`
}

// Width is the number of features the regressor expects.
func (r *Regressor) Width() int {
	if len(r.Estimators) == 0 {
		return 0
	}
	return len(r.Estimators[0].Coef)
}

// Predict averages the estimators. The caller guarantees len(x) == Width().
func (r *Regressor) Predict(x []float64) float64 {
	if len(r.Estimators) == 0 {
		return 0
	}
	var sum float64
	for _, est := range r.Estimators {
		sum += est.predict(x)
	}
	return sum / float64(len(r.Estimators))
}

// RidgeConfig controls ensemble training.
type RidgeConfig struct {
	Estimators int     // bootstrap estimators in the ensemble
	Lambda     float64 // L2 penalty
	Seed       uint64  // bootstrap seed
	Monotone   []int   // feature indices whose coefficients must be >= 0
}

// FitRegressor trains a bagged ridge ensemble. Bootstrap samples are drawn from
// a PRNG seeded with cfg.Seed, so identical inputs give identical models.
func FitRegressor(metric string, x [][]float64, y []float64, cfg RidgeConfig) (*Regressor, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("need matching non-empty samples, got %d rows and %d targets", len(x), len(y))
	}
	if cfg.Estimators < 1 {
		cfg.Estimators = 1
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	n := len(x)
	reg := &Regressor{Metric: metric, Estimators: make([]LinearModel, 0, cfg.Estimators)}

	sample := make([]int, n)
	for e := 0; e < cfg.Estimators; e++ {
		if cfg.Estimators == 1 {
			for i := range sample {
				sample[i] = i
			}
		} else {
			for i := range sample {
				sample[i] = rng.IntN(n)
			}
		}

		est, err := fitRidge(x, y, sample, cfg.Lambda, cfg.Monotone)
		if err != nil {
			return nil, fmt.Errorf("estimator %d: %w", e, err)
		}
		reg.Estimators = append(reg.Estimators, est)
	}
	return reg, nil
}

// fitRidge solves centred ridge regression on the sampled rows. Monotone
// coefficients that come out negative are pinned to zero one at a time (most
// negative first) and the remaining features refit.
func fitRidge(x [][]float64, y []float64, sample []int, lambda float64, monotone []int) (LinearModel, error) {
	p := len(x[0])
	n := len(sample)

	constrained := make(map[int]bool, len(monotone))
	for _, j := range monotone {
		constrained[j] = true
	}

	colMean := make([]float64, p)
	var yMean float64
	for _, i := range sample {
		for j := 0; j < p; j++ {
			colMean[j] += x[i][j]
		}
		yMean += y[i]
	}
	for j := range colMean {
		colMean[j] /= float64(n)
	}
	yMean /= float64(n)

	active := make([]int, p)
	for j := range active {
		active[j] = j
	}

	coef := make([]float64, p)
	for len(active) > 0 {
		xa := mat.NewDense(n, len(active), nil)
		yv := mat.NewVecDense(n, nil)
		for r, i := range sample {
			for c, j := range active {
				xa.Set(r, c, x[i][j]-colMean[j])
			}
			yv.SetVec(r, y[i]-yMean)
		}

		var xtx mat.Dense
		xtx.Mul(xa.T(), xa)
		for c := range active {
			xtx.Set(c, c, xtx.At(c, c)+lambda)
		}
		var xty mat.VecDense
		xty.MulVec(xa.T(), yv)

		var w mat.VecDense
		if err := w.SolveVec(&xtx, &xty); err != nil {
			return LinearModel{}, fmt.Errorf("ridge solve failed: %w", err)
		}

		worst, worstVal := -1, 0.0
		for c, j := range active {
			if v := w.AtVec(c); constrained[j] && v < worstVal {
				worst, worstVal = c, v
			}
		}
		if worst < 0 {
			for c, j := range active {
				coef[j] = w.AtVec(c)
			}
			break
		}
		active = append(active[:worst], active[worst+1:]...)
	}

	intercept := yMean
	for j, w := range coef {
		intercept -= w * colMean[j]
	}
	return LinearModel{Intercept: intercept, Coef: coef}, nil
}
