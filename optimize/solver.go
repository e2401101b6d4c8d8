// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package optimize

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/greenfolio/gf-api/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// BudgetTol is the numerical tolerance on the budget and box constraints
	BudgetTol = 1e-6

	psdTol        = 1e-8
	stepTol       = 1e-10
	maxIterations = 25000
	esgPenalty    = 1e3
)

// Config holds the externally supplied optimizer parameters. RiskAversion
// must be positive and WeightCap in (0, 1]; ESGMin is an optional floor on
// the weighted ESG score of the portfolio.
type Config struct {
	RiskAversion float64
	WeightCap    float64
	ESGMin       *float64
}

// PortfolioWeights is the optimizer result for one rebalance date: a
// long-only allocation over the frame's universe, in universe order. Never
// mutated after creation.
type PortfolioWeights struct {
	Date           time.Time
	Assets         []string
	Weights        []float64
	ExpectedReturn float64
	Volatility     float64
}

// Map returns the allocation keyed by asset identifier
func (pw *PortfolioWeights) Map() map[string]float64 {
	out := make(map[string]float64, len(pw.Assets))
	for idx, asset := range pw.Assets {
		out[asset] = pw.Weights[idx]
	}
	return out
}

// Solve maximizes μᵀw − λ·wᵀΣw subject to Σw = 1 and 0 ≤ wᵢ ≤ cap using
// projected gradient ascent with exact projection onto the capped simplex.
// The iteration starts from equal weights, so among multiple optima the one
// reachable with least movement from equal weighting is selected. The solve
// is deterministic for identical inputs; ctx cancellation aborts cleanly
// with ErrCancelled and no partial result.
func Solve(ctx context.Context, frame *InputFrame, cfg *Config) (*PortfolioWeights, error) {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "optimize.Solve")
	defer span.End()

	if cfg.RiskAversion <= 0 {
		return nil, fmt.Errorf("%w: risk aversion must be > 0 (got %f)", ErrBadConfig, cfg.RiskAversion)
	}
	if cfg.WeightCap <= 0 || cfg.WeightCap > 1 {
		return nil, fmt.Errorf("%w: weight cap must be in (0, 1] (got %f)", ErrBadConfig, cfg.WeightCap)
	}

	n := frame.Len()
	if n == 0 {
		return nil, ErrMissingData
	}

	// the budget cannot be met when every asset at its cap falls short of 1
	if cfg.WeightCap*float64(n) < 1.0-BudgetTol {
		return nil, fmt.Errorf("%w: cap %.4f over %d assets cannot reach full investment",
			ErrInfeasible, cfg.WeightCap, n)
	}

	maxEig, err := checkPSD(frame.Cov)
	if err != nil {
		return nil, err
	}

	if cfg.ESGMin != nil {
		best := maxAttainableESG(frame.ESG, cfg.WeightCap)
		if best < *cfg.ESGMin-BudgetTol {
			return nil, fmt.Errorf("%w: esg floor %.4f exceeds best attainable score %.4f",
				ErrInfeasible, *cfg.ESGMin, best)
		}
	}

	w := frame.EqualWeights()

	// Step size control: the base step comes from the quadratic term's
	// Lipschitz constant so slack-floor solves keep full speed; the penalty
	// term's curvature only enters through minStep, the backtracking floor
	// that guarantees ascent even while the floor is violated.
	quadLipschitz := 2.0 * cfg.RiskAversion * math.Max(maxEig, 0)
	baseStep := safeStep(quadLipschitz)
	minStep := baseStep
	if cfg.ESGMin != nil {
		minStep = safeStep(quadLipschitz + 2.0*esgPenalty*floats.Dot(frame.ESG, frame.ESG))
	}

	// penalized is the objective the ascent maximizes: the mean-variance
	// objective minus the quadratic floor penalty. sigmaW must hold Σw.
	penalized := func(w, sigmaW []float64) float64 {
		val := floats.Dot(frame.Returns, w) - cfg.RiskAversion*floats.Dot(w, sigmaW)
		if cfg.ESGMin != nil {
			if shortfall := *cfg.ESGMin - floats.Dot(frame.ESG, w); shortfall > 0 {
				val -= esgPenalty * shortfall * shortfall
			}
		}
		return val
	}

	sigmaW := make([]float64, n)
	grad := make([]float64, n)
	next := make([]float64, n)
	nextSigma := make([]float64, n)
	wVec := mat.NewVecDense(n, w)
	sigmaWVec := mat.NewVecDense(n, sigmaW)
	nextVec := mat.NewVecDense(n, next)
	nextSigmaVec := mat.NewVecDense(n, nextSigma)

	for iter := 0; iter < maxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
		}

		sigmaWVec.MulVec(frame.Cov, wVec)
		for idx := range grad {
			grad[idx] = frame.Returns[idx] - 2.0*cfg.RiskAversion*sigmaW[idx]
		}
		if cfg.ESGMin != nil {
			if shortfall := *cfg.ESGMin - floats.Dot(frame.ESG, w); shortfall > 0 {
				for idx := range grad {
					grad[idx] += 2.0 * esgPenalty * shortfall * frame.ESG[idx]
				}
			}
		}

		// backtrack from the base step until the projected move improves the
		// penalized objective; minStep always qualifies so the halving ends
		current := penalized(w, sigmaW)
		for s := baseStep; ; s /= 2 {
			if s < minStep {
				s = minStep
			}
			for idx := range next {
				next[idx] = w[idx] + s*grad[idx]
			}
			projectCappedSimplex(next, cfg.WeightCap)
			nextSigmaVec.MulVec(frame.Cov, nextVec)
			if penalized(next, nextSigma) >= current || s <= minStep {
				break
			}
		}

		delta := 0.0
		for idx := range w {
			delta = math.Max(delta, math.Abs(next[idx]-w[idx]))
			w[idx] = next[idx]
		}
		if delta < stepTol {
			break
		}
	}

	// numerical cleanup; the projection already enforces the constraints to
	// float precision
	for idx := range w {
		w[idx] = math.Min(math.Max(w[idx], 0), cfg.WeightCap)
	}
	total := floats.Sum(w)
	if total > 0 {
		floats.Scale(1.0/total, w)
	}

	if cfg.ESGMin != nil {
		if score := floats.Dot(frame.ESG, w); score < *cfg.ESGMin-1e-4 {
			log.Warn().Time("Date", frame.Date).Float64("Score", score).
				Float64("Floor", *cfg.ESGMin).Msg("esg penalty left residual floor violation")
		}
	}

	return &PortfolioWeights{
		Date:           frame.Date,
		Assets:         frame.Assets,
		Weights:        w,
		ExpectedReturn: frame.ExpectedReturn(w),
		Volatility:     math.Sqrt(math.Max(frame.Variance(w), 0)),
	}, nil
}

func safeStep(lipschitz float64) float64 {
	if lipschitz > 1e-12 {
		return 1.0 / lipschitz
	}
	return 1.0
}

// checkPSD verifies the covariance matrix is positive semi-definite within
// tolerance and returns its largest eigenvalue
func checkPSD(cov *mat.SymDense) (float64, error) {
	var eig mat.EigenSym
	if ok := eig.Factorize(cov, false); !ok {
		return 0, fmt.Errorf("%w: eigendecomposition failed", ErrIllConditioned)
	}

	vals := eig.Values(nil)
	minEig := vals[0]
	maxEig := vals[len(vals)-1]

	scale := math.Max(1.0, math.Abs(maxEig))
	if minEig < -psdTol*scale {
		return 0, fmt.Errorf("%w: min eigenvalue %g", ErrIllConditioned, minEig)
	}
	return maxEig, nil
}

// maxAttainableESG returns the exact maximum of esgᵀw over the capped
// simplex: fill the cap greedily from the highest score down
func maxAttainableESG(esg []float64, cap float64) float64 {
	sorted := make([]float64, len(esg))
	copy(sorted, esg)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	best := 0.0
	budget := 1.0
	for _, score := range sorted {
		alloc := math.Min(cap, budget)
		best += alloc * score
		budget -= alloc
		if budget <= 0 {
			break
		}
	}
	return best
}

// projectCappedSimplex replaces v in place with its Euclidean projection
// onto {w : Σw = 1, 0 ≤ wᵢ ≤ cap}. The projection is clamp(vᵢ−θ, 0, cap)
// where θ solves Σ clamp(vᵢ−θ, 0, cap) = 1; the sum is monotone in θ so a
// fixed-count bisection finds it deterministically.
func projectCappedSimplex(v []float64, cap float64) {
	lo := floats.Min(v) - 1.0
	hi := floats.Max(v)

	massAt := func(theta float64) float64 {
		total := 0.0
		for _, x := range v {
			total += math.Min(math.Max(x-theta, 0), cap)
		}
		return total
	}

	for iter := 0; iter < 100; iter++ {
		mid := (lo + hi) / 2.0
		if massAt(mid) > 1.0 {
			lo = mid
		} else {
			hi = mid
		}
	}

	theta := (lo + hi) / 2.0
	for idx, x := range v {
		v[idx] = math.Min(math.Max(x-theta, 0), cap)
	}
}
