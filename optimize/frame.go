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
	"sort"
	"time"

	"github.com/greenfolio/gf-api/data"
	"gonum.org/v1/gonum/mat"
)

// InputFrame holds the aligned inputs for one rebalance date. Assets define
// the index order of every vector and the covariance matrix; the frame is
// immutable once built.
type InputFrame struct {
	Date    time.Time
	Assets  []string
	Returns []float64
	ESG     []float64
	Cov     *mat.SymDense
}

// BuildFrame assembles the InputFrame for a rebalance date. The universe is
// the lexicographically sorted intersection of the assets present in the
// expected-return, ESG, and covariance tables for that date; an empty
// intersection yields ErrMissingData. Pure data shaping: off-diagonal gaps in
// the covariance table are treated as zero and the matrix is symmetrized
// ((S+Sᵀ)/2), but no repair beyond that happens here.
func BuildFrame(ctx context.Context, src data.FeatureSource, date time.Time) (*InputFrame, error) {
	expected, err := src.ExpectedReturns(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("expected returns for %s: %w", date.Format("2006-01-02"), err)
	}
	esg, err := src.ESGScores(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("esg scores for %s: %w", date.Format("2006-01-02"), err)
	}
	cells, err := src.Covariances(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("covariances for %s: %w", date.Format("2006-01-02"), err)
	}

	// an asset is covered by the covariance table when its variance cell exists
	assets := make([]string, 0, len(expected))
	for asset := range expected {
		if _, ok := esg[asset]; !ok {
			continue
		}
		if _, ok := cells[data.AssetPair{Row: asset, Col: asset}]; !ok {
			continue
		}
		assets = append(assets, asset)
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingData, date.Format("2006-01-02"))
	}
	sort.Strings(assets)

	n := len(assets)
	mu := make([]float64, n)
	scores := make([]float64, n)
	for idx, asset := range assets {
		mu[idx] = expected[asset]
		scores[idx] = esg[asset]
	}

	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			upper := cells[data.AssetPair{Row: assets[i], Col: assets[j]}]
			lower := cells[data.AssetPair{Row: assets[j], Col: assets[i]}]
			cov.SetSym(i, j, (upper+lower)/2.0)
		}
	}

	return &InputFrame{
		Date:    date,
		Assets:  assets,
		Returns: mu,
		ESG:     scores,
		Cov:     cov,
	}, nil
}

// Len returns the universe size
func (frame *InputFrame) Len() int {
	return len(frame.Assets)
}

// EqualWeights returns the 1/n allocation over the frame's universe
func (frame *InputFrame) EqualWeights() []float64 {
	w := make([]float64, frame.Len())
	for idx := range w {
		w[idx] = 1.0 / float64(frame.Len())
	}
	return w
}

// ExpectedReturn computes μᵀw
func (frame *InputFrame) ExpectedReturn(w []float64) float64 {
	var ret float64
	for idx := range w {
		ret += frame.Returns[idx] * w[idx]
	}
	return ret
}

// Variance computes wᵀΣw
func (frame *InputFrame) Variance(w []float64) float64 {
	wVec := mat.NewVecDense(len(w), w)
	tmp := mat.NewVecDense(len(w), nil)
	tmp.MulVec(frame.Cov, wVec)
	return mat.Dot(wVec, tmp)
}
