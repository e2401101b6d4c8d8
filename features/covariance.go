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

package features

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/greenfolio/gf-api/data"
	"github.com/greenfolio/gf-api/dataframe"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// varianceFloor keeps degenerate diagonals away from zero so downstream
// solvers see a usable matrix; this is upstream repair, the optimizer itself
// never adjusts its inputs
const varianceFloor = 1e-6

var ErrInsufficientHistory = errors.New("not enough return history for covariance window")

// CovarianceCells computes the sample covariance over the trailing window of
// daily returns ending at date. Assets with incomplete history inside the
// window are dropped from the cross-section rather than imputed.
func CovarianceCells(returns *dataframe.DataFrame, date time.Time, window int) (map[data.AssetPair]float64, error) {
	trimmed := returns.Trim(time.Time{}, date)
	if trimmed.Len() < window {
		return nil, fmt.Errorf("%w: have %d days, need %d", ErrInsufficientHistory, trimmed.Len(), window)
	}
	cutoffIdx := trimmed.Len() - window

	assets := make([]string, 0, len(trimmed.ColNames))
	cols := make([][]float64, 0, len(trimmed.ColNames))
	for colIdx, asset := range trimmed.ColNames {
		col := trimmed.Vals[colIdx][cutoffIdx:]
		complete := true
		for _, v := range col {
			if math.IsNaN(v) {
				complete = false
				break
			}
		}
		if complete {
			assets = append(assets, asset)
			cols = append(cols, col)
		}
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf("%w: no asset has complete history in window", ErrInsufficientHistory)
	}

	// samples in rows, assets in columns
	samples := mat.NewDense(window, len(assets), nil)
	for colIdx, col := range cols {
		for rowIdx, v := range col {
			samples.Set(rowIdx, colIdx, v)
		}
	}

	cov := mat.NewSymDense(len(assets), nil)
	stat.CovarianceMatrix(cov, samples, nil)

	cells := make(map[data.AssetPair]float64, len(assets)*len(assets))
	for i, rowAsset := range assets {
		for j, colAsset := range assets {
			v := cov.At(i, j)
			if i == j && v < varianceFloor {
				v = varianceFloor
			}
			cells[data.AssetPair{Row: rowAsset, Col: colAsset}] = v
		}
	}
	return cells, nil
}
