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

package dataframe

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ColSum returns the sum of the named column, skipping NaN entries
func (df *DataFrame) ColSum(name string) float64 {
	col := df.Col(name)
	if col == nil {
		return math.NaN()
	}
	clean := dropNaN(col)
	if len(clean) == 0 {
		return math.NaN()
	}
	return floats.Sum(clean)
}

// ColMean returns the arithmetic mean of the named column, skipping NaN
// entries
func (df *DataFrame) ColMean(name string) float64 {
	col := df.Col(name)
	if col == nil {
		return math.NaN()
	}
	clean := dropNaN(col)
	if len(clean) == 0 {
		return math.NaN()
	}
	return stat.Mean(clean, nil)
}

// Matrix returns the dataframe values as a row-major [row][col] matrix;
// useful for feeding gonum routines that expect samples in rows
func (df *DataFrame) Matrix() [][]float64 {
	rows := make([][]float64, df.Len())
	for rowIdx := range df.Dates {
		row := make([]float64, len(df.Vals))
		for colIdx := range df.Vals {
			row[colIdx] = df.Vals[colIdx][rowIdx]
		}
		rows[rowIdx] = row
	}
	return rows
}

func dropNaN(vals []float64) []float64 {
	clean := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	return clean
}
