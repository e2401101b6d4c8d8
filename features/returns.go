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
	"math"
	"time"

	"github.com/greenfolio/gf-api/dataframe"
)

// DailyReturns computes simple one-day returns from adjusted close prices,
// column by column. The first observation of each asset has no prior close
// and is set to zero; a NaN price propagates NaN into the adjacent returns.
func DailyReturns(prices *dataframe.DataFrame) *dataframe.DataFrame {
	df := dataframe.New(prices.ColNames...)
	for rowIdx, date := range prices.Dates {
		row := make([]float64, len(prices.Vals))
		for colIdx, col := range prices.Vals {
			if rowIdx == 0 {
				row[colIdx] = 0.0
				continue
			}
			prev := col[rowIdx-1]
			cur := col[rowIdx]
			if math.IsNaN(prev) || math.IsNaN(cur) || prev == 0 {
				row[colIdx] = math.NaN()
				continue
			}
			row[colIdx] = cur/prev - 1.0
		}
		df.InsertRow(date, row...)
	}
	return df
}

// ExpectedReturns estimates per-asset expected returns as the trailing mean
// of daily returns over the lookback window ending at date. When the window
// holds no observations it widens to all history up to date; assets with no
// usable history get zero.
func ExpectedReturns(returns *dataframe.DataFrame, date time.Time, lookback int) map[string]float64 {
	cutoff := date.AddDate(0, 0, -(lookback - 1))
	window := returns.Trim(cutoff, date)
	if window.Len() == 0 {
		window = returns.Trim(time.Time{}, date)
	}

	expected := make(map[string]float64, len(window.ColNames))
	for _, asset := range window.ColNames {
		mean := window.ColMean(asset)
		if math.IsNaN(mean) {
			mean = 0.0
		}
		expected[asset] = mean
	}
	return expected
}
