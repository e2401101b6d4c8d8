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

package backtest

import (
	"fmt"
	"math"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

const zeroVolTol = 1e-12

// Summary aggregates a completed backtest. It is derived fresh from the
// record sequence on every call and never cached or mutated.
type Summary struct {
	AnnualizedReturn     float64 `json:"annualizedReturn"`
	AnnualizedVolatility float64 `json:"annualizedVolatility"`
	SharpeRatio          float64 `json:"sharpeRatio"`
	MaxDrawDown          float64 `json:"maxDrawDown"`

	// ZeroVolatility flags a degenerate Sharpe ratio; the rest of the
	// summary is still valid
	ZeroVolatility bool `json:"zeroVolatility"`
}

// a NaN Sharpe ratio serializes as null so degenerate runs survive the cache
type summaryJSON struct {
	AnnualizedReturn     float64  `json:"annualizedReturn"`
	AnnualizedVolatility float64  `json:"annualizedVolatility"`
	SharpeRatio          *float64 `json:"sharpeRatio"`
	MaxDrawDown          float64  `json:"maxDrawDown"`
	ZeroVolatility       bool     `json:"zeroVolatility"`
}

func (s *Summary) MarshalJSON() ([]byte, error) {
	aux := summaryJSON{
		AnnualizedReturn:     s.AnnualizedReturn,
		AnnualizedVolatility: s.AnnualizedVolatility,
		MaxDrawDown:          s.MaxDrawDown,
		ZeroVolatility:       s.ZeroVolatility,
	}
	if !math.IsNaN(s.SharpeRatio) {
		sharpe := s.SharpeRatio
		aux.SharpeRatio = &sharpe
	}
	return json.Marshal(&aux)
}

func (s *Summary) UnmarshalJSON(data []byte) error {
	var aux summaryJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.AnnualizedReturn = aux.AnnualizedReturn
	s.AnnualizedVolatility = aux.AnnualizedVolatility
	s.MaxDrawDown = aux.MaxDrawDown
	s.ZeroVolatility = aux.ZeroVolatility
	if aux.SharpeRatio != nil {
		s.SharpeRatio = *aux.SharpeRatio
	} else {
		s.SharpeRatio = math.NaN()
	}
	return nil
}

// Summarize reduces a non-empty, date-ordered record sequence to its summary
// statistics. Annualized return is geometric over periodsPerYear trading
// periods; the Sharpe ratio uses excess return over riskFreeRate and is NaN
// when volatility is indistinguishable from zero.
func Summarize(records []*Record, periodsPerYear int, riskFreeRate float64) (*Summary, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	if periodsPerYear <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrBadPeriods, periodsPerYear)
	}

	rets := make([]float64, len(records))
	for idx, rec := range records {
		rets[idx] = rec.PortfolioReturn
	}

	finalValue := records[len(records)-1].CumulativeValue
	years := float64(len(records)) / float64(periodsPerYear)
	annualizedReturn := math.Pow(finalValue, 1.0/years) - 1.0

	annualizedVol := stat.StdDev(rets, nil) * math.Sqrt(float64(periodsPerYear))

	summary := &Summary{
		AnnualizedReturn:     annualizedReturn,
		AnnualizedVolatility: annualizedVol,
		MaxDrawDown:          maxDrawDown(records),
	}

	if math.IsNaN(annualizedVol) || annualizedVol < zeroVolTol {
		log.Warn().Float64("Volatility", annualizedVol).Msg("volatility is zero; sharpe ratio undefined")
		summary.SharpeRatio = math.NaN()
		summary.ZeroVolatility = true
		return summary, nil
	}

	summary.SharpeRatio = (annualizedReturn - riskFreeRate) / annualizedVol
	return summary, nil
}

// maxDrawDown returns the largest peak-to-trough decline of cumulative
// value as a positive fraction; the starting value of 1 counts as the
// initial peak
func maxDrawDown(records []*Record) float64 {
	peak := 1.0
	maxDD := 0.0
	for _, rec := range records {
		if rec.CumulativeValue > peak {
			peak = rec.CumulativeValue
		}
		if dd := (peak - rec.CumulativeValue) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}
