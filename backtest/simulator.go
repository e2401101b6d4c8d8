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
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/greenfolio/gf-api/dataframe"
	"github.com/greenfolio/gf-api/observability/opentelemetry"
	"github.com/greenfolio/gf-api/optimize"
	"github.com/greenfolio/gf-api/tradecal"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
)

// Record is one row of the backtest output: the realized portfolio return
// and cumulative value for a trading date, plus the active allocation that
// produced it. Records are appended strictly in date order and never revised.
type Record struct {
	Date            time.Time          `json:"date"`
	PortfolioReturn float64            `json:"portfolioReturn"`
	CumulativeValue float64            `json:"cumulativeValue"`
	Turnover        float64            `json:"turnover"`
	Rebalanced      bool               `json:"rebalanced"`
	ActiveWeights   map[string]float64 `json:"activeWeights"`
}

// SimConfig carries the simulation parameters; CostRate of zero disables the
// transaction-cost model
type SimConfig struct {
	CostRate float64
}

// Simulator replays a sequence of rebalance allocations through realized
// daily returns. It is strictly sequential: cumulative value depends on
// prior state.
type Simulator struct {
	cal *tradecal.Calendar
	cfg *SimConfig
}

func NewSimulator(cal *tradecal.Calendar, cfg *SimConfig) *Simulator {
	return &Simulator{cal: cal, cfg: cfg}
}

// Run walks every trading day from the first rebalance date through the end
// of the realized-return frame. On a rebalance date the newly computed
// weights replace the active ones (zero-padded over the union of the old and
// new universes) and turnover is recorded as the L1 distance over that
// union; between rebalances the last weights are used unmodified. A missing
// realized return for a held asset fails with ErrMissingReturn; records
// already produced are returned alongside the error and are never rolled
// back.
func (sim *Simulator) Run(ctx context.Context, plans []*optimize.PortfolioWeights, returns *dataframe.DataFrame) ([]*Record, error) {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "backtest.Run")
	defer span.End()

	if len(plans) == 0 {
		return nil, ErrNoPlans
	}
	for ii := 1; ii < len(plans); ii++ {
		if !plans[ii].Date.After(plans[ii-1].Date) {
			return nil, fmt.Errorf("%w: %s then %s", ErrUnorderedPlan,
				plans[ii-1].Date.Format("2006-01-02"), plans[ii].Date.Format("2006-01-02"))
		}
	}

	days, err := sim.cal.TradingDays(plans[0].Date, returns.End())
	if err != nil {
		return nil, err
	}

	records := make([]*Record, 0, len(days))
	active := make(map[string]float64)
	value := 1.0
	planIdx := 0

	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return records, fmt.Errorf("%w: %v", ErrCancelled, err)
		}

		turnover := 0.0
		rebalanced := false
		if planIdx < len(plans) && plans[planIdx].Date.Equal(day) {
			next := plans[planIdx].Map()
			turnover = rebalance(active, next)
			rebalanced = true
			planIdx++
		}

		dayReturn := 0.0
		for _, asset := range sortedAssets(active) {
			weight := active[asset]
			if weight == 0 {
				continue
			}
			r, ok := returns.ValueAt(day, asset)
			if !ok {
				log.Error().Time("Date", day).Str("AssetID", asset).Msg("realized return missing for held asset")
				return records, fmt.Errorf("%w: %s on %s", ErrMissingReturn, asset, day.Format("2006-01-02"))
			}
			dayReturn += weight * r
		}

		if rebalanced && sim.cfg.CostRate > 0 {
			dayReturn -= sim.cfg.CostRate * turnover
		}

		value *= 1.0 + dayReturn
		records = append(records, &Record{
			Date:            day,
			PortfolioReturn: dayReturn,
			CumulativeValue: value,
			Turnover:        turnover,
			Rebalanced:      rebalanced,
			ActiveWeights:   snapshot(active),
		})
	}

	return records, nil
}

// rebalance swaps the next allocation into active in place, returning the
// turnover: the L1 distance over the union of the old and new universes.
// Assets leaving the universe are liquidated at the rebalance (their weight
// goes to zero and is dropped).
func rebalance(active map[string]float64, next map[string]float64) float64 {
	turnover := 0.0
	for asset, oldWeight := range active {
		turnover += math.Abs(next[asset] - oldWeight)
		if _, held := next[asset]; !held {
			delete(active, asset)
		}
	}
	for asset, newWeight := range next {
		if _, held := active[asset]; !held {
			turnover += math.Abs(newWeight)
		}
		active[asset] = newWeight
	}
	return turnover
}

// sortedAssets keeps the dot product summation order fixed so repeated runs
// produce bit-identical values
func sortedAssets(weights map[string]float64) []string {
	assets := make([]string, 0, len(weights))
	for asset := range weights {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	return assets
}

func snapshot(weights map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(weights))
	for asset, weight := range weights {
		if weight != 0 {
			out[asset] = weight
		}
	}
	return out
}

// RecordFrame converts the record sequence to a date-indexed frame for
// rendering and persistence
func RecordFrame(records []*Record) *dataframe.DataFrame {
	df := dataframe.New("portfolio_return", "cumulative_value", "turnover")
	for _, rec := range records {
		df.InsertRow(rec.Date, rec.PortfolioReturn, rec.CumulativeValue, rec.Turnover)
	}
	return df
}
