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

package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/greenfolio/gf-api/backtest"
	"github.com/greenfolio/gf-api/data"
	"github.com/greenfolio/gf-api/database"
	"github.com/greenfolio/gf-api/features"
	"github.com/greenfolio/gf-api/optimize"
	"github.com/greenfolio/gf-api/tradecal"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// sources bundles the feature and return providers selected by configuration
type sources struct {
	features data.FeatureSource
	returns  data.ReturnSource
}

// loadSources selects the data backend: a directory of csv tables when
// data.csv_dir is set, otherwise the Postgres feature store. When
// features.derive is set the optimizer inputs are computed from raw prices
// and ESG scores instead of read from precomputed tables.
func loadSources(ctx context.Context) *sources {
	csvDir := viper.GetString("data.csv_dir")

	if csvDir != "" {
		src, err := data.NewCSVSourceFromDir(csvDir)
		if err != nil {
			log.Fatal().Stack().Err(err).Str("Dir", csvDir).Msg("could not load csv tables")
		}
		if viper.GetBool("features.derive") {
			derived := features.NewSource(src, src.ESGScores,
				viper.GetInt("features.lookback_days"), viper.GetInt("features.cov_window_days"))
			return &sources{features: derived, returns: derived}
		}
		return &sources{features: src, returns: src}
	}

	if err := database.Connect(ctx); err != nil {
		log.Fatal().Stack().Err(err).Msg("could not connect to database")
	}

	pg := data.NewPgDb()
	if viper.GetBool("features.derive") {
		derived := features.NewSource(pg, pg.ESGScores,
			viper.GetInt("features.lookback_days"), viper.GetInt("features.cov_window_days"))
		return &sources{features: derived, returns: derived}
	}
	return &sources{features: pg, returns: pg}
}

// loadCalendar builds the trading calendar, merging stored market holidays
// when a database connection is configured
func loadCalendar(ctx context.Context) *tradecal.Calendar {
	cal := tradecal.NewCalendar()
	if viper.GetString("data.csv_dir") == "" && viper.GetString("database.url") != "" {
		if err := cal.LoadMarketHolidays(ctx); err != nil {
			log.Warn().Err(err).Msg("could not load market holidays, using computed holidays only")
		}
	}
	return cal
}

// optimizerConfig assembles the solver configuration from viper settings
func optimizerConfig() *optimize.Config {
	cfg := &optimize.Config{
		RiskAversion: viper.GetFloat64("portfolio.risk_aversion"),
		WeightCap:    viper.GetFloat64("portfolio.weight_cap"),
	}
	if esgMin := viper.GetFloat64("portfolio.esg_min"); esgMin >= 0 {
		cfg.ESGMin = &esgMin
	}
	return cfg
}

func parseDateArg(arg string) time.Time {
	t, err := time.Parse("2006-01-02", arg)
	if err != nil {
		log.Fatal().Err(err).Str("Arg", arg).Msg("could not parse date, expected YYYY-MM-DD")
	}
	return t
}

// printWeights renders one allocation as a table sorted by weight, largest
// position first
func printWeights(pw *optimize.PortfolioWeights) {
	type position struct {
		asset  string
		weight float64
	}
	positions := make([]position, 0, len(pw.Assets))
	for idx, asset := range pw.Assets {
		if pw.Weights[idx] > 0 {
			positions = append(positions, position{asset: asset, weight: pw.Weights[idx]})
		}
	}
	sort.Slice(positions, func(a, b int) bool {
		if positions[a].weight != positions[b].weight {
			return positions[a].weight > positions[b].weight
		}
		return positions[a].asset < positions[b].asset
	})

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Asset", "Weight"})
	table.SetBorders(tablewriter.Border{Left: true, Top: true, Right: true, Bottom: true})
	for _, pos := range positions {
		table.Append([]string{pos.asset, fmt.Sprintf("%.4f", pos.weight)})
	}
	table.SetFooter([]string{"E[r] / Vol", fmt.Sprintf("%.4f / %.4f", pw.ExpectedReturn, pw.Volatility)})
	table.Render()
}

func printSummary(summary *backtest.Summary) {
	fmt.Printf("Annualized Return    : %.4f\n", summary.AnnualizedReturn)
	fmt.Printf("Annualized Volatility: %.4f\n", summary.AnnualizedVolatility)
	if summary.ZeroVolatility {
		fmt.Println("Sharpe Ratio         : undefined (zero volatility)")
	} else {
		fmt.Printf("Sharpe Ratio         : %.4f\n", summary.SharpeRatio)
	}
	fmt.Printf("Max Drawdown         : %.4f\n", summary.MaxDrawDown)
}
