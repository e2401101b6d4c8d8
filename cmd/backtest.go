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

	"github.com/greenfolio/gf-api/backtest"
	"github.com/greenfolio/gf-api/common"
	"github.com/greenfolio/gf-api/observability/opentelemetry"
	"github.com/greenfolio/gf-api/store"
	"github.com/greenfolio/gf-api/tradecal"
	"github.com/rs/zerolog/log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	backtestCmdSave    bool
	backtestCmdCache   bool
	backtestCmdWorkers int
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().String("frequency", "monthbegin", "Rebalance frequency: daily, weekbegin, weekend, monthbegin, monthend, every:N, or cron:SPEC")
	viper.BindPFlag("portfolio.rebalance_frequency", backtestCmd.Flags().Lookup("frequency"))

	backtestCmd.Flags().Float64("cost-rate", 0.0, "Proportional transaction cost applied to turnover on rebalance days")
	viper.BindPFlag("portfolio.cost_rate", backtestCmd.Flags().Lookup("cost-rate"))

	backtestCmd.Flags().Float64("risk-free-rate", 0.0, "Annualized risk free rate used in the Sharpe ratio")
	viper.BindPFlag("portfolio.risk_free_rate", backtestCmd.Flags().Lookup("risk-free-rate"))

	backtestCmd.Flags().BoolVar(&backtestCmdSave, "save", false, "Persist weights and performance to the database")
	backtestCmd.Flags().BoolVar(&backtestCmdCache, "cache", false, "Store records and summary in the shared cache")
	backtestCmd.Flags().IntVar(&backtestCmdWorkers, "workers", 0, "Number of concurrent optimizer workers, 0 uses GOMAXPROCS")
}

var backtestCmd = &cobra.Command{
	Use:        "backtest [flags] BeginDate EndDate",
	Short:      "Run a backtest over the requested date range",
	Args:       cobra.ExactArgs(2),
	ArgAliases: []string{"BeginDate", "EndDate"},
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()
		common.SetupCache()
		ctx := context.Background()

		if viper.GetString("otlp.endpoint") != "" {
			shutdown, err := opentelemetry.Setup()
			if err != nil {
				log.Error().Err(err).Msg("could not initialize tracing")
			} else {
				defer func() {
					if err := shutdown(ctx); err != nil {
						log.Error().Err(err).Msg("could not shutdown tracing")
					}
				}()
			}
		}

		begin := parseDateArg(args[0])
		end := parseDateArg(args[1])

		rule, err := tradecal.ParseRule(viper.GetString("portfolio.rebalance_frequency"))
		if err != nil {
			log.Fatal().Err(err).Str("Frequency", viper.GetString("portfolio.rebalance_frequency")).Msg("could not parse rebalance frequency")
		}

		src := loadSources(ctx)
		cal := loadCalendar(ctx)

		cfg := &backtest.Config{
			Optimizer:      optimizerConfig(),
			Sim:            &backtest.SimConfig{CostRate: viper.GetFloat64("portfolio.cost_rate")},
			Rule:           rule,
			PeriodsPerYear: viper.GetInt("portfolio.trading_periods_per_year"),
			RiskFreeRate:   viper.GetFloat64("portfolio.risk_free_rate"),
			Workers:        backtestCmdWorkers,
		}

		bt, err := backtest.New(ctx, src.features, src.returns, cal, begin, end, cfg)
		if err != nil {
			log.Fatal().Stack().Err(err).Msg("backtest failed")
		}

		for _, plan := range bt.Plans {
			fmt.Printf("\nRebalance %s\n", plan.Date.Format("2006-01-02"))
			printWeights(plan)
		}

		fmt.Println()
		fmt.Println(backtest.RecordFrame(bt.Records).Table())

		printSummary(bt.Summary)

		if backtestCmdCache {
			if err := bt.Cache(); err != nil {
				log.Error().Err(err).Msg("could not cache backtest results")
			} else {
				fmt.Printf("\nCached run %s\n", bt.RunID)
			}
		}

		if backtestCmdSave {
			if err := store.SaveRun(ctx, bt); err != nil {
				log.Fatal().Stack().Err(err).Msg("could not save backtest run")
			}
			fmt.Printf("\nSaved run %s\n", bt.RunID)
		}
	},
}
