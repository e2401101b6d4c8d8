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
	"fmt"
	"os"

	"github.com/greenfolio/gf-api/common"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Database
	viper.BindEnv("database.url", "DATABASE_URL")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string")
	viper.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database-url"))

	// Logging configuration
	viper.BindEnv("log.level", "GF_LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-level", "warning", "Logging level")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.BindEnv("log.report_caller", "GF_LOG_REPORT_CALLER")
	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	viper.BindPFlag("log.report_caller", rootCmd.PersistentFlags().Lookup("log-report-caller"))

	viper.BindEnv("log.output", "GF_LOG_OUTPUT")
	rootCmd.PersistentFlags().String("log-output", "stdout", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	viper.BindPFlag("log.output", rootCmd.PersistentFlags().Lookup("log-output"))

	viper.BindEnv("log.pretty", "GF_LOG_PRETTY")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "Print logs in human readable console format")
	viper.BindPFlag("log.pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))

	// Tracing
	viper.BindEnv("otlp.endpoint", "OTLP_ENDPOINT")
	rootCmd.PersistentFlags().String("otlp-endpoint", "", "OTLP trace collector endpoint, if blank don't send traces")
	viper.BindPFlag("otlp.endpoint", rootCmd.PersistentFlags().Lookup("otlp-endpoint"))

	// Portfolio construction parameters
	viper.BindEnv("portfolio.risk_aversion", "GF_RISK_AVERSION")
	rootCmd.PersistentFlags().Float64("risk-aversion", 5.0, "Risk aversion coefficient for the mean-variance objective")
	viper.BindPFlag("portfolio.risk_aversion", rootCmd.PersistentFlags().Lookup("risk-aversion"))

	viper.BindEnv("portfolio.weight_cap", "GF_WEIGHT_CAP")
	rootCmd.PersistentFlags().Float64("weight-cap", 0.07, "Maximum weight any single asset may take")
	viper.BindPFlag("portfolio.weight_cap", rootCmd.PersistentFlags().Lookup("weight-cap"))

	viper.BindEnv("portfolio.esg_min", "GF_ESG_MIN")
	rootCmd.PersistentFlags().Float64("esg-min", -1, "Minimum weighted ESG score the portfolio must attain, negative disables the floor")
	viper.BindPFlag("portfolio.esg_min", rootCmd.PersistentFlags().Lookup("esg-min"))

	// Data source
	rootCmd.PersistentFlags().String("csv-dir", "", "Directory of csv input tables, if blank read from the database")
	viper.BindPFlag("data.csv_dir", rootCmd.PersistentFlags().Lookup("csv-dir"))

	rootCmd.PersistentFlags().Bool("derive-features", false, "Compute expected returns and covariances from raw prices instead of reading precomputed tables")
	viper.BindPFlag("features.derive", rootCmd.PersistentFlags().Lookup("derive-features"))

	viper.SetDefault("cache.local_size", 64)
	viper.SetDefault("cache.ttl", 3600)
	viper.SetDefault("portfolio.cost_rate", 0.0)
	viper.SetDefault("portfolio.rebalance_frequency", "monthbegin")
	viper.SetDefault("portfolio.trading_periods_per_year", 252)
	viper.SetDefault("portfolio.risk_free_rate", 0.0)
	viper.SetDefault("features.lookback_days", 20)
	viper.SetDefault("features.cov_window_days", 20)
}

var rootCmd = &cobra.Command{
	Use:     "gfapi",
	Version: common.CurrentVersion.String(),
	Short:   "Greenfolio builds and backtests ESG-aware portfolios",
	Long:    `A portfolio construction engine that optimizes long-only mean-variance allocations under weight caps and ESG floors and replays them against realized returns.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
