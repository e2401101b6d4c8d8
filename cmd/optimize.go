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

	"github.com/greenfolio/gf-api/common"
	"github.com/greenfolio/gf-api/optimize"
	"github.com/rs/zerolog/log"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(optimizeCmd)
}

var optimizeCmd = &cobra.Command{
	Use:        "optimize [flags] Date",
	Short:      "Solve the optimal allocation for a single date",
	Args:       cobra.ExactArgs(1),
	ArgAliases: []string{"Date"},
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()
		ctx := context.Background()

		date := parseDateArg(args[0])
		src := loadSources(ctx)

		frame, err := optimize.BuildFrame(ctx, src.features, date)
		if err != nil {
			log.Fatal().Stack().Err(err).Time("Date", date).Msg("could not build optimizer inputs")
		}

		weights, err := optimize.Solve(ctx, frame, optimizerConfig())
		if err != nil {
			log.Fatal().Stack().Err(err).Time("Date", date).Msg("optimization failed")
		}

		fmt.Printf("Allocation for %s (%d assets in universe)\n", date.Format("2006-01-02"), frame.Len())
		printWeights(weights)
	},
}
