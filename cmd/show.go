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

	"github.com/google/uuid"
	"github.com/greenfolio/gf-api/backtest"
	"github.com/greenfolio/gf-api/common"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:        "show [flags] RunID",
	Short:      "Display the records and summary of a previously cached backtest run",
	Args:       cobra.ExactArgs(1),
	ArgAliases: []string{"RunID"},
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()
		common.SetupCache()

		runID, err := uuid.Parse(args[0])
		if err != nil {
			log.Fatal().Err(err).Str("Arg", args[0]).Msg("could not parse run id")
		}

		bt, err := backtest.FromCache(runID)
		if err != nil {
			log.Fatal().Err(err).Str("RunID", runID.String()).Msg("could not load cached run")
		}

		fmt.Println(backtest.RecordFrame(bt.Records).Table())
		printSummary(bt.Summary)
	},
}
