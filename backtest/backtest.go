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
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/greenfolio/gf-api/common"
	"github.com/greenfolio/gf-api/data"
	"github.com/greenfolio/gf-api/optimize"
	"github.com/greenfolio/gf-api/tradecal"
	"github.com/rs/zerolog/log"
)

// Config bundles the externally supplied parameters for a full backtest run
type Config struct {
	Optimizer      *optimize.Config
	Sim            *SimConfig
	Rule           *tradecal.Rule
	PeriodsPerYear int
	RiskFreeRate   float64
	Workers        int
}

// Backtest is the result of one end-to-end run: the per-date allocations,
// the daily record sequence, and its summary
type Backtest struct {
	RunID   uuid.UUID
	Plans   []*optimize.PortfolioWeights
	Records []*Record
	Summary *Summary
}

// New runs a full backtest: enumerate rebalance dates, build one input
// frame per date, solve allocations (fanned out across workers, collected
// in date order), replay them through realized returns, and summarize. Any
// failure aborts the run; the caller owns retry policy.
func New(ctx context.Context, features data.FeatureSource, returns data.ReturnSource, cal *tradecal.Calendar, begin, end time.Time, cfg *Config) (*Backtest, error) {
	schedule, err := cal.Schedule(begin, end, cfg.Rule)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	frames := make([]*optimize.InputFrame, 0, len(schedule))
	for _, date := range schedule {
		frame, err := optimize.BuildFrame(ctx, features, date)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	frameDur := time.Since(start).Round(time.Millisecond)

	start = time.Now()
	plans, err := optimize.SolveAll(ctx, frames, cfg.Optimizer, cfg.Workers)
	if err != nil {
		return nil, err
	}
	solveDur := time.Since(start).Round(time.Millisecond)

	start = time.Now()
	realized, err := returns.RealizedReturns(ctx, schedule[0], end)
	if err != nil {
		return nil, err
	}

	sim := NewSimulator(cal, cfg.Sim)
	records, err := sim.Run(ctx, plans, realized)
	if err != nil {
		return nil, err
	}
	simDur := time.Since(start).Round(time.Millisecond)

	summary, err := Summarize(records, cfg.PeriodsPerYear, cfg.RiskFreeRate)
	if err != nil {
		return nil, err
	}

	log.Info().
		Dur("FrameBuildDur", frameDur).
		Dur("SolveDur", solveDur).
		Dur("SimDur", simDur).
		Int("NumRebalances", len(plans)).
		Int("NumRecords", len(records)).
		Msg("backtest runtime performance")

	return &Backtest{
		RunID:   uuid.New(),
		Plans:   plans,
		Records: records,
		Summary: summary,
	}, nil
}

func cacheKey(runID uuid.UUID, part string) string {
	return runID.String() + ":" + part
}

// Cache stores the serialized records and summary in the shared cache keyed
// by run ID
func (b *Backtest) Cache() error {
	recordBytes, err := json.Marshal(b.Records)
	if err != nil {
		log.Error().Stack().Err(err).Msg("serialization failed for records")
		return err
	}
	if err := common.CacheSet(cacheKey(b.RunID, "Records"), recordBytes); err != nil {
		log.Warn().Err(err).Msg("could not cache records")
		return err
	}

	summaryBytes, err := json.Marshal(b.Summary)
	if err != nil {
		log.Error().Stack().Err(err).Msg("serialization failed for summary")
		return err
	}
	if err := common.CacheSet(cacheKey(b.RunID, "Summary"), summaryBytes); err != nil {
		log.Warn().Err(err).Msg("could not cache summary")
		return err
	}

	return nil
}

// FromCache rebuilds a previously cached run's records and summary. Per-date
// plans are not cached, so the returned Backtest carries none.
func FromCache(runID uuid.UUID) (*Backtest, error) {
	recordBytes, err := common.CacheGet(cacheKey(runID, "Records"))
	if err != nil {
		return nil, err
	}
	var records []*Record
	if err := json.Unmarshal(recordBytes, &records); err != nil {
		log.Error().Stack().Err(err).Msg("deserialization failed for cached records")
		return nil, err
	}

	summaryBytes, err := common.CacheGet(cacheKey(runID, "Summary"))
	if err != nil {
		return nil, err
	}
	summary := &Summary{}
	if err := json.Unmarshal(summaryBytes, summary); err != nil {
		log.Error().Stack().Err(err).Msg("deserialization failed for cached summary")
		return nil, err
	}

	return &Backtest{
		RunID:   runID,
		Records: records,
		Summary: summary,
	}, nil
}
