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

package backtest_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/greenfolio/gf-api/backtest"
	"github.com/greenfolio/gf-api/common"
	"github.com/greenfolio/gf-api/dataframe"
	"github.com/greenfolio/gf-api/optimize"
	"github.com/greenfolio/gf-api/tradecal"
)

var _ = Describe("Simulator", func() {
	var (
		ctx     context.Context
		cal     *tradecal.Calendar
		sim     *backtest.Simulator
		tz      *time.Location
		d0, d1  time.Time
		d2      time.Time
		plans   []*optimize.PortfolioWeights
		returns *dataframe.DataFrame
	)

	BeforeEach(func() {
		ctx = context.Background()
		cal = tradecal.NewCalendar()
		sim = backtest.NewSimulator(cal, &backtest.SimConfig{CostRate: 0})
		tz = common.GetTimezone()

		// three consecutive trading days
		d0 = time.Date(2023, time.January, 10, 0, 0, 0, 0, tz)
		d1 = time.Date(2023, time.January, 11, 0, 0, 0, 0, tz)
		d2 = time.Date(2023, time.January, 12, 0, 0, 0, 0, tz)

		plans = []*optimize.PortfolioWeights{
			{Date: d0, Assets: []string{"A", "B"}, Weights: []float64{0.5, 0.5}},
		}

		returns = dataframe.New("A", "B")
		returns.InsertRow(d0, 0.01, -0.01)
		returns.InsertRow(d1, 0.02, 0.0)
		returns.InsertRow(d2, -0.01, 0.01)
	})

	Context("with fixed 50/50 weights over three days", func() {
		It("replays the plan against realized returns", func() {
			records, err := sim.Run(ctx, plans, returns)
			Expect(err).To(BeNil())
			Expect(records).To(HaveLen(3))

			Expect(records[0].PortfolioReturn).To(BeNumerically("~", 0.0, 1e-12))
			Expect(records[1].PortfolioReturn).To(BeNumerically("~", 0.01, 1e-12))
			Expect(records[2].PortfolioReturn).To(BeNumerically("~", 0.0, 1e-12))

			Expect(records[0].CumulativeValue).To(BeNumerically("~", 1.0, 1e-12))
			Expect(records[1].CumulativeValue).To(BeNumerically("~", 1.01, 1e-12))
			Expect(records[2].CumulativeValue).To(BeNumerically("~", 1.01, 1e-12))
		})

		It("marks only the rebalance day", func() {
			records, err := sim.Run(ctx, plans, returns)
			Expect(err).To(BeNil())
			Expect(records[0].Rebalanced).To(BeTrue())
			Expect(records[1].Rebalanced).To(BeFalse())
			Expect(records[2].Rebalanced).To(BeFalse())
		})

		It("records full turnover on the first allocation", func() {
			records, err := sim.Run(ctx, plans, returns)
			Expect(err).To(BeNil())
			Expect(records[0].Turnover).To(BeNumerically("~", 1.0, 1e-12))
			Expect(records[1].Turnover).To(Equal(0.0))
		})

		It("snapshots the active allocation on every record", func() {
			records, err := sim.Run(ctx, plans, returns)
			Expect(err).To(BeNil())
			for _, rec := range records {
				Expect(rec.ActiveWeights).To(HaveKeyWithValue("A", 0.5))
				Expect(rec.ActiveWeights).To(HaveKeyWithValue("B", 0.5))
			}
		})
	})

	Context("with a mid-range rebalance", func() {
		BeforeEach(func() {
			plans = append(plans, &optimize.PortfolioWeights{
				Date: d1, Assets: []string{"A", "C"}, Weights: []float64{0.5, 0.5},
			})
			returns = dataframe.New("A", "B", "C")
			returns.InsertRow(d0, 0.01, -0.01, 0.0)
			returns.InsertRow(d1, 0.02, 0.0, 0.04)
			returns.InsertRow(d2, -0.01, 0.01, 0.03)
		})

		It("liquidates assets that leave the universe", func() {
			records, err := sim.Run(ctx, plans, returns)
			Expect(err).To(BeNil())
			Expect(records[1].ActiveWeights).ToNot(HaveKey("B"))
			Expect(records[1].ActiveWeights).To(HaveKeyWithValue("C", 0.5))
		})

		It("computes turnover over the union of both universes", func() {
			records, err := sim.Run(ctx, plans, returns)
			Expect(err).To(BeNil())
			// A unchanged, B 0.5 -> 0, C 0 -> 0.5
			Expect(records[1].Turnover).To(BeNumerically("~", 1.0, 1e-12))
		})

		It("keeps turnover within [0, 2]", func() {
			records, err := sim.Run(ctx, plans, returns)
			Expect(err).To(BeNil())
			for _, rec := range records {
				Expect(rec.Turnover).To(BeNumerically(">=", 0.0))
				Expect(rec.Turnover).To(BeNumerically("<=", 2.0))
			}
		})
	})

	Context("with transaction costs", func() {
		BeforeEach(func() {
			sim = backtest.NewSimulator(cal, &backtest.SimConfig{CostRate: 0.01})
		})

		It("charges cost against the rebalance day return", func() {
			records, err := sim.Run(ctx, plans, returns)
			Expect(err).To(BeNil())
			// gross 0.0 minus 0.01 * turnover of 1.0
			Expect(records[0].PortfolioReturn).To(BeNumerically("~", -0.01, 1e-12))
			Expect(records[1].PortfolioReturn).To(BeNumerically("~", 0.01, 1e-12))
		})
	})

	Context("with a missing realized return", func() {
		BeforeEach(func() {
			returns = dataframe.New("A", "B")
			returns.InsertRow(d0, 0.01, -0.01)
			returns.InsertMap(d1, map[string]float64{"A": 0.02})
			returns.InsertRow(d2, -0.01, 0.01)
		})

		It("fails with ErrMissingReturn and returns the partial records", func() {
			records, err := sim.Run(ctx, plans, returns)
			Expect(err).To(MatchError(backtest.ErrMissingReturn))
			Expect(records).To(HaveLen(1))
			Expect(records[0].Date).To(Equal(d0))
		})
	})

	Context("with defective plans", func() {
		It("rejects an empty plan list", func() {
			_, err := sim.Run(ctx, nil, returns)
			Expect(err).To(MatchError(backtest.ErrNoPlans))
		})

		It("rejects out-of-order plans", func() {
			plans = append(plans, &optimize.PortfolioWeights{
				Date: d0, Assets: []string{"A"}, Weights: []float64{1.0},
			})
			_, err := sim.Run(ctx, plans, returns)
			Expect(err).To(MatchError(backtest.ErrUnorderedPlan))
		})
	})

	Context("when the context is cancelled", func() {
		It("stops with ErrCancelled", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			_, err := sim.Run(cancelled, plans, returns)
			Expect(err).To(MatchError(backtest.ErrCancelled))
		})
	})
})

var _ = Describe("RecordFrame", func() {
	It("pivots records into a date-indexed frame", func() {
		tz := common.GetTimezone()
		records := []*backtest.Record{
			{Date: time.Date(2023, time.January, 10, 0, 0, 0, 0, tz), PortfolioReturn: 0.01, CumulativeValue: 1.01, Turnover: 1.0},
			{Date: time.Date(2023, time.January, 11, 0, 0, 0, 0, tz), PortfolioReturn: -0.005, CumulativeValue: 1.00495, Turnover: 0.0},
		}
		df := backtest.RecordFrame(records)
		Expect(df.Len()).To(Equal(2))
		Expect(df.ColNames).To(Equal([]string{"portfolio_return", "cumulative_value", "turnover"}))
		Expect(df.Col("portfolio_return")).To(Equal([]float64{0.01, -0.005}))
	})
})
