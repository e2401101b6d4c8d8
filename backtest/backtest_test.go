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
	"gonum.org/v1/gonum/floats"

	"github.com/greenfolio/gf-api/backtest"
	"github.com/greenfolio/gf-api/common"
	"github.com/greenfolio/gf-api/data"
	"github.com/greenfolio/gf-api/dataframe"
	"github.com/greenfolio/gf-api/optimize"
	"github.com/greenfolio/gf-api/tradecal"
)

// fixedSource serves the same cross-sections for every date and realized
// returns over whatever range is requested
type fixedSource struct {
	expected map[string]float64
	esg      map[string]float64
	cov      map[data.AssetPair]float64
	frame    *dataframe.DataFrame
}

func (s *fixedSource) ExpectedReturns(_ context.Context, _ time.Time) (map[string]float64, error) {
	return s.expected, nil
}

func (s *fixedSource) ESGScores(_ context.Context, _ time.Time) (map[string]float64, error) {
	return s.esg, nil
}

func (s *fixedSource) Covariances(_ context.Context, _ time.Time) (map[data.AssetPair]float64, error) {
	return s.cov, nil
}

func (s *fixedSource) RealizedReturns(_ context.Context, begin, end time.Time) (*dataframe.DataFrame, error) {
	return s.frame.Trim(begin, end), nil
}

var _ = Describe("Backtest", func() {
	var (
		ctx   context.Context
		cal   *tradecal.Calendar
		src   *fixedSource
		cfg   *backtest.Config
		begin time.Time
		end   time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		cal = tradecal.NewCalendar()
		tz := common.GetTimezone()

		begin = time.Date(2023, time.January, 2, 0, 0, 0, 0, tz)
		end = time.Date(2023, time.February, 28, 0, 0, 0, 0, tz)

		frame := dataframe.New("A", "B")
		days, err := cal.TradingDays(begin, end)
		Expect(err).To(BeNil())
		for _, day := range days {
			frame.InsertRow(day, 0.001, 0.002)
		}

		src = &fixedSource{
			expected: map[string]float64{"A": 0.10, "B": 0.05},
			esg:      map[string]float64{"A": 0.5, "B": 0.5},
			cov: map[data.AssetPair]float64{
				{Row: "A", Col: "A"}: 0.04,
				{Row: "B", Col: "B"}: 0.01,
			},
			frame: frame,
		}

		rule, err := tradecal.ParseRule("monthbegin")
		Expect(err).To(BeNil())

		cfg = &backtest.Config{
			Optimizer:      &optimize.Config{RiskAversion: 5.0, WeightCap: 0.8},
			Sim:            &backtest.SimConfig{CostRate: 0},
			Rule:           rule,
			PeriodsPerYear: 252,
			RiskFreeRate:   0,
			Workers:        2,
		}
	})

	It("produces one plan per rebalance date and a record per trading day", func() {
		bt, err := backtest.New(ctx, src, src, cal, begin, end, cfg)
		Expect(err).To(BeNil())

		// first trading days of January and February 2023
		Expect(bt.Plans).To(HaveLen(2))
		Expect(bt.Plans[0].Date.Format("2006-01-02")).To(Equal("2023-01-03"))
		Expect(bt.Plans[1].Date.Format("2006-01-02")).To(Equal("2023-02-01"))

		days, err := cal.TradingDays(bt.Plans[0].Date, end)
		Expect(err).To(BeNil())
		Expect(bt.Records).To(HaveLen(len(days)))
	})

	It("carries fully invested allocations on every plan", func() {
		bt, err := backtest.New(ctx, src, src, cal, begin, end, cfg)
		Expect(err).To(BeNil())
		for _, plan := range bt.Plans {
			Expect(floats.Sum(plan.Weights)).To(BeNumerically("~", 1.0, optimize.BudgetTol))
		}
	})

	It("summarizes the run", func() {
		bt, err := backtest.New(ctx, src, src, cal, begin, end, cfg)
		Expect(err).To(BeNil())
		Expect(bt.Summary).ToNot(BeNil())
		Expect(bt.Summary.AnnualizedReturn).To(BeNumerically(">", 0.0))
		Expect(bt.RunID.String()).ToNot(BeEmpty())
	})

	It("fails the run when the schedule is empty", func() {
		saturday := time.Date(2023, time.January, 7, 0, 0, 0, 0, common.GetTimezone())
		sunday := time.Date(2023, time.January, 8, 0, 0, 0, 0, common.GetTimezone())
		_, err := backtest.New(ctx, src, src, cal, saturday, sunday, cfg)
		Expect(err).To(MatchError(tradecal.ErrEmptySchedule))
	})
})
