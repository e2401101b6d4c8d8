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
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/stat"

	"github.com/greenfolio/gf-api/backtest"
	"github.com/greenfolio/gf-api/common"
)

func makeRecords(rets []float64) []*backtest.Record {
	tz := common.GetTimezone()
	records := make([]*backtest.Record, 0, len(rets))
	value := 1.0
	date := time.Date(2023, time.January, 10, 0, 0, 0, 0, tz)
	for _, r := range rets {
		value *= 1.0 + r
		records = append(records, &backtest.Record{
			Date:            date,
			PortfolioReturn: r,
			CumulativeValue: value,
		})
		date = date.AddDate(0, 0, 1)
	}
	return records
}

var _ = Describe("Summarize", func() {
	Context("with a typical return sequence", func() {
		rets := []float64{0.0, 0.01, 0.0}

		It("annualizes the geometric return over trading periods", func() {
			summary, err := backtest.Summarize(makeRecords(rets), 252, 0.0)
			Expect(err).To(BeNil())
			expected := math.Pow(1.01, 252.0/3.0) - 1.0
			Expect(summary.AnnualizedReturn).To(BeNumerically("~", expected, 1e-9))
		})

		It("annualizes volatility by the square root of periods", func() {
			summary, err := backtest.Summarize(makeRecords(rets), 252, 0.0)
			Expect(err).To(BeNil())
			expected := stat.StdDev(rets, nil) * math.Sqrt(252)
			Expect(summary.AnnualizedVolatility).To(BeNumerically("~", expected, 1e-12))
			Expect(summary.ZeroVolatility).To(BeFalse())
		})

		It("computes the Sharpe ratio from excess return", func() {
			riskFree := 0.02
			summary, err := backtest.Summarize(makeRecords(rets), 252, riskFree)
			Expect(err).To(BeNil())
			expected := (summary.AnnualizedReturn - riskFree) / summary.AnnualizedVolatility
			Expect(summary.SharpeRatio).To(BeNumerically("~", expected, 1e-12))
		})
	})

	Context("with constant returns", func() {
		It("flags zero volatility and leaves the Sharpe ratio undefined", func() {
			summary, err := backtest.Summarize(makeRecords([]float64{0.01, 0.01, 0.01}), 252, 0.0)
			Expect(err).To(BeNil())
			Expect(summary.ZeroVolatility).To(BeTrue())
			Expect(math.IsNaN(summary.SharpeRatio)).To(BeTrue())
			Expect(summary.AnnualizedReturn).To(BeNumerically(">", 0.0))
		})
	})

	Context("with drawdowns", func() {
		It("finds the largest peak-to-trough decline", func() {
			tz := common.GetTimezone()
			date := time.Date(2023, time.January, 10, 0, 0, 0, 0, tz)
			records := []*backtest.Record{
				{Date: date, CumulativeValue: 1.10},
				{Date: date.AddDate(0, 0, 1), CumulativeValue: 0.99},
				{Date: date.AddDate(0, 0, 2), CumulativeValue: 1.20},
				{Date: date.AddDate(0, 0, 3), CumulativeValue: 0.90},
			}
			summary, err := backtest.Summarize(records, 252, 0.0)
			Expect(err).To(BeNil())
			Expect(summary.MaxDrawDown).To(BeNumerically("~", 0.25, 1e-12))
		})

		It("counts the initial value of one as the first peak", func() {
			summary, err := backtest.Summarize(makeRecords([]float64{-0.10, 0.05, 0.01}), 252, 0.0)
			Expect(err).To(BeNil())
			Expect(summary.MaxDrawDown).To(BeNumerically("~", 0.10, 1e-12))
		})
	})

	Context("with no records", func() {
		It("returns ErrNoRecords", func() {
			_, err := backtest.Summarize(nil, 252, 0.0)
			Expect(err).To(MatchError(backtest.ErrNoRecords))
		})
	})

	Context("with a non-positive period count", func() {
		It("returns ErrBadPeriods", func() {
			_, err := backtest.Summarize(makeRecords([]float64{0.01}), 0, 0.0)
			Expect(err).To(MatchError(backtest.ErrBadPeriods))
		})
	})
})
