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

package store_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock"

	"github.com/greenfolio/gf-api/backtest"
	"github.com/greenfolio/gf-api/common"
	"github.com/greenfolio/gf-api/database"
	"github.com/greenfolio/gf-api/optimize"
	"github.com/greenfolio/gf-api/pgxmockhelper"
	"github.com/greenfolio/gf-api/store"
)

func testRun() *backtest.Backtest {
	tz := common.GetTimezone()
	d0 := time.Date(2023, time.January, 10, 0, 0, 0, 0, tz)
	d1 := time.Date(2023, time.January, 11, 0, 0, 0, 0, tz)

	return &backtest.Backtest{
		RunID: uuid.New(),
		Plans: []*optimize.PortfolioWeights{
			{
				Date:           d0,
				Assets:         []string{"A", "B"},
				Weights:        []float64{0.4, 0.6},
				ExpectedReturn: 0.07,
				Volatility:     0.12,
			},
		},
		Records: []*backtest.Record{
			{Date: d0, PortfolioReturn: 0.01, CumulativeValue: 1.01, Turnover: 1.0, Rebalanced: true},
			{Date: d1, PortfolioReturn: -0.005, CumulativeValue: 1.00495},
		},
		Summary: &backtest.Summary{
			AnnualizedReturn:     0.09,
			AnnualizedVolatility: 0.15,
			SharpeRatio:          0.6,
			MaxDrawDown:          0.05,
		},
	}
}

var _ = Describe("SaveRun", func() {
	var (
		ctx    context.Context
		dbPool pgxmock.PgxConnIface
		run    *backtest.Backtest
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		dbPool, err = pgxmock.NewConn()
		Expect(err).To(BeNil())
		database.SetPool(dbPool)
		run = testRun()
	})

	It("persists weights, stats, performance, and summary in one transaction", func() {
		pgxmockhelper.MockSaveRun(dbPool, 2, 1, 2)
		Expect(store.SaveRun(ctx, run)).To(Succeed())
		Expect(dbPool.ExpectationsWereMet()).To(Succeed())
	})

	It("rolls back when an insert fails", func() {
		dbPool.ExpectBegin()
		dbPool.ExpectExec("INSERT INTO portfolio_weights").
			WillReturnError(errors.New("duplicate key"))
		dbPool.ExpectRollback()

		err := store.SaveRun(ctx, run)
		Expect(err).To(HaveOccurred())
		Expect(dbPool.ExpectationsWereMet()).To(Succeed())
	})

	It("fails when the pool is not connected", func() {
		database.SetPool(nil)
		Expect(store.SaveRun(ctx, run)).To(MatchError(database.ErrNotConnected))
	})
})
