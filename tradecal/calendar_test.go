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

package tradecal_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock"

	"github.com/greenfolio/gf-api/common"
	"github.com/greenfolio/gf-api/database"
	"github.com/greenfolio/gf-api/tradecal"
)

func day(year int, month time.Month, dom int) time.Time {
	return time.Date(year, month, dom, 0, 0, 0, 0, common.GetTimezone())
}

var _ = Describe("Calendar", func() {
	var cal *tradecal.Calendar

	BeforeEach(func() {
		cal = tradecal.NewCalendar()
	})

	DescribeTable("when checking trade days",
		func(t time.Time, expected bool) {
			Expect(cal.IsTradeDay(t)).To(Equal(expected))
		},
		Entry("a regular Tuesday", day(2023, time.January, 10), true),
		Entry("a Saturday", day(2023, time.January, 7), false),
		Entry("a Sunday", day(2023, time.January, 8), false),
		Entry("New Year's Day observed on Monday", day(2023, time.January, 2), false),
		Entry("Martin Luther King Jr. Day", day(2023, time.January, 16), false),
		Entry("Washington's Birthday", day(2023, time.February, 20), false),
		Entry("Good Friday 2023", day(2023, time.April, 7), false),
		Entry("Good Friday 2024", day(2024, time.March, 29), false),
		Entry("Memorial Day", day(2023, time.May, 29), false),
		Entry("Juneteenth observed since 2022", day(2023, time.June, 19), false),
		Entry("Juneteenth not observed before 2022", day(2021, time.June, 18), true),
		Entry("Independence Day", day(2023, time.July, 4), false),
		Entry("Independence Day observed on Monday", day(2021, time.July, 5), false),
		Entry("Labor Day", day(2023, time.September, 4), false),
		Entry("Thanksgiving", day(2023, time.November, 23), false),
		Entry("Christmas", day(2023, time.December, 25), false),
		Entry("Christmas observed on Tuesday", day(2021, time.December, 24), false),
		Entry("the day after Thanksgiving is open", day(2023, time.November, 24), true),
	)

	Describe("TradingDays", func() {
		It("lists weekdays excluding holidays", func() {
			days, err := cal.TradingDays(day(2023, time.January, 1), day(2023, time.January, 7))
			Expect(err).To(BeNil())
			// Jan 2 is the observed New Year holiday
			Expect(days).To(HaveLen(4))
			Expect(days[0]).To(Equal(day(2023, time.January, 3)))
			Expect(days[3]).To(Equal(day(2023, time.January, 6)))
		})

		It("rejects an inverted range", func() {
			_, err := cal.TradingDays(day(2023, time.March, 1), day(2023, time.February, 1))
			Expect(err).To(MatchError(tradecal.ErrInvalidTimeRange))
		})

		It("errors when the range holds no trading days", func() {
			_, err := cal.TradingDays(day(2023, time.January, 7), day(2023, time.January, 8))
			Expect(err).To(MatchError(tradecal.ErrNoTradingDays))
		})
	})

	Describe("NextTradeDay", func() {
		It("returns the same day when already a trading day", func() {
			Expect(cal.NextTradeDay(day(2023, time.January, 10))).To(Equal(day(2023, time.January, 10)))
		})

		It("skips the weekend", func() {
			Expect(cal.NextTradeDay(day(2023, time.January, 7))).To(Equal(day(2023, time.January, 9)))
		})

		It("skips holidays", func() {
			Expect(cal.NextTradeDay(day(2023, time.December, 25))).To(Equal(day(2023, time.December, 26)))
		})
	})

	Describe("LoadMarketHolidays", func() {
		var dbPool pgxmock.PgxConnIface

		BeforeEach(func() {
			var err error
			dbPool, err = pgxmock.NewConn()
			Expect(err).To(BeNil())
			database.SetPool(dbPool)
		})

		It("merges stored closures into the calendar", func() {
			closure := day(2023, time.March, 15)
			dbPool.ExpectBegin()
			dbPool.ExpectQuery("SELECT holiday FROM market_holidays").WillReturnRows(
				pgxmock.NewRows([]string{"holiday"}).AddRow(closure))
			dbPool.ExpectCommit()

			Expect(cal.IsTradeDay(closure)).To(BeTrue())
			Expect(cal.LoadMarketHolidays(context.Background())).To(Succeed())
			Expect(cal.IsTradeDay(closure)).To(BeFalse())
		})
	})
})
