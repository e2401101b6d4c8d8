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

package tradecal

import (
	"context"
	"errors"
	"time"

	"github.com/greenfolio/gf-api/common"
	"github.com/greenfolio/gf-api/database"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidTimeRange = errors.New("invalid time range; begin after end")
	ErrNoTradingDays    = errors.New("no trading days in range")
)

// Calendar answers trading-day questions for the US equity market. Holidays
// are computed from exchange rules by default; extra closures (e.g. special
// market closures) can be layered in from the database.
type Calendar struct {
	tz    *time.Location
	extra map[int64]struct{}

	holidayYears map[int]map[int64]struct{}
}

// NewCalendar creates a calendar with rule-based market holidays
func NewCalendar() *Calendar {
	return &Calendar{
		tz:           common.GetTimezone(),
		extra:        make(map[int64]struct{}),
		holidayYears: make(map[int]map[int64]struct{}),
	}
}

// LoadMarketHolidays merges additional market closures from the
// market_holidays table
func (cal *Calendar) LoadMarketHolidays(ctx context.Context) error {
	trx, err := database.Trx(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not get transaction when loading market holidays")
		return err
	}

	rows, err := trx.Query(ctx, "SELECT holiday FROM market_holidays WHERE market='us' ORDER BY holiday")
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not query market holidays")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return err
	}

	for rows.Next() {
		var dt time.Time
		if err = rows.Scan(&dt); err != nil {
			log.Error().Stack().Err(err).Msg("could not scan market holiday row")
			if err := trx.Rollback(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return err
		}
		cal.extra[cal.midnight(dt).Unix()] = struct{}{}
	}

	if err := trx.Commit(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not commit market holiday transaction")
		return err
	}
	return nil
}

// IsTradeDay returns true when t falls on a trading day: a weekday that is
// not a market holiday
func (cal *Calendar) IsTradeDay(t time.Time) bool {
	d := cal.midnight(t)
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	if _, ok := cal.extra[d.Unix()]; ok {
		return false
	}
	_, ok := cal.holidaysForYear(d.Year())[d.Unix()]
	return !ok
}

// TradingDays lists all trading days in [begin, end], normalized to midnight
// in the market timezone
func (cal *Calendar) TradingDays(begin, end time.Time) ([]time.Time, error) {
	if end.Before(begin) {
		return nil, ErrInvalidTimeRange
	}

	days := make([]time.Time, 0, 252)
	for d := cal.midnight(begin); !d.After(cal.midnight(end)); d = d.AddDate(0, 0, 1) {
		if cal.IsTradeDay(d) {
			days = append(days, d)
		}
	}
	if len(days) == 0 {
		return nil, ErrNoTradingDays
	}
	return days, nil
}

// NextTradeDay returns the first trading day on or after t
func (cal *Calendar) NextTradeDay(t time.Time) time.Time {
	d := cal.midnight(t)
	for !cal.IsTradeDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func (cal *Calendar) midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, cal.tz)
}

func (cal *Calendar) holidaysForYear(year int) map[int64]struct{} {
	if holidays, ok := cal.holidayYears[year]; ok {
		return holidays
	}

	holidays := make(map[int64]struct{}, 10)
	add := func(t time.Time) {
		holidays[t.Unix()] = struct{}{}
	}

	// New Year's Day; when it falls on Saturday the exchange takes no
	// observance day
	add(observed(time.Date(year, time.January, 1, 0, 0, 0, 0, cal.tz)))
	// Martin Luther King Jr. Day
	add(nthWeekday(year, time.January, time.Monday, 3, cal.tz))
	// Washington's Birthday
	add(nthWeekday(year, time.February, time.Monday, 3, cal.tz))
	// Good Friday
	add(easter(year, cal.tz).AddDate(0, 0, -2))
	// Memorial Day
	add(lastWeekday(year, time.May, time.Monday, cal.tz))
	// Juneteenth, observed by the exchange since 2022
	if year >= 2022 {
		add(observed(time.Date(year, time.June, 19, 0, 0, 0, 0, cal.tz)))
	}
	// Independence Day
	add(observed(time.Date(year, time.July, 4, 0, 0, 0, 0, cal.tz)))
	// Labor Day
	add(nthWeekday(year, time.September, time.Monday, 1, cal.tz))
	// Thanksgiving
	add(nthWeekday(year, time.November, time.Thursday, 4, cal.tz))
	// Christmas
	add(observed(time.Date(year, time.December, 25, 0, 0, 0, 0, cal.tz)))

	cal.holidayYears[year] = holidays
	return holidays
}

// observed shifts weekend holidays to the adjacent weekday: Saturday to the
// preceding Friday, Sunday to the following Monday
func observed(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Saturday:
		return t.AddDate(0, 0, -1)
	case time.Sunday:
		return t.AddDate(0, 0, 1)
	}
	return t
}

func nthWeekday(year int, month time.Month, weekday time.Weekday, n int, tz *time.Location) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, tz)
	offset := (int(weekday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset+(n-1)*7)
}

func lastWeekday(year int, month time.Month, weekday time.Weekday, tz *time.Location) time.Time {
	d := time.Date(year, month+1, 1, 0, 0, 0, 0, tz).AddDate(0, 0, -1)
	offset := (int(d.Weekday()) - int(weekday) + 7) % 7
	return d.AddDate(0, 0, -offset)
}

// easter computes Easter Sunday for the given year (Meeus/Jones/Butcher)
func easter(year int, tz *time.Location) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, tz)
}
