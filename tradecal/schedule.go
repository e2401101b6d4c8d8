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
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Frequency selects which trading days become rebalance dates
type Frequency string

const (
	Daily      Frequency = "Daily"
	WeekBegin  Frequency = "WeekBegin"
	WeekEnd    Frequency = "WeekEnd"
	MonthBegin Frequency = "MonthBegin"
	MonthEnd   Frequency = "MonthEnd"
	EveryN     Frequency = "EveryN"
	Cron       Frequency = "Cron"
)

var (
	ErrEmptySchedule    = errors.New("no rebalance dates satisfy the rule in the requested range")
	ErrInvalidFrequency = errors.New("unrecognized rebalance frequency")
)

// Rule is a parsed rebalance frequency. N is only meaningful for EveryN;
// Spec only for Cron.
type Rule struct {
	Frequency Frequency
	N         int
	Spec      string

	schedule cron.Schedule
}

// ParseRule parses a rebalance frequency string. Recognized forms:
//
//	daily | weekbegin | weekend | monthbegin | monthend
//	every:N        - every N-th trading day
//	cron:DoM M DoW - trading days matching a cron date spec,
//	                 e.g. "cron:15 * *" (the 15th of every month).
//	                 Standard cron semantics apply: when both DoM and DoW
//	                 are restricted the spec matches days satisfying either
//	                 field, not both.
func ParseRule(raw string) (*Rule, error) {
	s := strings.TrimSpace(strings.ToLower(raw))

	switch s {
	case "daily":
		return &Rule{Frequency: Daily}, nil
	case "weekbegin", "weekly":
		return &Rule{Frequency: WeekBegin}, nil
	case "weekend":
		return &Rule{Frequency: WeekEnd}, nil
	case "monthbegin", "monthly":
		return &Rule{Frequency: MonthBegin}, nil
	case "monthend":
		return &Rule{Frequency: MonthEnd}, nil
	}

	if rest, ok := cutPrefix(s, "every:"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidFrequency, raw)
		}
		return &Rule{Frequency: EveryN, N: n}, nil
	}

	if rest, ok := cutPrefix(strings.TrimSpace(raw), "cron:"); ok {
		parser := cron.NewParser(cron.Dom | cron.Month | cron.Dow)
		schedule, err := parser.Parse(strings.TrimSpace(rest))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %s", ErrInvalidFrequency, raw, err)
		}
		return &Rule{Frequency: Cron, Spec: rest, schedule: schedule}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrInvalidFrequency, raw)
}

// Schedule enumerates the rebalance dates in [begin, end] for the rule. The
// result is strictly increasing and non-empty; ErrEmptySchedule otherwise.
func (cal *Calendar) Schedule(begin, end time.Time, rule *Rule) ([]time.Time, error) {
	days, err := cal.TradingDays(begin, end)
	if err != nil {
		if errors.Is(err, ErrNoTradingDays) {
			return nil, ErrEmptySchedule
		}
		return nil, err
	}

	var dates []time.Time
	switch rule.Frequency {
	case Daily:
		dates = days
	case WeekBegin:
		dates = groupFirst(days, isoWeekKey)
	case WeekEnd:
		dates = groupLast(days, isoWeekKey)
	case MonthBegin:
		dates = groupFirst(days, monthKey)
	case MonthEnd:
		dates = groupLast(days, monthKey)
	case EveryN:
		for idx := 0; idx < len(days); idx += rule.N {
			dates = append(dates, days[idx])
		}
	case Cron:
		for _, day := range days {
			if rule.matchesCron(day) {
				dates = append(dates, day)
			}
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidFrequency, rule.Frequency)
	}

	if len(dates) == 0 {
		return nil, ErrEmptySchedule
	}
	return dates, nil
}

// matchesCron reports whether the date spec fires on day; day is expected at
// midnight so the schedule's next activation lands exactly on matching days
func (rule *Rule) matchesCron(day time.Time) bool {
	next := rule.schedule.Next(day.Add(-time.Second))
	return next.Year() == day.Year() && next.YearDay() == day.YearDay()
}

func isoWeekKey(t time.Time) int {
	year, week := t.ISOWeek()
	return year*100 + week
}

func monthKey(t time.Time) int {
	return t.Year()*100 + int(t.Month())
}

func groupFirst(days []time.Time, key func(time.Time) int) []time.Time {
	out := make([]time.Time, 0, len(days)/5+1)
	lastKey := -1
	for _, day := range days {
		if k := key(day); k != lastKey {
			out = append(out, day)
			lastKey = k
		}
	}
	return out
}

func groupLast(days []time.Time, key func(time.Time) int) []time.Time {
	out := make([]time.Time, 0, len(days)/5+1)
	for idx, day := range days {
		if idx == len(days)-1 || key(days[idx+1]) != key(day) {
			out = append(out, day)
		}
	}
	return out
}

func cutPrefix(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		return s[len(prefix):], true
	}
	return s, false
}
