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

package features

import (
	"context"
	"time"

	"github.com/greenfolio/gf-api/data"
	"github.com/greenfolio/gf-api/dataframe"
)

// ESGFunc supplies the raw (un-normalized) ESG cross-section for a date
type ESGFunc func(ctx context.Context, date time.Time) (map[string]float64, error)

// Source derives the optimizer's feature tables from raw prices and ESG
// scores, replacing a precomputed feature store. It implements
// data.FeatureSource and data.ReturnSource.
type Source struct {
	prices   data.PriceSource
	esg      ESGFunc
	lookback int
	window   int
}

func NewSource(prices data.PriceSource, esg ESGFunc, lookback, window int) *Source {
	return &Source{
		prices:   prices,
		esg:      esg,
		lookback: lookback,
		window:   window,
	}
}

func (src *Source) ExpectedReturns(ctx context.Context, date time.Time) (map[string]float64, error) {
	returns, err := src.returnsThrough(ctx, date)
	if err != nil {
		return nil, err
	}
	return ExpectedReturns(returns, date, src.lookback), nil
}

func (src *Source) Covariances(ctx context.Context, date time.Time) (map[data.AssetPair]float64, error) {
	returns, err := src.returnsThrough(ctx, date)
	if err != nil {
		return nil, err
	}
	return CovarianceCells(returns, date, src.window)
}

func (src *Source) ESGScores(ctx context.Context, date time.Time) (map[string]float64, error) {
	raw, err := src.esg(ctx, date)
	if err != nil {
		return nil, err
	}
	return NormalizeESG(raw), nil
}

func (src *Source) RealizedReturns(ctx context.Context, begin, end time.Time) (*dataframe.DataFrame, error) {
	prices, err := src.prices.AdjustedClose(ctx, begin.AddDate(0, 0, -7), end)
	if err != nil {
		return nil, err
	}
	return DailyReturns(prices).Trim(begin, end), nil
}

// returnsThrough loads enough price history before date to cover the
// lookback and covariance windows on trading days; weekends and holidays
// make the calendar-day buffer roughly half again as wide
func (src *Source) returnsThrough(ctx context.Context, date time.Time) (*dataframe.DataFrame, error) {
	span := src.lookback
	if src.window > span {
		span = src.window
	}
	begin := date.AddDate(0, 0, -(span*2 + 14))

	prices, err := src.prices.AdjustedClose(ctx, begin, date)
	if err != nil {
		return nil, err
	}
	return DailyReturns(prices), nil
}
