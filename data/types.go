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

package data

import (
	"context"
	"time"

	"github.com/greenfolio/gf-api/dataframe"
)

// AssetPair identifies one cell of a covariance table
type AssetPair struct {
	Row string
	Col string
}

// FeatureSource provides the per-date cross-sections consumed by the
// input-frame builder. Implementations return only the assets present in
// the underlying table for that date; alignment is the builder's job.
type FeatureSource interface {
	ExpectedReturns(ctx context.Context, date time.Time) (map[string]float64, error)
	ESGScores(ctx context.Context, date time.Time) (map[string]float64, error)
	Covariances(ctx context.Context, date time.Time) (map[AssetPair]float64, error)
}

// ReturnSource provides realized daily returns over a date range as a
// date-indexed frame with one column per asset; missing observations are NaN
type ReturnSource interface {
	RealizedReturns(ctx context.Context, begin, end time.Time) (*dataframe.DataFrame, error)
}

// PriceSource provides adjusted close prices, used by the feature layer to
// derive returns and covariances
type PriceSource interface {
	AdjustedClose(ctx context.Context, begin, end time.Time) (*dataframe.DataFrame, error)
}
