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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/greenfolio/gf-api/common"
	"github.com/greenfolio/gf-api/dataframe"
	"github.com/rs/zerolog/log"
)

// row formats mirror the upstream feature tables

type expectedReturnRow struct {
	Date           string  `csv:"dt"`
	AssetID        string  `csv:"asset_id"`
	ExpectedReturn float64 `csv:"expected_return"`
}

type esgScoreRow struct {
	Date     string  `csv:"dt"`
	AssetID  string  `csv:"asset_id"`
	ESGScore float64 `csv:"esg_score"`
}

type covarianceRow struct {
	Date       string  `csv:"dt"`
	AssetRow   string  `csv:"asset_i"`
	AssetCol   string  `csv:"asset_j"`
	Covariance float64 `csv:"cov"`
}

type realizedReturnRow struct {
	Date           string  `csv:"dt"`
	AssetID        string  `csv:"asset_id"`
	RealizedReturn float64 `csv:"return_1d"`
}

type priceRow struct {
	Date     string  `csv:"dt"`
	AssetID  string  `csv:"asset_id"`
	AdjClose float64 `csv:"adj_close"`
}

type dateAssetValue struct {
	date  time.Time
	asset string
	value float64
}

// CSVSource serves feature and return tables loaded from CSV files. All
// tables are held in memory; the source is read-only once loaded.
type CSVSource struct {
	expected map[int64]map[string]float64
	esg      map[int64]map[string]float64
	cov      map[int64]map[AssetPair]float64
	realized []dateAssetValue
	prices   []dateAssetValue
}

func NewCSVSource() *CSVSource {
	return &CSVSource{
		expected: make(map[int64]map[string]float64),
		esg:      make(map[int64]map[string]float64),
		cov:      make(map[int64]map[AssetPair]float64),
	}
}

// NewCSVSourceFromDir loads any of the recognized table files present in
// dir: expected_returns.csv, esg_scores.csv, covariances.csv,
// realized_returns.csv, prices.csv
func NewCSVSourceFromDir(dir string) (*CSVSource, error) {
	src := NewCSVSource()

	loaders := map[string]func(io.Reader) error{
		"expected_returns.csv": src.LoadExpectedReturns,
		"esg_scores.csv":       src.LoadESGScores,
		"covariances.csv":      src.LoadCovariances,
		"realized_returns.csv": src.LoadRealizedReturns,
		"prices.csv":           src.LoadPrices,
	}

	for name, loader := range loaders {
		path := filepath.Join(dir, name)
		fh, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}

		err = loader(fh)
		fh.Close()
		if err != nil {
			log.Error().Stack().Err(err).Str("FileName", path).Msg("could not load table")
			return nil, err
		}
	}

	return src, nil
}

func (src *CSVSource) LoadExpectedReturns(r io.Reader) error {
	var rows []*expectedReturnRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return err
	}
	for _, row := range rows {
		dt, err := parseTableDate(row.Date)
		if err != nil {
			return err
		}
		if src.expected[dt.Unix()] == nil {
			src.expected[dt.Unix()] = make(map[string]float64)
		}
		src.expected[dt.Unix()][row.AssetID] = row.ExpectedReturn
	}
	return nil
}

func (src *CSVSource) LoadESGScores(r io.Reader) error {
	var rows []*esgScoreRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return err
	}
	for _, row := range rows {
		dt, err := parseTableDate(row.Date)
		if err != nil {
			return err
		}
		if src.esg[dt.Unix()] == nil {
			src.esg[dt.Unix()] = make(map[string]float64)
		}
		src.esg[dt.Unix()][row.AssetID] = row.ESGScore
	}
	return nil
}

func (src *CSVSource) LoadCovariances(r io.Reader) error {
	var rows []*covarianceRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return err
	}
	for _, row := range rows {
		dt, err := parseTableDate(row.Date)
		if err != nil {
			return err
		}
		if src.cov[dt.Unix()] == nil {
			src.cov[dt.Unix()] = make(map[AssetPair]float64)
		}
		src.cov[dt.Unix()][AssetPair{Row: row.AssetRow, Col: row.AssetCol}] = row.Covariance
	}
	return nil
}

func (src *CSVSource) LoadRealizedReturns(r io.Reader) error {
	var rows []*realizedReturnRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return err
	}
	for _, row := range rows {
		dt, err := parseTableDate(row.Date)
		if err != nil {
			return err
		}
		src.realized = append(src.realized, dateAssetValue{date: dt, asset: row.AssetID, value: row.RealizedReturn})
	}
	return nil
}

func (src *CSVSource) LoadPrices(r io.Reader) error {
	var rows []*priceRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return err
	}
	for _, row := range rows {
		dt, err := parseTableDate(row.Date)
		if err != nil {
			return err
		}
		src.prices = append(src.prices, dateAssetValue{date: dt, asset: row.AssetID, value: row.AdjClose})
	}
	return nil
}

func (src *CSVSource) ExpectedReturns(_ context.Context, date time.Time) (map[string]float64, error) {
	return copyCrossSection(src.expected[dateKey(date)]), nil
}

func (src *CSVSource) ESGScores(_ context.Context, date time.Time) (map[string]float64, error) {
	return copyCrossSection(src.esg[dateKey(date)]), nil
}

func (src *CSVSource) Covariances(_ context.Context, date time.Time) (map[AssetPair]float64, error) {
	cells := src.cov[dateKey(date)]
	out := make(map[AssetPair]float64, len(cells))
	for pair, v := range cells {
		out[pair] = v
	}
	return out, nil
}

func (src *CSVSource) RealizedReturns(_ context.Context, begin, end time.Time) (*dataframe.DataFrame, error) {
	if end.Before(begin) {
		return nil, ErrInvalidTimeRange
	}
	return frameFromRows(src.realized, begin, end)
}

func (src *CSVSource) AdjustedClose(_ context.Context, begin, end time.Time) (*dataframe.DataFrame, error) {
	if end.Before(begin) {
		return nil, ErrInvalidTimeRange
	}
	return frameFromRows(src.prices, begin, end)
}

// frameFromRows pivots (date, asset, value) rows into a date-indexed frame
// with lexicographically ordered asset columns
func frameFromRows(rows []dateAssetValue, begin, end time.Time) (*dataframe.DataFrame, error) {
	assetSet := make(map[string]struct{})
	byDate := make(map[int64]map[string]float64)
	for _, row := range rows {
		if row.date.Before(begin) || row.date.After(end) {
			continue
		}
		assetSet[row.asset] = struct{}{}
		if byDate[row.date.Unix()] == nil {
			byDate[row.date.Unix()] = make(map[string]float64)
		}
		byDate[row.date.Unix()][row.asset] = row.value
	}

	if len(byDate) == 0 {
		return nil, ErrNoCoverage
	}

	assets := make([]string, 0, len(assetSet))
	for asset := range assetSet {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	keys := make([]int64, 0, len(byDate))
	for k := range byDate {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	df := dataframe.New(assets...)
	tz := common.GetTimezone()
	for _, k := range keys {
		df.InsertMap(time.Unix(k, 0).In(tz), byDate[k])
	}
	return df, nil
}

func copyCrossSection(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func dateKey(t time.Time) int64 {
	tz := common.GetTimezone()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, tz).Unix()
}

func parseTableDate(s string) (time.Time, error) {
	dt, err := time.ParseInLocation("2006-01-02", s, common.GetTimezone())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", ErrMalformedRow, s)
	}
	return dt, nil
}
