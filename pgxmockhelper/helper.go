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

package pgxmockhelper

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pashagolub/pgxmock"
	"github.com/rs/zerolog/log"

	"github.com/greenfolio/gf-api/common"
)

// CSVRows reads a test fixture csv and turns it into pgxmock rows. The
// typeMap assigns "date" or "float64" conversions to named columns; all
// other columns stay strings.
type CSVRows struct {
	rows    [][]any
	header  []string
	dateCol int
}

func NewCSVRows(csvFn string, typeMap map[string]string) *CSVRows {
	subLog := log.With().Str("CsvFn", csvFn).Logger()

	rows := &CSVRows{
		dateCol: -1,
		rows:    make([][]any, 0),
	}

	rawData, err := os.ReadFile(csvFn)
	if err != nil {
		subLog.Panic().Err(err).Msg("could not read fixture file")
	}

	lines := strings.Split(strings.TrimRight(string(rawData), "\n"), "\n")
	if len(lines) < 1 {
		subLog.Panic().Msg("fixture file has no header line")
	}

	rows.header = strings.Split(lines[0], ",")
	for _, ll := range lines[1:] {
		parts := strings.Split(ll, ",")
		cols := make([]any, len(rows.header))
		for idx, val := range parts {
			switch typeMap[rows.header[idx]] {
			case "date":
				parsed, err := time.ParseInLocation("2006-01-02", val, common.GetTimezone())
				if err != nil {
					subLog.Panic().Err(err).Str("Val", val).Msg("could not parse fixture date")
				}
				cols[idx] = parsed
				rows.dateCol = idx
			case "float64":
				parsed, err := strconv.ParseFloat(val, 64)
				if err != nil {
					subLog.Panic().Err(err).Str("Val", val).Msg("could not parse fixture float")
				}
				cols[idx] = parsed
			default:
				cols[idx] = val
			}
		}
		rows.rows = append(rows.rows, cols)
	}

	return rows
}

// Between restricts the loaded rows to dates in [a, b]
func (csvRows *CSVRows) Between(a time.Time, b time.Time) *CSVRows {
	if len(csvRows.rows) == 0 {
		return csvRows
	}
	if csvRows.dateCol == -1 {
		log.Panic().Time("a", a).Time("b", b).Msg("no date column found in fixture")
	}
	newRows := make([][]any, 0, len(csvRows.rows))
	for _, row := range csvRows.rows {
		t := row[csvRows.dateCol].(time.Time)
		if !t.Before(a) && !t.After(b) {
			newRows = append(newRows, row)
		}
	}
	csvRows.rows = newRows
	return csvRows
}

func (csvRows *CSVRows) Rows() *pgxmock.Rows {
	r := pgxmock.NewRows(csvRows.header)
	for _, row := range csvRows.rows {
		r.AddRow(row...)
	}
	return r
}

// MockCrossSection registers expectations for a single-date feature query
// (expected returns or ESG scores): one transaction wrapping one query.
func MockCrossSection(db pgxmock.PgxConnIface, table string, rows *pgxmock.Rows) {
	db.ExpectBegin()
	db.ExpectQuery("SELECT asset_id, .+ FROM " + table).WillReturnRows(rows)
	db.ExpectCommit()
}

// MockCovariances registers expectations for the covariance cell query
func MockCovariances(db pgxmock.PgxConnIface, rows *pgxmock.Rows) {
	db.ExpectBegin()
	db.ExpectQuery("SELECT asset_i, asset_j, cov FROM feature_covariances").WillReturnRows(rows)
	db.ExpectCommit()
}

// MockRangeQuery registers expectations for a date-range query against the
// realized_returns or prices table.
func MockRangeQuery(db pgxmock.PgxConnIface, table string, rows *pgxmock.Rows) {
	db.ExpectBegin()
	db.ExpectQuery("SELECT dt, asset_id, .+ FROM " + table).WillReturnRows(rows)
	db.ExpectCommit()
}

// MockSaveRun registers expectations for persisting a backtest run: one
// transaction, the given number of weight, stat, and performance inserts,
// plus the summary row.
func MockSaveRun(db pgxmock.PgxConnIface, numWeights, numStats, numRecords int) {
	db.ExpectBegin()
	for ii := 0; ii < numWeights; ii++ {
		db.ExpectExec("INSERT INTO portfolio_weights").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	for ii := 0; ii < numStats; ii++ {
		db.ExpectExec("INSERT INTO portfolio_stats").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	for ii := 0; ii < numRecords; ii++ {
		db.ExpectExec("INSERT INTO performance").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	db.ExpectExec("INSERT INTO performance_summary").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	db.ExpectCommit()
}
