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

package dataframe

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

// DataFrame stores a table of values organized by date. Vals is column
// major: Vals[colIdx][rowIdx]. Dates are sorted ascending and unique.
// Missing values are represented as NaN.
type DataFrame struct {
	Dates    []time.Time
	ColNames []string
	Vals     [][]float64
}

var (
	ErrUnknownColumn = errors.New("column does not exist in dataframe")
	ErrRaggedColumns = errors.New("columns have differing lengths")
)

// New creates an empty dataframe with the given columns
func New(colNames ...string) *DataFrame {
	vals := make([][]float64, len(colNames))
	for idx := range vals {
		vals[idx] = make([]float64, 0, 252)
	}
	return &DataFrame{
		Dates:    make([]time.Time, 0, 252),
		ColNames: colNames,
		Vals:     vals,
	}
}

// Len returns the number of rows in the dataframe
func (df *DataFrame) Len() int {
	return len(df.Dates)
}

// ColCount returns the number of columns in the dataframe
func (df *DataFrame) ColCount() int {
	return len(df.ColNames)
}

// ColIndex returns the index of the named column, or an error if it does
// not exist
func (df *DataFrame) ColIndex(name string) (int, error) {
	for idx, col := range df.ColNames {
		if col == name {
			return idx, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
}

// Col returns the named column's values; nil if the column does not exist
func (df *DataFrame) Col(name string) []float64 {
	idx, err := df.ColIndex(name)
	if err != nil {
		return nil
	}
	return df.Vals[idx]
}

// Copy creates a deep copy of the dataframe
func (df *DataFrame) Copy() *DataFrame {
	df2 := &DataFrame{
		Dates:    make([]time.Time, len(df.Dates)),
		ColNames: make([]string, len(df.ColNames)),
		Vals:     make([][]float64, len(df.Vals)),
	}
	copy(df2.Dates, df.Dates)
	copy(df2.ColNames, df.ColNames)
	for idx := range df.Vals {
		df2.Vals[idx] = make([]float64, len(df.Vals[idx]))
		copy(df2.Vals[idx], df.Vals[idx])
	}
	return df2
}

// InsertRow appends a row to the end of the dataframe; the date must be
// after the current last date. Missing trailing values are filled with NaN.
func (df *DataFrame) InsertRow(date time.Time, vals ...float64) *DataFrame {
	if len(df.Dates) > 0 && !date.After(df.Dates[len(df.Dates)-1]) {
		return df
	}

	df.Dates = append(df.Dates, date)
	for colIdx := range df.ColNames {
		if colIdx < len(vals) {
			df.Vals[colIdx] = append(df.Vals[colIdx], vals[colIdx])
		} else {
			df.Vals[colIdx] = append(df.Vals[colIdx], math.NaN())
		}
	}
	return df
}

// InsertMap appends a row built from a column name -> value map; columns
// absent from the map get NaN
func (df *DataFrame) InsertMap(date time.Time, vals map[string]float64) *DataFrame {
	row := make([]float64, len(df.ColNames))
	for colIdx, colName := range df.ColNames {
		if v, ok := vals[colName]; ok {
			row[colIdx] = v
		} else {
			row[colIdx] = math.NaN()
		}
	}
	return df.InsertRow(date, row...)
}

// RowIdx returns the row index of the given date, or -1 when the date is
// not present
func (df *DataFrame) RowIdx(date time.Time) int {
	idx := sort.Search(len(df.Dates), func(i int) bool {
		return !df.Dates[i].Before(date)
	})
	if idx < len(df.Dates) && df.Dates[idx].Equal(date) {
		return idx
	}
	return -1
}

// ValueAt returns the value of the named column at the given date; the
// second return is false when either the date or the column is missing
// (NaN cells count as missing)
func (df *DataFrame) ValueAt(date time.Time, colName string) (float64, bool) {
	rowIdx := df.RowIdx(date)
	if rowIdx == -1 {
		return math.NaN(), false
	}
	colIdx, err := df.ColIndex(colName)
	if err != nil {
		return math.NaN(), false
	}
	v := df.Vals[colIdx][rowIdx]
	if math.IsNaN(v) {
		return v, false
	}
	return v, true
}

// Start returns the first date in the dataframe
func (df *DataFrame) Start() time.Time {
	if len(df.Dates) == 0 {
		return time.Time{}
	}
	return df.Dates[0]
}

// End returns the last date in the dataframe
func (df *DataFrame) End() time.Time {
	if len(df.Dates) == 0 {
		return time.Time{}
	}
	return df.Dates[len(df.Dates)-1]
}

// Trim the dataframe to the specified date range (inclusive)
func (df *DataFrame) Trim(begin, end time.Time) *DataFrame {
	df2 := &DataFrame{
		ColNames: df.ColNames,
		Dates:    df.Dates,
		Vals:     df.Vals,
	}

	// special case 0: requested range is invalid
	if end.Before(begin) {
		df2.Dates = []time.Time{}
		df2.Vals = make([][]float64, len(df.ColNames))
		return df2
	}

	// special case 1: data frame is empty
	if df.Len() == 0 {
		return df2
	}

	// special case 2: requested range is outside the data
	if end.Before(df.Dates[0]) || begin.After(df.Dates[len(df.Dates)-1]) {
		df2.Dates = []time.Time{}
		df2.Vals = make([][]float64, len(df.ColNames))
		return df2
	}

	beginIdx := sort.Search(len(df.Dates), func(i int) bool {
		return !df.Dates[i].Before(begin)
	})
	endIdx := sort.Search(len(df.Dates), func(i int) bool {
		return df.Dates[i].After(end)
	})

	df2.Dates = df.Dates[beginIdx:endIdx]
	df2.Vals = make([][]float64, len(df.Vals))
	for colIdx, col := range df.Vals {
		df2.Vals[colIdx] = col[beginIdx:endIdx]
	}

	return df2
}

// Table renders the dataframe as an ASCII table
func (df *DataFrame) Table() string {
	if len(df.Dates) == 0 {
		return "<NO DATA>"
	}

	tableCols := append([]string{"Date"}, df.ColNames...)

	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader(tableCols)
	footer := make([]string, len(tableCols))
	footer[0] = "Num Rows"
	footer[1] = fmt.Sprintf("%d", df.Len())
	table.SetFooter(footer)
	table.SetBorder(false)

	for rowIdx, date := range df.Dates {
		row := make([]string, 0, len(df.Vals)+1)
		row = append(row, date.Format("2006-01-02"))
		for _, col := range df.Vals {
			row = append(row, fmt.Sprintf("%.4f", col[rowIdx]))
		}
		table.Append(row)
	}

	table.Render()
	return s.String()
}
