// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
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
)

type CSVRows struct {
	rows    [][]any
	header  []string
	dateCol int
}

// NewCSVRows reads a comma separated file into rows suitable for pgxmock. Columns
// listed in typeMap are converted to `date` (yyyy-mm-dd) or `float64`; the rest
// are kept as strings.
func NewCSVRows(csvFn string, typeMap map[string]string) *CSVRows {
	subLog := log.With().Str("CsvFn", csvFn).Logger()

	rows := &CSVRows{
		dateCol: -1,
		rows:    make([][]any, 0),
	}
	rawData, err := os.ReadFile(csvFn)
	if err != nil {
		subLog.Panic().Err(err).Msg("could not read file")
	}

	lines := strings.Split(string(rawData), "\n")
	if len(lines) < 2 {
		subLog.Panic().Int("NumLines", len(lines)).Msg("input file does not have enough lines, need at least 2 (header + trailing new line)")
	}
	if lines[len(lines)-1] != "" {
		subLog.Panic().Msg("input file is missing a trailing new line")
	}

	rows.header = strings.Split(lines[0], ",")
	lines = lines[1 : len(lines)-1]

	for _, ll := range lines {
		cols := make([]any, len(rows.header))
		for idx, val := range strings.Split(ll, ",") {
			colName := rows.header[idx]
			switch typeMap[colName] {
			case "date":
				parsed, err := time.Parse("2006-01-02", val)
				if err != nil {
					subLog.Panic().Err(err).Str("Val", val).Msg("could not convert val to datetime of format 2006-01-02")
				}
				cols[idx] = parsed
				rows.dateCol = idx
			case "float64":
				parsed, err := strconv.ParseFloat(val, 64)
				if err != nil {
					subLog.Panic().Err(err).Str("Val", val).Msg("could not convert val to float64")
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

// Since drops rows dated before a
func (csvRows *CSVRows) Since(a time.Time) *CSVRows {
	if len(csvRows.rows) == 0 {
		return csvRows
	}
	if csvRows.dateCol == -1 {
		log.Panic().Time("a", a).Msg("no date column found")
	}
	newRows := make([][]any, 0, len(csvRows.rows))
	for _, row := range csvRows.rows {
		if t := row[csvRows.dateCol].(time.Time); !t.Before(a) {
			newRows = append(newRows, row)
		}
	}
	csvRows.rows = newRows
	return csvRows
}

// Len is the number of data rows
func (csvRows *CSVRows) Len() int {
	return len(csvRows.rows)
}

func (csvRows *CSVRows) Rows() *pgxmock.Rows {
	r := pgxmock.NewRows(csvRows.header)
	for _, row := range csvRows.rows {
		r.AddRow(row...)
	}
	return r
}

// MockNavHistoryQuery expects a nav history load and answers it from the CSV file fn
func MockNavHistoryQuery(db pgxmock.PgxConnIface, fn string, since time.Time) {
	db.ExpectBegin()
	db.ExpectQuery("SELECT s.scheme_code, s.scheme_name").WillReturnRows(
		NewCSVRows(fn, map[string]string{
			"nav_date": "date",
			"nav":      "float64",
		}).Since(since).Rows())
	db.ExpectRollback()
}
