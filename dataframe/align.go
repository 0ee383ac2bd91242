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

package dataframe

import (
	"math"
	"sort"
	"time"
)

// DropDuplicateDates removes rows whose date equals an earlier row's date; the
// first occurrence is kept. A new dataframe is returned.
func (df *DataFrame) DropDuplicateDates() *DataFrame {
	seen := make(map[time.Time]bool, len(df.Dates))
	res := &DataFrame{
		Dates:    make([]time.Time, 0, len(df.Dates)),
		ColNames: df.ColNames,
		Vals:     make([][]float64, len(df.Vals)),
	}

	for rowIdx, date := range df.Dates {
		if seen[date] {
			continue
		}
		seen[date] = true
		res.Dates = append(res.Dates, date)
		for colIdx, col := range df.Vals {
			res.Vals[colIdx] = append(res.Vals[colIdx], col[rowIdx])
		}
	}

	return res
}

// ForwardFillReindex conforms df to the supplied dates. Each output row carries the
// value from the most recent row of df on or before that date; dates before the
// first row of df are NaN. df must be sorted ascending by date.
func (df *DataFrame) ForwardFillReindex(dates []time.Time) *DataFrame {
	res := &DataFrame{
		Dates:    make([]time.Time, len(dates)),
		ColNames: df.ColNames,
		Vals:     make([][]float64, len(df.Vals)),
	}
	copy(res.Dates, dates)

	for colIdx := range res.Vals {
		res.Vals[colIdx] = make([]float64, len(dates))
	}

	for rowIdx, date := range dates {
		// first row strictly after date; the row before it is the last known value
		pos := sort.Search(len(df.Dates), func(i int) bool {
			return df.Dates[i].After(date)
		})

		for colIdx, col := range df.Vals {
			if pos == 0 {
				res.Vals[colIdx][rowIdx] = math.NaN()
			} else {
				res.Vals[colIdx][rowIdx] = col[pos-1]
			}
		}
	}

	return res
}

// Join performs an inner join of df and other on exact date matches. The result
// holds the columns of df followed by the columns of other. Both inputs must be
// sorted ascending by date.
func (df *DataFrame) Join(other *DataFrame) *DataFrame {
	res := &DataFrame{
		Dates:    []time.Time{},
		ColNames: append(append([]string{}, df.ColNames...), other.ColNames...),
		Vals:     make([][]float64, len(df.Vals)+len(other.Vals)),
	}

	ii, jj := 0, 0
	for ii < len(df.Dates) && jj < len(other.Dates) {
		a, b := df.Dates[ii], other.Dates[jj]
		switch {
		case a.Before(b):
			ii++
		case b.Before(a):
			jj++
		default:
			res.Dates = append(res.Dates, a)
			for colIdx, col := range df.Vals {
				res.Vals[colIdx] = append(res.Vals[colIdx], col[ii])
			}
			offset := len(df.Vals)
			for colIdx, col := range other.Vals {
				res.Vals[offset+colIdx] = append(res.Vals[offset+colIdx], col[jj])
			}
			ii++
			jj++
		}
	}

	return res
}
