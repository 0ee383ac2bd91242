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

package metrics

import (
	"math"
	"time"

	"github.com/penny-vault/pv-fund/data"
	"github.com/penny-vault/pv-fund/dataframe"
)

const (
	// ReturnClipLower and ReturnClipUpper bound daily returns so that stale or
	// re-based NAVs do not dominate the statistics
	ReturnClipLower = -0.5
	ReturnClipUpper = 0.5
)

// ReturnSeries is the sequence of daily returns derived from a price series.
// Dates[i] is the date of the later observation in each pair.
type ReturnSeries struct {
	Dates  []time.Time
	Values []float64
}

// Len returns the number of returns in the series
func (rs ReturnSeries) Len() int {
	return len(rs.Values)
}

// DataFrame converts the series into a single column dataframe named `name`
func (rs ReturnSeries) DataFrame(name string) *dataframe.DataFrame {
	return dataframe.New(name, rs.Dates, rs.Values)
}

// DailyReturns computes the percent change between consecutive NAVs of fund,
// clipped to [-0.5, 0.5]. The undefined first return is dropped.
func DailyReturns(fund data.FundSeries) ReturnSeries {
	return frameReturns(fund.DataFrame(), true)
}

// RawReturns is DailyReturns without clipping
func RawReturns(fund data.FundSeries) ReturnSeries {
	return frameReturns(fund.DataFrame(), false)
}

// BenchmarkReturns computes the unclipped daily returns of a benchmark
func BenchmarkReturns(bench data.BenchmarkSeries) ReturnSeries {
	return frameReturns(bench.DataFrame(), false)
}

// Clip bounds every return to [ReturnClipLower, ReturnClipUpper]. Clipping an
// already clipped series leaves it unchanged.
func (rs ReturnSeries) Clip() ReturnSeries {
	return fromFrame(rs.DataFrame("returns").Clip(ReturnClipLower, ReturnClipUpper))
}

func frameReturns(df *dataframe.DataFrame, clip bool) ReturnSeries {
	if df.Len() < 2 {
		return ReturnSeries{}
	}

	pct := df.PctChange()
	if clip {
		pct = pct.Clip(ReturnClipLower, ReturnClipUpper)
	}

	return fromFrame(pct.Drop(math.NaN()))
}

func fromFrame(df *dataframe.DataFrame) ReturnSeries {
	if df.Len() == 0 || df.ColCount() == 0 {
		return ReturnSeries{}
	}
	return ReturnSeries{
		Dates:  df.Dates,
		Values: df.Vals[0],
	}
}
