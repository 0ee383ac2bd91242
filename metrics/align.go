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
)

// AlignmentPolicy selects how a benchmark is paired with a fund's NAV dates
type AlignmentPolicy int

const (
	// ForwardFill carries the last known benchmark close onto every fund date
	ForwardFill AlignmentPolicy = iota
	// CommonDate pairs fund and benchmark daily returns on identical dates only
	CommonDate
)

const (
	// MinForwardFillPoints is the fewest fund dates a forward filled alignment accepts
	MinForwardFillPoints = 2
	// MinForwardFillDays is the shortest calendar span a forward filled alignment accepts
	MinForwardFillDays = 365
	// MinRegressionPairs is the fewest paired returns a common date alignment accepts
	MinRegressionPairs = 30
)

func (p AlignmentPolicy) String() string {
	switch p {
	case ForwardFill:
		return "forward-fill"
	case CommonDate:
		return "common-date"
	default:
		return "unknown"
	}
}

// Alignment is a fund and benchmark paired on the same dates. Under ForwardFill
// Fund and Bench hold NAVs and closes; under CommonDate they hold daily returns.
type Alignment struct {
	Policy AlignmentPolicy
	Dates  []time.Time
	Fund   []float64
	Bench  []float64
	Status Status
}

// Len returns the number of aligned points
func (al Alignment) Len() int {
	return len(al.Dates)
}

// SpanDays is the number of calendar days between the first and last aligned point
func (al Alignment) SpanDays() int {
	if len(al.Dates) < 2 {
		return 0
	}
	return calendarDays(al.Dates[0], al.Dates[len(al.Dates)-1])
}

func calendarDays(start, end time.Time) int {
	return int(math.Round(end.Sub(start).Hours() / 24))
}

// Align pairs fund with bench according to policy. An empty benchmark yields
// ProviderUnavailable and too little overlap yields InsufficientData; in both
// cases the returned alignment carries no points.
func Align(policy AlignmentPolicy, fund data.FundSeries, bench data.BenchmarkSeries) Alignment {
	if bench.Len() == 0 {
		return Alignment{Policy: policy, Status: ProviderUnavailable}
	}

	if policy == CommonDate {
		return alignCommonDate(fund, bench)
	}
	return alignForwardFill(fund, bench)
}

func alignForwardFill(fund data.FundSeries, bench data.BenchmarkSeries) Alignment {
	fundDf := fund.DataFrame()
	benchDf := bench.DataFrame().DropDuplicateDates()

	// the fund's own dates form the index so the intersection is implicit
	filled := benchDf.ForwardFillReindex(fundDf.Dates)
	paired := fundDf.Copy().Insert(bench.Ticker+"_bench", filled.Vals[0]).
		Drop(math.NaN()).
		DropDuplicateDates()

	al := Alignment{
		Policy: ForwardFill,
		Dates:  paired.Dates,
		Fund:   paired.Vals[0],
		Bench:  paired.Vals[1],
		Status: OK,
	}

	if al.Len() < MinForwardFillPoints || al.SpanDays() < MinForwardFillDays {
		return Alignment{Policy: ForwardFill, Status: InsufficientData}
	}

	return al
}

func alignCommonDate(fund data.FundSeries, bench data.BenchmarkSeries) Alignment {
	fundReturns := RawReturns(fund).DataFrame("fund")
	benchReturns := BenchmarkReturns(bench).DataFrame("bench")

	paired := fundReturns.Join(benchReturns).Drop(math.NaN())
	if paired.Len() < MinRegressionPairs {
		return Alignment{Policy: CommonDate, Status: InsufficientData}
	}

	return Alignment{
		Policy: CommonDate,
		Dates:  paired.Dates,
		Fund:   paired.Vals[0],
		Bench:  paired.Vals[1],
		Status: OK,
	}
}
