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
	"fmt"
	"time"

	"github.com/penny-vault/pv-fund/data"
	"github.com/penny-vault/pv-fund/dataframe"
)

const (
	DaysPerYear = 365.25
	// FullHistoryMinObservations is the admission gate when each fund is scored
	// over its entire history
	FullHistoryMinObservations = 365
	DefaultMinHistoryRatio     = 0.9
)

// LookbackPolicy selects the evaluation window. The zero value scores each
// fund over its full history.
type LookbackPolicy struct {
	years int
}

// FullHistory scores every fund over all of its observations
func FullHistory() LookbackPolicy {
	return LookbackPolicy{}
}

// FixedYears scores every fund over the same trailing window of `years` years
// ending at the most recent date across all funds. Non-positive values mean
// full history.
func FixedYears(years int) LookbackPolicy {
	if years < 0 {
		years = 0
	}
	return LookbackPolicy{years: years}
}

// IsFullHistory reports whether the policy is FullHistory
func (lp LookbackPolicy) IsFullHistory() bool {
	return lp.years == 0
}

// Years is the look-back length; 0 for full history
func (lp LookbackPolicy) Years() int {
	return lp.years
}

// Label is the period stored alongside each metrics record, e.g. `2Y`
func (lp LookbackPolicy) Label() string {
	if lp.IsFullHistory() {
		return "full"
	}
	return fmt.Sprintf("%dY", lp.years)
}

// LoadSince is the earliest NAV date to load for a window ending at latest. It
// reaches one month further back so the first return in the window has a
// prior NAV. Full history, or an empty store, loads everything.
func (lp LookbackPolicy) LoadSince(latest time.Time) time.Time {
	if lp.IsFullHistory() || latest.IsZero() {
		return time.Time{}
	}
	return latest.AddDate(-lp.years, -1, 0)
}

func (lp LookbackPolicy) String() string {
	return lp.Label()
}

// AnalysisWindow is the period funds are evaluated over and the number of
// observations a fund needs inside it to be scored
type AnalysisWindow struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	LookbackYears   int       `json:"lookback_years"`
	MinObservations int       `json:"min_observations"`
}

// Contains reports whether dt falls inside the window, inclusive of both ends
func (w AnalysisWindow) Contains(dt time.Time) bool {
	return !dt.Before(w.Start) && !dt.After(w.End)
}

// Years is the length of the window in years
func (w AnalysisWindow) Years() float64 {
	if w.LookbackYears > 0 {
		return float64(w.LookbackYears)
	}
	return float64(calendarDays(w.Start, w.End)) / DaysPerYear
}

// MinObservations is the admission gate for a look-back of `years`: ratio of
// the nominal day count, truncated
func MinObservations(years int, ratio float64) int {
	if years <= 0 {
		return FullHistoryMinObservations
	}
	return int(float64(years) * DaysPerYear * ratio)
}

// NewWindow computes the evaluation window for a cohort. Fixed windows end on
// the most recent date of any fund; full history windows span from the
// earliest to the latest observation and are narrowed per fund by FundWindow.
func NewWindow(policy LookbackPolicy, minHistoryRatio float64, funds []data.FundSeries) AnalysisWindow {
	frames := make(dataframe.Map, len(funds))
	var earliest time.Time
	for _, fund := range funds {
		if fund.Len() == 0 {
			continue
		}
		frames[fund.Scheme.Code] = fund.DataFrame()
		if earliest.IsZero() || fund.Start().Before(earliest) {
			earliest = fund.Start()
		}
	}

	end := frames.MaxEnd()
	window := AnalysisWindow{
		End:             end,
		LookbackYears:   policy.Years(),
		MinObservations: MinObservations(policy.Years(), minHistoryRatio),
	}

	if policy.IsFullHistory() {
		window.Start = earliest
		return window
	}

	if !end.IsZero() {
		window.Start = end.AddDate(0, 0, -int(float64(policy.Years())*DaysPerYear))
	}
	return window
}

// FundWindow narrows a full history window to the fund's own range. Fixed
// windows are returned unchanged.
func (w AnalysisWindow) FundWindow(fund data.FundSeries) AnalysisWindow {
	if w.LookbackYears > 0 {
		return w
	}
	return AnalysisWindow{
		Start:           fund.Start(),
		End:             fund.End(),
		MinObservations: w.MinObservations,
	}
}
