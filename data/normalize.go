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

package data

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/penny-vault/pv-fund/common"
	"github.com/rs/zerolog/log"
)

// dateOnly maps a date scanned from a DATE column (decoded as UTC midnight by
// both database drivers) onto midnight in the reference timezone so it lines
// up with provider and benchmark dates
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, common.GetTimezone())
}

// dateLayouts are tried in order. AMFI publishes dd-mm-yyyy so it goes first.
var dateLayouts = []string{
	"02-01-2006",
	"2006-01-02",
	"02/01/2006",
	"2006/01/02",
	"02-Jan-2006",
	"02 Jan 2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// ParseDate parses a NAV date string using the supported layouts and returns
// midnight of that day in loc. The second return value is false if no layout matched.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		dt, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return time.Date(dt.Year(), dt.Month(), dt.Day(), 0, 0, 0, 0, loc), true
		}
	}

	return time.Time{}, false
}

type datedValue struct {
	date  time.Time
	value float64
}

// parse converts raw observations into dated values, dropping the ones whose
// date cannot be parsed
func parse(code string, raw []RawNav) []datedValue {
	tz := common.GetTimezone()
	parsed := make([]datedValue, 0, len(raw))
	for _, obs := range raw {
		dt, ok := ParseDate(obs.Date, tz)
		if !ok {
			log.Debug().Str("SchemeCode", code).Str("Date", obs.Date).Msg("dropping observation with unparsable date")
			continue
		}
		parsed = append(parsed, datedValue{date: dt, value: obs.NAV})
	}
	return parsed
}

// clean filters, sorts and de-duplicates observations. The sort is stable so the
// first observation for a date wins.
func clean(code string, obs []datedValue) []datedValue {
	subLog := log.With().Str("SchemeCode", code).Logger()

	valid := make([]datedValue, 0, len(obs))
	for _, o := range obs {
		if o.date.IsZero() || math.IsNaN(o.value) || math.IsInf(o.value, 0) || o.value <= 0 {
			subLog.Debug().Time("Date", o.date).Float64("Value", o.value).Msg("dropping invalid observation")
			continue
		}
		valid = append(valid, o)
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].date.Before(valid[j].date)
	})

	deduped := make([]datedValue, 0, len(valid))
	for _, o := range valid {
		if len(deduped) > 0 && deduped[len(deduped)-1].date.Equal(o.date) {
			continue
		}
		deduped = append(deduped, o)
	}

	if dropped := len(obs) - len(deduped); dropped > 0 {
		subLog.Debug().Int("Dropped", dropped).Int("Kept", len(deduped)).Msg("normalized series")
	}

	return deduped
}

func toFundSeries(scheme Scheme, obs []datedValue) FundSeries {
	fs := FundSeries{
		Scheme: scheme,
		Points: make([]NavPoint, len(obs)),
	}
	for idx, o := range obs {
		fs.Points[idx] = NavPoint{SchemeCode: scheme.Code, Date: o.date, NAV: o.value}
	}
	return fs
}

// Normalize converts raw observations for one scheme into a FundSeries that is
// strictly increasing by date. Unparsable dates and non-positive values are
// dropped; when two observations share a date the first one encountered is kept.
// An empty result is not an error.
func Normalize(scheme Scheme, raw []RawNav) FundSeries {
	return toFundSeries(scheme, clean(scheme.Code, parse(scheme.Code, raw)))
}

// NormalizeSeries applies the ordering and de-duplication rules of Normalize to
// an already typed series, e.g. one loaded from the store
func NormalizeSeries(fs FundSeries) FundSeries {
	obs := make([]datedValue, len(fs.Points))
	for idx, pt := range fs.Points {
		obs[idx] = datedValue{date: pt.Date, value: pt.NAV}
	}
	return toFundSeries(fs.Scheme, clean(fs.Scheme.Code, obs))
}

// NormalizeBenchmark applies the same rules as Normalize to benchmark close prices
func NormalizeBenchmark(ticker string, raw []RawNav) BenchmarkSeries {
	obs := clean(ticker, parse(ticker, raw))
	bs := BenchmarkSeries{
		Ticker: ticker,
		Points: make([]PricePoint, len(obs)),
	}
	for idx, o := range obs {
		bs.Points[idx] = PricePoint{Date: o.date, Close: o.value}
	}
	return bs
}
