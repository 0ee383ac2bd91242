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
	"time"

	"github.com/google/uuid"
	"github.com/penny-vault/pv-fund/dataframe"
)

// Scheme describes a mutual fund scheme as published by AMFI
type Scheme struct {
	Code      string `json:"scheme_code"`
	Name      string `json:"scheme_name"`
	FundHouse string `json:"fund_house"`
	Category  string `json:"scheme_category"`
}

// RawNav is a single unparsed observation returned by a NAV provider
type RawNav struct {
	Date string
	NAV  float64
}

// NavPoint is the net asset value of a scheme on a single date
type NavPoint struct {
	SchemeCode string    `json:"scheme_code"`
	Date       time.Time `json:"nav_date"`
	NAV        float64   `json:"nav"`
}

// FundSeries is the ordered NAV history of one scheme. Points are strictly
// increasing by date; transformations return new series.
type FundSeries struct {
	Scheme Scheme
	Points []NavPoint
}

// PricePoint is a closing price of a benchmark index
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// BenchmarkSeries is the ordered close-price history of a benchmark index
type BenchmarkSeries struct {
	Ticker string       `json:"ticker"`
	Points []PricePoint `json:"points"`
}

// MetricsRecord holds the risk and return figures for one fund over an
// analysis window. Volatility is an annualized fraction; MaxDrawdown is in
// percent.
type MetricsRecord struct {
	SchemeCode    string    `json:"scheme_code"`
	Name          string    `json:"scheme_name"`
	Category      string    `json:"scheme_category"`
	Period        string    `json:"period,omitempty"`
	PeriodYears   float64   `json:"period_years"`
	Volatility    float64   `json:"volatility"`
	Sharpe        float64   `json:"sharpe"`
	Sortino       float64   `json:"sortino"`
	MaxDrawdown   float64   `json:"max_drawdown"`
	Alpha         float64   `json:"alpha"`
	AlphaStrategy string    `json:"alpha_strategy"`
	Observations  int       `json:"observations"`
	RunID         uuid.UUID `json:"run_id"`
	ComputedAt    time.Time `json:"computed_at"`
}

// Holding is a position in the simulated portfolio
type Holding struct {
	SchemeCode       string    `json:"scheme_code"`
	Name             string    `json:"scheme_name"`
	Category         string    `json:"category"`
	InvestmentAmount float64   `json:"investment_amount"`
	PurchaseNAV      float64   `json:"purchase_nav"`
	Units            float64   `json:"units"`
	PurchaseDate     time.Time `json:"purchase_date"`
}

// Len returns the number of observations in the series
func (fs FundSeries) Len() int {
	return len(fs.Points)
}

// Start returns the first date of the series
func (fs FundSeries) Start() time.Time {
	if len(fs.Points) == 0 {
		return time.Time{}
	}
	return fs.Points[0].Date
}

// End returns the last date of the series
func (fs FundSeries) End() time.Time {
	if len(fs.Points) == 0 {
		return time.Time{}
	}
	return fs.Points[len(fs.Points)-1].Date
}

// Latest returns the most recent NAV point and false if the series is empty
func (fs FundSeries) Latest() (NavPoint, bool) {
	if len(fs.Points) == 0 {
		return NavPoint{}, false
	}
	return fs.Points[len(fs.Points)-1], true
}

// DataFrame converts the series into a single column dataframe named after the
// scheme code
func (fs FundSeries) DataFrame() *dataframe.DataFrame {
	dates := make([]time.Time, len(fs.Points))
	vals := make([]float64, len(fs.Points))
	for idx, pt := range fs.Points {
		dates[idx] = pt.Date
		vals[idx] = pt.NAV
	}
	return dataframe.New(fs.Scheme.Code, dates, vals)
}

// Trim returns a new series containing only the points in [begin, end]
func (fs FundSeries) Trim(begin, end time.Time) FundSeries {
	res := FundSeries{Scheme: fs.Scheme, Points: make([]NavPoint, 0, len(fs.Points))}
	for _, pt := range fs.Points {
		if pt.Date.Before(begin) || pt.Date.After(end) {
			continue
		}
		res.Points = append(res.Points, pt)
	}
	return res
}

// Len returns the number of observations in the series
func (bs BenchmarkSeries) Len() int {
	return len(bs.Points)
}

// DataFrame converts the series into a single column dataframe named after the ticker
func (bs BenchmarkSeries) DataFrame() *dataframe.DataFrame {
	dates := make([]time.Time, len(bs.Points))
	vals := make([]float64, len(bs.Points))
	for idx, pt := range bs.Points {
		dates[idx] = pt.Date
		vals[idx] = pt.Close
	}
	return dataframe.New(bs.Ticker, dates, vals)
}

// Trim returns a new series containing only the points in [begin, end]
func (bs BenchmarkSeries) Trim(begin, end time.Time) BenchmarkSeries {
	res := BenchmarkSeries{Ticker: bs.Ticker, Points: make([]PricePoint, 0, len(bs.Points))}
	for _, pt := range bs.Points {
		if pt.Date.Before(begin) || pt.Date.After(end) {
			continue
		}
		res.Points = append(res.Points, pt)
	}
	return res
}
