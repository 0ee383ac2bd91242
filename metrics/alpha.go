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
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/penny-vault/pv-fund/data"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrUnknownAlphaStrategy = errors.New("unknown alpha strategy")
)

// AlphaStrategy selects how outperformance against the benchmark is measured.
// The two strategies produce values on different scales and must not be
// compared across cohorts.
type AlphaStrategy int

const (
	// CAPMRegression is Jensen's alpha: the annualized intercept of an OLS
	// regression of fund excess returns on benchmark excess returns
	CAPMRegression AlphaStrategy = iota
	// CAGRDifferential is the fund CAGR minus the benchmark CAGR over the
	// forward filled common window
	CAGRDifferential
)

func (s AlphaStrategy) String() string {
	switch s {
	case CAPMRegression:
		return "capm"
	case CAGRDifferential:
		return "cagr"
	default:
		return "unknown"
	}
}

// Policy returns the alignment policy the strategy is computed on
func (s AlphaStrategy) Policy() AlignmentPolicy {
	if s == CAGRDifferential {
		return ForwardFill
	}
	return CommonDate
}

// ParseAlphaStrategy converts a configuration value into an AlphaStrategy
func ParseAlphaStrategy(name string) (AlphaStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "capm", "jensen", "regression":
		return CAPMRegression, nil
	case "cagr", "cagr-differential":
		return CAGRDifferential, nil
	default:
		return CAPMRegression, fmt.Errorf("%w: %q", ErrUnknownAlphaStrategy, name)
	}
}

// AlphaMeasure computes alpha of fund against bench in percent using strategy
func AlphaMeasure(strategy AlphaStrategy, fund data.FundSeries, bench data.BenchmarkSeries, riskFreeRate float64) Measure {
	if strategy == CAGRDifferential {
		return CAGRAlphaMeasure(fund, bench)
	}
	return CAPMAlphaMeasure(fund, bench, riskFreeRate)
}

// Alpha returns the alpha of fund in percent or 0 when it cannot be computed
func Alpha(strategy AlphaStrategy, fund data.FundSeries, bench data.BenchmarkSeries, riskFreeRate float64) float64 {
	return AlphaMeasure(strategy, fund, bench, riskFreeRate).Value
}

// CAGRAlphaMeasure is (fund CAGR - benchmark CAGR) * 100 over the forward
// filled window. At least one year of overlap is required.
func CAGRAlphaMeasure(fund data.FundSeries, bench data.BenchmarkSeries) Measure {
	al := Align(ForwardFill, fund, bench)
	if al.Status != OK {
		return failed(al.Status)
	}

	years := float64(al.SpanDays()) / 365.0
	if years < 1 {
		return failed(InsufficientData)
	}

	last := al.Len() - 1
	fundCAGR := CAGRMeasure(al.Fund[0], al.Fund[last], years)
	benchCAGR := CAGRMeasure(al.Bench[0], al.Bench[last], years)
	if !fundCAGR.OK() || !benchCAGR.OK() {
		return failed(InsufficientData)
	}

	return measured((fundCAGR.Value - benchCAGR.Value) * 100)
}

// CAPMAlphaMeasure regresses daily fund excess returns on benchmark excess
// returns over common dates and returns the intercept annualized, in percent.
// A benchmark leg without variance cannot be regressed.
func CAPMAlphaMeasure(fund data.FundSeries, bench data.BenchmarkSeries, riskFreeRate float64) Measure {
	al := Align(CommonDate, fund, bench)
	if al.Status != OK {
		return failed(al.Status)
	}

	dailyRF := DailyRiskFree(riskFreeRate)
	x := excess(al.Bench, dailyRF)
	y := excess(al.Fund, dailyRF)

	if sd := stat.StdDev(x, nil); math.IsNaN(sd) || sd < VarianceEpsilon {
		return failed(RegressionFailure)
	}

	intercept, slope := stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(intercept) || math.IsInf(intercept, 0) || math.IsNaN(slope) || math.IsInf(slope, 0) {
		return failed(RegressionFailure)
	}

	return measured(intercept * TradingDays * 100)
}
