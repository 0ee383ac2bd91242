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

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	TradingDays         = 252
	DefaultRiskFreeRate = 0.07
	// VarianceEpsilon is the smallest annualized deviation treated as non-zero
	VarianceEpsilon = 1e-8
)

// DailyRiskFree converts an annual risk free rate into the equivalent
// compounded daily rate over TradingDays
func DailyRiskFree(annual float64) float64 {
	return math.Pow(1+annual, 1.0/TradingDays) - 1
}

func annualize(dailyStdDev float64) float64 {
	return dailyStdDev * math.Sqrt(TradingDays)
}

// excess returns a copy of vals with the daily risk free rate subtracted
func excess(vals []float64, dailyRF float64) []float64 {
	res := make([]float64, len(vals))
	copy(res, vals)
	floats.AddConst(-dailyRF, res)
	return res
}

// VolatilityMeasure is the annualized sample standard deviation of returns
func VolatilityMeasure(rs ReturnSeries) Measure {
	if rs.Len() < 2 {
		return failed(InsufficientData)
	}
	return measured(annualize(stat.StdDev(rs.Values, nil)))
}

// Volatility is the annualized sample standard deviation of returns as a
// fraction; 0 when it cannot be computed
func Volatility(rs ReturnSeries) float64 {
	return VolatilityMeasure(rs).Value
}

// SharpeMeasure computes the annualized excess return over the risk free rate
// divided by annualized volatility
func SharpeMeasure(rs ReturnSeries, riskFreeRate float64) Measure {
	if rs.Len() < 2 {
		return failed(InsufficientData)
	}

	annReturn := stat.Mean(excess(rs.Values, DailyRiskFree(riskFreeRate)), nil) * TradingDays
	annVol := annualize(stat.StdDev(rs.Values, nil))
	if math.IsNaN(annVol) || annVol < VarianceEpsilon {
		return failed(DegenerateVariance)
	}

	return measured(annReturn / annVol)
}

// Sharpe returns the Sharpe ratio of rs or 0 when it cannot be computed
func Sharpe(rs ReturnSeries, riskFreeRate float64) float64 {
	return SharpeMeasure(rs, riskFreeRate).Value
}

// SortinoMeasure is like SharpeMeasure but only penalizes returns below the
// risk free rate. The downside deviation is the sample standard deviation of
// min(excess, 0).
func SortinoMeasure(rs ReturnSeries, riskFreeRate float64) Measure {
	if rs.Len() < 2 {
		return failed(InsufficientData)
	}

	excessReturns := excess(rs.Values, DailyRiskFree(riskFreeRate))
	annReturn := stat.Mean(excessReturns, nil) * TradingDays

	downside := make([]float64, len(excessReturns))
	for idx, val := range excessReturns {
		downside[idx] = math.Min(val, 0)
	}

	annDownside := annualize(stat.StdDev(downside, nil))
	if math.IsNaN(annDownside) || annDownside < VarianceEpsilon {
		return failed(DegenerateVariance)
	}

	return measured(annReturn / annDownside)
}

// Sortino returns the Sortino ratio of rs or 0 when it cannot be computed
func Sortino(rs ReturnSeries, riskFreeRate float64) float64 {
	return SortinoMeasure(rs, riskFreeRate).Value
}

// MaxDrawdownMeasure is the largest peak-to-trough decline of the growth of 1
// unit invested at the start of rs, as a positive fraction in [0, 1]
func MaxDrawdownMeasure(rs ReturnSeries) Measure {
	if rs.Len() == 0 {
		return failed(InsufficientData)
	}

	growth := rs.DataFrame("growth").AddScalar(1).CumProd()
	peak := growth.CumMax()
	// the initial investment of 1 is the first peak
	for idx, val := range peak.Vals[0] {
		if val < 1 {
			peak.Vals[0][idx] = 1
		}
	}

	drawdown := growth.Div(peak).AddScalar(-1)
	worst := drawdown.Min()[0]
	if math.IsNaN(worst) {
		return failed(InsufficientData)
	}

	return measured(math.Abs(worst))
}

// MaxDrawdown returns the maximum drawdown of rs as a fraction
func MaxDrawdown(rs ReturnSeries) float64 {
	return MaxDrawdownMeasure(rs).Value
}

// CAGRMeasure is the compound annual growth rate between two values `years` apart
func CAGRMeasure(start, end, years float64) Measure {
	if start <= 0 || end <= 0 || years <= 0 {
		return failed(InsufficientData)
	}
	return measured(math.Pow(end/start, 1/years) - 1)
}

// CAGR returns the compound annual growth rate or 0 for non-positive inputs
func CAGR(start, end, years float64) float64 {
	return CAGRMeasure(start, end, years).Value
}
