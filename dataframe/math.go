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

	"gonum.org/v1/gonum/floats"
)

// AddScalar adds the scalar value to all columns in dataframe df and returns a new dataframe
func (df *DataFrame) AddScalar(scalar float64) *DataFrame {
	df = df.Copy()
	for colIdx := range df.ColNames {
		floats.AddConst(scalar, df.Vals[colIdx])
	}
	return df
}

// Clip bounds every value in df to the closed interval [lower, upper] and returns
// a new dataframe. NaN values are left untouched.
func (df *DataFrame) Clip(lower, upper float64) *DataFrame {
	df = df.Copy()
	for colIdx := range df.ColNames {
		for rowIdx, val := range df.Vals[colIdx] {
			switch {
			case math.IsNaN(val):
			case val < lower:
				df.Vals[colIdx][rowIdx] = lower
			case val > upper:
				df.Vals[colIdx][rowIdx] = upper
			}
		}
	}
	return df
}

// CumMax computes the running maximum of each column and returns a new dataframe
func (df *DataFrame) CumMax() *DataFrame {
	df = df.Copy()
	for colIdx := range df.ColNames {
		peak := math.Inf(-1)
		for rowIdx, val := range df.Vals[colIdx] {
			if val > peak {
				peak = val
			}
			df.Vals[colIdx][rowIdx] = peak
		}
	}
	return df
}

// CumProd computes the cumulative product of each column and returns a new dataframe
func (df *DataFrame) CumProd() *DataFrame {
	df = df.Copy()
	for colIdx := range df.ColNames {
		floats.CumProd(df.Vals[colIdx], df.Vals[colIdx])
	}
	return df
}

// Div divides all columns in `df` by the corresponding column in `other` and returns a new dataframe.
// Panics if rows are not equal.
func (df *DataFrame) Div(other *DataFrame) *DataFrame {
	df = df.Copy()

	otherMap := make(map[string]int, len(other.ColNames))
	for idx, val := range other.ColNames {
		otherMap[val] = idx
	}

	for idx, colName := range df.ColNames {
		if otherIdx, ok := otherMap[colName]; ok {
			floats.Div(df.Vals[idx], other.Vals[otherIdx])
		}
	}
	return df
}

// Min returns the smallest non-NaN value in each column. Empty columns yield NaN.
func (df *DataFrame) Min() []float64 {
	res := make([]float64, len(df.ColNames))
	for colIdx := range df.ColNames {
		res[colIdx] = math.NaN()
		for _, val := range df.Vals[colIdx] {
			if math.IsNaN(val) {
				continue
			}
			if math.IsNaN(res[colIdx]) || val < res[colIdx] {
				res[colIdx] = val
			}
		}
	}
	return res
}

// MulScalar multiplies all columns in dataframe df by the scalar and returns a new dataframe
func (df *DataFrame) MulScalar(scalar float64) *DataFrame {
	df = df.Copy()
	for colIdx := range df.ColNames {
		floats.Scale(scalar, df.Vals[colIdx])
	}
	return df
}

// PctChange computes the percent change between each row and the previous row,
// val[i] / val[i-1] - 1. The first row is NaN as is any row whose previous value is 0.
func (df *DataFrame) PctChange() *DataFrame {
	prev := df.Lag(1)
	res := df.Copy()
	for colIdx := range res.ColNames {
		for rowIdx, val := range res.Vals[colIdx] {
			p := prev.Vals[colIdx][rowIdx]
			if math.IsNaN(p) || p == 0 {
				res.Vals[colIdx][rowIdx] = math.NaN()
				continue
			}
			res.Vals[colIdx][rowIdx] = val/p - 1.0
		}
	}
	return res
}
