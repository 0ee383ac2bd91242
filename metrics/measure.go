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
)

// Status is the reason code attached to a computed metric. Every status other
// than OK carries a value of 0.
type Status int

const (
	OK Status = iota
	InsufficientData
	DegenerateVariance
	RegressionFailure
	ProviderUnavailable
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case InsufficientData:
		return "insufficient-data"
	case DegenerateVariance:
		return "degenerate-variance"
	case RegressionFailure:
		return "regression-failure"
	case ProviderUnavailable:
		return "provider-unavailable"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Measure is a metric value together with the reason it was (or was not) computed
type Measure struct {
	Value  float64
	Status Status
}

// OK reports whether the measure was computed
func (m Measure) OK() bool {
	return m.Status == OK
}

func measured(val float64) Measure {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return Measure{Status: DegenerateVariance}
	}
	return Measure{Value: val, Status: OK}
}

func failed(status Status) Measure {
	return Measure{Status: status}
}

// Round rounds val to the given number of decimal places. NaN and Inf become 0.
func Round(val float64, places int) float64 {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return 0
	}
	scale := math.Pow(10, float64(places))
	res := math.Round(val*scale) / scale
	if res == 0 {
		// avoid -0 in reports
		return 0
	}
	return res
}
