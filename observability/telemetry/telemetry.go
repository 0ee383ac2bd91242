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

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pvfund"

var (
	ProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Requests made to upstream data providers by outcome",
		},
		[]string{"provider", "outcome"},
	)

	FundsScored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "funds_scored_total",
			Help:      "Funds that produced a metrics record",
		},
	)

	FundsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "funds_skipped_total",
			Help:      "Funds skipped by the cohort runner by reason",
		},
		[]string{"reason"},
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a cohort run",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	LastRunTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed cohort run",
		},
	)
)

func init() {
	prometheus.MustRegister(ProviderRequests, FundsScored, FundsSkipped, RunDuration, LastRunTimestamp)
}
