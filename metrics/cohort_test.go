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

package metrics_test

import (
	"context"
	"errors"
	"math/rand"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-fund/data"
	"github.com/penny-vault/pv-fund/metrics"
)

type stubBenchmark struct {
	series data.BenchmarkSeries
	err    error
	begin  time.Time
	end    time.Time
	calls  int
}

func (sb *stubBenchmark) Prices(ctx context.Context, ticker string, begin, end time.Time) (data.BenchmarkSeries, error) {
	sb.calls++
	sb.begin = begin
	sb.end = end
	if sb.err != nil {
		return data.BenchmarkSeries{Ticker: ticker}, sb.err
	}
	return sb.series.Trim(begin, end), nil
}

func randomWalk(seed int64, days int, base float64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	returns := make([]float64, days-1)
	for idx := range returns {
		returns[idx] = 0.0004 + rng.NormFloat64()*0.009
	}
	return compound(base, returns)
}

var _ = Describe("Window", func() {
	It("derives the admission gate from the look-back", func() {
		Expect(metrics.MinObservations(1, 0.9)).To(Equal(328))
		Expect(metrics.MinObservations(2, 0.9)).To(Equal(657))
		Expect(metrics.MinObservations(3, 0.9)).To(Equal(986))
		Expect(metrics.MinObservations(0, 0.9)).To(Equal(365))
	})

	It("anchors a fixed window to the most recent date of any fund", func() {
		funds := []data.FundSeries{
			fundSeries("1", epoch, randomWalk(1, 400, 10)...),
			fundSeries("2", epoch.AddDate(0, 0, 300), randomWalk(2, 500, 10)...),
		}
		window := metrics.NewWindow(metrics.FixedYears(2), 0.9, funds)
		end := epoch.AddDate(0, 0, 799)
		Expect(window.End).To(Equal(end))
		Expect(window.Start).To(Equal(end.AddDate(0, 0, -730)))
		Expect(window.MinObservations).To(Equal(657))
		Expect(window.Years()).To(Equal(2.0))
	})

	It("spans every fund for full history", func() {
		funds := []data.FundSeries{
			fundSeries("1", epoch.AddDate(0, 0, 10), randomWalk(1, 400, 10)...),
			fundSeries("2", epoch, randomWalk(2, 20, 10)...),
		}
		window := metrics.NewWindow(metrics.FullHistory(), 0.9, funds)
		Expect(window.Start).To(Equal(epoch))
		Expect(window.End).To(Equal(epoch.AddDate(0, 0, 409)))
		Expect(window.MinObservations).To(Equal(metrics.FullHistoryMinObservations))
	})

	It("loads from a month before the look-back, counted from the latest nav", func() {
		latest := time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC)
		Expect(metrics.FixedYears(2).LoadSince(latest)).To(Equal(time.Date(2021, 3, 3, 0, 0, 0, 0, time.UTC)))
		Expect(metrics.FixedYears(2).LoadSince(time.Time{}).IsZero()).To(BeTrue())
		Expect(metrics.FullHistory().LoadSince(latest).IsZero()).To(BeTrue())
	})

	It("labels periods", func() {
		Expect(metrics.FixedYears(2).Label()).To(Equal("2Y"))
		Expect(metrics.FullHistory().Label()).To(Equal("full"))
		Expect(metrics.FixedYears(-1).IsFullHistory()).To(BeTrue())
	})
})

var _ = Describe("Runner", func() {
	var (
		ctx   context.Context
		funds []data.FundSeries
		bench data.BenchmarkSeries
		cfg   metrics.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = metrics.DefaultConfig()
		end := epoch.AddDate(0, 0, 799)
		funds = []data.FundSeries{
			fundSeries("3", epoch, randomWalk(3, 800, 42)...),
			fundSeries("1", epoch, randomWalk(1, 800, 17)...),
			// only 100 days of history against a 657 day requirement
			fundSeries("2", end.AddDate(0, 0, -99), randomWalk(2, 100, 10)...),
		}
		bench = benchSeries(epoch, randomWalk(99, 800, 15000)...)
	})

	It("skips funds with insufficient history and scores the rest", func() {
		report := metrics.NewRunner(cfg).Run(ctx, funds, bench)

		Expect(report.Records).To(HaveLen(2))
		Expect(report.Records[0].SchemeCode).To(Equal("1"))
		Expect(report.Records[1].SchemeCode).To(Equal("3"))

		Expect(report.Skipped).To(HaveLen(1))
		Expect(report.Skipped[0].SchemeCode).To(Equal("2"))
		Expect(report.Skipped[0].Reason).To(Equal(metrics.ReasonInsufficientHistory))
		Expect(report.Skipped[0].Observations).To(Equal(100))
		Expect(report.Skipped[0].Required).To(Equal(657))

		for _, rec := range report.Records {
			Expect(rec.Period).To(Equal("2Y"))
			Expect(rec.PeriodYears).To(Equal(2.0))
			Expect(rec.Observations).To(Equal(731))
			Expect(rec.AlphaStrategy).To(Equal("capm"))
			Expect(rec.RunID).To(Equal(report.RunID))
			// annualized fraction, about 0.009 * sqrt(252)
			Expect(rec.Volatility).To(BeNumerically("~", 0.14, 0.03))
			Expect(rec.MaxDrawdown).To(BeNumerically(">=", 0))
			Expect(rec.MaxDrawdown).To(BeNumerically("<=", 100))
			Expect(metrics.Round(rec.Sharpe, 2)).To(Equal(rec.Sharpe))
		}
		Expect(report.BenchmarkStatus).To(Equal(metrics.OK))
	})

	It("produces the same records regardless of worker count", func() {
		serial := metrics.NewRunner(cfg).Run(ctx, funds, bench)
		cfg.Workers = 4
		parallel := metrics.NewRunner(cfg).Run(ctx, funds, bench)

		Expect(parallel.Fingerprint).To(Equal(serial.Fingerprint))
		Expect(parallel.Records).To(HaveLen(len(serial.Records)))
		for idx := range serial.Records {
			a, b := serial.Records[idx], parallel.Records[idx]
			a.RunID, b.RunID = parallel.RunID, parallel.RunID
			a.ComputedAt, b.ComputedAt = time.Time{}, time.Time{}
			Expect(b).To(Equal(a))
		}
	})

	It("reports zero alpha without a benchmark but still scores risk", func() {
		report := metrics.NewRunner(cfg).Run(ctx, funds, data.BenchmarkSeries{Ticker: "^NSEI"})
		Expect(report.BenchmarkStatus).To(Equal(metrics.ProviderUnavailable))
		Expect(report.Records).To(HaveLen(2))
		for _, rec := range report.Records {
			Expect(rec.Alpha).To(Equal(0.0))
			Expect(rec.Volatility).To(BeNumerically(">", 0))
		}
	})

	It("fetches the benchmark once for the whole window", func() {
		provider := &stubBenchmark{series: bench}
		runner := metrics.NewRunner(cfg)
		report := runner.RunWithProvider(ctx, funds, provider, "^NSEI")

		Expect(provider.calls).To(Equal(1))
		Expect(provider.begin).To(Equal(report.Window.Start))
		Expect(provider.end).To(Equal(report.Window.End))
		Expect(report.Records).To(HaveLen(2))
	})

	It("continues without alpha when the benchmark provider fails", func() {
		provider := &stubBenchmark{err: errors.New("connection refused")}
		report := metrics.NewRunner(cfg).RunWithProvider(ctx, funds, provider, "^NSEI")
		Expect(report.BenchmarkStatus).To(Equal(metrics.ProviderUnavailable))
		Expect(report.Records).To(HaveLen(2))
		Expect(report.Records[0].Alpha).To(Equal(0.0))
	})

	It("scores each fund over its own history for the full history policy", func() {
		cfg.Lookback = metrics.FullHistory()
		cfg.Alpha = metrics.CAGRDifferential
		funds = append(funds, fundSeries("4", epoch, randomWalk(4, 300, 10)...))

		report := metrics.NewRunner(cfg).Run(ctx, funds, bench)
		Expect(report.Records).To(HaveLen(2))
		Expect(report.Records[0].Period).To(Equal("full"))
		Expect(report.Records[0].PeriodYears).To(Equal(metrics.Round(799/365.25, 2)))
		Expect(report.Records[0].AlphaStrategy).To(Equal("cagr"))
		Expect(report.Skipped).To(HaveLen(2))
		Expect(report.Skipped[0].SchemeCode).To(Equal("2"))
		Expect(report.Skipped[1].SchemeCode).To(Equal("4"))
	})

	It("changes the fingerprint when an input changes", func() {
		before := metrics.Fingerprint(funds, bench, cfg)
		funds[0].Points[10].NAV += 0.01
		Expect(metrics.Fingerprint(funds, bench, cfg)).ToNot(Equal(before))
	})

	It("scores a single fund", func() {
		window := metrics.NewWindow(cfg.Lookback, cfg.MinHistoryRatio, funds)
		rec, _, ok := metrics.Score(funds[1], bench, window, cfg)
		Expect(ok).To(BeTrue())
		Expect(rec.SchemeCode).To(Equal("1"))
		Expect(rec.Name).To(Equal("Fund 1"))
		Expect(rec.Category).To(Equal("Equity Scheme - Large Cap Fund"))

		_, skip, ok := metrics.Score(funds[2], bench, window, cfg)
		Expect(ok).To(BeFalse())
		Expect(skip.Reason).To(Equal(metrics.ReasonInsufficientHistory))
	})
})
