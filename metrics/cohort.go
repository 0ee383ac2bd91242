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
	"context"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/penny-vault/pv-fund/data"
	"github.com/penny-vault/pv-fund/observability/opentelemetry"
	"github.com/penny-vault/pv-fund/observability/telemetry"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	ReasonInsufficientHistory = "insufficient-history"
	ReasonEmptyReturns        = "empty-returns"
)

// Config controls how a cohort is scored
type Config struct {
	RiskFreeRate    float64
	Lookback        LookbackPolicy
	Alpha           AlphaStrategy
	MinHistoryRatio float64
	Workers         int
}

// DefaultConfig scores a two year trailing window with Jensen's alpha
func DefaultConfig() Config {
	return Config{
		RiskFreeRate:    DefaultRiskFreeRate,
		Lookback:        FixedYears(2),
		Alpha:           CAPMRegression,
		MinHistoryRatio: DefaultMinHistoryRatio,
		Workers:         1,
	}
}

// SkipReason records why a fund produced no metrics record
type SkipReason struct {
	SchemeCode   string `json:"scheme_code"`
	Name         string `json:"scheme_name"`
	Reason       string `json:"reason"`
	Observations int    `json:"observations"`
	Required     int    `json:"required"`
}

// RunReport is the outcome of scoring a cohort. Records and Skipped are sorted
// by scheme code.
type RunReport struct {
	RunID           uuid.UUID            `json:"run_id"`
	Window          AnalysisWindow       `json:"window"`
	Records         []data.MetricsRecord `json:"records"`
	Skipped         []SkipReason         `json:"skipped"`
	Fingerprint     string               `json:"fingerprint"`
	BenchmarkStatus Status               `json:"benchmark_status"`
	ComputedAt      time.Time            `json:"computed_at"`
}

// Score computes the metrics record for one fund. When the fund is not admitted
// the returned bool is false and SkipReason says why.
func Score(fund data.FundSeries, bench data.BenchmarkSeries, window AnalysisWindow, cfg Config) (data.MetricsRecord, SkipReason, bool) {
	window = window.FundWindow(fund)
	trimmed := fund.Trim(window.Start, window.End)

	skip := SkipReason{
		SchemeCode:   fund.Scheme.Code,
		Name:         fund.Scheme.Name,
		Observations: trimmed.Len(),
		Required:     window.MinObservations,
	}

	if trimmed.Len() < window.MinObservations {
		skip.Reason = ReasonInsufficientHistory
		return data.MetricsRecord{}, skip, false
	}

	returns := DailyReturns(trimmed)
	if returns.Len() == 0 {
		skip.Reason = ReasonEmptyReturns
		return data.MetricsRecord{}, skip, false
	}

	if window.LookbackYears > 0 {
		bench = bench.Trim(window.Start, window.End)
	}

	period := FixedYears(window.LookbackYears).Label()
	rec := data.MetricsRecord{
		SchemeCode:    fund.Scheme.Code,
		Name:          fund.Scheme.Name,
		Category:      fund.Scheme.Category,
		Period:        period,
		PeriodYears:   Round(window.Years(), 2),
		Volatility:    Round(Volatility(returns), 2),
		Sharpe:        Round(Sharpe(returns, cfg.RiskFreeRate), 2),
		Sortino:       Round(Sortino(returns, cfg.RiskFreeRate), 2),
		MaxDrawdown:   Round(MaxDrawdown(RawReturns(trimmed))*100, 2),
		Alpha:         Round(Alpha(cfg.Alpha, trimmed, bench, cfg.RiskFreeRate), 2),
		AlphaStrategy: cfg.Alpha.String(),
		Observations:  trimmed.Len(),
		ComputedAt:    time.Now().UTC(),
	}

	return rec, SkipReason{}, true
}

// Runner scores a cohort of funds against a shared benchmark
type Runner struct {
	cfg Config
}

// NewRunner creates a runner; zero valued fields of cfg take their defaults
func NewRunner(cfg Config) *Runner {
	if cfg.MinHistoryRatio <= 0 || cfg.MinHistoryRatio > 1 {
		cfg.MinHistoryRatio = DefaultMinHistoryRatio
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Runner{cfg: cfg}
}

// Config returns the effective configuration of the runner
func (r *Runner) Config() Config {
	return r.cfg
}

// Window returns the evaluation window for funds
func (r *Runner) Window(funds []data.FundSeries) AnalysisWindow {
	return NewWindow(r.cfg.Lookback, r.cfg.MinHistoryRatio, funds)
}

// RunWithProvider fetches the benchmark once for the cohort's window and scores
// every fund against it. A provider failure is not fatal: funds are scored
// without alpha.
func (r *Runner) RunWithProvider(ctx context.Context, funds []data.FundSeries, provider data.BenchmarkProvider, ticker string) *RunReport {
	window := r.Window(funds)
	subLog := log.With().Str("Ticker", ticker).Time("Start", window.Start).Time("End", window.End).Logger()

	bench, err := provider.Prices(ctx, ticker, window.Start, window.End)
	if err != nil {
		subLog.Warn().Err(err).Msg("benchmark unavailable; alpha will be reported as 0")
		bench = data.BenchmarkSeries{Ticker: ticker}
	}

	return r.Run(ctx, funds, bench)
}

type scoreResult struct {
	Record   data.MetricsRecord
	Skip     SkipReason
	Admitted bool
}

func scoreWorker(jobs <-chan data.FundSeries, results chan<- scoreResult, bench data.BenchmarkSeries, window AnalysisWindow, cfg Config) {
	for fund := range jobs {
		rec, skip, ok := Score(fund, bench, window, cfg)
		results <- scoreResult{Record: rec, Skip: skip, Admitted: ok}
	}
}

// Run scores every fund against bench. Funds are scored on up to cfg.Workers
// goroutines; the report content does not depend on the worker count.
func (r *Runner) Run(ctx context.Context, funds []data.FundSeries, bench data.BenchmarkSeries) *RunReport {
	_, span := otel.Tracer(opentelemetry.Name).Start(ctx, "metrics.Run")
	defer span.End()

	start := time.Now()
	report := &RunReport{
		RunID:       uuid.New(),
		Window:      r.Window(funds),
		Records:     make([]data.MetricsRecord, 0, len(funds)),
		Skipped:     make([]SkipReason, 0),
		Fingerprint: Fingerprint(funds, bench, r.cfg),
		ComputedAt:  start.UTC(),
	}

	report.BenchmarkStatus = OK
	if bench.Len() == 0 {
		report.BenchmarkStatus = ProviderUnavailable
	}

	subLog := log.With().Str("RunID", report.RunID.String()).Str("Period", r.cfg.Lookback.Label()).
		Str("AlphaStrategy", r.cfg.Alpha.String()).Logger()
	subLog.Info().Int("NumFunds", len(funds)).Int("NumBenchmark", bench.Len()).Time("Start", report.Window.Start).
		Time("End", report.Window.End).Int("MinObservations", report.Window.MinObservations).Msg("scoring cohort")

	workers := r.cfg.Workers
	if workers > len(funds) {
		workers = len(funds)
	}

	jobs := make(chan data.FundSeries)
	results := make(chan scoreResult)
	for ii := 0; ii < workers; ii++ {
		go scoreWorker(jobs, results, bench, report.Window, r.cfg)
	}

	go func() {
		for _, fund := range funds {
			jobs <- fund
		}
		close(jobs)
	}()

	for range funds {
		res := <-results
		if res.Admitted {
			res.Record.RunID = report.RunID
			res.Record.ComputedAt = report.ComputedAt
			report.Records = append(report.Records, res.Record)
			continue
		}
		subLog.Debug().Str("SchemeCode", res.Skip.SchemeCode).Str("Reason", res.Skip.Reason).
			Int("Observations", res.Skip.Observations).Int("Required", res.Skip.Required).Msg("skipping fund")
		telemetry.FundsSkipped.WithLabelValues(res.Skip.Reason).Inc()
		report.Skipped = append(report.Skipped, res.Skip)
	}

	sort.Slice(report.Records, func(i, j int) bool {
		return report.Records[i].SchemeCode < report.Records[j].SchemeCode
	})
	sort.Slice(report.Skipped, func(i, j int) bool {
		return report.Skipped[i].SchemeCode < report.Skipped[j].SchemeCode
	})

	elapsed := time.Since(start)
	telemetry.FundsScored.Add(float64(len(report.Records)))
	telemetry.RunDuration.Observe(elapsed.Seconds())
	telemetry.LastRunTimestamp.SetToCurrentTime()

	span.SetAttributes(
		attribute.String("RunID", report.RunID.String()),
		attribute.Int("NumScored", len(report.Records)),
		attribute.Int("NumSkipped", len(report.Skipped)),
	)
	subLog.Info().Int("NumScored", len(report.Records)).Int("NumSkipped", len(report.Skipped)).
		Dur("Elapsed", elapsed).Msg("cohort scored")

	return report
}

// Fingerprint hashes the cohort inputs and configuration. Two runs with the same
// fingerprint produce the same metric values.
func Fingerprint(funds []data.FundSeries, bench data.BenchmarkSeries, cfg Config) string {
	ordered := make([]data.FundSeries, len(funds))
	copy(ordered, funds)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Scheme.Code < ordered[j].Scheme.Code
	})

	h := blake3.New()
	buf := make([]byte, 8)
	writeFloat := func(val float64) {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(val))
		_, _ = h.Write(buf)
	}
	writeDate := func(dt time.Time) {
		binary.LittleEndian.PutUint64(buf, uint64(dt.Unix()))
		_, _ = h.Write(buf)
	}

	_, _ = h.Write([]byte(cfg.Lookback.Label()))
	_, _ = h.Write([]byte(cfg.Alpha.String()))
	writeFloat(cfg.RiskFreeRate)
	writeFloat(cfg.MinHistoryRatio)

	for _, fund := range ordered {
		_, _ = h.Write([]byte(fund.Scheme.Code))
		for _, pt := range fund.Points {
			writeDate(pt.Date)
			writeFloat(pt.NAV)
		}
	}

	_, _ = h.Write([]byte(bench.Ticker))
	for _, pt := range bench.Points {
		writeDate(pt.Date)
		writeFloat(pt.Close)
	}

	return hex.EncodeToString(h.Sum(nil))
}
