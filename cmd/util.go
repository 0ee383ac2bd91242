// Copyright 2021-2022
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

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/penny-vault/pv-fund/data"
	"github.com/penny-vault/pv-fund/data/database"
	"github.com/penny-vault/pv-fund/metrics"
	"github.com/penny-vault/pv-fund/report"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	ErrUnknownDriver = errors.New("unknown database driver")
)

const defaultSQLiteFile = "pv-fund.db"

// openStore connects to the configured database and creates missing tables
func openStore(ctx context.Context) (data.Store, error) {
	var store data.Store

	driver := strings.ToLower(viper.GetString("database.driver"))
	switch driver {
	case "sqlite", "sqlite3":
		dsn := viper.GetString("database.url")
		if dsn == "" {
			dsn = defaultSQLiteFile
		}
		sqlite, err := data.NewSQLiteStore(dsn)
		if err != nil {
			return nil, err
		}
		store = sqlite
	case "", "postgres", "postgresql":
		if err := database.Connect(ctx); err != nil {
			return nil, err
		}
		store = data.NewPgStore()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}

	if err := store.Migrate(ctx); err != nil {
		log.Error().Err(err).Str("Driver", driver).Msg("could not migrate database")
		return nil, err
	}

	return store, nil
}

func providerOptions(urlKey string) []data.ClientOption {
	opts := make([]data.ClientOption, 0, 3)
	if u := viper.GetString(urlKey); u != "" {
		opts = append(opts, data.WithBaseURL(u))
	}
	if rl := viper.GetFloat64("provider.rate_limit"); rl > 0 {
		opts = append(opts, data.WithRateLimit(rl))
	}
	if timeout := viper.GetDuration("provider.timeout"); timeout > 0 {
		opts = append(opts, data.WithTimeout(timeout))
	}
	return opts
}

func navProvider() data.NavProvider {
	return data.NewMFAPI(providerOptions("provider.nav_url")...)
}

func benchmarkProvider() data.BenchmarkProvider {
	return data.NewCachedBenchmark(data.NewYahoo(providerOptions("provider.benchmark_url")...))
}

// metricsConfig builds the cohort configuration from viper
func metricsConfig() (metrics.Config, error) {
	cfg := metrics.DefaultConfig()

	strategy, err := metrics.ParseAlphaStrategy(viper.GetString("metrics.alpha_strategy"))
	if err != nil {
		return cfg, err
	}
	cfg.Alpha = strategy

	if viper.IsSet("metrics.risk_free_rate") {
		cfg.RiskFreeRate = viper.GetFloat64("metrics.risk_free_rate")
	}

	if years := viper.GetInt("metrics.lookback_years"); years > 0 {
		cfg.Lookback = metrics.FixedYears(years)
	} else {
		cfg.Lookback = metrics.FullHistory()
	}

	if ratio := viper.GetFloat64("metrics.min_history_ratio"); ratio > 0 {
		cfg.MinHistoryRatio = ratio
	}

	if workers := viper.GetInt("metrics.workers"); workers > 0 {
		cfg.Workers = workers
	}

	return cfg, nil
}

// buildReport ranks the stored metrics batch
func buildReport(ctx context.Context, store data.Store) (*report.Report, error) {
	alloc, err := report.LoadAllocation(viper.GetString("report.allocation_file"))
	if err != nil {
		return nil, err
	}

	records, err := store.LoadMetrics(ctx)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		log.Warn().Msg("no metrics stored; run `pv-fund analyze` first")
	}

	return report.Build(records, alloc, report.DefaultCriteria()), nil
}
