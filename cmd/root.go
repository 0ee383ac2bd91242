// Copyright 2021 JD Fergason
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/penny-vault/pv-fund/common"
	"github.com/penny-vault/pv-fund/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var shutdownTracing func(context.Context) error

// bindFlag ties a viper key to an environment variable and a persistent flag
func bindFlag(flags *pflag.FlagSet, key, env, flag string) {
	if err := viper.BindEnv(key, env); err != nil {
		log.Panic().Err(err).Str("Key", key).Msg("could not bind environment variable")
	}
	if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
		log.Panic().Err(err).Str("Key", key).Msg("could not bind flag")
	}
}

func init() {
	flags := rootCmd.PersistentFlags()

	// Database
	flags.String("database-driver", "postgres", "Storage backend, one of: postgres, sqlite")
	bindFlag(flags, "database.driver", "PVFUND_DATABASE_DRIVER", "database-driver")

	flags.String("database-url", "", "PostgreSQL connection string or SQLite file name")
	bindFlag(flags, "database.url", "PVFUND_DATABASE_URL", "database-url")

	// Logging configuration
	flags.String("log-level", "warning", "Logging level")
	bindFlag(flags, "log.level", "PVFUND_LOG_LEVEL", "log-level")

	flags.Bool("log-report-caller", false, "Log function name that called log statement")
	bindFlag(flags, "log.report_caller", "PVFUND_LOG_REPORT_CALLER", "log-report-caller")

	flags.String("log-output", "stdout", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	bindFlag(flags, "log.output", "PVFUND_LOG_OUTPUT", "log-output")

	flags.Bool("log-pretty", false, "Write human readable logs instead of JSON")
	bindFlag(flags, "log.pretty", "PVFUND_LOG_PRETTY", "log-pretty")

	// Cache
	flags.Bool("cache-redis", false, "Share cached benchmark prices through redis")
	bindFlag(flags, "cache.redis", "PVFUND_CACHE_REDIS", "cache-redis")

	flags.String("cache-redis-url", "redis://localhost:6379/0", "Redis connection URL")
	bindFlag(flags, "cache.redis_url", "PVFUND_CACHE_REDIS_URL", "cache-redis-url")

	flags.Int("cache-local-size", 128, "Number of entries kept in the in-process cache")
	bindFlag(flags, "cache.local_size", "PVFUND_CACHE_LOCAL_SIZE", "cache-local-size")

	flags.Int("cache-ttl", 6*60*60, "Seconds a cached benchmark series stays valid")
	bindFlag(flags, "cache.ttl", "PVFUND_CACHE_TTL", "cache-ttl")

	// Metrics
	flags.Float64("risk-free-rate", 0.07, "Annual risk free rate")
	bindFlag(flags, "metrics.risk_free_rate", "PVFUND_RISK_FREE_RATE", "risk-free-rate")

	flags.Int("lookback-years", 2, "Years of history to analyze, 0 for the full history")
	bindFlag(flags, "metrics.lookback_years", "PVFUND_LOOKBACK_YEARS", "lookback-years")

	flags.Float64("min-history-ratio", 0.9, "Fraction of the window a fund must cover to be scored")
	bindFlag(flags, "metrics.min_history_ratio", "PVFUND_MIN_HISTORY_RATIO", "min-history-ratio")

	flags.String("alpha-strategy", "capm", "Alpha estimator, one of: capm, cagr")
	bindFlag(flags, "metrics.alpha_strategy", "PVFUND_ALPHA_STRATEGY", "alpha-strategy")

	flags.Int("workers", 4, "Number of funds scored concurrently")
	bindFlag(flags, "metrics.workers", "PVFUND_WORKERS", "workers")

	flags.String("benchmark", "^NSEI", "Ticker of the benchmark index")
	bindFlag(flags, "benchmark.ticker", "PVFUND_BENCHMARK", "benchmark")

	// Providers
	flags.String("nav-url", "", "Base URL of the NAV provider")
	bindFlag(flags, "provider.nav_url", "PVFUND_NAV_URL", "nav-url")

	flags.String("benchmark-url", "", "Base URL of the benchmark price provider")
	bindFlag(flags, "provider.benchmark_url", "PVFUND_BENCHMARK_URL", "benchmark-url")

	flags.Float64("rate-limit", 2, "Maximum provider requests per second")
	bindFlag(flags, "provider.rate_limit", "PVFUND_RATE_LIMIT", "rate-limit")

	flags.Duration("provider-timeout", 0, "Provider request timeout")
	bindFlag(flags, "provider.timeout", "PVFUND_PROVIDER_TIMEOUT", "provider-timeout")

	// Report
	flags.String("allocation-file", "", "TOML file describing the allocation buckets")
	bindFlag(flags, "report.allocation_file", "PVFUND_ALLOCATION_FILE", "allocation-file")

	// Tracing
	flags.String("otlp-endpoint", "", "OpenTelemetry collector endpoint, tracing is disabled when blank")
	bindFlag(flags, "otlp.endpoint", "PVFUND_OTLP_ENDPOINT", "otlp-endpoint")

	flags.Bool("otlp-http", false, "Export traces over HTTP instead of gRPC")
	bindFlag(flags, "otlp.http", "PVFUND_OTLP_HTTP", "otlp-http")

	viper.SetDefault("portfolio.investment", 10000.0)
	viper.SetDefault("server.refresh_schedule", "0 19 * * 1-5")
}

var rootCmd = &cobra.Command{
	Use:     "pv-fund",
	Version: common.CurrentVersion.String(),
	Short:   "Risk and return analytics for Indian mutual funds",
	Long: `pv-fund downloads mutual fund NAV history, scores every fund on volatility,
Sharpe, Sortino, max drawdown and alpha against a benchmark index, and builds
allocation weighted recommendations with a simulated portfolio.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		common.SetupLogging()
		if err := common.SetupCache(); err != nil {
			return err
		}

		var err error
		shutdownTracing, err = opentelemetry.Setup()
		if err != nil {
			log.Warn().Err(err).Msg("could not setup tracing")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if shutdownTracing != nil {
			if err := shutdownTracing(context.Background()); err != nil {
				log.Warn().Err(err).Msg("could not flush traces")
			}
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
