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

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/pv-fund/data"
	"github.com/penny-vault/pv-fund/metrics"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var analyzeTable bool

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeTable, "table", false, "Print every metrics record as a table")

	rootCmd.AddCommand(analyzeCmd)
}

// analyze scores every stored fund and replaces the stored metrics batch
func analyze(ctx context.Context, store data.Store, bench data.BenchmarkProvider) (*metrics.RunReport, error) {
	cfg, err := metricsConfig()
	if err != nil {
		return nil, err
	}

	// the window ends on the latest stored NAV, which may be well before today
	latest, err := store.LatestNavs(ctx)
	if err != nil {
		return nil, err
	}
	since := cfg.Lookback.LoadSince(data.LatestDate(latest))

	funds, err := store.LoadFunds(ctx, since)
	if err != nil {
		return nil, err
	}

	for idx := range funds {
		funds[idx] = data.NormalizeSeries(funds[idx])
	}

	runner := metrics.NewRunner(cfg)
	rep := runner.RunWithProvider(ctx, funds, bench, viper.GetString("benchmark.ticker"))

	if err := store.ReplaceMetrics(ctx, rep.Records); err != nil {
		log.Error().Err(err).Str("RunID", rep.RunID.String()).Msg("could not save metrics; previous batch kept")
		return nil, err
	}

	log.Info().Str("RunID", rep.RunID.String()).Int("NumScored", len(rep.Records)).Int("NumSkipped", len(rep.Skipped)).
		Str("BenchmarkStatus", rep.BenchmarkStatus.String()).Msg("analysis complete")

	return rep, nil
}

func printRunReport(rep *metrics.RunReport, table bool) {
	fmt.Printf("Run %s: %d funds scored, %d skipped (window %s to %s, benchmark %s)\n",
		rep.RunID, len(rep.Records), len(rep.Skipped),
		rep.Window.Start.Format("2006-01-02"), rep.Window.End.Format("2006-01-02"), rep.BenchmarkStatus)

	if !table {
		return
	}

	tbl := tablewriter.NewWriter(os.Stdout)
	tbl.SetHeader([]string{"Code", "Scheme", "Volatility", "Sharpe", "Sortino", "Max DD", "Alpha", "Obs"})
	tbl.SetBorder(false)
	for _, rec := range rep.Records {
		tbl.Append([]string{
			rec.SchemeCode,
			rec.Name,
			fmt.Sprintf("%.2f%%", rec.Volatility*100),
			fmt.Sprintf("%.2f", rec.Sharpe),
			fmt.Sprintf("%.2f", rec.Sortino),
			fmt.Sprintf("%.2f%%", rec.MaxDrawdown),
			fmt.Sprintf("%.2f%%", rec.Alpha),
			fmt.Sprintf("%d", rec.Observations),
		})
	}
	tbl.Render()
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Compute risk and return metrics for every fund",
	Long: `Score every fund in the database over the configured look-back window
and replace the stored metrics with the new batch`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		rep, err := analyze(ctx, store, benchmarkProvider())
		if err != nil {
			return err
		}

		printRunReport(rep, analyzeTable)
		return nil
	},
}
