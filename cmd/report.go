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
	"errors"
	"io"
	"os"

	"github.com/penny-vault/pv-fund/portfolio"
	"github.com/penny-vault/pv-fund/report"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	reportFormat string
	reportOut    string
)

func init() {
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "text", "Output format, one of: text, markdown, html")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "Write the report to a file instead of stdout")

	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print fund recommendations",
	Long: `Rank the funds that meet the risk criteria and recommend the best funds of
each allocation bucket. Markdown and HTML reports include the simulated portfolio.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := report.ParseFormat(reportFormat)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		rep, err := buildReport(ctx, store)
		if err != nil {
			return err
		}

		var view *report.PortfolioView
		if format != report.FormatText {
			summary, err := portfolio.NewManager(store).Track(ctx)
			switch {
			case err == nil:
				view = summary.View()
			case errors.Is(err, portfolio.ErrEmptyPortfolio):
			default:
				log.Warn().Err(err).Msg("could not value portfolio")
			}
		}

		var w io.Writer = os.Stdout
		if reportOut != "" {
			fh, err := os.Create(reportOut)
			if err != nil {
				log.Error().Err(err).Str("FileName", reportOut).Msg("could not create report file")
				return err
			}
			defer fh.Close()
			w = fh
		}

		return report.Render(w, format, rep, view)
	},
}
