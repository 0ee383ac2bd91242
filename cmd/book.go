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
	"fmt"

	"github.com/penny-vault/pv-fund/portfolio"
	"github.com/penny-vault/pv-fund/report"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	bookCmd.Flags().Float64("amount", portfolio.DefaultInvestment, "Amount to invest across the recommended funds")
	bindFlag(bookCmd.Flags(), "portfolio.investment", "PVFUND_INVESTMENT", "amount")

	rootCmd.AddCommand(bookCmd)
}

var bookCmd = &cobra.Command{
	Use:   "book",
	Short: "Buy the recommended funds in the simulated portfolio",
	Long: `Replace the simulated portfolio with the current recommendations bought at
each fund's latest NAV`,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		holdings, err := portfolio.NewManager(store).Book(ctx, rep, viper.GetFloat64("portfolio.investment"))
		if err != nil {
			return err
		}

		for _, h := range holdings {
			fmt.Printf("%-24s %-60s %14s %12.4f units @ %.4f (%s)\n", h.Category, h.Name,
				report.Rupees(h.InvestmentAmount), h.Units, h.PurchaseNAV, h.PurchaseDate.Format("2006-01-02"))
		}
		return nil
	},
}
