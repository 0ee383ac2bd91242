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
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/pv-fund/portfolio"
	"github.com/penny-vault/pv-fund/report"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(trackCmd)
}

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Value the simulated portfolio at the latest NAVs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		summary, err := portfolio.NewManager(store).Track(ctx)
		if err != nil {
			return err
		}

		tbl := tablewriter.NewWriter(os.Stdout)
		tbl.SetHeader([]string{"Fund", "Category", "Invested", "NAV", "Value", "Profit/Loss"})
		tbl.SetBorder(false)
		for _, val := range summary.Holdings {
			tbl.Append([]string{
				val.Name,
				val.Category,
				report.Rupees(val.InvestmentAmount),
				fmt.Sprintf("%.4f", val.CurrentNAV),
				report.Rupees(val.CurrentValue),
				report.Rupees(val.ProfitLoss),
			})
		}
		tbl.SetFooter([]string{"Total", "", report.Rupees(summary.TotalInvestment), "",
			report.Rupees(summary.CurrentValue), report.Rupees(summary.ProfitLoss)})
		tbl.Render()

		fmt.Printf("As of %s\n", summary.AsOf.Format("2006-01-02"))
		return nil
	},
}
