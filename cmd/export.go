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

	"github.com/penny-vault/pv-fund/data"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var exportOut string

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "metrics.db", "SQLite file to write")

	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the metrics and the simulated portfolio to a SQLite file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.LoadMetrics(ctx)
		if err != nil {
			return err
		}

		holdings, err := store.LoadPortfolio(ctx)
		if err != nil {
			return err
		}

		if err := os.Remove(exportOut); err != nil && !os.IsNotExist(err) {
			log.Error().Err(err).Str("FileName", exportOut).Msg("could not remove previous export")
			return err
		}

		snapshot, err := data.NewSQLiteStore(exportOut)
		if err != nil {
			return err
		}
		defer snapshot.Close()

		if err := snapshot.Migrate(ctx); err != nil {
			return err
		}
		if err := snapshot.ReplaceMetrics(ctx, records); err != nil {
			return err
		}
		if err := snapshot.ReplacePortfolio(ctx, holdings); err != nil {
			return err
		}

		fmt.Printf("exported %d metrics records and %d holdings to %s\n", len(records), len(holdings), exportOut)
		return nil
	},
}
