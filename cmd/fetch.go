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
	"time"

	"github.com/penny-vault/pv-fund/data"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	fetchLimit int
	fetchCodes []string
)

func init() {
	fetchCmd.Flags().IntVar(&fetchLimit, "limit", 0, "Only download the first N schemes, 0 for all")
	fetchCmd.Flags().StringSliceVar(&fetchCodes, "codes", []string{}, "Only download the given scheme codes")

	rootCmd.AddCommand(fetchCmd)
}

// fetchNavs downloads scheme metadata and NAV history into the store. A failure
// on one scheme is logged and the remaining schemes are still downloaded.
func fetchNavs(ctx context.Context, store data.Store, provider data.NavProvider, codes []string, limit int) error {
	if len(codes) == 0 {
		schemes, err := provider.Schemes(ctx)
		if err != nil {
			log.Error().Err(err).Msg("could not list schemes")
			return err
		}

		if limit > 0 && len(schemes) > limit {
			schemes = schemes[:limit]
		}

		if err := store.SaveSchemes(ctx, schemes); err != nil {
			return err
		}

		codes = make([]string, len(schemes))
		for idx, scheme := range schemes {
			codes[idx] = scheme.Code
		}
	}

	start := time.Now()
	var numInserted int64
	numFailed := 0
	for idx, code := range codes {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		subLog := log.With().Str("SchemeCode", code).Int("Index", idx).Int("Total", len(codes)).Logger()

		scheme, raw, err := provider.NavHistory(ctx, code)
		if err != nil {
			subLog.Warn().Err(err).Msg("could not download NAV history")
			numFailed++
			continue
		}

		if err := store.SaveSchemes(ctx, []data.Scheme{scheme}); err != nil {
			subLog.Warn().Err(err).Msg("could not save scheme metadata")
			numFailed++
			continue
		}

		series := data.Normalize(scheme, raw)
		n, err := store.SaveNavHistory(ctx, code, series.Points)
		if err != nil {
			subLog.Warn().Err(err).Msg("could not save NAV history")
			numFailed++
			continue
		}

		numInserted += n
		subLog.Debug().Int("NumPoints", series.Len()).Int64("NumInserted", n).Msg("saved NAV history")
	}

	log.Info().Int("NumSchemes", len(codes)).Int("NumFailed", numFailed).Int64("NumInserted", numInserted).
		Dur("Elapsed", time.Since(start)).Msg("fetch complete")

	return nil
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download mutual fund NAV history",
	Long:  `Download the list of schemes and the NAV history of each scheme into the database`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		return fetchNavs(ctx, store, navProvider(), fetchCodes, fetchLimit)
	},
}
