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
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/go-co-op/gocron"
	"github.com/penny-vault/pv-fund/common"
	"github.com/penny-vault/pv-fund/data"
	"github.com/penny-vault/pv-fund/handler"
	"github.com/penny-vault/pv-fund/report"
	"github.com/penny-vault/pv-fund/router"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var profile bool

func init() {
	serveCmd.Flags().IntP("port", "p", 3000, "Port to run application server on")
	bindFlag(serveCmd.Flags(), "server.port", "PORT", "port")

	serveCmd.Flags().String("refresh-schedule", "0 19 * * 1-5", "Cron schedule for fetch and analyze, blank to disable")
	bindFlag(serveCmd.Flags(), "server.refresh_schedule", "PVFUND_REFRESH_SCHEDULE", "refresh-schedule")

	serveCmd.Flags().String("allow-origins", "*", "Comma separated list of origins allowed by CORS")
	bindFlag(serveCmd.Flags(), "server.allow_origins", "PVFUND_ALLOW_ORIGINS", "allow-origins")

	serveCmd.Flags().BoolVar(&profile, "cpu-profile", false, "Run pprof and save in profile.out")

	rootCmd.AddCommand(serveCmd)
}

// refresh downloads new NAVs and recomputes the metrics batch
func refresh(ctx context.Context, store data.Store) {
	log.Info().Msg("starting scheduled refresh")
	if err := fetchNavs(ctx, store, navProvider(), nil, 0); err != nil {
		log.Error().Err(err).Msg("scheduled fetch failed")
		return
	}
	if _, err := analyze(ctx, store, benchmarkProvider()); err != nil {
		log.Error().Err(err).Msg("scheduled analyze failed")
	}
}

// scheduleRefresh validates the cron expression and starts the refresh job. A
// blank schedule disables the job.
func scheduleRefresh(ctx context.Context, store data.Store, schedule string) (*gocron.Scheduler, error) {
	if schedule == "" {
		log.Info().Msg("refresh schedule disabled")
		return nil, nil
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		log.Error().Err(err).Str("Schedule", schedule).Msg("invalid refresh schedule")
		return nil, err
	}

	scheduler := gocron.NewScheduler(common.GetTimezone())
	if _, err := scheduler.Cron(schedule).SingletonMode().Do(refresh, ctx, store); err != nil {
		log.Error().Err(err).Str("Schedule", schedule).Msg("could not schedule refresh")
		return nil, err
	}
	scheduler.StartAsync()

	log.Info().Str("Schedule", schedule).Msg("scheduled refresh")
	return scheduler, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pv-fund API server",
	Long:  `Run an HTTP server that publishes fund metrics, recommendations and the simulated portfolio`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if profile {
			f, err := os.Create("profile.out")
			if err != nil {
				log.Fatal().Err(err).Msg("could not create profile output file")
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				log.Fatal().Err(err).Msg("could not start profiler")
			}
			defer pprof.StopCPUProfile()
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		alloc, err := report.LoadAllocation(viper.GetString("report.allocation_file"))
		if err != nil {
			return err
		}

		handler.Setup(&handler.Deps{
			Store:      store,
			Allocation: alloc,
			Criteria:   report.DefaultCriteria(),
		})

		scheduler, err := scheduleRefresh(ctx, store, viper.GetString("server.refresh_schedule"))
		if err != nil {
			return err
		}
		if scheduler != nil {
			defer scheduler.Stop()
		}

		app := router.New(viper.GetString("server.allow_origins"))

		// shutdown cleanly on interrupt
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		go func() {
			sig := <-sigs
			log.Info().Str("Signal", sig.String()).Msg("shutting down")
			cancel()
			if err := app.Shutdown(); err != nil {
				log.Error().Err(err).Msg("could not shutdown server")
			}
		}()

		port := viper.GetString("server.port")
		log.Info().Str("Port", port).Msg("starting server")
		return app.Listen(":" + port)
	},
}
