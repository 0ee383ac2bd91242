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

package data_test

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock"
	"github.com/penny-vault/pv-fund/common"
	"github.com/penny-vault/pv-fund/data"
	"github.com/penny-vault/pv-fund/data/database"
	"github.com/penny-vault/pv-fund/metrics"
	"github.com/penny-vault/pv-fund/pgxmockhelper"
)

var _ = Describe("PgStore", func() {
	var (
		ctx    context.Context
		dbPool pgxmock.PgxConnIface
		store  *data.PgStore
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		dbPool, err = pgxmock.NewConn()
		Expect(err).To(BeNil())
		database.SetPool(dbPool)
		store = data.NewPgStore()
	})

	AfterEach(func() {
		Expect(dbPool.ExpectationsWereMet()).To(BeNil())
	})

	It("groups nav history rows by scheme", func() {
		since := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
		pgxmockhelper.MockNavHistoryQuery(dbPool, "../testdata/nav_history.csv", since)

		funds, err := store.LoadFunds(ctx, since)
		Expect(err).To(BeNil())
		Expect(funds).To(HaveLen(2))
		Expect(funds[0].Scheme.Code).To(Equal("100001"))
		Expect(funds[0].Scheme.Category).To(Equal("Equity Scheme - Large Cap Fund"))
		Expect(funds[0].Len()).To(Equal(3))
		Expect(funds[1].Scheme.Name).To(Equal("Beta Gilt Fund"))
		Expect(funds[1].Points[1].NAV).To(Equal(25.12))
	})

	It("dates nav history at midnight in the reference timezone", func() {
		since := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
		pgxmockhelper.MockNavHistoryQuery(dbPool, "../testdata/nav_history.csv", since)

		funds, err := store.LoadFunds(ctx, since)
		Expect(err).To(BeNil())
		first := funds[0].Points[0].Date
		Expect(first.Location().String()).To(Equal(common.GetTimezone().String()))
		Expect(first).To(BeTemporally("==", time.Date(2023, 1, 2, 0, 0, 0, 0, common.GetTimezone())))
	})

	It("lines stored nav history up with a provider benchmark for CAPM alpha", func() {
		const days = 300
		start := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)

		rows := pgxmock.NewRows([]string{"scheme_code", "scheme_name", "fund_house", "scheme_category", "nav_date", "nav"})
		raw := make([]data.RawNav, 0, days)
		nav, closePx := 100.0, 1000.0
		for ii := 0; ii < days; ii++ {
			dt := start.AddDate(0, 0, ii)
			if ii > 0 {
				benchRet := 0.01 * math.Sin(float64(ii)*0.7)
				closePx *= 1 + benchRet
				nav *= 1 + 0.8*benchRet + 0.0002 + 0.002*math.Cos(float64(ii)*1.3)
			}
			rows.AddRow("100001", "Alpha Large Cap Fund", "Alpha AMC", "Equity Scheme - Large Cap Fund", dt, nav)
			raw = append(raw, data.RawNav{Date: dt.Format("2006-01-02"), NAV: closePx})
		}

		dbPool.ExpectBegin()
		dbPool.ExpectQuery("SELECT s.scheme_code, s.scheme_name").WillReturnRows(rows)
		dbPool.ExpectRollback()

		funds, err := store.LoadFunds(ctx, start)
		Expect(err).To(BeNil())
		Expect(funds).To(HaveLen(1))

		bench := data.NormalizeBenchmark("^NSEI", raw)
		Expect(bench.Points).To(HaveLen(days))

		m := metrics.CAPMAlphaMeasure(data.NormalizeSeries(funds[0]), bench, metrics.DefaultRiskFreeRate)
		Expect(m.Status).To(Equal(metrics.OK))
		Expect(m.Value).ToNot(BeZero())
	})

	It("inserts nav history in a single transaction", func() {
		points := []data.NavPoint{
			{SchemeCode: "100001", Date: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), NAV: 100},
			{SchemeCode: "100001", Date: time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC), NAV: 101.5},
		}

		dbPool.ExpectBegin()
		dbPool.ExpectExec("INSERT INTO nav_history").
			WithArgs("100001", points[0].Date, 100.0, "100001", points[1].Date, 101.5).
			WillReturnResult(pgconn.CommandTag("INSERT 0 2"))
		dbPool.ExpectCommit()

		n, err := store.SaveNavHistory(ctx, "100001", points)
		Expect(err).To(BeNil())
		Expect(n).To(Equal(int64(2)))
	})

	It("does not open a transaction for empty nav history", func() {
		n, err := store.SaveNavHistory(ctx, "100001", nil)
		Expect(err).To(BeNil())
		Expect(n).To(Equal(int64(0)))
	})

	Describe("replacing metrics", func() {
		var records []data.MetricsRecord

		BeforeEach(func() {
			runID := uuid.New()
			computed := time.Date(2023, 6, 30, 19, 0, 0, 0, time.UTC)
			records = []data.MetricsRecord{
				{SchemeCode: "100001", Name: "Alpha Large Cap Fund", Period: "2Y", PeriodYears: 2, Volatility: 0.14, Sharpe: 1.1,
					Sortino: 1.6, MaxDrawdown: 12.5, Alpha: 2.3, AlphaStrategy: "capm", Observations: 490, RunID: runID, ComputedAt: computed},
				{SchemeCode: "100002", Name: "Beta Gilt Fund", Period: "2Y", PeriodYears: 2, Volatility: 0.02, Sharpe: 0.3,
					Sortino: 0.5, MaxDrawdown: 1.2, Alpha: -0.4, AlphaStrategy: "capm", Observations: 488, RunID: runID, ComputedAt: computed},
			}
		})

		It("deletes the previous batch and inserts every record", func() {
			dbPool.ExpectBegin()
			dbPool.ExpectExec("DELETE FROM fund_metrics").WillReturnResult(pgconn.CommandTag("DELETE 5"))
			dbPool.ExpectExec("INSERT INTO fund_metrics").WillReturnResult(pgconn.CommandTag("INSERT 0 1"))
			dbPool.ExpectExec("INSERT INTO fund_metrics").WillReturnResult(pgconn.CommandTag("INSERT 0 1"))
			dbPool.ExpectCommit()

			Expect(store.ReplaceMetrics(ctx, records)).To(Succeed())
		})

		It("rolls back and keeps the previous batch when an insert fails", func() {
			insertErr := errors.New("constraint violation")

			dbPool.ExpectBegin()
			dbPool.ExpectExec("DELETE FROM fund_metrics").WillReturnResult(pgconn.CommandTag("DELETE 5"))
			dbPool.ExpectExec("INSERT INTO fund_metrics").WillReturnResult(pgconn.CommandTag("INSERT 0 1"))
			dbPool.ExpectExec("INSERT INTO fund_metrics").WillReturnError(insertErr)
			dbPool.ExpectRollback()

			err := store.ReplaceMetrics(ctx, records)
			Expect(err).To(MatchError(insertErr))
		})
	})

	It("loads metrics records", func() {
		runID := uuid.New()
		computed := time.Date(2023, 6, 30, 19, 0, 0, 0, time.UTC)

		dbPool.ExpectBegin()
		dbPool.ExpectQuery(`(?is)select .* from "fund_metrics"`).WillReturnRows(
			pgxmock.NewRows([]string{"scheme_code", "scheme_name", "scheme_category", "period", "period_years", "volatility",
				"sharpe", "sortino", "max_drawdown", "alpha", "alpha_strategy", "observations", "run_id", "computed_at"}).
				AddRow("100001", "Alpha Large Cap Fund", "Equity Scheme - Large Cap Fund", "2Y", 2.0, 0.14,
					1.1, 1.6, 12.5, 2.3, "capm", 490, runID.String(), computed))
		dbPool.ExpectRollback()

		records, err := store.LoadMetrics(ctx)
		Expect(err).To(BeNil())
		Expect(records).To(HaveLen(1))
		Expect(records[0].RunID).To(Equal(runID))
		Expect(records[0].Observations).To(Equal(490))
		Expect(records[0].ComputedAt).To(Equal(computed))
	})

	It("returns the latest nav per scheme", func() {
		dbPool.ExpectBegin()
		dbPool.ExpectQuery("SELECT n.scheme_code, n.nav_date, n.nav").WillReturnRows(
			pgxmock.NewRows([]string{"scheme_code", "nav_date", "nav"}).
				AddRow("100001", time.Date(2023, 1, 4, 0, 0, 0, 0, time.UTC), 100.75).
				AddRow("100002", time.Date(2023, 1, 4, 0, 0, 0, 0, time.UTC), 25.12))
		dbPool.ExpectRollback()

		latest, err := store.LatestNavs(ctx)
		Expect(err).To(BeNil())
		Expect(latest).To(HaveLen(2))
		Expect(latest["100002"].NAV).To(Equal(25.12))
		Expect(latest["100001"].Date).To(BeTemporally("==", time.Date(2023, 1, 4, 0, 0, 0, 0, common.GetTimezone())))
		Expect(data.LatestDate(latest)).To(BeTemporally("==", latest["100001"].Date))
		Expect(data.LatestDate(nil).IsZero()).To(BeTrue())
	})
})
