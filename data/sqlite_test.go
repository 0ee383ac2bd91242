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
	"path/filepath"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-fund/common"
	"github.com/penny-vault/pv-fund/data"
)

var _ = Describe("SQLiteStore", func() {
	var (
		ctx   context.Context
		store *data.SQLiteStore
		tz    *time.Location
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		tz = common.GetTimezone()
		store, err = data.NewSQLiteStore(filepath.Join(GinkgoT().TempDir(), "pvfund.db"))
		Expect(err).To(BeNil())
		Expect(store.Migrate(ctx)).To(Succeed())
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	It("round trips nav history and ignores duplicates", func() {
		Expect(store.SaveSchemes(ctx, []data.Scheme{
			{Code: "100001", Name: "Alpha Large Cap Fund", FundHouse: "Alpha AMC", Category: "Equity Scheme - Large Cap Fund"},
		})).To(Succeed())

		points := []data.NavPoint{
			{SchemeCode: "100001", Date: time.Date(2023, 1, 2, 0, 0, 0, 0, tz), NAV: 100},
			{SchemeCode: "100001", Date: time.Date(2023, 1, 3, 0, 0, 0, 0, tz), NAV: 101.5},
			{SchemeCode: "100001", Date: time.Date(2023, 1, 4, 0, 0, 0, 0, tz), NAV: 100.75},
		}
		n, err := store.SaveNavHistory(ctx, "100001", points)
		Expect(err).To(BeNil())
		Expect(n).To(Equal(int64(3)))

		n, err = store.SaveNavHistory(ctx, "100001", points)
		Expect(err).To(BeNil())
		Expect(n).To(Equal(int64(0)))

		funds, err := store.LoadFunds(ctx, time.Date(2023, 1, 3, 0, 0, 0, 0, tz))
		Expect(err).To(BeNil())
		Expect(funds).To(HaveLen(1))
		Expect(funds[0].Scheme.FundHouse).To(Equal("Alpha AMC"))
		Expect(funds[0].Len()).To(Equal(2))
		Expect(funds[0].Start()).To(BeTemporally("==", time.Date(2023, 1, 3, 0, 0, 0, 0, tz)))

		latest, err := store.LatestNavs(ctx)
		Expect(err).To(BeNil())
		Expect(latest["100001"].NAV).To(Equal(100.75))
	})

	It("keeps known metadata when a scheme is saved without it", func() {
		Expect(store.SaveSchemes(ctx, []data.Scheme{
			{Code: "100001", Name: "Alpha Large Cap Fund", FundHouse: "Alpha AMC", Category: "Equity Scheme - Large Cap Fund"},
		})).To(Succeed())
		Expect(store.SaveSchemes(ctx, []data.Scheme{{Code: "100001", Name: "Alpha Large Cap Fund - Growth"}})).To(Succeed())

		_, err := store.SaveNavHistory(ctx, "100001", []data.NavPoint{
			{SchemeCode: "100001", Date: time.Date(2023, 1, 2, 0, 0, 0, 0, tz), NAV: 100},
		})
		Expect(err).To(BeNil())

		funds, err := store.LoadFunds(ctx, time.Time{})
		Expect(err).To(BeNil())
		Expect(funds[0].Scheme.Name).To(Equal("Alpha Large Cap Fund - Growth"))
		Expect(funds[0].Scheme.Category).To(Equal("Equity Scheme - Large Cap Fund"))
	})

	It("replaces the metrics batch", func() {
		first := []data.MetricsRecord{
			{SchemeCode: "100001", Name: "Alpha", AlphaStrategy: "capm", RunID: uuid.New(), ComputedAt: time.Now().UTC()},
			{SchemeCode: "100002", Name: "Beta", AlphaStrategy: "capm", RunID: uuid.New(), ComputedAt: time.Now().UTC()},
		}
		Expect(store.ReplaceMetrics(ctx, first)).To(Succeed())

		runID := uuid.New()
		second := []data.MetricsRecord{
			{SchemeCode: "100003", Name: "Gamma", Period: "2Y", PeriodYears: 2, Sharpe: 1.25, AlphaStrategy: "cagr",
				Observations: 500, RunID: runID, ComputedAt: time.Now().UTC()},
		}
		Expect(store.ReplaceMetrics(ctx, second)).To(Succeed())

		records, err := store.LoadMetrics(ctx)
		Expect(err).To(BeNil())
		Expect(records).To(HaveLen(1))
		Expect(records[0].SchemeCode).To(Equal("100003"))
		Expect(records[0].Sharpe).To(Equal(1.25))
		Expect(records[0].RunID).To(Equal(runID))
	})

	It("leaves the previous metrics batch when a replacement fails", func() {
		Expect(store.ReplaceMetrics(ctx, []data.MetricsRecord{
			{SchemeCode: "100001", Name: "Alpha", AlphaStrategy: "capm", RunID: uuid.New(), ComputedAt: time.Now().UTC()},
		})).To(Succeed())

		// duplicate primary key
		err := store.ReplaceMetrics(ctx, []data.MetricsRecord{
			{SchemeCode: "100002", Name: "Beta", AlphaStrategy: "capm", RunID: uuid.New(), ComputedAt: time.Now().UTC()},
			{SchemeCode: "100002", Name: "Beta", AlphaStrategy: "capm", RunID: uuid.New(), ComputedAt: time.Now().UTC()},
		})
		Expect(err).ToNot(BeNil())

		records, err := store.LoadMetrics(ctx)
		Expect(err).To(BeNil())
		Expect(records).To(HaveLen(1))
		Expect(records[0].SchemeCode).To(Equal("100001"))
	})

	It("replaces the portfolio", func() {
		holdings := []data.Holding{
			{SchemeCode: "100001", Name: "Alpha", Category: "Large-cap", InvestmentAmount: 1000, PurchaseNAV: 100,
				Units: 10, PurchaseDate: time.Date(2023, 1, 4, 0, 0, 0, 0, tz)},
		}
		Expect(store.ReplacePortfolio(ctx, holdings)).To(Succeed())

		loaded, err := store.LoadPortfolio(ctx)
		Expect(err).To(BeNil())
		Expect(loaded).To(HaveLen(1))
		Expect(loaded[0].Units).To(Equal(10.0))
		Expect(loaded[0].PurchaseDate).To(BeTemporally("==", holdings[0].PurchaseDate))
	})
})
