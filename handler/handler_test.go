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

package handler_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-fund/common"
	"github.com/penny-vault/pv-fund/data"
	"github.com/penny-vault/pv-fund/handler"
	"github.com/penny-vault/pv-fund/portfolio"
	"github.com/penny-vault/pv-fund/report"
	"github.com/penny-vault/pv-fund/router"
)

// queryingStore records the filter passed to QueryMetrics
type queryingStore struct {
	*data.SQLiteStore
	where map[string]string
	order string
}

func (q *queryingStore) QueryMetrics(ctx context.Context, where map[string]string, order string) ([]data.MetricsRecord, error) {
	q.where = where
	q.order = order
	return q.LoadMetrics(ctx)
}

func get(app *fiber.App, path string) (int, []byte, http.Header) {
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	Expect(err).To(BeNil())
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	Expect(err).To(BeNil())
	return resp.StatusCode, body, resp.Header
}

var _ = Describe("Handlers", func() {
	var (
		app   *fiber.App
		ctx   context.Context
		store *data.SQLiteStore
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		store, err = data.NewSQLiteStore(filepath.Join(GinkgoT().TempDir(), "fund.db"))
		Expect(err).To(BeNil())
		Expect(store.Migrate(ctx)).To(Succeed())

		computed := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
		Expect(store.ReplaceMetrics(ctx, []data.MetricsRecord{
			{SchemeCode: "101", Name: "Alpha Large Cap Fund", Period: "2Y", PeriodYears: 2, Sharpe: 1.1, Sortino: 1.4,
				Alpha: 2.5, MaxDrawdown: 12, Volatility: 0.14, AlphaStrategy: "capm", Observations: 490, ComputedAt: computed},
			{SchemeCode: "201", Name: "Gamma Gilt Fund", Period: "2Y", PeriodYears: 2, Sharpe: 0.6, Sortino: 0.9,
				Alpha: 0.2, MaxDrawdown: 3, Volatility: 0.04, AlphaStrategy: "capm", Observations: 490, ComputedAt: computed},
		})).To(Succeed())

		navDate := time.Date(2024, 3, 15, 0, 0, 0, 0, common.GetTimezone())
		_, err = store.SaveNavHistory(ctx, "101", []data.NavPoint{{SchemeCode: "101", Date: navDate, NAV: 40}})
		Expect(err).To(BeNil())
		_, err = store.SaveNavHistory(ctx, "201", []data.NavPoint{{SchemeCode: "201", Date: navDate, NAV: 20}})
		Expect(err).To(BeNil())

		handler.Setup(&handler.Deps{
			Store:      store,
			Allocation: report.DefaultAllocation(),
			Criteria:   report.DefaultCriteria(),
		})
		app = router.New("")
	})

	AfterEach(func() {
		handler.Setup(nil)
		Expect(store.Close()).To(Succeed())
	})

	It("answers the health check", func() {
		status, body, _ := get(app, "/")
		Expect(status).To(Equal(fiber.StatusOK))

		var ping handler.PingResponse
		Expect(json.Unmarshal(body, &ping)).To(Succeed())
		Expect(ping.Status).To(Equal("success"))
	})

	It("lists metrics", func() {
		status, body, _ := get(app, "/v1/metrics")
		Expect(status).To(Equal(fiber.StatusOK))

		var records []data.MetricsRecord
		Expect(json.Unmarshal(body, &records)).To(Succeed())
		Expect(records).To(HaveLen(2))
		Expect(records[0].SchemeCode).To(Equal("101"))
	})

	It("passes filters to stores that support them", func() {
		querier := &queryingStore{SQLiteStore: store}
		handler.Setup(&handler.Deps{Store: querier, Allocation: report.DefaultAllocation(), Criteria: report.DefaultCriteria()})

		status, _, _ := get(app, "/v1/metrics?sharpe=gt.0&order=alpha.desc")
		Expect(status).To(Equal(fiber.StatusOK))
		Expect(querier.where).To(Equal(map[string]string{"sharpe": "gt.0"}))
		Expect(querier.order).To(Equal("alpha.desc"))
	})

	It("rejects unknown filter columns", func() {
		status, _, _ := get(app, "/v1/metrics?password=eq.1")
		Expect(status).To(Equal(fiber.StatusBadRequest))
	})

	It("does not filter on stores without query support", func() {
		status, _, _ := get(app, "/v1/metrics?sharpe=gt.0")
		Expect(status).To(Equal(fiber.StatusNotImplemented))
	})

	It("returns a single scheme", func() {
		status, body, _ := get(app, "/v1/metrics/201")
		Expect(status).To(Equal(fiber.StatusOK))

		var rec data.MetricsRecord
		Expect(json.Unmarshal(body, &rec)).To(Succeed())
		Expect(rec.Name).To(Equal("Gamma Gilt Fund"))

		status, _, _ = get(app, "/v1/metrics/999")
		Expect(status).To(Equal(fiber.StatusNotFound))
	})

	It("builds the report", func() {
		status, body, _ := get(app, "/v1/report")
		Expect(status).To(Equal(fiber.StatusOK))

		var resp struct {
			Report          report.Report           `json:"report"`
			Recommendations []report.Recommendation `json:"recommendations"`
		}
		Expect(json.Unmarshal(body, &resp)).To(Succeed())
		Expect(resp.Report.TotalFunds).To(Equal(2))
		Expect(resp.Recommendations).To(HaveLen(2))
	})

	It("renders the html report with the portfolio", func() {
		rep := report.Build([]data.MetricsRecord{
			{SchemeCode: "101", Name: "Alpha Large Cap Fund", Sharpe: 1, Sortino: 1, Alpha: 1, MaxDrawdown: 5, Volatility: 0.05, AlphaStrategy: "capm"},
		}, report.DefaultAllocation(), report.DefaultCriteria())
		_, err := portfolio.NewManager(store).Book(ctx, rep, 10000)
		Expect(err).To(BeNil())

		status, body, header := get(app, "/v1/report.html")
		Expect(status).To(Equal(fiber.StatusOK))
		Expect(header.Get(fiber.HeaderContentType)).To(HavePrefix("text/html"))
		Expect(string(body)).To(ContainSubstring("Portfolio Performance"))
	})

	It("values the portfolio", func() {
		status, _, _ := get(app, "/v1/portfolio")
		Expect(status).To(Equal(fiber.StatusNotFound))

		rep := report.Build([]data.MetricsRecord{
			{SchemeCode: "201", Name: "Gamma Gilt Fund", Sharpe: 1, Sortino: 1, Alpha: 1, MaxDrawdown: 5, Volatility: 0.05, AlphaStrategy: "capm"},
		}, report.DefaultAllocation(), report.DefaultCriteria())
		_, err := portfolio.NewManager(store).Book(ctx, rep, 10000)
		Expect(err).To(BeNil())

		status, body, _ := get(app, "/v1/portfolio")
		Expect(status).To(Equal(fiber.StatusOK))

		var summary portfolio.Summary
		Expect(json.Unmarshal(body, &summary)).To(Succeed())
		Expect(summary.Holdings).To(HaveLen(1))
		Expect(summary.TotalInvestment).To(BeNumerically("~", 1000, 1e-9))
	})

	It("exposes prometheus metrics", func() {
		status, body, _ := get(app, "/metrics")
		Expect(status).To(Equal(fiber.StatusOK))
		Expect(string(body)).To(ContainSubstring("go_goroutines"))
	})

	It("is unavailable until configured", func() {
		handler.Setup(nil)
		status, _, _ := get(app, "/v1/metrics")
		Expect(status).To(Equal(fiber.StatusServiceUnavailable))
	})
})
