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
	"net/http"
	"time"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pv-fund/common"
	"github.com/penny-vault/pv-fund/data"
)

const mfapiHistory = `{
	"meta": {
		"fund_house": "Axis Mutual Fund",
		"scheme_type": "Open Ended Schemes",
		"scheme_category": "Equity Scheme - Large Cap Fund",
		"scheme_code": 120503,
		"scheme_name": "Axis Bluechip Fund - Direct Plan - Growth"
	},
	"data": [
		{"date": "03-01-2023", "nav": "45.12000"},
		{"date": "02-01-2023", "nav": "44.98000"},
		{"date": "01-01-2023", "nav": "not-a-number"}
	],
	"status": "SUCCESS"
}`

const yahooChart = `{
	"chart": {
		"result": [{
			"timestamp": [1672718400, 1672804800, 1672891200],
			"indicators": {"quote": [{"close": [18232.55, null, 18042.95]}]}
		}],
		"error": null
	}
}`

var _ = Describe("Providers", func() {
	var (
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		httpmock.Activate()
	})

	AfterEach(func() {
		httpmock.DeactivateAndReset()
	})

	Describe("mfapi", func() {
		It("lists schemes", func() {
			httpmock.RegisterResponder("GET", "https://mf.test/mf",
				httpmock.NewStringResponder(200, `[{"schemeCode": 120503, "schemeName": " Axis Bluechip Fund "}, {"schemeCode": 100027, "schemeName": "Grindlays Super Saver"}]`))

			provider := data.NewMFAPI(data.WithBaseURL("https://mf.test"), data.WithRateLimit(100))
			schemes, err := provider.Schemes(ctx)
			Expect(err).To(BeNil())
			Expect(schemes).To(HaveLen(2))
			Expect(schemes[0]).To(Equal(data.Scheme{Code: "120503", Name: "Axis Bluechip Fund"}))
		})

		It("downloads nav history with scheme metadata", func() {
			httpmock.RegisterResponder("GET", "https://mf.test/mf/120503",
				httpmock.NewStringResponder(200, mfapiHistory))

			provider := data.NewMFAPI(data.WithBaseURL("https://mf.test"), data.WithRateLimit(100))
			scheme, raw, err := provider.NavHistory(ctx, "120503")
			Expect(err).To(BeNil())
			Expect(scheme.FundHouse).To(Equal("Axis Mutual Fund"))
			Expect(scheme.Category).To(Equal("Equity Scheme - Large Cap Fund"))
			Expect(raw).To(HaveLen(3))

			fs := data.Normalize(scheme, raw)
			Expect(fs.Len()).To(Equal(2))
			Expect(fs.Points[0].NAV).To(Equal(44.98))
		})

		It("returns an error for an empty history", func() {
			httpmock.RegisterResponder("GET", "https://mf.test/mf/1",
				httpmock.NewStringResponder(200, `{"meta": {}, "data": [], "status": "SUCCESS"}`))

			provider := data.NewMFAPI(data.WithBaseURL("https://mf.test"), data.WithRateLimit(100))
			_, _, err := provider.NavHistory(ctx, "1")
			Expect(errors.Is(err, data.ErrNoData)).To(BeTrue())
		})

		It("surfaces http errors", func() {
			httpmock.RegisterResponder("GET", "https://mf.test/mf/2",
				httpmock.NewStringResponder(http.StatusBadGateway, "bad gateway"))

			provider := data.NewMFAPI(data.WithBaseURL("https://mf.test"), data.WithRateLimit(100))
			_, _, err := provider.NavHistory(ctx, "2")
			Expect(errors.Is(err, data.ErrUnexpectedStatus)).To(BeTrue())
		})
	})

	Describe("yahoo", func() {
		It("returns closes skipping nulls", func() {
			httpmock.RegisterResponder("GET", `=~^https://yahoo\.test/v8/finance/chart/`,
				httpmock.NewStringResponder(200, yahooChart))

			tz := common.GetTimezone()
			provider := data.NewYahoo(data.WithBaseURL("https://yahoo.test"), data.WithRateLimit(100))
			series, err := provider.Prices(ctx, "^NSEI", time.Date(2023, 1, 1, 0, 0, 0, 0, tz), time.Date(2023, 1, 10, 0, 0, 0, 0, tz))
			Expect(err).To(BeNil())
			Expect(series.Ticker).To(Equal("^NSEI"))
			Expect(series.Len()).To(Equal(2))
			Expect(series.Points[0].Close).To(Equal(18232.55))
			Expect(series.Points[0].Date).To(BeTemporally("==", time.Date(2023, 1, 3, 0, 0, 0, 0, tz)))
		})

		It("returns an error when there are no results", func() {
			httpmock.RegisterResponder("GET", `=~^https://yahoo\.test/v8/finance/chart/`,
				httpmock.NewStringResponder(200, `{"chart": {"result": [], "error": null}}`))

			tz := common.GetTimezone()
			provider := data.NewYahoo(data.WithBaseURL("https://yahoo.test"), data.WithRateLimit(100))
			series, err := provider.Prices(ctx, "^NSEI", time.Date(2023, 1, 1, 0, 0, 0, 0, tz), time.Date(2023, 1, 10, 0, 0, 0, 0, tz))
			Expect(errors.Is(err, data.ErrNoData)).To(BeTrue())
			Expect(series.Len()).To(Equal(0))
		})

		It("rejects inverted ranges", func() {
			provider := data.NewYahoo(data.WithBaseURL("https://yahoo.test"))
			_, err := provider.Prices(ctx, "^NSEI", time.Now(), time.Now().AddDate(0, 0, -1))
			Expect(err).To(MatchError(data.ErrInvalidTimeRange))
		})
	})
})
